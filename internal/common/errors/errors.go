// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown              = New(1000, "未知错误")
	ErrInvalidParams        = New(1001, "参数错误")
	ErrDatabaseError        = New(1004, "数据库错误")
	ErrCacheError           = New(1005, "缓存错误")
	ErrInternalError        = New(1006, "内部错误")
	ErrExternalService      = New(1007, "外部服务错误")
	ErrRateLimited          = New(1008, "请求过于频繁，请稍后再试")
	ErrLockFailed           = New(1010, "获取锁失败")
	ErrConsistencyViolation = New(1011, "数据一致性校验失败")
)

// ErrInvalidInput 输入不合法，与 ErrInvalidParams 同码
var ErrInvalidInput = ErrInvalidParams

// 商家错误码 (3000-3999)
var (
	ErrVendorNotFound   = New(3000, "商家不存在")
	ErrInvalidTierTable = New(3003, "阶梯佣金配置错误")
	ErrInvalidPlan      = New(3004, "套餐不存在")
)

// 佣金错误码 (4000-4999)
var (
	ErrInvalidSaleAmount = New(4001, "销售金额必须大于0")
	ErrInvalidScore      = New(4002, "绩效评分必须在0到1之间")
)

// 订单错误码 (5000-5999)
var ErrOrderNotFound = New(5000, "订单不存在")

// 打款错误码 (6000-6999)
var (
	ErrPayoutNotFound   = New(6000, "打款记录不存在")
	ErrPayoutInProgress = New(6001, "该商家正在生成打款，请稍后再试")
	ErrInvalidPeriod    = New(6002, "结算周期不合法")
)

// 代发货错误码 (7000-7999)
var (
	ErrSupplierNotFound           = New(7000, "供应商不存在")
	ErrSupplierOrderNotFound      = New(7001, "供应商订单不存在")
	ErrSupplierOrderStatus        = New(7002, "供应商订单状态不允许该操作")
	ErrSupplierCredentialsMissing = New(7003, "供应商未配置API凭证")
	ErrSupplierUnauthorized       = New(7004, "供应商鉴权失败")
	ErrSupplierOrderBusy          = New(7005, "供应商订单正在提交，请稍后再试")
)

// InvalidInput 将领域校验错误归入输入错误
// 返回的错误码为 ErrInvalidInput，Is 对 cause 同样成立
func InvalidInput(cause *AppError) *AppError {
	return ErrInvalidInput.WithMessage(cause.Message).WithError(cause)
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// Is 判断错误链中是否存在与 target 同码的应用错误
func Is(err error, target *AppError) bool {
	if err == nil || target == nil {
		return false
	}
	var appErr *AppError
	for err != nil {
		if stderrors.As(err, &appErr) {
			if appErr.Code == target.Code {
				return true
			}
			err = appErr.Err
			continue
		}
		return false
	}
	return false
}
