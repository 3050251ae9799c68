// Package response 提供统一的 API 响应格式
//
// 业务错误一律返回 HTTP 200，由 code 区分；参数、鉴权、限流等协议层错误使用对应的 HTTP 状态码，
// code 与状态码相同。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeSuccess 成功
const CodeSuccess = 0

// requestIDKey 与 middleware.ContextKeyRequestID 一致
const requestIDKey = "request_id"

// Response API 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

var defaultMessages = map[int]string{
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not found",
	http.StatusTooManyRequests:     "too many requests",
	http.StatusInternalServerError: "internal server error",
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
	})
}

func fail(c *gin.Context, status int, message string) {
	if message == "" {
		message = defaultMessages[status]
	}
	write(c, status, status, message, nil)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeSuccess, "success", data)
}

// SuccessWithMessage 成功响应（带消息），用于部分成功或空结果的提示
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, CodeSuccess, message, data)
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// Error 业务错误响应
func Error(c *gin.Context, code int, message string) {
	write(c, http.StatusOK, code, message, nil)
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message)
}

// Unauthorized 未授权
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, message)
}

// Forbidden 角色不足
func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, message)
}

// NotFound 路由不存在
func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, message)
}

// InternalError 服务器内部错误，不向调用方暴露细节
func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, message)
}

// TooManyRequests 请求过于频繁
func TooManyRequests(c *gin.Context, message string) {
	fail(c, http.StatusTooManyRequests, message)
}
