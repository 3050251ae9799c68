// Package admin 管理端 HTTP Handler
package admin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-commission/internal/common/handler"
	"github.com/dumeirei/marketplace-commission/internal/common/response"
	"github.com/dumeirei/marketplace-commission/internal/service/commission"
	"github.com/dumeirei/marketplace-commission/internal/service/payout"
)

// CommissionHandler 佣金与打款管理处理器
type CommissionHandler struct {
	commissionService *commission.CommissionService
	payoutService     *payout.PayoutService
	now               func() time.Time
}

// NewCommissionHandler 创建佣金管理处理器
func NewCommissionHandler(commissionSvc *commission.CommissionService, payoutSvc *payout.PayoutService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionSvc,
		payoutService:     payoutSvc,
		now:               time.Now,
	}
}

// RegisterRoutes 注册路由
func (h *CommissionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/commissions/calculate", h.Calculate)
	r.POST("/orders/:id/commissions", h.CalculateOrder)
	r.POST("/orders/:id/refund", h.CancelOrderCommissions)
	r.POST("/payouts", h.GeneratePayout)
	r.POST("/payouts/cycle", h.GenerateCycle)
	r.GET("/payouts", h.FindPayout)
	r.GET("/payouts/:id", h.GetPayout)
}

// CalculateRequest 计算单个订单项佣金请求
type CalculateRequest struct {
	VendorID    int64           `json:"vendor_id" binding:"required,gt=0"`
	OrderID     int64           `json:"order_id" binding:"required,gt=0"`
	OrderItemID int64           `json:"order_item_id" binding:"required,gt=0"`
	SaleAmount  decimal.Decimal `json:"sale_amount" swaggertype:"string"`
}

// Calculate 计算单个订单项佣金
// @Summary 计算单个订单项佣金，重复调用返回已有结果
// @Tags 管理-佣金
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CalculateRequest true "订单项"
// @Success 200 {object} response.Response{data=commission.Breakdown}
// @Router /api/v1/admin/commissions/calculate [post]
func (h *CommissionHandler) Calculate(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.commissionService.Calculate(c.Request.Context(), req.VendorID, req.SaleAmount, req.OrderID, req.OrderItemID)
	handler.MustSucceed(c, err, result)
}

// CalculateOrder 计算订单全部商家订单项佣金
// @Summary 订单履约后计算佣金
// @Tags 管理-佣金
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=[]commission.Breakdown}
// @Router /api/v1/admin/orders/{id}/commissions [post]
func (h *CommissionHandler) CalculateOrder(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.commissionService.CalculateForOrder(c.Request.Context(), orderID)
	handler.MustSucceed(c, err, result)
}

// CancelOrderCommissions 订单退款取消佣金
// @Summary 订单退款取消待打款佣金
// @Tags 管理-佣金
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/orders/{id}/refund [post]
func (h *CommissionHandler) CancelOrderCommissions(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	cancelled, err := h.commissionService.CancelByOrderID(c.Request.Context(), orderID)
	handler.MustSucceed(c, err, gin.H{"cancelled": cancelled})
}

// GeneratePayoutRequest 生成打款请求
type GeneratePayoutRequest struct {
	VendorID  int64  `json:"vendor_id" binding:"required,gt=0"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// GeneratePayout 为商家生成打款批次
// @Summary 为商家生成打款批次，周期为 [start_date, end_date]
// @Tags 管理-打款
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body GeneratePayoutRequest true "商家与周期"
// @Success 200 {object} response.Response{data=models.Payout}
// @Router /api/v1/admin/payouts [post]
func (h *CommissionHandler) GeneratePayout(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req GeneratePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	start, err := handler.ParseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, "无效的开始日期格式")
		return
	}
	end, err := handler.ParseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, "无效的结束日期格式")
		return
	}

	p, err := h.payoutService.GeneratePayout(c.Request.Context(), req.VendorID, start, end.AddDate(0, 0, 1))
	if handler.HandleError(c, err) {
		return
	}
	if p == nil {
		response.SuccessWithMessage(c, "没有达到最低打款金额的待打款佣金", nil)
		return
	}
	response.Success(c, p)
}

// GenerateCycle 执行打款周期
// @Summary 为上一个完整周期内的全部商家生成打款
// @Tags 管理-打款
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=payout.CycleResult}
// @Router /api/v1/admin/payouts/cycle [post]
func (h *CommissionHandler) GenerateCycle(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.payoutService.GenerateCycle(c.Request.Context(), h.now())
	if err != nil && result != nil && (len(result.Payouts) > 0 || result.Skipped > 0) {
		// 部分商家失败，返回已完成的部分
		_ = c.Error(err)
		response.SuccessWithMessage(c, "部分商家打款生成失败", result)
		return
	}
	handler.MustSucceed(c, err, result)
}

// GetPayout 获取打款批次详情
// @Summary 获取打款批次详情
// @Tags 管理-打款
// @Produce json
// @Security Bearer
// @Param id path int true "打款批次ID"
// @Success 200 {object} response.Response{data=models.Payout}
// @Router /api/v1/admin/payouts/{id} [get]
func (h *CommissionHandler) GetPayout(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	payoutID, ok := handler.ParseID(c, "打款批次")
	if !ok {
		return
	}

	p, err := h.payoutService.GetPayout(c.Request.Context(), 0, payoutID)
	handler.MustSucceed(c, err, p)
}

// FindPayout 按批次号查询打款批次
// @Summary 按批次号查询打款批次
// @Tags 管理-打款
// @Produce json
// @Security Bearer
// @Param payout_no query string true "打款批次号"
// @Success 200 {object} response.Response{data=models.Payout}
// @Router /api/v1/admin/payouts [get]
func (h *CommissionHandler) FindPayout(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	payoutNo := c.Query("payout_no")
	if payoutNo == "" {
		response.BadRequest(c, "缺少打款批次号")
		return
	}

	p, err := h.payoutService.GetPayoutByNo(c.Request.Context(), payoutNo)
	handler.MustSucceed(c, err, p)
}
