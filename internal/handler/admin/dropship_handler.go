package admin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-commission/internal/common/handler"
	"github.com/dumeirei/marketplace-commission/internal/common/response"
	"github.com/dumeirei/marketplace-commission/internal/service/dropship"
)

// DropshipHandler 代发货订单管理处理器
type DropshipHandler struct {
	syncService *dropship.SyncService
	now         func() time.Time
}

// NewDropshipHandler 创建代发货管理处理器
func NewDropshipHandler(syncSvc *dropship.SyncService) *DropshipHandler {
	return &DropshipHandler{syncService: syncSvc, now: time.Now}
}

// RegisterRoutes 注册路由
func (h *DropshipHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders/:id/supplier-orders", h.CreateSupplierOrders)
	r.GET("/orders/:id/supplier-orders", h.ListSupplierOrders)
	r.GET("/supplier-orders/:id", h.GetSupplierOrder)
	r.POST("/supplier-orders/:id/submit", h.SubmitSupplierOrder)
	r.POST("/supplier-orders/sync", h.SyncSupplierOrders)
	r.POST("/suppliers/tokens/clear", h.ClearTokens)
}

// CreateSupplierOrders 拆分供应商订单
// @Summary 按供应商拆分订单中的代发货商品
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=[]models.SupplierOrder}
// @Router /api/v1/admin/orders/{id}/supplier-orders [post]
func (h *DropshipHandler) CreateSupplierOrders(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	orders, err := h.syncService.CreateSupplierOrders(c.Request.Context(), orderID)
	handler.MustSucceed(c, err, orders)
}

// ListSupplierOrders 获取订单的供应商订单
// @Summary 获取订单的供应商订单
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=[]models.SupplierOrder}
// @Router /api/v1/admin/orders/{id}/supplier-orders [get]
func (h *DropshipHandler) ListSupplierOrders(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	orders, err := h.syncService.ListSupplierOrders(c.Request.Context(), orderID)
	handler.MustSucceed(c, err, orders)
}

// GetSupplierOrder 获取供应商订单详情
// @Summary 获取供应商订单详情
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Param id path int true "供应商订单ID"
// @Success 200 {object} response.Response{data=models.SupplierOrder}
// @Router /api/v1/admin/supplier-orders/{id} [get]
func (h *DropshipHandler) GetSupplierOrder(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	id, ok := handler.ParseID(c, "供应商订单")
	if !ok {
		return
	}

	so, err := h.syncService.GetSupplierOrder(c.Request.Context(), id)
	handler.MustSucceed(c, err, so)
}

// SubmitSupplierOrder 提交供应商订单
// @Summary 向供应商提交待下单订单，失败不自动重试
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Param id path int true "供应商订单ID"
// @Success 200 {object} response.Response{data=models.SupplierOrder}
// @Router /api/v1/admin/supplier-orders/{id}/submit [post]
func (h *DropshipHandler) SubmitSupplierOrder(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	id, ok := handler.ParseID(c, "供应商订单")
	if !ok {
		return
	}

	so, err := h.syncService.SubmitOrder(c.Request.Context(), id)
	handler.MustSucceed(c, err, so)
}

// SyncSupplierOrders 立即同步供应商订单状态
// @Summary 立即同步供应商订单状态
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=dropship.PollResult}
// @Router /api/v1/admin/supplier-orders/sync [post]
func (h *DropshipHandler) SyncSupplierOrders(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.syncService.PollOrderUpdates(c.Request.Context(), h.now())
	if err != nil && result != nil && result.Queried > 0 {
		_ = c.Error(err)
		response.SuccessWithMessage(c, "部分供应商订单同步失败", result)
		return
	}
	handler.MustSucceed(c, err, result)
}

// ClearTokens 清空供应商令牌缓存
// @Summary 供应商凭证变更后清空令牌缓存
// @Tags 管理-代发货
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/suppliers/tokens/clear [post]
func (h *DropshipHandler) ClearTokens(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	err := h.syncService.ClearTokens(c.Request.Context())
	handler.MustSucceed(c, err, nil)
}
