package inventoryapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/inventory"
	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// Handler implements the Inventory Engine's HTTP surface (§6).
type Handler struct {
	engine *inventory.Engine
}

// NewHandler builds a Handler.
func NewHandler(engine *inventory.Engine) *Handler {
	return &Handler{engine: engine}
}

type reserveItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"qty" binding:"required,min=1"`
	SKU       string `json:"sku"`
}

type reserveRequest struct {
	OrderID string           `json:"orderId" binding:"required"`
	Items   []reserveItemReq `json:"items" binding:"required,min=1,dive"`
}

type reserveLineResponse struct {
	ProductID      string `json:"productId"`
	SKU            string `json:"sku,omitempty"`
	Warehouse      string `json:"warehouse,omitempty"`
	ReservedQty    int64  `json:"reservedQty"`
	RequestedQty   int64  `json:"requestedQty"`
	AvailableQty   int64  `json:"availableQty,omitempty"`
	ActionRequired string `json:"actionRequired,omitempty"`
	ReservationID  string `json:"reservationId,omitempty"`
}

type reserveResponse struct {
	Status     string                `json:"status"`
	OrderID    string                `json:"orderId"`
	Items      []reserveLineResponse `json:"items"`
	Strategy   string                `json:"allocationStrategy,omitempty"`
	ExpiresAt  *string               `json:"expiresAt,omitempty"`
	Idempotent *bool                 `json:"idempotent,omitempty"`
}

// Reserve — POST /v1/inventory/reserve.
func (h *Handler) Reserve(c *gin.Context) {
	ctx := c.Request.Context()
	idemKey := c.GetHeader("Idempotency-Key")

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_REQUEST", Message: "невалидные данные запроса: " + err.Error()})
		return
	}

	lines := make([]inventory.RequestLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = inventory.RequestLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity}
	}

	result, err := h.engine.Reserve(ctx, req.OrderID, idemKey, lines)
	if err != nil {
		writeError(c, req.OrderID, err)
		return
	}

	logger.FromContext(ctx).Info().Str("order_id", req.OrderID).Str("outcome", string(result.Outcome)).Msg("Запрос на резервирование обработан")
	c.JSON(http.StatusOK, toReserveResponse(result))
}

func toReserveResponse(result inventory.ReserveResult) reserveResponse {
	resp := reserveResponse{Status: string(result.Outcome), OrderID: result.OrderID, Strategy: string(result.Strategy)}

	for _, a := range result.Allocated {
		resp.Items = append(resp.Items, reserveLineResponse{
			ProductID: a.ProductID, SKU: a.SKU, Warehouse: a.Warehouse,
			ReservedQty: a.ReservedQty, RequestedQty: a.RequestedQty, ReservationID: a.ReservationID,
		})
	}
	for _, u := range result.Unsatisfied {
		resp.Items = append(resp.Items, reserveLineResponse{
			ProductID: u.ProductID, SKU: u.SKU, RequestedQty: u.RequestedQty,
			AvailableQty: u.AvailableQty, ActionRequired: u.ActionRequired,
		})
	}

	if !result.ExpiresAt.IsZero() {
		formatted := result.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ExpiresAt = &formatted
	}
	if result.Idempotent {
		idempotent := true
		resp.Idempotent = &idempotent
	}
	return resp
}

type confirmRequest struct {
	OrderID        string   `json:"orderId" binding:"required"`
	ReservationIDs []string `json:"reservationIds"`
}

// Confirm — POST /v1/inventory/reserve/confirm.
func (h *Handler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_REQUEST", Message: "невалидные данные запроса: " + err.Error()})
		return
	}

	if err := h.engine.Confirm(c.Request.Context(), req.OrderID, req.ReservationIDs); err != nil {
		writeError(c, req.OrderID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "CONFIRMED", "orderId": req.OrderID})
}

type releaseRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// Release — POST /v1/inventory/release.
func (h *Handler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_REQUEST", Message: "невалидные данные запроса: " + err.Error()})
		return
	}

	if err := h.engine.Release(c.Request.Context(), req.OrderID); err != nil {
		writeError(c, req.OrderID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "RELEASED", "orderId": req.OrderID})
}

type shipItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"qty" binding:"required,min=1"`
	Warehouse string `json:"warehouse" binding:"required"`
	SKU       string `json:"sku"`
}

type shipRequest struct {
	OrderID string        `json:"orderId" binding:"required"`
	Items   []shipItemReq `json:"items" binding:"required,min=1,dive"`
}

// Ship — POST /v1/inventory/ship.
func (h *Handler) Ship(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_REQUEST", Message: "невалидные данные запроса: " + err.Error()})
		return
	}

	lines := make([]inventory.ShipLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = inventory.ShipLine{ProductID: it.ProductID, SKU: it.SKU, Warehouse: it.Warehouse, Quantity: it.Quantity}
	}

	if err := h.engine.Ship(c.Request.Context(), req.OrderID, lines); err != nil {
		writeError(c, req.OrderID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "SHIPPED", "orderId": req.OrderID})
}

// ReapExpired — POST /v1/inventory/reaper/expired.
func (h *Handler) ReapExpired(c *gin.Context) {
	result, err := h.engine.ReapExpired(c.Request.Context())
	if err != nil {
		writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":               "PROCESSED",
		"expiredCount":         result.ExpiredCount,
		"releasedReservations": result.Released,
	})
}
