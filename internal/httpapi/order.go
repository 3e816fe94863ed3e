package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/order"
	"github.com/ordercore/saga-platform/internal/orderdb"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/saga"
)

// OrderHandler implements POST/GET /v1/orders (§6).
type OrderHandler struct {
	orchestrator *saga.Orchestrator
	orderRepo    orderdb.Repository
}

// NewOrderHandler builds an OrderHandler.
func NewOrderHandler(orchestrator *saga.Orchestrator, orderRepo orderdb.Repository) *OrderHandler {
	return &OrderHandler{orchestrator: orchestrator, orderRepo: orderRepo}
}

// createOrderRequest is the wire shape of POST /v1/orders's body (§6).
type createOrderRequest struct {
	CustomerID    string               `json:"customerId" binding:"required"`
	Items         []createOrderItemReq `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string               `json:"paymentMethod"`
}

type createOrderItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	SKU       string `json:"sku"`
}

type orderItemResponse struct {
	ProductID   string `json:"productId"`
	SKU         string `json:"sku"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Status      string `json:"status"`
}

// totalsResponse carries what the order entity itself persists (§3): the
// final total and its tamper signature. The full subtotal/tax/shipping
// breakdown is only available at creation time (totals.Breakdown) and is not
// re-derived here.
type totalsResponse struct {
	Total     string `json:"total"`
	Signature string `json:"signature"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	CustomerID       string              `json:"customerId"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"paymentStatus"`
	PaymentReference *string             `json:"paymentReference,omitempty"`
	Items            []orderItemResponse `json:"items"`
	Totals           totalsResponse      `json:"totals"`
	CreatedAt        string              `json:"createdAt"`
	UpdatedAt        string              `json:"updatedAt"`
}

// CreateOrder — POST /v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	idemKey := c.GetHeader("Idempotency-Key")

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на создание заказа")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "невалидные данные запроса: " + err.Error(),
		})
		return
	}

	items := make([]saga.RequestItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = saga.RequestItem{ProductID: it.ProductID, Quantity: it.Quantity, SKU: it.SKU}
	}

	result, err := h.orchestrator.CreateOrder(ctx, saga.CreateRequest{
		CustomerID:     req.CustomerID,
		Items:          items,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idemKey,
		ResourcePath:   c.Request.URL.Path,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("order_id", result.Order.ID).Bool("idempotent", result.Idempotent).Msg("Заказ создан")
	c.JSON(http.StatusCreated, toOrderResponse(result.Order))
}

// GetOrder — GET /v1/orders/{id}.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "INVALID_REQUEST", Message: "id заказа обязателен"})
		return
	}

	ord, err := h.orderRepo.GetByID(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(ord))
}

// ListOrders — GET /v1/orders: last 50 orders desc by creation (§6).
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	orders, err := h.orderRepo.List(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, ord := range orders {
		resp[i] = toOrderResponse(ord)
	}
	c.JSON(http.StatusOK, gin.H{"orders": resp})
}

func toOrderResponse(ord *order.Order) orderResponse {
	items := make([]orderItemResponse, len(ord.Items))
	for i, it := range ord.Items {
		items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			SKU:         it.SKU,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Status:      string(it.Status),
		}
	}

	return orderResponse{
		ID:               ord.ID,
		CustomerID:       ord.CustomerID,
		Status:           string(ord.Status),
		PaymentStatus:    string(ord.PaymentStatus),
		PaymentReference: ord.PaymentReference,
		Items:            items,
		Totals: totalsResponse{
			Total:     ord.TotalAmount.StringFixed(2),
			Signature: ord.TotalsSignature,
		},
		CreatedAt: ord.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: ord.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
