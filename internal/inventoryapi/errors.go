// Package inventoryapi is the Inventory Engine's HTTP surface: reserve,
// confirm, release, ship and the reaper trigger (§6).
package inventoryapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/inventory"
	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// ErrorResponse mirrors the Order Orchestrator's envelope of §6:
// {error, message, orderId?, details?}.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	OrderID string            `json:"orderId,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(c *gin.Context, orderID string, err error) {
	switch {
	case errors.Is(err, inventory.ErrMissingIdempotencyKey),
		errors.Is(err, inventory.ErrEmptyItems),
		errors.Is(err, inventory.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
			OrderID: orderID,
		})
		return

	case errors.Is(err, inventory.ErrDuplicateIdempotencyKey):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "DUPLICATE_IDEMPOTENCY_KEY",
			Message: err.Error(),
			OrderID: orderID,
		})
		return

	case errors.Is(err, inventory.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "ORDER_NOT_FOUND",
			Message: err.Error(),
			OrderID: orderID,
		})
		return
	}

	logger.FromContext(c.Request.Context()).Error().Err(err).Str("order_id", orderID).Msg("Необработанная ошибка в inventoryapi")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "внутренняя ошибка сервера",
		OrderID: orderID,
	})
}
