// Package httpapi is the Order Orchestrator's HTTP surface: POST/GET
// /v1/orders, translating saga results into the error envelope of §6/§7.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/order"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/saga"
)

// ErrorResponse is the error envelope of §6: {error, message, orderId?, details?}.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	OrderID string            `json:"orderId,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError maps err onto the HTTP response. A *saga.SagaError carries its
// own status and kind; order.ErrOrderNotFound becomes 404 ORDER_NOT_FOUND;
// anything else falls back to 500 INTERNAL_ERROR.
func writeError(c *gin.Context, err error) {
	var sagaErrVal *saga.SagaError
	if errors.As(err, &sagaErrVal) {
		c.JSON(sagaErrVal.Status, ErrorResponse{
			Error:   sagaErrVal.Kind,
			Message: sagaErrVal.Message,
			OrderID: sagaErrVal.OrderID,
		})
		return
	}

	if errors.Is(err, order.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "ORDER_NOT_FOUND",
			Message: "заказ не найден",
		})
		return
	}

	logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Необработанная ошибка в httpapi")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "внутренняя ошибка сервера",
	})
}
