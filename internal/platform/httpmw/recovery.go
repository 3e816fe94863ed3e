package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// Recovery перехватывает панику в обработчиках и возвращает 500 вместо падения
// процесса. Не раскрывает детали паники клиенту по соображениям безопасности.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				ctx := c.Request.Context()

				logger.FromContext(ctx).Error().
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Str("stack", stack).
					Msg("Перехвачена паника в HTTP handler")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "внутренняя ошибка сервера",
				})
			}
		}()

		c.Next()
	}
}
