package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/orderdb"
	"github.com/ordercore/saga-platform/internal/platform/httpmw"
	"github.com/ordercore/saga-platform/internal/saga"
)

// ReadinessChecker reports whether the service's dependencies are reachable.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Orchestrator   *saga.Orchestrator
	OrderRepo      orderdb.Repository
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter builds the Order Orchestrator's gin.Engine (§6).
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(httpmw.Recovery())
	engine.Use(httpmw.Tracing())

	engine.GET("/healthz", livenessCheck)
	engine.GET("/readyz", readinessHandler(cfg.ReadinessCheck))

	orderHandler := NewOrderHandler(cfg.Orchestrator, cfg.OrderRepo)
	v1 := engine.Group("/v1")
	{
		v1.POST("/orders", orderHandler.CreateOrder)
		v1.GET("/orders", orderHandler.ListOrders)
		v1.GET("/orders/:id", orderHandler.GetOrder)
	}

	return engine
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func readinessHandler(check ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
