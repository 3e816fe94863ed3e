package inventoryapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordercore/saga-platform/internal/inventory"
	"github.com/ordercore/saga-platform/internal/platform/httpmw"
)

// ReadinessChecker reports whether the service's dependencies are reachable.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Engine         *inventory.Engine
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter builds the Inventory Engine's gin.Engine (§6).
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

	handler := NewHandler(cfg.Engine)
	v1 := engine.Group("/v1/inventory")
	{
		v1.POST("/reserve", handler.Reserve)
		v1.POST("/reserve/confirm", handler.Confirm)
		v1.POST("/release", handler.Release)
		v1.POST("/ship", handler.Ship)
		v1.POST("/reaper/expired", handler.ReapExpired)
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
