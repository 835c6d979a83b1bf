package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/api/handlers"
	"github.com/veilvogue/marketapi/internal/api/middleware"
	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
)

// Services bundles what the HTTP layer calls into
type Services struct {
	Carts  handlers.CartEngine
	Orders handlers.OrderManager
	Tokens middleware.TokenVerifier
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	if cfg.RequestTimeout > 0 {
		router.Use(timeoutMiddleware(cfg.RequestTimeout))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(svc.Tokens, logger))
	{
		cart := api.Group("/cart")
		{
			cart.GET("", handlers.HandleGetCart(svc.Carts, logger))
			cart.POST("/add", handlers.HandleAddToCart(svc.Carts, logger))
			cart.DELETE("/remove/:itemId", handlers.HandleRemoveFromCart(svc.Carts, logger))
			cart.PUT("/update/:productId", handlers.HandleUpdateCartQuantity(svc.Carts, logger))
		}

		orders := api.Group("/orders")
		{
			orders.POST("", middleware.IdempotencyMiddleware(logger), handlers.HandlePlaceOrder(svc.Orders, logger))
			orders.GET("/myorders", handlers.HandleGetMyOrders(svc.Orders, logger))
			orders.GET("/seller/myorders",
				middleware.RequireRole(domain.RoleSeller),
				handlers.HandleGetSellerOrders(svc.Orders, logger),
			)
			orders.GET("/:id", handlers.HandleGetOrder(svc.Orders, logger))
			orders.PUT("/:id/pay", handlers.HandleMarkPaid(svc.Orders, logger))
			orders.PUT("/:id/deliver",
				middleware.RequireRole(domain.RoleAdmin),
				handlers.HandleMarkDelivered(svc.Orders, logger),
			)
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// timeoutMiddleware bounds the request context so persistence calls give up
// once the deadline passes.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
