package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/realtime"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck is one dependency /ready pings
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HandlerConfig wires the services behind the HTTP surface
type HandlerConfig struct {
	Products  *service.ProductService
	Carts     *service.CartService
	Purchases *service.PurchaseService
	Sessions  *service.SessionService
	Chat      *service.ChatService
	Hub       *realtime.Hub
	Checks    []ReadinessCheck
	// SecureCookies marks the session cookie Secure; off in development
	SecureCookies bool
}

// Handler contains HTTP handlers
type Handler struct {
	products      *service.ProductService
	carts         *service.CartService
	purchases     *service.PurchaseService
	sessions      *service.SessionService
	chat          *service.ChatService
	hub           *realtime.Hub
	checks        []ReadinessCheck
	secureCookies bool
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		products:      cfg.Products,
		carts:         cfg.Carts,
		purchases:     cfg.Purchases,
		sessions:      cfg.Sessions,
		chat:          cfg.Chat,
		hub:           cfg.Hub,
		checks:        cfg.Checks,
		secureCookies: cfg.SecureCookies,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(h.recovery())
	router.Use(util.RequestID())
	router.Use(prometheusMiddleware())
	router.Use(util.GinLogger())
	router.Use(h.authenticate())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		products := api.Group("/products")
		products.GET("", h.listProducts)
		products.GET("/:pid", h.getProduct)
		products.POST("", requireAuth(), requireAdmin(), h.createProduct)
		products.PUT("/:pid", requireAuth(), requireAdmin(), h.updateProduct)
		products.DELETE("/:pid", requireAuth(), requireAdmin(), h.deleteProduct)

		carts := api.Group("/carts", requireAuth())
		carts.POST("", requireAdmin(), h.createCart)
		owned := carts.Group("/:cid", requireCartOwner())
		owned.GET("", h.getCart)
		owned.PUT("", h.setCartProducts)
		owned.DELETE("", h.clearCart)
		owned.POST("/product/:pid", h.addProductToCart)
		owned.PUT("/products/:pid", h.updateCartProduct)
		owned.DELETE("/products/:pid", h.removeCartProduct)
		owned.POST("/purchase", h.purchaseCart)

		sessions := api.Group("/sessions")
		sessions.POST("/register", h.register)
		sessions.POST("/login", h.login)
		sessions.POST("/logout", requireAuth(), h.logout)
		sessions.GET("/current", requireAuth(), h.current)

		api.GET("/messages", requireAuth(), h.listMessages)
	}

	router.GET("/ws", requireAuth(), h.serveWS)
	router.GET("/mockingproducts", h.mockingProducts)

	h.setupViews(router)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	body := gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}
	if h.hub != nil {
		body["chat_clients"] = h.hub.ConnectedClients()
	}
	c.JSON(http.StatusOK, body)
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", check.Name), zap.Error(err))
			failed[check.Name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// recovery turns panics into a generic 500
func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		h.logger.Error("Panic while handling request",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
