package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes request handling
type Config struct {
	DefaultPageLimit int
	MaxPageLimit     int
	CORSOrigins      []string
}

// Handler contains HTTP handlers
type Handler struct {
	productService *service.ProductService
	orderService   *service.OrderService
	db             Pinger
	cfg            Config
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(productService *service.ProductService, orderService *service.OrderService, db Pinger, cfg Config) *Handler {
	if cfg.DefaultPageLimit <= 0 {
		cfg.DefaultPageLimit = store.DefaultLimit
	}
	if cfg.MaxPageLimit < cfg.DefaultPageLimit {
		cfg.MaxPageLimit = 100
	}
	useWireFieldNames()

	return &Handler{
		productService: productService,
		orderService:   orderService,
		db:             db,
		cfg:            cfg,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(h.cfg.CORSOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		products := api.Group("/products")
		products.POST("", h.createProduct)
		products.GET("", h.listProducts)
		products.GET("/analytics/by-category", h.productsByCategory)
		products.GET("/:id", h.getProduct)
		products.PATCH("/:id", h.updateProduct)
		products.DELETE("/:id", h.deleteProduct)

		orders := api.Group("/orders")
		orders.POST("", h.createOrder)
		orders.GET("", h.listOrders)
		orders.GET("/statistics", h.orderStatistics)
		orders.GET("/:id", h.getOrder)
		orders.PATCH("/:id", h.updateOrder)
		orders.DELETE("/:id", h.deleteOrder)
		orders.GET("/:id/history", h.orderHistory)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{
			Error: errorBody{Code: "NOT_FOUND", Message: "Route " + c.Request.Method + " " + c.Request.URL.Path + " not found"},
			Meta:  errorMeta{Timestamp: time.Now().UTC()},
		})
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
