package di

import (
	"time"

	"github.com/Rijughosh14/EShop/internal/middleware"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/telemetry"
	"github.com/gin-gonic/gin"
)

// RouterConfig configures the HTTP surface
type RouterConfig struct {
	ServiceName string
	Development bool
	CORS        middleware.CORSConfig
	CacheMaxAge time.Duration
	Tracing     bool
	Logger      *logger.Logger
}

// Router builds the gin engine with every route mounted
func (c *Container) Router(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 5 * time.Minute
	}

	router := gin.New()
	router.Use(
		middleware.Recovery(log, cfg.Development),
		middleware.RequestID(),
	)
	if cfg.Tracing {
		router.Use(telemetry.TracingMiddleware(cfg.ServiceName))
	}
	router.Use(
		middleware.Logger(log),
		middleware.CORSWithConfig(cfg.CORS),
	)

	// Health check endpoints
	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)

	requireAuth := middleware.RequireAuth(c.AuthService)

	// /api/auth is what the storefront calls; /auth is kept as an alias
	for _, prefix := range []string{"/api/auth", "/auth"} {
		auth := router.Group(prefix)
		{
			auth.POST("/signup", c.AuthHandler.Signup)
			auth.POST("/login", c.AuthHandler.Login)
			auth.POST("/refresh-token", c.AuthHandler.RefreshToken)

			protected := auth.Group("")
			protected.Use(requireAuth)
			{
				protected.GET("/validate-token", c.AuthHandler.ValidateToken)
				protected.GET("/profile", c.AuthHandler.Profile)
				protected.POST("/logout", c.AuthHandler.Logout)
				protected.POST("/logout-all", c.AuthHandler.LogoutAll)
			}
		}
	}

	products := router.Group("/api/products")
	products.Use(middleware.CacheControl(cfg.CacheMaxAge))
	{
		products.GET("", c.ProductHandler.List)
		products.GET("/", c.ProductHandler.List)
		products.GET("/:id", c.ProductHandler.Get)
		products.GET("/search/:query", c.ProductHandler.Search)
		products.GET("/category/:category", c.ProductHandler.ByCategory)
		products.GET("/categories/all", c.ProductHandler.Categories)
	}

	orders := router.Group("/api/orders")
	orders.Use(requireAuth)
	if c.Redis != nil {
		orders.Use(middleware.Idempotency(middleware.IdempotencyConfig{Store: c.Redis}))
	}
	{
		orders.POST("", c.OrderHandler.PlaceOrder)
		orders.POST("/", c.OrderHandler.PlaceOrder)
	}

	return router
}
