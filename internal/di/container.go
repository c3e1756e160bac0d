package di

import (
	"time"

	"github.com/Rijughosh14/EShop/internal/catalog"
	"github.com/Rijughosh14/EShop/internal/gateway"
	"github.com/Rijughosh14/EShop/internal/handler"
	"github.com/Rijughosh14/EShop/internal/repository"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/internal/transport"
	"github.com/Rijughosh14/EShop/pkg/database"
	"github.com/Rijughosh14/EShop/pkg/logger"
	pkgredis "github.com/Rijughosh14/EShop/pkg/redis"
)

// Container holds all dependencies for the storefront API
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client

	// Repositories
	UserRepo  repository.UserRepository
	TokenRepo repository.RefreshTokenRepository

	// Services
	AuthService    service.AuthService
	CatalogService service.CatalogService
	OrderService   service.OrderService
	Publisher      service.EventPublisher
	TokenSweeper   *service.TokenSweeper

	// Handlers
	HealthHandler  *handler.HealthHandler
	AuthHandler    *handler.AuthHandler
	ProductHandler *handler.ProductHandler
	OrderHandler   *handler.OrderHandler
}

// ContainerConfig contains configuration for building the container.
// DB and Redis are optional; nil disables the readiness check and the
// Redis-backed cache and idempotency.
type ContainerConfig struct {
	ServiceName string
	DB          *database.PostgresDB
	Redis       *pkgredis.Client

	UserRepo  repository.UserRepository
	TokenRepo repository.RefreshTokenRepository

	AuthConfig    *service.AuthServiceConfig
	Cookies       transport.CookiePolicy
	SweepInterval time.Duration

	CatalogSource service.CatalogSource
	CatalogTTL    time.Duration

	Gateway   gateway.PaymentGateway
	Publisher service.EventPublisher

	Logger *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	c := &Container{
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		UserRepo:  cfg.UserRepo,
		TokenRepo: cfg.TokenRepo,
		Publisher: cfg.Publisher,
	}
	if c.Publisher == nil {
		c.Publisher = service.NewNoOpEventPublisher()
	}

	var cache catalog.Cache = catalog.NopCache{}
	if c.Redis != nil {
		cache = catalog.NewRedisCache(c.Redis)
	}

	gw := cfg.Gateway
	if gw == nil {
		gw = gateway.NewMockGateway(gateway.DefaultMockGatewayConfig())
	}

	// Initialize services
	c.AuthService = service.NewAuthService(c.UserRepo, c.TokenRepo, cfg.AuthConfig)
	c.CatalogService = service.NewCatalogService(cfg.CatalogSource, cache, cfg.CatalogTTL, log.Named("catalog"))
	c.OrderService = service.NewOrderService(gw, c.Publisher, log.Named("orders"))
	c.TokenSweeper = service.NewTokenSweeper(c.TokenRepo, cfg.SweepInterval, log.Named("sweeper"))

	// Initialize handlers
	deps := map[string]handler.Pinger{}
	if c.DB != nil {
		deps["database"] = c.DB
	}
	if c.Redis != nil {
		deps["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(cfg.ServiceName, deps)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService, cfg.Cookies, log.Named("auth"))
	c.ProductHandler = handler.NewProductHandler(c.CatalogService, log.Named("products"))
	c.OrderHandler = handler.NewOrderHandler(c.OrderService)

	return c
}
