package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rijughosh14/EShop/internal/catalog"
	"github.com/Rijughosh14/EShop/internal/di"
	"github.com/Rijughosh14/EShop/internal/gateway"
	"github.com/Rijughosh14/EShop/internal/middleware"
	"github.com/Rijughosh14/EShop/internal/repository"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/internal/transport"
	"github.com/Rijughosh14/EShop/migrations"
	"github.com/Rijughosh14/EShop/pkg/config"
	"github.com/Rijughosh14/EShop/pkg/database"
	"github.com/Rijughosh14/EShop/pkg/logger"
	pkgredis "github.com/Rijughosh14/EShop/pkg/redis"
	"github.com/Rijughosh14/EShop/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.OTel.ServiceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting storefront API",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	ctx := context.Background()

	// Initialize telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry disabled", zap.Error(err))
	}

	// Initialize database connection
	var db *database.PostgresDB
	if cfg.UsesPostgres() {
		db, err = database.NewPostgres(ctx, &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      3,
			RetryInterval:   time.Second,
			EnableTracing:   cfg.OTel.Enabled,
		})
		if err != nil {
			appLog.Fatal("Database connection failed", zap.Error(err))
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, migrations.FS); err != nil {
				appLog.Fatal("Database migration failed", zap.Error(err))
			}
		}
		appLog.Info("Database connected",
			zap.Int("min_conns", cfg.Database.MinConns),
			zap.Int("max_conns", cfg.Database.MaxConns),
		)
	}

	// Initialize Redis
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			appLog.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()
		appLog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Initialize repositories
	userRepo, tokenRepo := buildRepositories(cfg, db, redisClient)

	// Initialize event publisher
	var publisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.OrdersTopic,
			ServiceName: cfg.OTel.ServiceName,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("Kafka unavailable, order events disabled", zap.Error(err))
		} else {
			publisher = kafkaPublisher
			appLog.Info("Kafka producer ready", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	}
	defer publisher.Close()

	paymentGateway, err := gateway.NewPaymentGateway(cfg.Orders.Gateway,
		&gateway.MockGatewayConfig{
			SuccessRate: cfg.Orders.SuccessRate,
			DelayMs:     cfg.Orders.DelayMs,
		},
		&gateway.StripeGatewayConfig{
			SecretKey:     cfg.Orders.StripeSecretKey,
			PaymentMethod: cfg.Orders.StripePaymentMethod,
			APIURL:        cfg.Orders.StripeAPIURL,
		},
	)
	if err != nil {
		appLog.Fatal("Payment gateway setup failed", zap.Error(err))
	}
	appLog.Info("Payment gateway ready", zap.String("gateway", paymentGateway.Name()))

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		ServiceName: cfg.OTel.ServiceName,
		DB:          db,
		Redis:       redisClient,
		UserRepo:    userRepo,
		TokenRepo:   tokenRepo,
		AuthConfig: &service.AuthServiceConfig{
			JWTSecret:          cfg.JWT.Secret,
			Issuer:             cfg.JWT.Issuer,
			AccessTokenExpiry:  cfg.JWT.AccessTokenTTL,
			RefreshTokenExpiry: cfg.JWT.RefreshTokenTTL,
			BcryptCost:         cfg.JWT.BcryptCost,
			RefreshTokenBytes:  cfg.JWT.RefreshTokenBytes,
		},
		Cookies:       transport.NewCookiePolicy(cfg.IsProduction(), cfg.Cookie.Domain, cfg.Cookie.Path),
		SweepInterval: cfg.JWT.SweepInterval,
		CatalogSource: catalog.NewClient(&catalog.Config{
			BaseURL:    cfg.Catalog.BaseURL,
			Timeout:    cfg.Catalog.Timeout,
			MaxRetries: cfg.Catalog.MaxRetries,
		}),
		CatalogTTL: cfg.Catalog.CacheTTL,
		Gateway:    paymentGateway,
		Publisher:  publisher,
		Logger:     appLog,
	})

	// Sweep expired refresh tokens in the background
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go container.TokenSweeper.Run(sweepCtx)

	// Setup Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := container.Router(di.RouterConfig{
		ServiceName: cfg.OTel.ServiceName,
		Development: cfg.IsDevelopment(),
		CORS:        middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins...),
		CacheMaxAge: cfg.Catalog.CacheTTL,
		Tracing:     cfg.OTel.Enabled,
		Logger:      appLog,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLog.Info("Storefront API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// buildRepositories picks the user and refresh-token stores from config
func buildRepositories(cfg *config.Config, db *database.PostgresDB, redisClient *pkgredis.Client) (repository.UserRepository, repository.RefreshTokenRepository) {
	var userRepo repository.UserRepository
	switch cfg.Storage.Driver {
	case "postgres":
		userRepo = repository.NewPostgresUserRepository(db.Pool())
	default:
		userRepo = repository.NewMemoryUserRepository()
	}

	var tokenRepo repository.RefreshTokenRepository
	switch cfg.Storage.RefreshTokenStore {
	case "postgres":
		tokenRepo = repository.NewPostgresRefreshTokenRepository(db.Pool())
	case "redis":
		tokenRepo = repository.NewRedisRefreshTokenRepository(redisClient)
	default:
		tokenRepo = repository.NewMemoryRefreshTokenRepository()
	}

	logger.Get().Info("Storage selected",
		zap.String("users", cfg.Storage.Driver),
		zap.String("refresh_tokens", cfg.Storage.RefreshTokenStore),
	)
	return userRepo, tokenRepo
}
