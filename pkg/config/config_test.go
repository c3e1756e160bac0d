package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eshop", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.Equal(t, 64, cfg.JWT.RefreshTokenBytes)
	assert.Equal(t, "/", cfg.Cookie.Path)
	assert.Equal(t, "https://dummyjson.com", cfg.Catalog.BaseURL)
	assert.Equal(t, 0.9, cfg.Orders.SuccessRate)
	assert.Equal(t, "mock", cfg.Orders.Gateway)
	assert.Equal(t, "postgres", cfg.Storage.RefreshTokenStore)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Len(t, cfg.CORS.AllowOrigins, 2)
	assert.Equal(t, "memory", cfg.Storage.RefreshTokenStore)
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "APP_NAME=eshop-test\nJWT_ACCESS_TOKEN_TTL=1m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)
	assert.Equal(t, "eshop-test", cfg.App.Name)
	assert.Equal(t, time.Minute, cfg.JWT.AccessTokenTTL)
}

func TestLoadWithPath_Missing(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:     AppConfig{Name: "eshop", Environment: "development"},
			Server:  ServerConfig{Port: 5000},
			JWT:     JWTConfig{Secret: DefaultJWTSecret, AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, RefreshTokenBytes: 32},
			Storage: StorageConfig{Driver: "memory", RefreshTokenStore: "memory"},
			Orders:  OrdersConfig{SuccessRate: 0.9},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"default secret in production", func(c *Config) { c.App.Environment = "production" }, true},
		{"custom secret in production", func(c *Config) {
			c.App.Environment = "production"
			c.JWT.Secret = "s3cr3t"
		}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"short refresh token", func(c *Config) { c.JWT.RefreshTokenBytes = 16 }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"redis store without redis", func(c *Config) { c.Storage.RefreshTokenStore = "redis" }, true},
		{"redis store with redis", func(c *Config) {
			c.Storage.RefreshTokenStore = "redis"
			c.Redis.Enabled = true
		}, false},
		{"success rate out of range", func(c *Config) { c.Orders.SuccessRate = 1.5 }, true},
		{"stripe without key", func(c *Config) { c.Orders.Gateway = "stripe" }, true},
		{"stripe with key", func(c *Config) {
			c.Orders.Gateway = "stripe"
			c.Orders.StripeSecretKey = "sk_test_123"
		}, false},
		{"unknown gateway", func(c *Config) { c.Orders.Gateway = "paypal" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
