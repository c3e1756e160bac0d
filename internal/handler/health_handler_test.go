package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	newRouter := func(deps map[string]Pinger) *gin.Engine {
		h := NewHealthHandler("eshop-api", deps)
		r := gin.New()
		r.GET("/health", h.Health)
		r.GET("/ready", h.Ready)
		return r
	}

	t.Run("health", func(t *testing.T) {
		w := do(newRouter(nil), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","service":"eshop-api"}`, w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		w := do(newRouter(map[string]Pinger{"database": ok, "redis": ok}), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := do(newRouter(map[string]Pinger{"database": ok, "redis": down}), http.MethodGet, "/ready", "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "connected", body.Checks["database"])
		assert.Contains(t, body.Checks["redis"], "connection refused")
	})
}
