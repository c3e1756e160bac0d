package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInit_Disabled(t *testing.T) {
	tel, err := Init(context.Background(), &Config{Enabled: false, ServiceName: "eshop-test"})
	require.NoError(t, err)
	assert.NotNil(t, tel)
	assert.NoError(t, Shutdown(context.Background()))

	tel, err = Init(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, tel)
}

func TestTracingMiddleware_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(TracingMiddleware("eshop-test"))
	r.GET("/api/products/:id", func(c *gin.Context) {
		assert.NotEmpty(t, GetTraceID(c.Request.Context()))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/7", nil))

	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/products/:id", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestSetSpanError_NoSpan(t *testing.T) {
	// must not panic without an active span
	SetSpanError(context.Background(), errors.New("boom"))
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestHTTPTransport_DefaultsBase(t *testing.T) {
	assert.NotNil(t, HTTPTransport(nil))
}
