package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/inventory/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(engine *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generates when missing", func(t *testing.T) {
		w := perform(engine, http.MethodGet, "/ping", nil, nil)
		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 32)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagates caller id", func(t *testing.T) {
		w := perform(engine, http.MethodGet, "/ping", nil, map[string]string{RequestIDHeader: "abc-123"})
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		w := perform(engine, http.MethodGet, "/ping", nil, map[string]string{RequestIDHeader: strings.Repeat("x", 200)})
		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
	})
}

func TestTimeout_SetsDeadline(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(time.Second))
	var hasDeadline bool
	engine.GET("/t", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})

	perform(engine, http.MethodGet, "/t", nil, nil)
	assert.True(t, hasDeadline)
}

func TestSecure_Headers(t *testing.T) {
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/s", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(engine, http.MethodGet, "/s", nil, nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(BodyLimit(16))
	engine.POST("/b", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(engine, http.MethodPost, "/b", []byte(`{}`), nil).Code)

	w := perform(engine, http.MethodPost, "/b", bytes.Repeat([]byte("a"), 64), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeRequestTooLarge, resp.Error.Code)
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows the burst then blocks", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, 0)
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client"))
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute, 1)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("b"))
	})

	t.Run("refills over the window", func(t *testing.T) {
		limiter := NewRateLimiter(20, time.Second, 1)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("c"))
		assert.False(t, limiter.Allow("c"))
		time.Sleep(80 * time.Millisecond)
		assert.True(t, limiter.Allow("c"))
	})
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, 1)
	defer limiter.Stop()

	engine := gin.New()
	engine.Use(RequestID(), RateLimit(limiter))
	engine.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := perform(engine, http.MethodGet, "/r", nil, nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := perform(engine, http.MethodGet, "/r", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}

type statusBody struct {
	Status *string `json:"status" binding:"omitempty,batchstatus"`
	Name   string  `json:"name" binding:"required"`
}

func TestSetupValidator_BatchStatus(t *testing.T) {
	SetupValidator()

	engine := gin.New()
	engine.POST("/v", func(c *gin.Context) {
		var body statusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(engine, http.MethodPost, "/v", []byte(`{"name":"x","status":"QUARANTINE"}`), nil).Code)
	assert.Equal(t, http.StatusOK, perform(engine, http.MethodPost, "/v", []byte(`{"name":"x"}`), nil).Code)

	w := perform(engine, http.MethodPost, "/v", []byte(`{"name":"x","status":"LOST"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "status", resp.Error.Details[0].Field)

	w = perform(engine, http.MethodPost, "/v", []byte(`{not json`), nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(Tracing(TracingConfig{ServiceName: "inventory-test", Enabled: true, TracerProvider: tp})...)
	engine.GET("/stocks/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	perform(engine, http.MethodGet, "/stocks/42", nil, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/stocks/:id")
	var hasRequestID bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "request_id" {
			hasRequestID = true
		}
	}
	assert.True(t, hasRequestID)
}

func TestTracing_Disabled(t *testing.T) {
	handlers := Tracing(TracingConfig{Enabled: false})
	assert.Len(t, handlers, 1)
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	engine := gin.New()
	engine.Use(HTTPMetrics(mp.Meter("http.server")))
	engine.GET("/stocks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(engine, http.MethodGet, "/stocks/1", nil, nil)
	perform(engine, http.MethodGet, "/stocks/2", nil, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http_route")
				assert.Equal(t, "/stocks/:id", route.AsString())
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	engine := gin.New()
	engine.Use(HTTPMetrics(nil))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, perform(engine, http.MethodGet, "/x", nil, nil).Code)
}
