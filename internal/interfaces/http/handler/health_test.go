package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(h *HealthHandler) (*httptest.ResponseRecorder, map[string]any) {
	engine := gin.New()
	engine.GET("/health", h.Health)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthHandler_OK(t *testing.T) {
	h := NewHealthHandler("1.2.3").WithCheck("database", func(context.Context) error { return nil })

	w, body := serveHealth(h)

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "1.2.3", data["version"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	h := NewHealthHandler("dev").
		WithCheck("database", func(context.Context) error { return nil }).
		WithCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") })

	w, body := serveHealth(h)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	data := body["data"].(map[string]any)
	checks := data["checks"].(map[string]any)
	require.Len(t, checks, 2)
	assert.Equal(t, "ok", checks["database"])
	assert.Contains(t, checks["redis"], "refused")
}
