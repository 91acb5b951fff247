package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/inventory/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") }).
		POST("/echo", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	NewRouter(engine).Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, http.StatusAccepted, serve(engine, http.MethodPost, "/api/v1/test/echo").Code)
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test").
		Use(func(c *gin.Context) { c.Header("X-Group", "yes"); c.Next() }).
		PUT("/item", func(c *gin.Context) { c.Status(http.StatusOK) })

	group.RegisterRoutes(engine.Group("/api"))

	w := serve(engine, http.MethodPut, "/api/test/item")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Group"))
	assert.Equal(t, "test", group.Name())
	assert.Equal(t, "/test", group.Prefix())
}

func TestRouterHealth(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithHealth(handler.NewHealthHandler("test").Health)).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/health").Code)
}

func TestStockRoutes_Registered(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Register(StockRoutes(handler.NewStockHandler(nil))).Setup()

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/stocks",
		"GET /api/v1/stocks",
		"GET /api/v1/stocks/lookup",
		"GET /api/v1/stocks/:id",
		"POST /api/v1/stocks/:id/batches",
		"PATCH /api/v1/stocks/:id/batches/:batch_number",
		"POST /api/v1/stocks/:id/reservations",
		"POST /api/v1/stocks/:id/releases",
		"POST /api/v1/stocks/:id/consumptions",
		"PUT /api/v1/stocks/:id/thresholds",
		"POST /api/v1/stocks/:id/activate",
		"POST /api/v1/stocks/:id/deactivate",
		"GET /api/v1/stocks/:id/movements",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}
