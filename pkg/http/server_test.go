package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoutes struct{}

func (testRoutes) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ping", func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{"pong": "ok"})
	})
	e.GET("/api/missing/:id", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("no item %s", c.Param("id")))
	})
	e.GET("/api/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})
	e.GET("/api/panic", func(c echo.Context) error {
		panic("boom")
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(nil, []Handler{testRoutes{}}, WithRegistry(prometheus.NewRegistry()))
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServerStatusCodes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/ping").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/missing/7").Code)
	assert.Equal(t, http.StatusTeapot, serve(s, http.MethodGet, "/api/teapot").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, http.MethodGet, "/api/panic").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/nowhere").Code)
}

func TestServerCORSAllowsOrigin(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "http://dashboard.local")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerExposesRouteMetrics(t *testing.T) {
	s := newTestServer(t)
	serve(s, http.MethodGet, "/api/ping")
	serve(s, http.MethodGet, "/api/missing/1")
	serve(s, http.MethodGet, "/api/missing/2")

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `factorlens_http_requests_total{method="GET",route="/api/ping",status="200"} 1`)
	assert.Contains(t, body, `factorlens_http_requests_total{method="GET",route="/api/missing/:id",status="404"} 2`)
}

func TestServerMetricsPathDisabled(t *testing.T) {
	s := NewServer(nil, nil, WithRegistry(prometheus.NewRegistry()), WithMetricsPath(""))
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/metrics").Code)
}
