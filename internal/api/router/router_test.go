package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/openspool/printtrack/internal/api/handler"
	"github.com/openspool/printtrack/internal/api/middleware"
)

type stubHealth struct {
	err error
}

func (s *stubHealth) HealthCheck(context.Context) error { return s.err }

func newHealthRouter(health handler.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	deps := &handler.Dependencies{
		Logger: slog.New(slog.DiscardHandler),
		Health: health,
	}
	return SetupRouter(deps, middleware.NewAuthMiddleware("test-secret"))
}

func TestHealthReportsDatabaseUp(t *testing.T) {
	r := newHealthRouter(&stubHealth{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	r := newHealthRouter(&stubHealth{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}
