package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WiresSinglePartitionStack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("LOG_MODE", "test")
	t.Setenv("PARTITIONS_FILE", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("WAREHOUSE_DSN", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(t.TempDir(), "surveytrends.db"))

	a, err := New(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Services.Analytics)
	assert.NotNil(t, a.Services.Partitions)
	assert.Nil(t, a.Services.Warehouse)
	assert.Nil(t, a.Redis)

	engine := a.Server.Engine

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Empty catalog: every code is unknown.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/responses/aggregate", strings.NewReader(`{"question":{"code":"P1"}}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "surveytrends_http_requests_total")
}
