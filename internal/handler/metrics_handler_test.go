package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/service"
)

type pingerStub struct{ err error }

func (p pingerStub) PingContext(ctx context.Context) error { return p.err }

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", h.Prometheus)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	Routes{Metrics: h}.Register(r.Group("/api/v1"))
	return r
}

func TestMetricsHandlerSnapshotAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordCacheOperation(true, 0)
	r := newMetricsRouter(NewMetricsHandler(metrics, nil))

	w := serve(r, http.MethodGet, "/api/v1/metrics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["cache_hits"])

	w = serve(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_hits_total 1")
}

func TestMetricsHandlerReadiness(t *testing.T) {
	r := newMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{"postgres": pingerStub{}, "redis": pingerStub{}}))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/metrics", nil).Code)

	r = newMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingerStub{},
		"redis":    pingerStub{err: errors.New("connection refused")},
	}))
	w := serve(r, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	failed := decodeEnvelope(t, w)["errors"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"redis": "connection refused"}, failed)
}
