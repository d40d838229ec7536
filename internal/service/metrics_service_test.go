package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/schedules", http.StatusCreated, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/schedules", http.StatusConflict, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordScheduleOperation(opCreate, resultSuccess)
	metrics.RecordScheduleOperation(opCreate, resultRejected)
	metrics.RecordConflict(models.ConflictDimensionClass)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30, snapshot.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(1), snapshot.ScheduleWrites)
	assert.Equal(t, uint64(1), snapshot.ScheduleRejections)
	assert.Equal(t, map[string]uint64{models.ConflictDimensionClass: 1}, snapshot.ConflictsByDimension)
}

func TestMetricsServiceHandlerExposesTimetableCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordScheduleOperation(opDelete, resultSuccess)
	metrics.RecordConflict(models.ConflictDimensionTeacher)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `timetable_schedule_operations_total{operation="delete",result="success"} 1`))
	assert.True(t, strings.Contains(body, `timetable_schedule_conflicts_total{dimension="TEACHER"} 1`))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordConflict(models.ConflictDimensionTeacher)
	metrics.RecordScheduleOperation(opCreate, resultError)
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
