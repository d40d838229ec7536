package models

import "time"

// SystemMetrics is a point in time summary of the process instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	ScheduleWrites           uint64            `json:"schedule_writes"`
	ScheduleRejections       uint64            `json:"schedule_rejections"`
	ConflictsByDimension     map[string]uint64 `json:"conflicts_by_dimension"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
