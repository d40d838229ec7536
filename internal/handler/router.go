package handler

import "github.com/gin-gonic/gin"

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Schedules   *ScheduleHandler
	Assignments *AssignmentHandler
	Metrics     *MetricsHandler
}

// Register mounts the timetable endpoints on group.
func (r Routes) Register(group *gin.RouterGroup) {
	if r.Schedules != nil {
		schedules := group.Group("/schedules")
		schedules.GET("", r.Schedules.List)
		schedules.POST("", r.Schedules.Create)
		schedules.POST("/bulk", r.Schedules.BulkCreate)
		schedules.GET("/stats", r.Schedules.Stats)
		schedules.GET("/export", r.Schedules.Export)
		schedules.PUT("/:id", r.Schedules.Update)
		schedules.PATCH("/:id", r.Schedules.Update)
		schedules.DELETE("/:id", r.Schedules.Delete)

		group.GET("/classes/:id/schedules", r.Schedules.ListByClass)
		group.GET("/teachers/:id/schedules", r.Schedules.ListByTeacher)
		group.GET("/assignments/:id/schedules/count", r.Schedules.CountForAssignment)
	}

	if r.Assignments != nil {
		group.POST("/assignments", r.Assignments.Create)
		group.GET("/assignments/:id", r.Assignments.Get)
		group.DELETE("/assignments/:id", r.Assignments.Delete)
		group.GET("/teachers/:id/assignments", r.Assignments.ListByTeacher)
	}

	if r.Metrics != nil {
		group.GET("/metrics/summary", r.Metrics.Snapshot)
	}
}
