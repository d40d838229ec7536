package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleService interface {
	Create(ctx context.Context, req service.CreateScheduleEntryRequest) (*models.ScheduleEntry, error)
	Update(ctx context.Context, id string, req service.UpdateScheduleEntryRequest) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, id string) error
	BulkCreate(ctx context.Context, req service.BulkCreateScheduleEntriesRequest) (*service.BulkCreateScheduleEntriesResult, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, *models.Pagination, error)
	ListByClass(ctx context.Context, classID, termID string) ([]models.ScheduleEntry, bool, error)
	ListByTeacher(ctx context.Context, teacherID, termID string) ([]models.ScheduleEntry, bool, error)
	Stats(ctx context.Context, termID string) (*models.ScheduleStats, bool, error)
	CountEntriesForAssignment(ctx context.Context, assignmentID string) (int, error)
	Export(ctx context.Context, req service.ExportScheduleRequest) (*service.ScheduleExport, error)
}

// ScheduleHandler manages timetable endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedule entries
// @Tags Schedules
// @Produce json
// @Param termId query string false "Filter by term"
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param assignmentId query string false "Filter by teaching assignment"
// @Param day query string false "Filter by day (SENIN..SABTU)"
// @Param room query string false "Filter by room"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		TermID:       c.Query("termId"),
		ClassID:      c.Query("classId"),
		TeacherID:    c.Query("teacherId"),
		AssignmentID: c.Query("assignmentId"),
		Room:         c.Query("room"),
	}
	if raw := c.Query("day"); raw != "" {
		day, err := service.ValidateDay(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Day = day
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.PageSize = limit
	}

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// ListByClass godoc
// @Summary Class timetable
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Param termId query string false "Restrict to a term"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedules [get]
func (h *ScheduleHandler) ListByClass(c *gin.Context) {
	entries, hit, err := h.service.ListByClass(c.Request.Context(), c.Param("id"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// ListByTeacher godoc
// @Summary Teacher timetable
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Param termId query string false "Restrict to a term"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedules [get]
func (h *ScheduleHandler) ListByTeacher(c *gin.Context) {
	entries, hit, err := h.service.ListByTeacher(c.Request.Context(), c.Param("id"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// Stats godoc
// @Summary Timetable statistics
// @Description Entry counts per school day, total entries and classes with at least one entry.
// @Tags Schedules
// @Produce json
// @Param termId query string false "Restrict to a term"
// @Success 200 {object} response.Envelope
// @Router /schedules/stats [get]
func (h *ScheduleHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context(), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export a class or teacher timetable
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param classId query string false "Class ID"
// @Param teacherId query string false "Teacher ID"
// @Param termId query string false "Restrict to a term"
// @Param format query string false "csv (default), pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schedules/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	var req service.ExportScheduleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	doc, err := h.service.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Payload)
}

// Create godoc
// @Summary Create schedule entry
// @Description Validates the slot and rejects it when the teacher or the class is already booked at an overlapping time in the same term.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleEntryRequest true "Schedule entry payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// BulkCreate godoc
// @Summary Bulk create schedule entries
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.BulkCreateScheduleEntriesRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/bulk [post]
func (h *ScheduleHandler) BulkCreate(c *gin.Context) {
	var req service.BulkCreateScheduleEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update schedule entry
// @Description Omitted fields keep their value. The merged entry is validated and conflict checked again, ignoring its own previous slot.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule entry ID"
// @Param payload body service.UpdateScheduleEntryRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
// @Router /schedules/{id} [patch]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete schedule entry
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule entry ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CountForAssignment godoc
// @Summary Number of schedule entries owned by an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/schedules/count [get]
func (h *ScheduleHandler) CountForAssignment(c *gin.Context) {
	count, err := h.service.CountEntriesForAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"assignment_id": c.Param("id"), "count": count}, nil)
}
