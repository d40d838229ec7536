package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

const (
	opCreate     = "create"
	opUpdate     = "update"
	opDelete     = "delete"
	opBulkCreate = "bulk_create"
)

type scheduleEntryStore interface {
	slotScanner
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	ListByTeacher(ctx context.Context, teacherID, termID string) ([]models.ScheduleEntry, error)
	ListByClass(ctx context.Context, classID, termID string) ([]models.ScheduleEntry, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error)
	CountByDay(ctx context.Context, termID string) ([]models.DayCount, error)
	CountDistinctClasses(ctx context.Context, termID string) (int, error)
	CountByAssignment(ctx context.Context, assignmentID string) (int, error)
	Create(ctx context.Context, entry *models.ScheduleEntry) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
	Delete(ctx context.Context, id string) error
}

type timetableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// Export formats.
const (
	formatCSV  = "csv"
	formatPDF  = "pdf"
	formatXLSX = "xlsx"
)

var exportContentTypes = map[string]string{
	formatCSV:  "text/csv",
	formatPDF:  "application/pdf",
	formatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// CreateScheduleEntryRequest places a weekly slot for a teaching assignment.
type CreateScheduleEntryRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required,notblank"`
	Day          string  `json:"day"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Room         *string `json:"room,omitempty" validate:"omitempty,max=64"`
	Note         *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// UpdateScheduleEntryRequest changes an entry. Nil fields keep their current value.
type UpdateScheduleEntryRequest struct {
	AssignmentID *string `json:"assignment_id,omitempty" validate:"omitempty,notblank"`
	Day          *string `json:"day,omitempty"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	Room         *string `json:"room,omitempty" validate:"omitempty,max=64"`
	Note         *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// BulkCreateScheduleEntriesRequest places several slots in one transaction.
type BulkCreateScheduleEntriesRequest struct {
	Items          []CreateScheduleEntryRequest `json:"items" validate:"required,min=1,max=200"`
	PartialOnError bool                         `json:"partial_on_error"`
}

// BulkScheduleRejection reports why one item of a bulk request was not placed.
type BulkScheduleRejection struct {
	Index    int                      `json:"index"`
	Code     string                   `json:"code"`
	Message  string                   `json:"message"`
	Conflict *models.ScheduleConflict `json:"conflict,omitempty"`
}

// BulkCreateScheduleEntriesResult summarises bulk creation.
type BulkCreateScheduleEntriesResult struct {
	Created  []models.ScheduleEntry  `json:"created"`
	Rejected []BulkScheduleRejection `json:"rejected,omitempty"`
}

// ExportScheduleRequest selects a class or a teacher timetable to render.
type ExportScheduleRequest struct {
	ClassID   string `form:"classId" validate:"required_without=TeacherID,excluded_with=TeacherID"`
	TeacherID string `form:"teacherId" validate:"required_without=ClassID"`
	TermID    string `form:"termId"`
	Format    string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}

// ScheduleExport is a rendered timetable document.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ScheduleServiceConfig tunes the schedule service.
type ScheduleServiceConfig struct {
	RequestTimeout  time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// ScheduleServiceParams groups constructor dependencies.
type ScheduleServiceParams struct {
	Entries     scheduleEntryStore
	Assignments assignmentResolver
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	CSV         timetableRenderer
	PDF         timetableRenderer
	XLSX        timetableRenderer
	Config      ScheduleServiceConfig
}

// ScheduleService runs every timetable write through validation and conflict detection and
// serves the timetable read views.
type ScheduleService struct {
	entries   scheduleEntryStore
	checker   *ConflictChecker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	renderers map[string]timetableRenderer
	cfg       ScheduleServiceConfig
}

// NewScheduleService instantiates ScheduleService with sane defaults.
func NewScheduleService(params ScheduleServiceParams) *ScheduleService {
	cfg := params.Config
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	validate := params.Validator
	if validate == nil {
		validate = validation.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderers := map[string]timetableRenderer{
		formatCSV:  params.CSV,
		formatPDF:  params.PDF,
		formatXLSX: params.XLSX,
	}
	if renderers[formatCSV] == nil {
		renderers[formatCSV] = export.NewCSVExporter()
	}
	if renderers[formatPDF] == nil {
		renderers[formatPDF] = export.NewPDFExporter()
	}
	if renderers[formatXLSX] == nil {
		renderers[formatXLSX] = export.NewXLSXExporter()
	}
	return &ScheduleService{
		entries:   params.Entries,
		checker:   NewConflictChecker(params.Assignments, params.Entries, params.Metrics, logger),
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		renderers: renderers,
		cfg:       cfg,
	}
}

// Create validates and places a new entry.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	entry, err := s.buildEntry(req)
	if err != nil {
		return nil, s.finish(ctx, opCreate, "", err)
	}

	err = s.entries.WithinTransaction(ctx, func(txCtx context.Context) error {
		return s.place(txCtx, entry, "")
	})
	if err != nil {
		return nil, s.finish(ctx, opCreate, "", storageError(ctx, err, "failed to create schedule entry"))
	}

	s.finish(ctx, opCreate, entry.ID, nil)
	return entry, nil
}

// Update merges req into the stored entry and re-runs the full validation pipeline. The entry
// never conflicts with its own previous slot.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.validator.Struct(req); err != nil {
		return nil, s.finish(ctx, opUpdate, id, validationError(err, "invalid schedule payload"))
	}

	var updated *models.ScheduleEntry
	err := s.entries.WithinTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.entries.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(appErrors.ErrNotFound, "schedule entry not found", "id", id)
			}
			return err
		}

		merged, err := mergeEntry(*existing, req)
		if err != nil {
			return err
		}
		if err := s.place(txCtx, merged, existing.ID); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = notFound(appErrors.ErrNotFound, "schedule entry not found", "id", id)
		}
		return nil, s.finish(ctx, opUpdate, id, storageError(ctx, err, "failed to update schedule entry"))
	}

	s.finish(ctx, opUpdate, id, nil)
	return updated, nil
}

// Delete removes an entry. There is no cascade.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.entries.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.finish(ctx, opDelete, id, notFound(appErrors.ErrNotFound, "schedule entry not found", "id", id))
		}
		return s.finish(ctx, opDelete, id, storageError(ctx, err, "failed to delete schedule entry"))
	}
	s.finish(ctx, opDelete, id, nil)
	return nil
}

// BulkCreate places every item inside one transaction, so later items are checked against
// earlier ones. Without PartialOnError the first rejected item aborts the whole batch.
func (s *ScheduleService) BulkCreate(ctx context.Context, req BulkCreateScheduleEntriesRequest) (*BulkCreateScheduleEntriesResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.validator.Struct(req); err != nil {
		return nil, s.finish(ctx, opBulkCreate, "", validationError(err, "items must hold between 1 and 200 entries"))
	}

	var result *BulkCreateScheduleEntriesResult
	err := s.entries.WithinTransaction(ctx, func(txCtx context.Context) error {
		result = &BulkCreateScheduleEntriesResult{Created: make([]models.ScheduleEntry, 0, len(req.Items))}
		for i, item := range req.Items {
			entry, err := s.buildEntry(item)
			if err == nil {
				err = s.place(txCtx, entry, "")
			}
			if err == nil {
				result.Created = append(result.Created, *entry)
				continue
			}

			appErr, rejected := itemRejection(err)
			if !rejected {
				return err
			}
			if !req.PartialOnError {
				return appErr.WithDetails(map[string]interface{}{"index": i})
			}
			rejection := BulkScheduleRejection{Index: i, Code: appErr.Code, Message: appErr.Message}
			var domainErr *models.ScheduleConflictError
			if errors.As(err, &domainErr) {
				rejection.Conflict = domainErr.Conflict
			}
			result.Rejected = append(result.Rejected, rejection)
		}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, opBulkCreate, "", storageError(ctx, err, "failed to bulk create schedule entries"))
	}

	if len(result.Created) > 0 {
		s.finish(ctx, opBulkCreate, "", nil)
	} else {
		s.metrics.RecordScheduleOperation(opBulkCreate, resultRejected)
	}
	return result, nil
}

// List returns entries matching filter with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, *models.Pagination, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.cfg.DefaultPageSize
	}
	if filter.PageSize > s.cfg.MaxPageSize {
		filter.PageSize = s.cfg.MaxPageSize
	}

	entries, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(ctx, err, "failed to list schedule entries")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListByClass returns the class timetable ordered by day then start time. An empty termID spans
// every term. The boolean reports a cache hit.
func (s *ScheduleService) ListByClass(ctx context.Context, classID, termID string) ([]models.ScheduleEntry, bool, error) {
	return s.cachedList(ctx, classTimetableKey(classID, termID), "failed to list class timetable", func(ctx context.Context) ([]models.ScheduleEntry, error) {
		return s.entries.ListByClass(ctx, classID, termID)
	})
}

// ListByTeacher returns the teacher timetable ordered by day then start time.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID, termID string) ([]models.ScheduleEntry, bool, error) {
	return s.cachedList(ctx, teacherTimetableKey(teacherID, termID), "failed to list teacher timetable", func(ctx context.Context) ([]models.ScheduleEntry, error) {
		return s.entries.ListByTeacher(ctx, teacherID, termID)
	})
}

func (s *ScheduleService) cachedList(ctx context.Context, key, message string, load func(ctx context.Context) ([]models.ScheduleEntry, error)) ([]models.ScheduleEntry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var cached []models.ScheduleEntry
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	entries, err := load(ctx)
	if err != nil {
		return nil, false, storageError(ctx, err, message)
	}
	s.cache.Set(ctx, key, entries)
	return entries, false, nil
}

// Stats counts entries per school day together with the total and the number of classes that
// have at least one entry. Days without entries report zero.
func (s *ScheduleService) Stats(ctx context.Context, termID string) (*models.ScheduleStats, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	key := statsKey(termID)
	var cached models.ScheduleStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	counts, err := s.entries.CountByDay(ctx, termID)
	if err != nil {
		return nil, false, storageError(ctx, err, "failed to count schedule entries")
	}
	classes, err := s.entries.CountDistinctClasses(ctx, termID)
	if err != nil {
		return nil, false, storageError(ctx, err, "failed to count scheduled classes")
	}

	stats := &models.ScheduleStats{TermID: termID, ByDay: make(map[string]int, 6), DistinctClasses: classes}
	for _, day := range models.SchoolDays() {
		stats.ByDay[day.String()] = 0
	}
	for _, row := range counts {
		if !row.Day.Valid() {
			continue
		}
		stats.ByDay[row.Day.String()] += row.Count
		stats.TotalEntries += row.Count
	}

	s.cache.Set(ctx, key, stats)
	return stats, false, nil
}

// CountEntriesForAssignment reports how many entries an assignment owns.
func (s *ScheduleService) CountEntriesForAssignment(ctx context.Context, assignmentID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	count, err := s.entries.CountByAssignment(ctx, assignmentID)
	if err != nil {
		return 0, storageError(ctx, err, "failed to count schedule entries")
	}
	return count, nil
}

// Export renders a class or teacher timetable as CSV (default), PDF or XLSX.
func (s *ScheduleService) Export(ctx context.Context, req ExportScheduleRequest) (*ScheduleExport, error) {
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "exactly one of classId or teacherId is required and format must be csv, pdf or xlsx")
	}
	format := req.Format
	if format == "" {
		format = formatCSV
	}

	var (
		entries []models.ScheduleEntry
		scope   string
		err     error
	)
	if req.ClassID != "" {
		scope = "class-" + req.ClassID
		entries, _, err = s.ListByClass(ctx, req.ClassID, req.TermID)
	} else {
		scope = "teacher-" + req.TeacherID
		entries, _, err = s.ListByTeacher(ctx, req.TeacherID, req.TermID)
	}
	if err != nil {
		return nil, err
	}

	dataset := timetableDataset(entries, scope, req.TermID)
	filename := fmt.Sprintf("timetable-%s.%s", scope, format)

	payload, err := s.renderers[format].Render(dataset)
	if err != nil {
		s.logger.Error("render timetable export", zap.String("scope", scope), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	return &ScheduleExport{Filename: filename, ContentType: exportContentTypes[format], Payload: payload}, nil
}

// place runs the conflict check and persists entry within the caller's transaction.
func (s *ScheduleService) place(ctx context.Context, entry *models.ScheduleEntry, excludeID string) error {
	assignment, err := s.checker.Check(ctx, entry.Candidate(), excludeID)
	if err != nil {
		return err
	}
	entry.TermID = assignment.TermID
	entry.ClassID = assignment.ClassID
	entry.TeacherID = assignment.TeacherID
	entry.SubjectID = assignment.SubjectID

	if excludeID == "" {
		return s.entries.Create(ctx, entry)
	}
	return s.entries.Update(ctx, entry)
}

func (s *ScheduleService) buildEntry(req CreateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule payload")
	}
	day, start, end, err := validateSlot(req.Day, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	return &models.ScheduleEntry{
		AssignmentID: strings.TrimSpace(req.AssignmentID),
		Day:          day,
		StartTime:    start,
		EndTime:      end,
		Room:         optionalText(req.Room),
		Note:         optionalText(req.Note),
	}, nil
}

// finish records the outcome of a write, logs it and drops cached views after a success.
func (s *ScheduleService) finish(ctx context.Context, operation, id string, err error) error {
	if err == nil {
		s.metrics.RecordScheduleOperation(operation, resultSuccess)
		s.cache.InvalidateTimetables(context.WithoutCancel(ctx))
		return nil
	}

	appErr := appErrors.FromError(err)
	fields := []zap.Field{zap.String("operation", operation), zap.String("code", appErr.Code)}
	if id != "" {
		fields = append(fields, zap.String("schedule_id", id))
	}
	if appErr.Status < 500 {
		s.metrics.RecordScheduleOperation(operation, resultRejected)
		// The checker counts the conflicts it finds; storage constraint rejections carry no detail.
		var domainErr *models.ScheduleConflictError
		if errors.As(err, &domainErr) && domainErr.Conflict == nil {
			s.metrics.RecordConflict(domainErr.Type)
		}
		s.logger.Info("schedule write rejected", fields...)
		return appErr
	}
	s.metrics.RecordScheduleOperation(operation, resultError)
	s.logger.Error("schedule write failed", append(fields, zap.Error(err))...)
	return appErr
}

func mergeEntry(existing models.ScheduleEntry, req UpdateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	merged := existing
	if req.AssignmentID != nil {
		merged.AssignmentID = strings.TrimSpace(*req.AssignmentID)
	}

	day := existing.Day.String()
	start := existing.StartTime.String()
	end := existing.EndTime.String()
	if req.Day != nil {
		day = *req.Day
	}
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	parsedDay, startTime, endTime, err := validateSlot(day, start, end)
	if err != nil {
		return nil, err
	}
	merged.Day = parsedDay
	merged.StartTime = startTime
	merged.EndTime = endTime

	if req.Room != nil {
		merged.Room = optionalText(req.Room)
	}
	if req.Note != nil {
		merged.Note = optionalText(req.Note)
	}
	return &merged, nil
}

// itemRejection reports whether err rejects a single bulk item rather than the batch.
func itemRejection(err error) (*appErrors.Error, bool) {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) || appErr.Status >= 500 {
		return nil, false
	}
	return appErr, true
}

func validationError(err error, message string) error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	if fields := validation.Fields(err); len(fields) > 0 {
		return appErr.WithDetails(map[string]interface{}{"fields": fields})
	}
	return appErr
}

func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func timetableDataset(entries []models.ScheduleEntry, scope, termID string) export.Dataset {
	subtitle := "All terms"
	if termID != "" {
		subtitle = "Term " + termID
	}
	dataset := export.Dataset{
		Title:    "Timetable " + scope,
		Subtitle: subtitle,
		Columns: []export.Column{
			{Key: "day", Label: "Day", Width: 1.2},
			{Key: "start_time", Label: "Start", Width: 1},
			{Key: "end_time", Label: "End", Width: 1},
			{Key: "subject", Label: "Subject", Width: 2.5},
			{Key: "class_id", Label: "Class", Width: 1.5},
			{Key: "teacher_id", Label: "Teacher", Width: 1.5},
			{Key: "room", Label: "Room", Width: 1},
			{Key: "note", Label: "Note", Width: 2.5},
		},
		Rows: make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		subject := entry.SubjectName
		if subject == "" {
			subject = entry.SubjectID
		}
		row := map[string]string{
			"day":        entry.Day.String(),
			"start_time": entry.StartTime.String(),
			"end_time":   entry.EndTime.String(),
			"subject":    subject,
			"class_id":   entry.ClassID,
			"teacher_id": entry.TeacherID,
		}
		if entry.Room != nil {
			row["room"] = *entry.Room
		}
		if entry.Note != nil {
			row["note"] = *entry.Note
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}
