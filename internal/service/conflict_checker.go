package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type assignmentResolver interface {
	FindByID(ctx context.Context, id string) (*models.TeachingAssignment, error)
}

type slotScanner interface {
	FindByTeacherDay(ctx context.Context, teacherID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error)
	FindByClassDay(ctx context.Context, classID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error)
}

// ConflictChecker decides whether a candidate slot collides with the teacher's or the class's
// existing timetable in the same term.
type ConflictChecker struct {
	assignments assignmentResolver
	entries     slotScanner
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewConflictChecker constructs a ConflictChecker.
func NewConflictChecker(assignments assignmentResolver, entries slotScanner, metrics *MetricsService, logger *zap.Logger) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{assignments: assignments, entries: entries, metrics: metrics, logger: logger}
}

// Check resolves the candidate's assignment and scans the teacher scope, then the class scope.
// excludeEntryID skips the entry being updated. On success the resolved assignment is returned.
func (c *ConflictChecker) Check(ctx context.Context, candidate models.ScheduleCandidate, excludeEntryID string) (*models.TeachingAssignment, error) {
	assignment, err := c.assignments.FindByID(ctx, candidate.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(appErrors.ErrAssignmentNotFound, "", "assignment_id", candidate.AssignmentID)
		}
		return nil, storageError(ctx, err, "failed to resolve teaching assignment")
	}

	teacherEntries, err := c.entries.FindByTeacherDay(ctx, assignment.TeacherID, assignment.TermID, candidate.Day, excludeEntryID)
	if err != nil {
		return nil, storageError(ctx, err, "failed to scan teacher timetable")
	}
	if clash := firstOverlap(teacherEntries, candidate); clash != nil {
		return nil, c.reject(appErrors.ErrTeacherConflict, models.ConflictDimensionTeacher, *clash)
	}

	classEntries, err := c.entries.FindByClassDay(ctx, assignment.ClassID, assignment.TermID, candidate.Day, excludeEntryID)
	if err != nil {
		return nil, storageError(ctx, err, "failed to scan class timetable")
	}
	if clash := firstOverlap(classEntries, candidate); clash != nil {
		return nil, c.reject(appErrors.ErrClassConflict, models.ConflictDimensionClass, *clash)
	}

	return assignment, nil
}

func (c *ConflictChecker) reject(base *appErrors.Error, dimension string, existing models.ScheduleEntry) error {
	conflict := models.ConflictFromEntry(existing, dimension)
	c.metrics.RecordConflict(dimension)
	c.logger.Info("schedule slot rejected",
		zap.String("dimension", dimension),
		zap.String("conflicting_entry_id", existing.ID),
		zap.String("day", existing.Day.String()),
	)
	return conflictError(base, dimension, &conflict)
}

func firstOverlap(entries []models.ScheduleEntry, candidate models.ScheduleCandidate) *models.ScheduleEntry {
	for i := range entries {
		if entries[i].Overlaps(candidate) {
			return &entries[i]
		}
	}
	return nil
}
