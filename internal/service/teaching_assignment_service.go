package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

type teachingAssignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.TeachingAssignment, error)
	ExistsTuple(ctx context.Context, teacherID, classID, subjectID, termID string) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error)
	Create(ctx context.Context, assignment *models.TeachingAssignment) error
	Delete(ctx context.Context, id string) error
}

type scheduleEntryCounter interface {
	CountEntriesForAssignment(ctx context.Context, assignmentID string) (int, error)
}

// CreateTeachingAssignmentRequest describes assignment payload.
type CreateTeachingAssignmentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,notblank"`
	ClassID   string `json:"class_id" validate:"required,notblank"`
	SubjectID string `json:"subject_id" validate:"required,notblank"`
	TermID    string `json:"term_id" validate:"required,notblank"`
}

// TeachingAssignmentService manages the teacher-class-subject-term tuples that schedule entries
// belong to.
type TeachingAssignmentService struct {
	assignments teachingAssignmentStore
	entries     scheduleEntryCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeachingAssignmentService creates a service instance.
func NewTeachingAssignmentService(assignments teachingAssignmentStore, entries scheduleEntryCounter, validate *validator.Validate, logger *zap.Logger) *TeachingAssignmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeachingAssignmentService{assignments: assignments, entries: entries, validator: validate, logger: logger}
}

// Get resolves an assignment by id.
func (s *TeachingAssignmentService) Get(ctx context.Context, id string) (*models.TeachingAssignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(appErrors.ErrAssignmentNotFound, "", "assignment_id", id)
		}
		return nil, storageError(ctx, err, "failed to load assignment")
	}
	return assignment, nil
}

// ListByTeacher returns a teacher's assignments with their entry counts.
func (s *TeachingAssignmentService) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error) {
	assignments, err := s.assignments.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, storageError(ctx, err, "failed to list assignments")
	}
	return assignments, nil
}

// Assign creates a new teacher-class-subject-term tuple. Each tuple exists at most once.
func (s *TeachingAssignmentService) Assign(ctx context.Context, req CreateTeachingAssignmentRequest) (*models.TeachingAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}

	assignment := &models.TeachingAssignment{
		TeacherID: strings.TrimSpace(req.TeacherID),
		ClassID:   strings.TrimSpace(req.ClassID),
		SubjectID: strings.TrimSpace(req.SubjectID),
		TermID:    strings.TrimSpace(req.TermID),
	}

	exists, err := s.assignments.ExistsTuple(ctx, assignment.TeacherID, assignment.ClassID, assignment.SubjectID, assignment.TermID)
	if err != nil {
		return nil, storageError(ctx, err, "failed to check assignment uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to this class and subject")
	}

	if err := s.assignments.Create(ctx, assignment); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to this class and subject")
		case errors.Is(err, repository.ErrForeignKey):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher, class, subject or term not found")
		}
		return nil, storageError(ctx, err, "failed to create assignment")
	}
	return assignment, nil
}

// Remove deletes an assignment that owns no schedule entries.
func (s *TeachingAssignmentService) Remove(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.entries.CountEntriesForAssignment(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return inUse(id, count)
	}

	if err := s.assignments.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return notFound(appErrors.ErrAssignmentNotFound, "", "assignment_id", id)
		case errors.Is(err, repository.ErrForeignKey):
			// An entry was placed between the count and the delete.
			return inUse(id, 0)
		}
		return storageError(ctx, err, "failed to delete assignment")
	}
	s.logger.Info("teaching assignment removed", zap.String("assignment_id", id))
	return nil
}

func inUse(id string, count int) error {
	details := map[string]interface{}{"assignment_id": id}
	if count > 0 {
		details["entry_count"] = count
	}
	return appErrors.ErrAssignmentInUse.WithDetails(details)
}
