package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// storageError translates a repository failure into an API error. Typed errors other than
// internal ones pass through untouched; anything failing after ctx expired is a timeout.
func storageError(ctx context.Context, err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code != appErrors.ErrInternal.Code && appErr.Code != appErrors.ErrStorageUnavailable.Code {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	if appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, repository.ErrTeacherOverlap):
		return conflictError(appErrors.ErrTeacherConflict, models.ConflictDimensionTeacher, nil)
	case errors.Is(err, repository.ErrClassOverlap):
		return conflictError(appErrors.ErrClassConflict, models.ConflictDimensionClass, nil)
	case errors.Is(err, repository.ErrForeignKey):
		return appErrors.Wrap(err, appErrors.ErrAssignmentNotFound.Code, appErrors.ErrAssignmentNotFound.Status, appErrors.ErrAssignmentNotFound.Message)
	case errors.Is(err, repository.ErrSerialization),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// conflictError wraps the diagnostic conflict under the given API error. conflict is nil when the
// overlap was rejected by a storage constraint and the blocking row is not visible.
func conflictError(base *appErrors.Error, dimension string, conflict *models.ScheduleConflict) error {
	message := base.Message
	details := map[string]interface{}{"dimension": dimension}
	if conflict != nil {
		message = fmt.Sprintf("%s: %s", base.Message, conflict.Describe())
		details["conflicting_entry_id"] = conflict.EntryID
		details["day"] = conflict.Day.String()
		details["start_time"] = conflict.StartTime.String()
		details["end_time"] = conflict.EndTime.String()
		details["subject_id"] = conflict.SubjectID
		details["subject_name"] = conflict.SubjectName
	}
	domainErr := &models.ScheduleConflictError{Type: dimension, Message: message, Conflict: conflict}
	wrapped := appErrors.Wrap(domainErr, base.Code, base.Status, message)
	wrapped.Details = details
	return wrapped
}

func notFound(base *appErrors.Error, message, key, id string) error {
	return appErrors.Clone(base, message).WithDetails(map[string]interface{}{key: id})
}
