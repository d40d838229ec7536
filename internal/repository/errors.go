package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Storage level rejections surfaced to services.
var (
	ErrTeacherOverlap = errors.New("teacher schedule overlap rejected by storage")
	ErrClassOverlap   = errors.New("class schedule overlap rejected by storage")
	ErrForeignKey     = errors.New("foreign key violation")
	ErrDuplicate      = errors.New("unique constraint violation")
	ErrSerialization  = errors.New("transaction could not be serialized")
)

const (
	teacherOverlapConstraint = "schedule_entries_teacher_no_overlap"
	classOverlapConstraint   = "schedule_entries_class_no_overlap"
)

// translateError maps Postgres error codes onto the sentinels above. Other errors pass through.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "exclusion_violation":
		switch pqErr.Constraint {
		case teacherOverlapConstraint:
			return fmt.Errorf("%w: %s", ErrTeacherOverlap, pqErr.Message)
		case classOverlapConstraint:
			return fmt.Errorf("%w: %s", ErrClassOverlap, pqErr.Message)
		}
	case "unique_violation":
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
	case "foreign_key_violation":
		return fmt.Errorf("%w: %s", ErrForeignKey, pqErr.Message)
	case "serialization_failure", "deadlock_detected":
		return fmt.Errorf("%w: %s", ErrSerialization, pqErr.Message)
	}
	return err
}
