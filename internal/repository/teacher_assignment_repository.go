package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeachingAssignmentRepository persists teacher-class-subject-term assignments.
type TeachingAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeachingAssignmentRepository constructs the repository.
func NewTeachingAssignmentRepository(db *sqlx.DB) *TeachingAssignmentRepository {
	return &TeachingAssignmentRepository{db: db}
}

// FindByID resolves an assignment. Returns sql.ErrNoRows when absent.
func (r *TeachingAssignmentRepository) FindByID(ctx context.Context, id string) (*models.TeachingAssignment, error) {
	const query = `SELECT id, teacher_id, class_id, subject_id, term_id, created_at FROM teacher_assignments WHERE id = $1`
	var assignment models.TeachingAssignment
	if err := executor(ctx, r.db).GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Exists reports whether an assignment id is known.
func (r *TeachingAssignmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM teacher_assignments WHERE id = $1 LIMIT 1`
	var exists int
	if err := executor(ctx, r.db).GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher assignment: %w", err)
	}
	return true, nil
}

// ExistsTuple checks if the teacher-class-subject-term tuple already exists.
func (r *TeachingAssignmentRepository) ExistsTuple(ctx context.Context, teacherID, classID, subjectID, termID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_assignments WHERE teacher_id = $1 AND class_id = $2 AND subject_id = $3 AND term_id = $4 LIMIT 1`
	var exists int
	if err := executor(ctx, r.db).GetContext(ctx, &exists, query, teacherID, classID, subjectID, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher assignment tuple: %w", err)
	}
	return true, nil
}

// ListByTeacher returns a teacher's assignments with the number of schedule entries each owns.
func (r *TeachingAssignmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error) {
	const query = `
SELECT ta.id, ta.teacher_id, ta.class_id, ta.subject_id, ta.term_id, ta.created_at,
       c.name AS class_name, s.name AS subject_name, t.name AS term_name, tr.full_name AS teacher_name,
       (SELECT COUNT(*) FROM schedule_entries e WHERE e.assignment_id = ta.id) AS entry_count
FROM teacher_assignments ta
JOIN classes c ON c.id = ta.class_id
JOIN subjects s ON s.id = ta.subject_id
JOIN terms t ON t.id = ta.term_id
JOIN teachers tr ON tr.id = ta.teacher_id
WHERE ta.teacher_id = $1
ORDER BY t.start_date DESC, c.name ASC`
	assignments := []models.TeachingAssignmentDetail{}
	if err := executor(ctx, r.db).SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts a new assignment.
func (r *TeachingAssignmentRepository) Create(ctx context.Context, assignment *models.TeachingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_assignments (id, teacher_id, class_id, subject_id, term_id, created_at)
		VALUES (:id, :teacher_id, :class_id, :subject_id, :term_id, :created_at)`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create teacher assignment: %w", translateError(err))
	}
	return nil
}

// Delete removes an assignment. Returns sql.ErrNoRows when absent and wraps ErrForeignKey when
// schedule entries still reference it.
func (r *TeachingAssignmentRepository) Delete(ctx context.Context, id string) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM teacher_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher assignment: %w", translateError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
