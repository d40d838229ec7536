package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	scheduleEntryColumns = `e.id, e.assignment_id, e.term_id, e.class_id, e.subject_id, e.teacher_id, COALESCE(s.name, '') AS subject_name, e.day_of_week, e.start_minute, e.end_minute, e.room, e.note, e.created_at, e.updated_at`
	scheduleEntrySource  = `FROM schedule_entries e LEFT JOIN subjects s ON s.id = e.subject_id`
	scheduleEntryOrder   = `ORDER BY e.day_of_week ASC, e.start_minute ASC`
)

// ScheduleEntryRepository provides persistence for weekly schedule entries.
// Every method honours a transaction started through WithinTransaction on the same context.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository creates a new schedule entry repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

// WithinTransaction runs fn in a SERIALIZABLE transaction so the conflict scan and the write
// observe a consistent snapshot.
func (r *ScheduleEntryRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return runSerializable(ctx, r.db, fn)
}

// FindByID loads an entry by id. Returns sql.ErrNoRows when absent.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.id = $1", scheduleEntryColumns, scheduleEntrySource)
	var entry models.ScheduleEntry
	if err := executor(ctx, r.db).GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByDay returns every entry of a term on the given day.
func (r *ScheduleEntryRepository) FindByDay(ctx context.Context, termID string, day models.Day) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.term_id = $1 AND e.day_of_week = $2 ORDER BY e.start_minute ASC", scheduleEntryColumns, scheduleEntrySource)
	var entries []models.ScheduleEntry
	if err := executor(ctx, r.db).SelectContext(ctx, &entries, query, termID, day); err != nil {
		return nil, fmt.Errorf("find schedule entries by day: %w", err)
	}
	return entries, nil
}

// FindByTeacherDay returns the teacher's entries for a term and day, skipping excludeID.
func (r *ScheduleEntryRepository) FindByTeacherDay(ctx context.Context, teacherID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.teacher_id = $1 AND e.term_id = $2 AND e.day_of_week = $3 AND e.id <> $4 ORDER BY e.start_minute ASC", scheduleEntryColumns, scheduleEntrySource)
	var entries []models.ScheduleEntry
	if err := executor(ctx, r.db).SelectContext(ctx, &entries, query, teacherID, termID, day, excludeID); err != nil {
		return nil, fmt.Errorf("find teacher schedule entries: %w", err)
	}
	return entries, nil
}

// FindByClassDay returns the class's entries for a term and day, skipping excludeID.
func (r *ScheduleEntryRepository) FindByClassDay(ctx context.Context, classID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.class_id = $1 AND e.term_id = $2 AND e.day_of_week = $3 AND e.id <> $4 ORDER BY e.start_minute ASC", scheduleEntryColumns, scheduleEntrySource)
	var entries []models.ScheduleEntry
	if err := executor(ctx, r.db).SelectContext(ctx, &entries, query, classID, termID, day, excludeID); err != nil {
		return nil, fmt.Errorf("find class schedule entries: %w", err)
	}
	return entries, nil
}

// ListByTeacher returns a teacher's weekly timetable ordered by day then start time.
// An empty termID spans every term.
func (r *ScheduleEntryRepository) ListByTeacher(ctx context.Context, teacherID, termID string) ([]models.ScheduleEntry, error) {
	entries, err := r.listScoped(ctx, "e.teacher_id", teacherID, termID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries by teacher: %w", err)
	}
	return entries, nil
}

// ListByClass returns a class's weekly timetable ordered by day then start time.
func (r *ScheduleEntryRepository) ListByClass(ctx context.Context, classID, termID string) ([]models.ScheduleEntry, error) {
	entries, err := r.listScoped(ctx, "e.class_id", classID, termID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries by class: %w", err)
	}
	return entries, nil
}

func (r *ScheduleEntryRepository) listScoped(ctx context.Context, column, id, termID string) ([]models.ScheduleEntry, error) {
	where := []string{column + " = $1"}
	args := []interface{}{id}
	if termID != "" {
		where = append(where, "e.term_id = $2")
		args = append(args, termID)
	}
	query := fmt.Sprintf("SELECT %s %s WHERE %s %s", scheduleEntryColumns, scheduleEntrySource, strings.Join(where, " AND "), scheduleEntryOrder)
	entries := []models.ScheduleEntry{}
	if err := executor(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns entries with optional filtering and pagination.
func (r *ScheduleEntryRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error) {
	var conditions []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.TermID != "" {
		add("e.term_id", filter.TermID)
	}
	if filter.ClassID != "" {
		add("e.class_id", filter.ClassID)
	}
	if filter.TeacherID != "" {
		add("e.teacher_id", filter.TeacherID)
	}
	if filter.AssignmentID != "" {
		add("e.assignment_id", filter.AssignmentID)
	}
	if filter.Day.Valid() {
		add("e.day_of_week", filter.Day)
	}
	if filter.Room != "" {
		add("e.room", filter.Room)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s%s %s LIMIT %d OFFSET %d", scheduleEntryColumns, scheduleEntrySource, where, scheduleEntryOrder, size, offset)
	entries := []models.ScheduleEntry{}
	if err := executor(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schedule_entries e%s", where)
	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule entries: %w", err)
	}

	return entries, total, nil
}

// CountByDay groups entries per day, optionally within a term.
func (r *ScheduleEntryRepository) CountByDay(ctx context.Context, termID string) ([]models.DayCount, error) {
	query := "SELECT day_of_week, COUNT(*) AS total FROM schedule_entries"
	var args []interface{}
	if termID != "" {
		query += " WHERE term_id = $1"
		args = append(args, termID)
	}
	query += " GROUP BY day_of_week ORDER BY day_of_week ASC"

	var counts []models.DayCount
	if err := executor(ctx, r.db).SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count schedule entries by day: %w", err)
	}
	return counts, nil
}

// CountDistinctClasses counts classes owning at least one entry.
func (r *ScheduleEntryRepository) CountDistinctClasses(ctx context.Context, termID string) (int, error) {
	query := "SELECT COUNT(DISTINCT class_id) FROM schedule_entries"
	var args []interface{}
	if termID != "" {
		query += " WHERE term_id = $1"
		args = append(args, termID)
	}
	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count distinct scheduled classes: %w", err)
	}
	return total, nil
}

// CountByAssignment returns how many entries an assignment owns.
func (r *ScheduleEntryRepository) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM schedule_entries WHERE assignment_id = $1`
	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count schedule entries by assignment: %w", err)
	}
	return total, nil
}

// Create stores a new entry, assigning its id and timestamps.
func (r *ScheduleEntryRepository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO schedule_entries (id, assignment_id, term_id, class_id, subject_id, teacher_id, day_of_week, start_minute, end_minute, room, note, created_at, updated_at) VALUES (:id, :assignment_id, :term_id, :class_id, :subject_id, :teacher_id, :day_of_week, :start_minute, :end_minute, :room, :note, :created_at, :updated_at)`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", translateError(err))
	}
	return nil
}

// Update rewrites an entry. Returns sql.ErrNoRows when the id is unknown.
func (r *ScheduleEntryRepository) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET assignment_id = :assignment_id, term_id = :term_id, class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, room = :room, note = :note, updated_at = :updated_at WHERE id = :id`
	result, err := executor(ctx, r.db).NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update schedule entry: %w", translateError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated schedule entry rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an entry by id. Returns sql.ErrNoRows when absent.
func (r *ScheduleEntryRepository) Delete(ctx context.Context, id string) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", translateError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted schedule entry rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
