package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var scheduleEntryRowColumns = []string{"id", "assignment_id", "term_id", "class_id", "subject_id", "teacher_id", "subject_name", "day_of_week", "start_minute", "end_minute", "room", "note", "created_at", "updated_at"}

func newScheduleEntryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func entryRow(rows *sqlmock.Rows, id string, day models.Day, start, end string) *sqlmock.Rows {
	s, _ := models.ParseTimeOfDay(start)
	e, _ := models.ParseTimeOfDay(end)
	return rows.AddRow(id, "assign-1", "term-1", "class-a", "math", "teacher-1", "Matematika", int64(day), int64(s), int64(e), nil, nil, time.Now(), time.Now())
}

func TestScheduleEntryRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	rows := entryRow(sqlmock.NewRows(scheduleEntryRowColumns), "entry-1", models.DaySenin, "08:00", "09:00")
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries e LEFT JOIN subjects s ON s.id = e.subject_id WHERE e.id = $1")).
		WithArgs("entry-1").
		WillReturnRows(rows)

	entry, err := repo.FindByID(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.Equal(t, models.DaySenin, entry.Day)
	assert.Equal(t, "08:00", entry.StartTime.String())
	assert.Equal(t, "09:00", entry.EndTime.String())
	assert.Equal(t, "Matematika", entry.SubjectName)
	assert.Nil(t, entry.Room)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryScopedScans(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.teacher_id = $1 AND e.term_id = $2 AND e.day_of_week = $3 AND e.id <> $4 ORDER BY e.start_minute ASC")).
		WithArgs("teacher-1", "term-1", models.DayRabu, "entry-9").
		WillReturnRows(entryRow(sqlmock.NewRows(scheduleEntryRowColumns), "entry-1", models.DayRabu, "07:00", "08:30"))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.term_id = $2 AND e.day_of_week = $3 AND e.id <> $4 ORDER BY e.start_minute ASC")).
		WithArgs("class-a", "term-1", models.DayRabu, "").
		WillReturnRows(sqlmock.NewRows(scheduleEntryRowColumns))

	byTeacher, err := repo.FindByTeacherDay(context.Background(), "teacher-1", "term-1", models.DayRabu, "entry-9")
	require.NoError(t, err)
	assert.Len(t, byTeacher, 1)

	byClass, err := repo.FindByClassDay(context.Background(), "class-a", "term-1", models.DayRabu, "")
	require.NoError(t, err)
	assert.Empty(t, byClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryFindByDay(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	rows := sqlmock.NewRows(scheduleEntryRowColumns)
	entryRow(rows, "entry-1", models.DayJumat, "07:00", "08:00")
	entryRow(rows, "entry-2", models.DayJumat, "08:00", "09:30")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.term_id = $1 AND e.day_of_week = $2 ORDER BY e.start_minute ASC")).
		WithArgs("term-1", models.DayJumat).
		WillReturnRows(rows)

	entries, err := repo.FindByDay(context.Background(), "term-1", models.DayJumat)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "09:30", entries[1].EndTime.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListByClassWithTerm(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	rows := sqlmock.NewRows(scheduleEntryRowColumns)
	entryRow(rows, "entry-1", models.DaySenin, "07:00", "08:00")
	entryRow(rows, "entry-2", models.DaySelasa, "07:00", "08:00")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.term_id = $2 ORDER BY e.day_of_week ASC, e.start_minute ASC")).
		WithArgs("class-a", "term-1").
		WillReturnRows(rows)

	entries, err := repo.ListByClass(context.Background(), "class-a", "term-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.DaySelasa, entries[1].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListByTeacherAllTerms(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.teacher_id = $1 ORDER BY e.day_of_week ASC")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows(scheduleEntryRowColumns))

	entries, err := repo.ListByTeacher(context.Background(), "teacher-1", "")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListPaginates(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.term_id = $1 AND e.day_of_week = $2 ORDER BY e.day_of_week ASC, e.start_minute ASC LIMIT 10 OFFSET 10")).
		WithArgs("term-1", models.DayKamis).
		WillReturnRows(entryRow(sqlmock.NewRows(scheduleEntryRowColumns), "entry-1", models.DayKamis, "10:00", "11:00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries e WHERE e.term_id = $1 AND e.day_of_week = $2")).
		WithArgs("term-1", models.DayKamis).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	entries, total, err := repo.List(context.Background(), models.ScheduleFilter{TermID: "term-1", Day: models.DayKamis, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListHonoursLargePageSize(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.day_of_week ASC, e.start_minute ASC LIMIT 150 OFFSET 150")).
		WillReturnRows(sqlmock.NewRows(scheduleEntryRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries e")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(151))

	entries, total, err := repo.List(context.Background(), models.ScheduleFilter{Page: 2, PageSize: 150})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 151, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryStatsQueries(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT day_of_week, COUNT(*) AS total FROM schedule_entries WHERE term_id = $1 GROUP BY day_of_week ORDER BY day_of_week ASC")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"day_of_week", "total"}).AddRow(int64(1), 4).AddRow(int64(3), 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT class_id) FROM schedule_entries WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries WHERE assignment_id = $1")).
		WithArgs("assign-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	counts, err := repo.CountByDay(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.DayRabu, counts[1].Day)
	assert.Equal(t, 2, counts[1].Count)

	classes, err := repo.CountDistinctClasses(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 3, classes)

	owned, err := repo.CountByAssignment(context.Background(), "assign-1")
	require.NoError(t, err)
	assert.Equal(t, 2, owned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	room := "R-101"
	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "assign-1", "term-1", "class-a", "math", "teacher-1", models.DaySenin, models.TimeOfDay(480), models.TimeOfDay(540), "R-101", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ScheduleEntry{
		AssignmentID: "assign-1",
		TermID:       "term-1",
		ClassID:      "class-a",
		SubjectID:    "math",
		TeacherID:    "teacher-1",
		Day:          models.DaySenin,
		StartTime:    480,
		EndTime:      540,
		Room:         &room,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryCreateExclusionViolation(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec("INSERT INTO schedule_entries").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "schedule_entries_class_no_overlap", Message: "conflicting key value violates exclusion constraint"})

	err := repo.Create(context.Background(), &models.ScheduleEntry{Day: models.DaySenin, StartTime: 480, EndTime: 540})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassOverlap))
	assert.False(t, errors.Is(err, ErrTeacherOverlap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec("UPDATE schedule_entries SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.ScheduleEntry{ID: "missing", Day: models.DaySenin, StartTime: 480, EndTime: 540})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "entry-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "entry-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryWithinTransactionCommits(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries WHERE assignment_id = $1")).
		WithArgs("assign-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO schedule_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := repo.CountByAssignment(ctx, "assign-1"); err != nil {
			return err
		}
		return repo.Create(ctx, &models.ScheduleEntry{AssignmentID: "assign-1", Day: models.DaySenin, StartTime: 480, EndTime: 540})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryWithinTransactionRollsBack(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("conflict found")
	err := repo.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryCommitSerializationFailure(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

	err := repo.WithinTransaction(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrSerialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}
