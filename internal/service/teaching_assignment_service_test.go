package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

func newAssignmentFixture(entries ...models.ScheduleEntry) (*TeachingAssignmentService, *assignmentStoreStub, *memoryEntryStore) {
	assignments := fixtureAssignments()
	store := newMemoryEntryStore(entries...)
	schedules := newTestScheduleService(store, assignments, nil)
	return NewTeachingAssignmentService(assignments, schedules, validation.New(), zap.NewNop()), assignments, store
}

func TestTeachingAssignmentServiceRemove(t *testing.T) {
	svc, assignments, _ := newAssignmentFixture(
		existingEntry("e-1", "t1-a-math", "T1", "A", termGanjil, models.DaySenin, "07:00", "08:00"),
	)
	ctx := context.Background()

	err := svc.Remove(ctx, "t1-a-math")
	appErr := requireCode(t, err, appErrors.ErrAssignmentInUse)
	assert.Equal(t, 1, appErr.Details["entry_count"])
	assert.Empty(t, assignments.deletedIDs)

	require.NoError(t, svc.Remove(ctx, "t2-a-english"))
	assert.Equal(t, []string{"t2-a-english"}, assignments.deletedIDs)

	requireCode(t, svc.Remove(ctx, "t2-a-english"), appErrors.ErrAssignmentNotFound)
}

func TestTeachingAssignmentServiceRemoveRace(t *testing.T) {
	svc, assignments, _ := newAssignmentFixture()
	assignments.deleteErr = fmt.Errorf("delete teacher assignment: %w", repository.ErrForeignKey)

	requireCode(t, svc.Remove(context.Background(), "t1-a-math"), appErrors.ErrAssignmentInUse)
}

func TestTeachingAssignmentServiceAssign(t *testing.T) {
	svc, assignments, _ := newAssignmentFixture()
	ctx := context.Background()

	assignment, err := svc.Assign(ctx, CreateTeachingAssignmentRequest{TeacherID: "T9", ClassID: "D", SubjectID: "bio", TermID: termGanjil})
	require.NoError(t, err)
	assert.Equal(t, "assignment-1", assignment.ID)
	require.Len(t, assignments.created, 1)

	_, err = svc.Assign(ctx, CreateTeachingAssignmentRequest{TeacherID: "T9"})
	requireCode(t, err, appErrors.ErrValidation)

	assignments.exists = true
	_, err = svc.Assign(ctx, CreateTeachingAssignmentRequest{TeacherID: "T9", ClassID: "D", SubjectID: "bio", TermID: termGanjil})
	requireCode(t, err, appErrors.ErrConflict)

	assignments.exists = false
	assignments.createErr = fmt.Errorf("create teacher assignment: %w", repository.ErrForeignKey)
	_, err = svc.Assign(ctx, CreateTeachingAssignmentRequest{TeacherID: "T0", ClassID: "D", SubjectID: "bio", TermID: termGanjil})
	requireCode(t, err, appErrors.ErrNotFound)

	assignments.createErr = fmt.Errorf("create teacher assignment: %w", repository.ErrDuplicate)
	_, err = svc.Assign(ctx, CreateTeachingAssignmentRequest{TeacherID: "T9", ClassID: "D", SubjectID: "bio", TermID: termGanjil})
	requireCode(t, err, appErrors.ErrConflict)
}

func TestTeachingAssignmentServiceGetAndList(t *testing.T) {
	svc, _, _ := newAssignmentFixture()
	ctx := context.Background()

	assignment, err := svc.Get(ctx, "t1-b-science")
	require.NoError(t, err)
	assert.Equal(t, "B", assignment.ClassID)

	_, err = svc.Get(ctx, "missing")
	requireCode(t, err, appErrors.ErrAssignmentNotFound)

	list, err := svc.ListByTeacher(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
