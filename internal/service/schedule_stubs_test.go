package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type assignmentStoreStub struct {
	items      map[string]*models.TeachingAssignment
	findErr    error
	exists     bool
	createErr  error
	deleteErr  error
	created    []*models.TeachingAssignment
	deletedIDs []string
}

func newAssignmentStore(items ...models.TeachingAssignment) *assignmentStoreStub {
	store := &assignmentStoreStub{items: map[string]*models.TeachingAssignment{}}
	for i := range items {
		item := items[i]
		store.items[item.ID] = &item
	}
	return store
}

func (s *assignmentStoreStub) FindByID(ctx context.Context, id string) (*models.TeachingAssignment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if item, ok := s.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentStoreStub) ExistsTuple(ctx context.Context, teacherID, classID, subjectID, termID string) (bool, error) {
	return s.exists, nil
}

func (s *assignmentStoreStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error) {
	var out []models.TeachingAssignmentDetail
	for _, item := range s.items {
		if item.TeacherID == teacherID {
			out = append(out, models.TeachingAssignmentDetail{TeachingAssignment: *item})
		}
	}
	return out, nil
}

func (s *assignmentStoreStub) Create(ctx context.Context, assignment *models.TeachingAssignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	assignment.ID = fmt.Sprintf("assignment-%d", len(s.created)+1)
	s.created = append(s.created, assignment)
	return nil
}

func (s *assignmentStoreStub) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

// memoryEntryStore keeps entries in memory. Transactions snapshot the map and restore it when fn fails.
type memoryEntryStore struct {
	entries   map[string]models.ScheduleEntry
	seq       int
	createErr error
	listErr   error
	scanErr   error
	commits   int
	rollbacks int
}

func newMemoryEntryStore(entries ...models.ScheduleEntry) *memoryEntryStore {
	store := &memoryEntryStore{entries: map[string]models.ScheduleEntry{}}
	for _, entry := range entries {
		store.entries[entry.ID] = entry
	}
	return store
}

func (s *memoryEntryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[string]models.ScheduleEntry, len(s.entries))
	for id, entry := range s.entries {
		snapshot[id] = entry
	}
	if err := fn(ctx); err != nil {
		s.entries = snapshot
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *memoryEntryStore) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entry, nil
}

func (s *memoryEntryStore) FindByTeacherDay(ctx context.Context, teacherID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.filter(func(e models.ScheduleEntry) bool {
		return e.TeacherID == teacherID && e.TermID == termID && e.Day == day && e.ID != excludeID
	}), nil
}

func (s *memoryEntryStore) FindByClassDay(ctx context.Context, classID, termID string, day models.Day, excludeID string) ([]models.ScheduleEntry, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.filter(func(e models.ScheduleEntry) bool {
		return e.ClassID == classID && e.TermID == termID && e.Day == day && e.ID != excludeID
	}), nil
}

func (s *memoryEntryStore) ListByTeacher(ctx context.Context, teacherID, termID string) ([]models.ScheduleEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.filter(func(e models.ScheduleEntry) bool {
		return e.TeacherID == teacherID && (termID == "" || e.TermID == termID)
	}), nil
}

func (s *memoryEntryStore) ListByClass(ctx context.Context, classID, termID string) ([]models.ScheduleEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.filter(func(e models.ScheduleEntry) bool {
		return e.ClassID == classID && (termID == "" || e.TermID == termID)
	}), nil
}

func (s *memoryEntryStore) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	all := s.filter(func(e models.ScheduleEntry) bool {
		return filter.TermID == "" || e.TermID == filter.TermID
	})
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *memoryEntryStore) CountByDay(ctx context.Context, termID string) ([]models.DayCount, error) {
	counts := map[models.Day]int{}
	for _, entry := range s.entries {
		if termID == "" || entry.TermID == termID {
			counts[entry.Day]++
		}
	}
	var out []models.DayCount
	for day, count := range counts {
		out = append(out, models.DayCount{Day: day, Count: count})
	}
	return out, nil
}

func (s *memoryEntryStore) CountDistinctClasses(ctx context.Context, termID string) (int, error) {
	classes := map[string]struct{}{}
	for _, entry := range s.entries {
		if termID == "" || entry.TermID == termID {
			classes[entry.ClassID] = struct{}{}
		}
	}
	return len(classes), nil
}

func (s *memoryEntryStore) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	return len(s.filter(func(e models.ScheduleEntry) bool { return e.AssignmentID == assignmentID })), nil
}

func (s *memoryEntryStore) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	entry.ID = fmt.Sprintf("entry-%d", s.seq)
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	s.entries[entry.ID] = *entry
	return nil
}

func (s *memoryEntryStore) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	if _, ok := s.entries[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *memoryEntryStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.entries, id)
	return nil
}

func (s *memoryEntryStore) filter(keep func(models.ScheduleEntry) bool) []models.ScheduleEntry {
	out := []models.ScheduleEntry{}
	for _, entry := range s.entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

type memoryCache struct {
	values  map[string][]byte
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletes = append(c.deletes, pattern)
	c.values = map[string][]byte{}
	return nil
}

// Timetable fixture shared by the scheduling tests.
const (
	termGanjil = "term-ganjil"
	termGenap  = "term-genap"
)

func fixtureAssignments() *assignmentStoreStub {
	return newAssignmentStore(
		models.TeachingAssignment{ID: "t1-a-math", TeacherID: "T1", ClassID: "A", SubjectID: "math", TermID: termGanjil},
		models.TeachingAssignment{ID: "t1-b-science", TeacherID: "T1", ClassID: "B", SubjectID: "science", TermID: termGanjil},
		models.TeachingAssignment{ID: "t2-a-english", TeacherID: "T2", ClassID: "A", SubjectID: "english", TermID: termGanjil},
		models.TeachingAssignment{ID: "t3-a-art", TeacherID: "T3", ClassID: "A", SubjectID: "art", TermID: termGanjil},
		models.TeachingAssignment{ID: "t1-c-math-genap", TeacherID: "T1", ClassID: "C", SubjectID: "math", TermID: termGenap},
	)
}

func slot(day models.Day, start, end string) (models.Day, models.TimeOfDay, models.TimeOfDay) {
	s, _ := models.ParseTimeOfDay(start)
	e, _ := models.ParseTimeOfDay(end)
	return day, s, e
}

func existingEntry(id, assignmentID, teacherID, classID, termID string, day models.Day, start, end string) models.ScheduleEntry {
	d, s, e := slot(day, start, end)
	return models.ScheduleEntry{
		ID:           id,
		AssignmentID: assignmentID,
		TeacherID:    teacherID,
		ClassID:      classID,
		TermID:       termID,
		SubjectID:    "math",
		SubjectName:  "Matematika",
		Day:          d,
		StartTime:    s,
		EndTime:      e,
	}
}
