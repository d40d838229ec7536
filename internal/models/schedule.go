package models

import (
	"fmt"
	"time"
)

// ScheduleEntry is one weekly recurring lesson owned by a teaching assignment.
// TeacherID, ClassID, TermID and SubjectID are copied from the owning assignment so the
// database can enforce overlap exclusion per teacher and per class.
type ScheduleEntry struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	TermID       string    `db:"term_id" json:"term_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	SubjectName  string    `db:"subject_name" json:"subject_name,omitempty"`
	Day          Day       `db:"day_of_week" json:"day"`
	StartTime    TimeOfDay `db:"start_minute" json:"start_time"`
	EndTime      TimeOfDay `db:"end_minute" json:"end_time"`
	Room         *string   `db:"room" json:"room,omitempty"`
	Note         *string   `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleCandidate is the slot being placed by a create or update.
type ScheduleCandidate struct {
	AssignmentID string
	Day          Day
	StartTime    TimeOfDay
	EndTime      TimeOfDay
}

// Candidate returns the slot occupied by the entry.
func (e ScheduleEntry) Candidate() ScheduleCandidate {
	return ScheduleCandidate{AssignmentID: e.AssignmentID, Day: e.Day, StartTime: e.StartTime, EndTime: e.EndTime}
}

// Overlaps reports whether the entry collides with the candidate on the same day.
func (e ScheduleEntry) Overlaps(c ScheduleCandidate) bool {
	return e.Day == c.Day && Overlaps(e.StartTime, e.EndTime, c.StartTime, c.EndTime)
}

// ScheduleFilter describes query params for listing schedule entries.
type ScheduleFilter struct {
	TermID       string
	ClassID      string
	TeacherID    string
	AssignmentID string
	Day          Day
	Room         string
	Page         int
	PageSize     int
}

// ScheduleStats summarises the timetable of a term (or of every term when TermID is empty).
type ScheduleStats struct {
	TermID          string         `json:"term_id,omitempty"`
	ByDay           map[string]int `json:"by_day"`
	TotalEntries    int            `json:"total_entries"`
	DistinctClasses int            `json:"distinct_classes"`
}

// DayCount is a single GROUP BY row.
type DayCount struct {
	Day   Day `db:"day_of_week"`
	Count int `db:"total"`
}

// Conflict dimensions.
const (
	ConflictDimensionTeacher = "TEACHER"
	ConflictDimensionClass   = "CLASS"
)

// ScheduleConflict describes the existing entry that blocks a candidate slot.
type ScheduleConflict struct {
	EntryID      string    `json:"entry_id,omitempty"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	TermID       string    `json:"term_id"`
	ClassID      string    `json:"class_id,omitempty"`
	TeacherID    string    `json:"teacher_id,omitempty"`
	SubjectID    string    `json:"subject_id,omitempty"`
	SubjectName  string    `json:"subject_name,omitempty"`
	Day          Day       `json:"day"`
	StartTime    TimeOfDay `json:"start_time"`
	EndTime      TimeOfDay `json:"end_time"`
	Dimension    string    `json:"dimension"`
}

// ConflictFromEntry builds the diagnostic view of an existing entry.
func ConflictFromEntry(entry ScheduleEntry, dimension string) ScheduleConflict {
	return ScheduleConflict{
		EntryID:      entry.ID,
		AssignmentID: entry.AssignmentID,
		TermID:       entry.TermID,
		ClassID:      entry.ClassID,
		TeacherID:    entry.TeacherID,
		SubjectID:    entry.SubjectID,
		SubjectName:  entry.SubjectName,
		Day:          entry.Day,
		StartTime:    entry.StartTime,
		EndTime:      entry.EndTime,
		Dimension:    dimension,
	}
}

// Describe renders the conflict for human readable messages.
func (c ScheduleConflict) Describe() string {
	subject := c.SubjectName
	if subject == "" {
		subject = c.SubjectID
	}
	if subject == "" {
		return fmt.Sprintf("%s %s-%s", c.Day, c.StartTime, c.EndTime)
	}
	return fmt.Sprintf("%s on %s %s-%s", subject, c.Day, c.StartTime, c.EndTime)
}

// ScheduleConflictError is returned when a schedule collides with an existing one.
type ScheduleConflictError struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Conflict *ScheduleConflict `json:"conflict,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
