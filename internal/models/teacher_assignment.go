package models

import "time"

// TeachingAssignment links a teacher to a class/subject/term tuple. Schedule entries book
// weekly time for an assignment.
type TeachingAssignment struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TermID    string    `db:"term_id" json:"term_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeachingAssignmentDetail enriches assignments with descriptive fields.
type TeachingAssignmentDetail struct {
	TeachingAssignment
	ClassName   string  `db:"class_name" json:"class_name"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TermName    string  `db:"term_name" json:"term_name"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
	EntryCount  int     `db:"entry_count" json:"entry_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
