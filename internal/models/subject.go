package models

import "time"

// Subject represents a taught subject. Subjects referenced by attendance
// sessions are historically load-bearing: only the name may change and
// deletion is refused so old sessions keep resolving.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Stage        string    `db:"stage" json:"stage"`
	Department   string    `db:"department" json:"department"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Stage      string
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
