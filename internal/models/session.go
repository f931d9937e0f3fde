package models

import "time"

// AttendanceStatus is the per-student status inside a session snapshot.
type AttendanceStatus string

const (
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusPresent AttendanceStatus = "PRESENT"
	StatusLeave   AttendanceStatus = "LEAVE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusAbsent, StatusPresent, StatusLeave:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transition.
func (s AttendanceStatus) Terminal() bool {
	return s == StatusPresent || s == StatusLeave
}

// AttendanceSession is one attendance window for a subject on a calendar day.
// The (subject_id, session_date) pair is unique at the database level.
type AttendanceSession struct {
	ID          string    `db:"id" json:"id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SessionDate time.Time `db:"session_date" json:"session_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AttendanceRecord is one snapshot entry: a student captured at session
// creation with their current status. The snapshot never grows or shrinks
// after the session opens.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// SessionReportRow is a snapshot entry joined with session date and student
// name, as consumed by the monthly report aggregator.
type SessionReportRow struct {
	SessionID   string           `db:"session_id" json:"session_id"`
	SessionDate time.Time        `db:"session_date" json:"session_date"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
}

// SubjectHeader carries the denormalized subject fields shown on reports.
type SubjectHeader struct {
	SubjectName    string `db:"subject_name" json:"subject_name"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	Stage          string `db:"stage" json:"stage"`
	Department     string `db:"department" json:"department"`
}
