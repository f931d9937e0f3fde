package dto

// DateEntry is one dated status record in a student's monthly history.
type DateEntry struct {
	Date      string `json:"date"`
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// StudentReport accumulates one student's history for the month. Absent
// entries appear in Dates without affecting either tally.
type StudentReport struct {
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	Present     int         `json:"present"`
	Leave       int         `json:"leave"`
	Dates       []DateEntry `json:"dates"`
}

// MonthlyReport is the aggregated attendance rollup for a subject and month.
type MonthlyReport struct {
	SubjectID      string          `json:"subject_id"`
	SubjectName    string          `json:"subject_name"`
	InstructorName string          `json:"instructor_name"`
	Stage          string          `json:"stage"`
	Department     string          `json:"department"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	TotalSessions  int             `json:"total_sessions"`
	Report         []StudentReport `json:"report"`
}
