package dto

// OpenSessionResponse returns the session token handed to students.
type OpenSessionResponse struct {
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Students     int    `json:"students"`
}

// MarkPresentRequest carries the session token proving possession of an open
// attendance window.
type MarkPresentRequest struct {
	Session string `json:"session" validate:"required"`
}

// MarkLeaveRequest is the administrative override path: it addresses the
// session directly by id instead of a possession-proven token.
type MarkLeaveRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// MarkResponse reports the outcome of a status transition.
type MarkResponse struct {
	Status        string `json:"status"`
	AlreadyMarked bool   `json:"already_marked"`
}
