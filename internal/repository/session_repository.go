package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ams-platform/attendance-api/internal/models"
)

// SessionRepository persists attendance sessions and their student snapshots.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session together with its snapshot rows in one
// transaction. The UNIQUE(subject_id, session_date) constraint is the
// authority on one-session-per-day; a violation surfaces as ErrDuplicate so
// two concurrent opens can never both succeed.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession, studentIDs []string) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const sessionQuery = `INSERT INTO attendance_sessions (id, subject_id, session_date, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, sessionQuery, session.ID, session.SubjectID, session.SessionDate, session.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create session: %w", err)
	}

	const recordQuery = `INSERT INTO attendance_records (id, session_id, student_id, status, updated_at) VALUES ($1, $2, $3, $4, $5)`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, recordQuery, uuid.NewString(), session.ID, studentID, models.StatusAbsent, now); err != nil {
			return fmt.Errorf("create snapshot record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	const query = `SELECT id, subject_id, session_date, created_at FROM attendance_sessions WHERE id = $1 LIMIT 1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// ExistsForDate reports whether a session already exists for the subject on
// the given calendar day. Advisory only; Create re-checks via the constraint.
func (r *SessionRepository) ExistsForDate(ctx context.Context, subjectID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE subject_id = $1 AND session_date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, subjectID, date); err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return exists, nil
}

// FindRecord returns the snapshot entry for one student in a session.
func (r *SessionRepository) FindRecord(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	const query = `SELECT id, session_id, student_id, status, updated_at FROM attendance_records WHERE session_id = $1 AND student_id = $2 LIMIT 1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// Transition moves one student's status out of ABSENT. The guarded single-row
// update keeps concurrent marks on other students in the same session intact
// and makes a lost race on the same student read as already-marked: it
// returns false when the row was no longer in ABSENT.
func (r *SessionRepository) Transition(ctx context.Context, sessionID, studentID string, to models.AttendanceStatus) (bool, error) {
	const query = `UPDATE attendance_records SET status = $3, updated_at = $4 WHERE session_id = $1 AND student_id = $2 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, sessionID, studentID, to, time.Now().UTC(), models.StatusAbsent)
	if err != nil {
		return false, fmt.Errorf("transition attendance status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

// CountBySubject returns how many sessions reference the subject.
func (r *SessionRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_sessions WHERE subject_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subjectID); err != nil {
		return 0, fmt.Errorf("count sessions by subject: %w", err)
	}
	return count, nil
}

// SubjectHeader resolves the denormalized subject fields shown on reports.
func (r *SessionRepository) SubjectHeader(ctx context.Context, subjectID string) (*models.SubjectHeader, error) {
	const query = `SELECT s.name AS subject_name, u.name AS instructor_name, s.stage, s.department FROM subjects s JOIN users u ON u.id = s.instructor_id WHERE s.id = $1 LIMIT 1`
	var header models.SubjectHeader
	if err := r.db.GetContext(ctx, &header, query, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject header: %w", err)
	}
	return &header, nil
}

// ListReportRows returns every snapshot entry for the subject's sessions in
// the inclusive date range, ordered by session date ascending.
func (r *SessionRepository) ListReportRows(ctx context.Context, subjectID string, from, to time.Time) ([]models.SessionReportRow, error) {
	const query = `SELECT ar.session_id, ses.session_date, ar.student_id, u.name AS student_name, ar.status
		FROM attendance_records ar
		JOIN attendance_sessions ses ON ses.id = ar.session_id
		JOIN users u ON u.id = ar.student_id
		WHERE ses.subject_id = $1 AND ses.session_date BETWEEN $2 AND $3
		ORDER BY ses.session_date ASC, u.name ASC`
	var rows []models.SessionReportRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, from, to); err != nil {
		return nil, fmt.Errorf("list report rows: %w", err)
	}
	return rows, nil
}
