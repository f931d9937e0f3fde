package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/models"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type attendanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindRecord(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
	Transition(ctx context.Context, sessionID, studentID string, to models.AttendanceStatus) (bool, error)
}

// AttendanceService advances a student's status within a session snapshot.
// ABSENT is the initial state; PRESENT and LEAVE are terminal. Re-marking a
// terminal student succeeds with an already-marked signal.
type AttendanceService struct {
	users    attendanceUserRepository
	sessions attendanceSessionRepository
	tokens   *TokenService
	logger   *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(users attendanceUserRepository, sessions attendanceSessionRepository, tokens *TokenService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{users: users, sessions: sessions, tokens: tokens, logger: logger}
}

// MarkPresent records the student as present against the session encoded in
// the possession-proven session token.
func (s *AttendanceService) MarkPresent(ctx context.Context, sessionToken, studentID string) (*dto.MarkResponse, error) {
	claims, err := s.tokens.VerifySessionToken(sessionToken)
	if err != nil {
		return nil, err
	}
	return s.mark(ctx, claims.SessionID, studentID, models.StatusPresent)
}

// MarkLeave records the student as on leave. This path addresses the session
// by raw id rather than a session token, so it is routed behind the
// instructor tier as an administrative override; it does not honor the
// 30-minute check-in window.
func (s *AttendanceService) MarkLeave(ctx context.Context, sessionID, studentID string) (*dto.MarkResponse, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, storeErr(err, "failed to fetch session")
	}
	return s.mark(ctx, sessionID, studentID, models.StatusLeave)
}

func (s *AttendanceService) mark(ctx context.Context, sessionID, studentID string, to models.AttendanceStatus) (*dto.MarkResponse, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can be marked")
		}
		return nil, storeErr(err, "failed to fetch student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can be marked")
	}

	record, err := s.sessions.FindRecord(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in attendance snapshot")
		}
		return nil, storeErr(err, "failed to fetch attendance record")
	}

	if record.Status.Terminal() {
		return &dto.MarkResponse{Status: string(record.Status), AlreadyMarked: true}, nil
	}

	moved, err := s.sessions.Transition(ctx, sessionID, studentID, to)
	if err != nil {
		return nil, storeErr(err, "failed to update attendance status")
	}
	if !moved {
		// A concurrent mark won the race; report the persisted outcome.
		current, err := s.sessions.FindRecord(ctx, sessionID, studentID)
		if err != nil {
			return nil, storeErr(err, "failed to re-read attendance record")
		}
		return &dto.MarkResponse{Status: string(current.Status), AlreadyMarked: true}, nil
	}

	s.logger.Info("attendance marked",
		zap.String("session_id", sessionID),
		zap.String("student_id", studentID),
		zap.String("status", string(to)))

	return &dto.MarkResponse{Status: string(to), AlreadyMarked: false}, nil
}
