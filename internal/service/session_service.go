package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/repository"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type sessionSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type sessionUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListEnrolled(ctx context.Context, subjectID string) ([]models.User, error)
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.AttendanceSession, studentIDs []string) error
	ExistsForDate(ctx context.Context, subjectID string, date time.Time) (bool, error)
}

type sessionNotifier interface {
	SessionOpened(to, name, subjectName string, window time.Duration)
}

// SessionService opens attendance windows: one per subject per calendar day,
// snapshotting the enrolled students at that instant.
type SessionService struct {
	subjects sessionSubjectRepository
	users    sessionUserRepository
	sessions sessionRepository
	tokens   *TokenService
	notifier sessionNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(subjects sessionSubjectRepository, users sessionUserRepository, sessions sessionRepository, tokens *TokenService, notifier sessionNotifier, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		subjects: subjects,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// OpenSession creates today's attendance session for the subject and returns
// the session token students check in with. The snapshot is every student
// enrolled right now, each defaulted to absent; later enrollment changes do
// not touch it. Student notifications are queued without blocking success.
func (s *SessionService) OpenSession(ctx context.Context, subjectID, instructorID string) (*dto.OpenSessionResponse, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, storeErr(err, "failed to fetch subject")
	}

	caller, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors can open attendance sessions")
		}
		return nil, storeErr(err, "failed to fetch caller")
	}
	if caller.Role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors can open attendance sessions")
	}

	today := s.today()

	// Early check for a friendlier error; the unique constraint in Create is
	// what actually guarantees one session per subject per day.
	exists, err := s.sessions.ExistsForDate(ctx, subjectID, today)
	if err != nil {
		return nil, storeErr(err, "failed to check existing session")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance has already been opened for today")
	}

	students, err := s.users.ListEnrolled(ctx, subjectID)
	if err != nil {
		return nil, storeErr(err, "failed to fetch enrolled students")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students enrolled in this subject")
	}

	session := &models.AttendanceSession{SubjectID: subjectID, SessionDate: today}
	studentIDs := make([]string, len(students))
	for i, student := range students {
		studentIDs[i] = student.ID
	}

	if err := s.sessions.Create(ctx, session, studentIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance has already been opened for today")
		}
		return nil, storeErr(err, "failed to create session")
	}

	window := s.tokens.SessionTokenTTL()
	for _, student := range students {
		s.notifier.SessionOpened(student.Email, student.Name, subject.Name, window)
	}

	token, _, err := s.tokens.IssueSessionToken(instructorID, session.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance session opened",
		zap.String("session_id", session.ID),
		zap.String("subject_id", subjectID),
		zap.Int("students", len(students)))

	return &dto.OpenSessionResponse{
		SessionID:    session.ID,
		SessionToken: token,
		ExpiresIn:    int64(window.Seconds()),
		Students:     len(students),
	}, nil
}

// today returns the current calendar date in UTC with the time discarded.
func (s *SessionService) today() time.Time {
	year, month, day := s.now().UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
