package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/repository"
	"github.com/ams-platform/attendance-api/pkg/config"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type mockSubjectStore struct {
	subject *models.Subject
	err     error
}

func (m *mockSubjectStore) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.subject, nil
}

type mockUserStore struct {
	user        *models.User
	enrolled    []models.User
	findErr     error
	enrolledErr error
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.user, nil
}

func (m *mockUserStore) ListEnrolled(ctx context.Context, subjectID string) ([]models.User, error) {
	if m.enrolledErr != nil {
		return nil, m.enrolledErr
	}
	return m.enrolled, nil
}

type mockSessionStore struct {
	exists      bool
	existsErr   error
	createErr   error
	created     *models.AttendanceSession
	snapshotIDs []string
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.AttendanceSession, studentIDs []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	session.ID = "ses1"
	m.created = session
	m.snapshotIDs = studentIDs
	return nil
}

func (m *mockSessionStore) ExistsForDate(ctx context.Context, subjectID string, date time.Time) (bool, error) {
	return m.exists, m.existsErr
}

type mockSessionNotifier struct {
	recipients []string
}

func (m *mockSessionNotifier) SessionOpened(to, name, subjectName string, window time.Duration) {
	m.recipients = append(m.recipients, to)
}

func newSessionService(subjects *mockSubjectStore, users *mockUserStore, sessions *mockSessionStore, notifier *mockSessionNotifier) *SessionService {
	tokens := NewTokenService(config.JWTConfig{
		Secret:             "secret",
		LoginTokenExpiry:   time.Hour,
		SessionTokenExpiry: 30 * time.Minute,
	})
	return NewSessionService(subjects, users, sessions, tokens, notifier, zap.NewNop())
}

func instructorFixture() *models.User {
	return &models.User{ID: "inst1", Name: "Instructor", Role: models.RoleInstructor}
}

func enrolledFixture() []models.User {
	return []models.User{
		{ID: "s1", Name: "Alpha", Email: "alpha@example.com", Role: models.RoleStudent},
		{ID: "s2", Name: "Beta", Email: "beta@example.com", Role: models.RoleStudent},
	}
}

func TestOpenSessionSnapshotsEnrollment(t *testing.T) {
	subjects := &mockSubjectStore{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &mockUserStore{user: instructorFixture(), enrolled: enrolledFixture()}
	sessions := &mockSessionStore{}
	notifier := &mockSessionNotifier{}
	svc := newSessionService(subjects, users, sessions, notifier)

	res, err := svc.OpenSession(context.Background(), "sub1", "inst1")
	require.NoError(t, err)

	assert.Equal(t, "ses1", res.SessionID)
	assert.Equal(t, 2, res.Students)
	assert.Equal(t, int64(1800), res.ExpiresIn)
	assert.Equal(t, []string{"s1", "s2"}, sessions.snapshotIDs)
	assert.Equal(t, []string{"alpha@example.com", "beta@example.com"}, notifier.recipients)

	// Session date is the bare UTC calendar day.
	assert.Equal(t, time.UTC, sessions.created.SessionDate.Location())
	assert.Zero(t, sessions.created.SessionDate.Hour())

	claims, err := svc.tokens.VerifySessionToken(res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "ses1", claims.SessionID)
	assert.Equal(t, "inst1", claims.InstructorID)
}

func TestOpenSessionSubjectNotFound(t *testing.T) {
	svc := newSessionService(&mockSubjectStore{err: sql.ErrNoRows}, &mockUserStore{}, &mockSessionStore{}, &mockSessionNotifier{})

	_, err := svc.OpenSession(context.Background(), "missing", "inst1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOpenSessionRequiresInstructor(t *testing.T) {
	subjects := &mockSubjectStore{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &mockUserStore{user: &models.User{ID: "s1", Role: models.RoleStudent}}
	svc := newSessionService(subjects, users, &mockSessionStore{}, &mockSessionNotifier{})

	_, err := svc.OpenSession(context.Background(), "sub1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestOpenSessionAlreadyOpenToday(t *testing.T) {
	subjects := &mockSubjectStore{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &mockUserStore{user: instructorFixture(), enrolled: enrolledFixture()}
	sessions := &mockSessionStore{exists: true}
	svc := newSessionService(subjects, users, sessions, &mockSessionNotifier{})

	_, err := svc.OpenSession(context.Background(), "sub1", "inst1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestOpenSessionLostCreateRace(t *testing.T) {
	subjects := &mockSubjectStore{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &mockUserStore{user: instructorFixture(), enrolled: enrolledFixture()}
	sessions := &mockSessionStore{createErr: repository.ErrDuplicate}
	notifier := &mockSessionNotifier{}
	svc := newSessionService(subjects, users, sessions, notifier)

	_, err := svc.OpenSession(context.Background(), "sub1", "inst1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.recipients)
}

func TestOpenSessionNoStudents(t *testing.T) {
	subjects := &mockSubjectStore{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &mockUserStore{user: instructorFixture()}
	svc := newSessionService(subjects, users, &mockSessionStore{}, &mockSessionNotifier{})

	_, err := svc.OpenSession(context.Background(), "sub1", "inst1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
