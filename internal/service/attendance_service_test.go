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
	"github.com/ams-platform/attendance-api/pkg/config"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type mockMarkUserStore struct {
	user *models.User
	err  error
}

func (m *mockMarkUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockMarkSessionStore struct {
	session    *models.AttendanceSession
	sessionErr error

	record     *models.AttendanceRecord
	reread     *models.AttendanceRecord
	recordErr  error
	recordGets int

	moved         bool
	transitionErr error
	transitions   int
	lastStatus    models.AttendanceStatus
}

func (m *mockMarkSessionStore) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockMarkSessionStore) FindRecord(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	m.recordGets++
	if m.recordGets > 1 && m.reread != nil {
		return m.reread, nil
	}
	return m.record, nil
}

func (m *mockMarkSessionStore) Transition(ctx context.Context, sessionID, studentID string, to models.AttendanceStatus) (bool, error) {
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	m.transitions++
	m.lastStatus = to
	return m.moved, nil
}

func newAttendanceService(users *mockMarkUserStore, sessions *mockMarkSessionStore) (*AttendanceService, *TokenService) {
	tokens := NewTokenService(config.JWTConfig{
		Secret:             "secret",
		LoginTokenExpiry:   time.Hour,
		SessionTokenExpiry: 30 * time.Minute,
	})
	return NewAttendanceService(users, sessions, tokens, zap.NewNop()), tokens
}

func studentFixture() *models.User {
	return &models.User{ID: "s1", Name: "Alpha", Role: models.RoleStudent}
}

func absentRecord() *models.AttendanceRecord {
	return &models.AttendanceRecord{ID: "r1", SessionID: "ses1", StudentID: "s1", Status: models.StatusAbsent}
}

func TestMarkPresentSuccess(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{record: absentRecord(), moved: true}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	res, err := svc.MarkPresent(context.Background(), token, "s1")
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusPresent), res.Status)
	assert.False(t, res.AlreadyMarked)
	assert.Equal(t, models.StatusPresent, sessions.lastStatus)
}

func TestMarkPresentInvalidToken(t *testing.T) {
	svc, _ := newAttendanceService(&mockMarkUserStore{}, &mockMarkSessionStore{})

	_, err := svc.MarkPresent(context.Background(), "garbage", "s1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Equal(t, "invalid or expired session", appErr.Message)
}

func TestMarkPresentExpiredTokenIsCoarse(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{record: absentRecord(), moved: true}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err = svc.MarkPresent(context.Background(), token, "s1")
	require.Error(t, err)
	assert.Equal(t, "invalid or expired session", appErrors.FromError(err).Message)
	assert.Zero(t, sessions.transitions)
}

func TestMarkPresentAlreadyMarked(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{
		record: &models.AttendanceRecord{ID: "r1", SessionID: "ses1", StudentID: "s1", Status: models.StatusPresent},
	}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	res, err := svc.MarkPresent(context.Background(), token, "s1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyMarked)
	assert.Equal(t, string(models.StatusPresent), res.Status)
	assert.Zero(t, sessions.transitions)
}

func TestMarkPresentNotInSnapshot(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{recordErr: sql.ErrNoRows}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), token, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkPresentRejectsNonStudent(t *testing.T) {
	users := &mockMarkUserStore{user: &models.User{ID: "inst1", Role: models.RoleInstructor}}
	sessions := &mockMarkSessionStore{record: absentRecord()}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), token, "inst1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMarkPresentLostRaceReportsPersistedStatus(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{
		record: absentRecord(),
		reread: &models.AttendanceRecord{ID: "r1", SessionID: "ses1", StudentID: "s1", Status: models.StatusLeave},
		moved:  false,
	}
	svc, tokens := newAttendanceService(users, sessions)

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	res, err := svc.MarkPresent(context.Background(), token, "s1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyMarked)
	assert.Equal(t, string(models.StatusLeave), res.Status)
}

func TestMarkLeaveSuccess(t *testing.T) {
	users := &mockMarkUserStore{user: studentFixture()}
	sessions := &mockMarkSessionStore{
		session: &models.AttendanceSession{ID: "ses1", SubjectID: "sub1"},
		record:  absentRecord(),
		moved:   true,
	}
	svc, _ := newAttendanceService(users, sessions)

	res, err := svc.MarkLeave(context.Background(), "ses1", "s1")
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusLeave), res.Status)
	assert.False(t, res.AlreadyMarked)
}

func TestMarkLeaveSessionNotFound(t *testing.T) {
	svc, _ := newAttendanceService(&mockMarkUserStore{}, &mockMarkSessionStore{sessionErr: sql.ErrNoRows})

	_, err := svc.MarkLeave(context.Background(), "missing", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
