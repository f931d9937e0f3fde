package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/middleware"
	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/service"
	"github.com/ams-platform/attendance-api/pkg/config"
)

type subjectRepoMock struct {
	subject *models.Subject
}

func (m *subjectRepoMock) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return m.subject, nil
}

type markUserRepoMock struct {
	user     *models.User
	enrolled []models.User
}

func (m *markUserRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, nil
}

func (m *markUserRepoMock) ListEnrolled(ctx context.Context, subjectID string) ([]models.User, error) {
	return m.enrolled, nil
}

type sessionRepoMock struct {
	session *models.AttendanceSession
	record  *models.AttendanceRecord
	moved   bool
}

func (m *sessionRepoMock) Create(ctx context.Context, session *models.AttendanceSession, studentIDs []string) error {
	session.ID = "ses1"
	m.session = session
	return nil
}

func (m *sessionRepoMock) ExistsForDate(ctx context.Context, subjectID string, date time.Time) (bool, error) {
	return false, nil
}

func (m *sessionRepoMock) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	return m.session, nil
}

func (m *sessionRepoMock) FindRecord(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	return m.record, nil
}

func (m *sessionRepoMock) Transition(ctx context.Context, sessionID, studentID string, to models.AttendanceStatus) (bool, error) {
	return m.moved, nil
}

type sessionNotifierMock struct{}

func (sessionNotifierMock) SessionOpened(to, name, subjectName string, window time.Duration) {}

func newAttendanceFixture(caller *models.User) (*AttendanceHandler, *service.TokenService, *sessionRepoMock) {
	tokens := service.NewTokenService(config.JWTConfig{
		Secret:             "secret",
		LoginTokenExpiry:   time.Hour,
		SessionTokenExpiry: 30 * time.Minute,
	})
	subjects := &subjectRepoMock{subject: &models.Subject{ID: "sub1", Name: "Physics"}}
	users := &markUserRepoMock{
		user:     caller,
		enrolled: []models.User{{ID: "s1", Name: "Alpha", Email: "alpha@example.com", Role: models.RoleStudent}},
	}
	sessions := &sessionRepoMock{
		record: &models.AttendanceRecord{ID: "r1", SessionID: "ses1", StudentID: "s1", Status: models.StatusAbsent},
		moved:  true,
	}
	sessionSvc := service.NewSessionService(subjects, users, sessions, tokens, sessionNotifierMock{}, zap.NewNop())
	attendanceSvc := service.NewAttendanceService(users, sessions, tokens, zap.NewNop())
	return NewAttendanceHandler(sessionSvc, attendanceSvc, service.NewMetricsService()), tokens, sessions
}

func TestGenerateSessionRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newAttendanceFixture(&models.User{ID: "inst1", Role: models.RoleInstructor})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/generate-session/sub1", nil)
	c.Request = req

	handler.GenerateSession(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateSessionReturnsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, tokens, _ := newAttendanceFixture(&models.User{ID: "inst1", Role: models.RoleInstructor})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/generate-session/sub1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "subjectId", Value: "sub1"}}
	c.Set(middleware.ContextUserKey, &models.LoginClaims{UserID: "inst1", Role: models.RoleInstructor})

	handler.GenerateSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.OpenSessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "ses1", envelope.Data.SessionID)
	assert.Equal(t, 1, envelope.Data.Students)

	claims, err := tokens.VerifySessionToken(envelope.Data.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "ses1", claims.SessionID)
}

func TestMarkPresentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, tokens, _ := newAttendanceFixture(&models.User{ID: "s1", Role: models.RoleStudent})

	token, _, err := tokens.IssueSessionToken("inst1", "ses1")
	require.NoError(t, err)

	body, _ := json.Marshal(dto.MarkPresentRequest{Session: token})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/student", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.LoginClaims{UserID: "s1", Role: models.RoleStudent})

	handler.MarkPresent(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.StatusPresent))
}

func TestMarkLeaveHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, sessions := newAttendanceFixture(&models.User{ID: "s1", Role: models.RoleStudent})
	sessions.session = &models.AttendanceSession{ID: "ses1", SubjectID: "sub1"}

	body, _ := json.Marshal(dto.MarkLeaveRequest{SessionID: "ses1", StudentID: "s1"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/leave", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.LoginClaims{UserID: "inst1", Role: models.RoleInstructor})

	handler.MarkLeave(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.StatusLeave))
}
