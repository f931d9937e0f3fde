package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/pkg/config"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type mockAuthRepo struct {
	user           *models.User
	findByEmailErr error
	setErr         error
	clearErr       error
	incrementErr   error

	setCode      string
	setExpiresAt time.Time
	cleared      bool
	increments   int
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) SetOTPChallenge(ctx context.Context, id, code string, expiresAt time.Time) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setCode = code
	m.setExpiresAt = expiresAt
	return nil
}

func (m *mockAuthRepo) ClearOTPChallenge(ctx context.Context, id string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = true
	return nil
}

func (m *mockAuthRepo) IncrementOTPAttempts(ctx context.Context, id string) (int, error) {
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	m.increments++
	return m.user.OTPAttempts + m.increments, nil
}

type mockAuthNotifier struct {
	to   string
	code string
	sent int
}

func (m *mockAuthNotifier) OTPCode(to, name, code string, ttl time.Duration) {
	m.to = to
	m.code = code
	m.sent++
}

func newAuthService(repo *mockAuthRepo, notifier *mockAuthNotifier) *AuthService {
	tokens := NewTokenService(config.JWTConfig{
		Secret:             "secret",
		LoginTokenExpiry:   time.Hour,
		SessionTokenExpiry: time.Minute,
	})
	return NewAuthService(repo, tokens, notifier, validator.New(), zap.NewNop(), config.OTPConfig{
		TTL:         2 * time.Minute,
		MaxAttempts: 5,
	})
}

func pendingUser(code string, expiresAt time.Time, attempts int) *models.User {
	return &models.User{
		ID:           "u1",
		Name:         "Student",
		Email:        "student@example.com",
		Role:         models.RoleStudent,
		OTPCode:      &code,
		OTPExpiresAt: &expiresAt,
		OTPAttempts:  attempts,
	}
}

func TestRequestLoginIssuesChallenge(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Name: "Student", Email: "student@example.com", Role: models.RoleStudent}}
	notifier := &mockAuthNotifier{}
	svc := newAuthService(repo, notifier)

	err := svc.RequestLogin(context.Background(), models.RequestLoginRequest{Email: "student@example.com"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{3}$`), repo.setCode)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), repo.setExpiresAt, 5*time.Second)
	assert.Equal(t, 1, notifier.sent)
	assert.Equal(t, "student@example.com", notifier.to)
	assert.Equal(t, repo.setCode, notifier.code)
}

func TestRequestLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := newAuthService(repo, &mockAuthNotifier{})

	err := svc.RequestLogin(context.Background(), models.RequestLoginRequest{Email: "nobody@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRequestLoginInvalidEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, &mockAuthNotifier{})

	err := svc.RequestLogin(context.Background(), models.RequestLoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerifyOTPSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: pendingUser("4321", time.Now().UTC().Add(time.Minute), 0)}
	svc := newAuthService(repo, &mockAuthNotifier{})

	res, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "4321"}, "device-a")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, models.RoleStudent, res.Role)
	assert.True(t, repo.cleared)

	claims, err := svc.tokens.VerifyLoginToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "device-a", claims.Fingerprint)
}

func TestVerifyOTPWrongCodeChargesAttempt(t *testing.T) {
	repo := &mockAuthRepo{user: pendingUser("4321", time.Now().UTC().Add(time.Minute), 0)}
	svc := newAuthService(repo, &mockAuthNotifier{})

	_, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "9999"}, "fp")
	require.Error(t, err)
	assert.Equal(t, "invalid or expired code", appErrors.FromError(err).Message)
	assert.Equal(t, 1, repo.increments)
	assert.False(t, repo.cleared)
}

func TestVerifyOTPExpiredSharesWrongCodeMessage(t *testing.T) {
	repo := &mockAuthRepo{user: pendingUser("4321", time.Now().UTC().Add(-time.Second), 0)}
	svc := newAuthService(repo, &mockAuthNotifier{})

	_, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "4321"}, "fp")
	require.Error(t, err)
	assert.Equal(t, "invalid or expired code", appErrors.FromError(err).Message)
	assert.True(t, repo.cleared)
	assert.Zero(t, repo.increments)
}

func TestVerifyOTPAttemptsExhausted(t *testing.T) {
	repo := &mockAuthRepo{user: pendingUser("4321", time.Now().UTC().Add(time.Minute), 5)}
	svc := newAuthService(repo, &mockAuthNotifier{})

	_, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "4321"}, "fp")
	require.Error(t, err)
	assert.Equal(t, "OTP_TOO_MANY_ATTEMPTS", appErrors.FromError(err).Code)
	assert.True(t, repo.cleared)
}

func TestVerifyOTPNoPendingChallenge(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Email: "student@example.com", Role: models.RoleStudent}}
	svc := newAuthService(repo, &mockAuthNotifier{})

	_, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "4321"}, "fp")
	require.Error(t, err)
	assert.Equal(t, "OTP_NOT_REQUESTED", appErrors.FromError(err).Code)
}

func TestVerifyOTPRejectsMalformedCode(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, &mockAuthNotifier{})

	_, err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "student@example.com", Code: "12a4"}, "fp")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateOTPRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, code, 4)
		assert.GreaterOrEqual(t, code, "1000")
		assert.LessOrEqual(t, code, "9999")
	}
}
