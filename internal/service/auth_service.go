package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/pkg/config"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

// OTP verification failures deliberately share one message so a caller cannot
// tell an expired code from a wrong one. The exhausted-attempts case is a
// distinct signal because the only recovery is requesting a fresh code.
var (
	errOTPInvalid     = appErrors.New("OTP_INVALID", appErrors.ErrValidation.Status, "invalid or expired code")
	errOTPExhausted   = appErrors.New("OTP_TOO_MANY_ATTEMPTS", appErrors.ErrValidation.Status, "too many incorrect attempts, request a new code")
	errNoPendingLogin = appErrors.New("OTP_NOT_REQUESTED", appErrors.ErrNotFound.Status, "no pending login request")
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOTPChallenge(ctx context.Context, id, code string, expiresAt time.Time) error
	ClearOTPChallenge(ctx context.Context, id string) error
	IncrementOTPAttempts(ctx context.Context, id string) (int, error)
}

type authNotifier interface {
	OTPCode(to, name, code string, ttl time.Duration)
}

// AuthService implements the OTP login flow: it issues short-lived numeric
// challenges by email and exchanges a correct guess for a login token bound
// to the caller's device fingerprint.
type AuthService struct {
	repo      authUserRepository
	tokens    *TokenService
	notifier  authNotifier
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.OTPConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, tokens *TokenService, notifier authNotifier, validate *validator.Validate, logger *zap.Logger, cfg config.OTPConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &AuthService{
		repo:      repo,
		tokens:    tokens,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestLogin installs a fresh OTP challenge on the identity and dispatches
// the code by email. Dispatch is best effort: the challenge stays valid even
// if the email bounces.
func (s *AuthService) RequestLogin(ctx context.Context, req models.RequestLoginRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return storeErr(err, "failed to fetch user")
	}

	code, err := generateOTP()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}

	expiresAt := s.now().UTC().Add(s.cfg.TTL)
	if err := s.repo.SetOTPChallenge(ctx, user.ID, code, expiresAt); err != nil {
		return storeErr(err, "failed to persist login challenge")
	}

	s.notifier.OTPCode(user.Email, user.Name, code, s.cfg.TTL)
	s.logger.Info("otp challenge issued", zap.String("user_id", user.ID))
	return nil
}

// VerifyOTP checks the submitted code against the pending challenge. Each
// wrong guess is charged durably against the attempt budget before the
// response goes out, so concurrent guesses all draw from the same pool. On
// success the challenge is consumed and a fingerprint-bound login token is
// returned.
func (s *AuthService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest, fingerprint string) (*models.VerifyOTPResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeErr(err, "failed to fetch user")
	}

	if !user.HasChallenge() {
		return nil, errNoPendingLogin
	}

	if s.now().UTC().After(*user.OTPExpiresAt) {
		if err := s.repo.ClearOTPChallenge(ctx, user.ID); err != nil {
			s.logger.Warn("failed to clear expired challenge", zap.Error(err))
		}
		return nil, errOTPInvalid
	}

	if user.OTPAttempts >= s.cfg.MaxAttempts {
		if err := s.repo.ClearOTPChallenge(ctx, user.ID); err != nil {
			s.logger.Warn("failed to clear exhausted challenge", zap.Error(err))
		}
		return nil, errOTPExhausted
	}

	if *user.OTPCode != req.Code {
		if _, err := s.repo.IncrementOTPAttempts(ctx, user.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, storeErr(err, "failed to record failed attempt")
		}
		return nil, errOTPInvalid
	}

	if err := s.repo.ClearOTPChallenge(ctx, user.ID); err != nil {
		return nil, storeErr(err, "failed to consume challenge")
	}

	token, err := s.tokens.IssueLoginToken(user, fingerprint)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login verified", zap.String("user_id", user.ID))
	return &models.VerifyOTPResponse{Token: token, UserID: user.ID, Role: user.Role}, nil
}

// generateOTP returns a uniformly random 4-digit numeric code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
