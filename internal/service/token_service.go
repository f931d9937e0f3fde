package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/pkg/config"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

// TokenService issues and verifies the two token classes: long-lived login
// tokens bound to a device fingerprint and short-lived attendance session
// tokens scoped to one attendance window.
type TokenService struct {
	secret     []byte
	issuer     string
	loginTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService from JWT configuration.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		loginTTL:   cfg.LoginTokenExpiry,
		sessionTTL: cfg.SessionTokenExpiry,
		now:        time.Now,
	}
}

// SessionTokenTTL exposes the configured session token lifetime.
func (s *TokenService) SessionTokenTTL() time.Duration {
	return s.sessionTTL
}

// IssueLoginToken signs a login token carrying identity, role and the device
// fingerprint observed at issuance.
func (s *TokenService) IssueLoginToken(user *models.User, fingerprint string) (string, error) {
	issuedAt := s.now().UTC()
	claims := &models.LoginClaims{
		UserID:      user.ID,
		Role:        user.Role,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.loginTTL)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign login token")
	}
	return signed, nil
}

// IssueSessionToken signs a session token authorizing check-in against one
// attendance session until the session window closes.
func (s *TokenService) IssueSessionToken(instructorID, sessionID string) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.sessionTTL)
	claims := &models.SessionClaims{
		InstructorID: instructorID,
		SessionID:    sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}
	return signed, expiresAt, nil
}

// VerifyLoginToken parses and validates a login token. Expiry and signature
// failures map to distinct messages under the same unauthorized status.
func (s *TokenService) VerifyLoginToken(tokenString string) (*models.LoginClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.LoginClaims{}, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.LoginClaims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// VerifySessionToken parses and validates a session token. The failure is
// deliberately coarse: callers cannot tell a bad signature from an expired
// window.
func (s *TokenService) VerifySessionToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired session")
	}
	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired session")
	}
	return claims, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}
