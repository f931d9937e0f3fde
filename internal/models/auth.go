package models

import "github.com/golang-jwt/jwt/v5"

// RequestLoginRequest asks for an OTP challenge to be sent by email.
type RequestLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest submits the emailed code to complete login.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=4,numeric"`
}

// VerifyOTPResponse returns the issued login token.
type VerifyOTPResponse struct {
	Token  string   `json:"token"`
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// LoginClaims is the JWT payload for long-lived login tokens. Fingerprint is
// the client identifying string observed at issuance; every protected call
// must re-present the same value.
type LoginClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	Fingerprint string   `json:"fingerprint"`
	jwt.RegisteredClaims
}

// SessionClaims is the JWT payload for short-lived attendance session tokens.
// Possession of a valid token is the sole credential for student check-in.
type SessionClaims struct {
	InstructorID string `json:"instructor_id"`
	SessionID    string `json:"session_id"`
	jwt.RegisteredClaims
}
