package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ams-platform/attendance-api/internal/middleware"
	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/service"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/response"
)

// AuthHandler wires the OTP login endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
	metrics *service.MetricsService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, metrics *service.MetricsService) *AuthHandler {
	return &AuthHandler{service: svc, metrics: metrics}
}

// Login requests an OTP challenge for the given email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.RequestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	if err := h.service.RequestLogin(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.OTPIssued()
	response.JSON(c, http.StatusOK, gin.H{
		"message": "a verification code has been sent to your email",
	}, nil)
}

// VerifyOTP exchanges a correct code for a login token bound to the caller's
// device fingerprint.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	fingerprint := c.GetHeader(middleware.FingerprintHeader)
	res, err := h.service.VerifyOTP(c.Request.Context(), req, fingerprint)
	if err != nil {
		h.metrics.OTPVerified("failure")
		response.Error(c, err)
		return
	}

	h.metrics.OTPVerified("success")
	response.JSON(c, http.StatusOK, res, nil)
}
