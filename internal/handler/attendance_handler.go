package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/middleware"
	"github.com/ams-platform/attendance-api/internal/service"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/response"
)

// AttendanceHandler wires session opening and status marking endpoints.
type AttendanceHandler struct {
	sessions   *service.SessionService
	attendance *service.AttendanceService
	metrics    *service.MetricsService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(sessions *service.SessionService, attendance *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{sessions: sessions, attendance: attendance, metrics: metrics}
}

// GenerateSession opens today's attendance window for a subject and returns
// the session token. Instructor tier; the caller identity comes from the
// login token, not the body.
func (h *AttendanceHandler) GenerateSession(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	subjectID := c.Param("subjectId")
	if subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subjectId is required"))
		return
	}

	res, err := h.sessions.OpenSession(c.Request.Context(), subjectID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.SessionOpened()
	response.JSON(c, http.StatusOK, res, nil)
}

// MarkPresent checks the calling student in against the session encoded in
// the submitted session token.
func (h *AttendanceHandler) MarkPresent(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.MarkPresentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "session token is required"))
		return
	}

	res, err := h.attendance.MarkPresent(c.Request.Context(), req.Session, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !res.AlreadyMarked {
		h.metrics.MarkRecorded(res.Status)
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// MarkLeave is the administrative override: an instructor grants leave by
// addressing the session directly.
func (h *AttendanceHandler) MarkLeave(c *gin.Context) {
	var req dto.MarkLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "session_id and student_id are required"))
		return
	}

	res, err := h.attendance.MarkLeave(c.Request.Context(), req.SessionID, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !res.AlreadyMarked {
		h.metrics.MarkRecorded(res.Status)
	}
	response.JSON(c, http.StatusOK, res, nil)
}
