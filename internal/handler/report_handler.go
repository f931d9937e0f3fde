package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ams-platform/attendance-api/internal/service"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/response"
)

// ReportHandler wires the monthly report endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Monthly returns the per-student attendance rollup for a subject and month.
func (h *ReportHandler) Monthly(c *gin.Context) {
	subjectID, month, year, err := reportParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.service.Monthly(c.Request.Context(), subjectID, month, year)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// Export renders the monthly rollup as a CSV or PDF download.
func (h *ReportHandler) Export(c *gin.Context) {
	subjectID, month, year, err := reportParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ReportFormat(c.DefaultQuery("format", string(service.ReportFormatCSV)))
	data, filename, contentType, err := h.service.ExportMonthly(c.Request.Context(), subjectID, month, year, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func reportParams(c *gin.Context) (string, int, int, error) {
	subjectID := c.Query("subjectId")
	monthRaw := c.Query("month")
	yearRaw := c.Query("year")
	if subjectID == "" || monthRaw == "" || yearRaw == "" {
		return "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "subjectId, month and year are required")
	}

	month, err := strconv.Atoi(monthRaw)
	if err != nil {
		return "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "month must be a number")
	}
	year, err := strconv.Atoi(yearRaw)
	if err != nil {
		return "", 0, 0, appErrors.Clone(appErrors.ErrValidation, "year must be a number")
	}

	return subjectID, month, year, nil
}
