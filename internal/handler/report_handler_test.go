package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/service"
)

type reportRepoMock struct {
	header *models.SubjectHeader
	rows   []models.SessionReportRow
}

func (m *reportRepoMock) SubjectHeader(ctx context.Context, subjectID string) (*models.SubjectHeader, error) {
	return m.header, nil
}

func (m *reportRepoMock) ListReportRows(ctx context.Context, subjectID string, from, to time.Time) ([]models.SessionReportRow, error) {
	return m.rows, nil
}

func newReportHandler() *ReportHandler {
	repo := &reportRepoMock{
		header: &models.SubjectHeader{SubjectName: "Physics", InstructorName: "Instructor"},
		rows: []models.SessionReportRow{
			{
				SessionID:   "ses1",
				SessionDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
				StudentID:   "s1",
				StudentName: "Alpha",
				Status:      models.StatusPresent,
			},
		},
	}
	return NewReportHandler(service.NewReportService(repo, zap.NewNop()))
}

func TestReportHandlerMonthly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/monthly?subjectId=sub1&month=3&year=2025", nil)
	c.Request = req

	handler.Monthly(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Physics")
	assert.Contains(t, w.Body.String(), "3/3/2025")
}

func TestReportHandlerMonthlyMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/monthly?subjectId=sub1", nil)
	c.Request = req

	handler.Monthly(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerMonthlyNonNumericMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/monthly?subjectId=sub1&month=march&year=2025", nil)
	c.Request = req

	handler.Monthly(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/monthly/export?subjectId=sub1&month=3&year=2025&format=csv", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance-sub1-2025-03.csv")
	assert.Contains(t, w.Body.String(), "Alpha")
}
