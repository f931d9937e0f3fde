package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/models"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/export"
)

// ReportFormat selects the export rendering for monthly reports.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type reportSessionRepository interface {
	SubjectHeader(ctx context.Context, subjectID string) (*models.SubjectHeader, error)
	ListReportRows(ctx context.Context, subjectID string, from, to time.Time) ([]models.SessionReportRow, error)
}

// ReportService reconstructs per-student attendance histories from session
// snapshots. It reads only what the session manager and state machine wrote;
// live tokens and current enrollment play no part.
type ReportService struct {
	sessions reportSessionRepository
	logger   *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(sessions reportSessionRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{sessions: sessions, logger: logger}
}

// Monthly folds every session snapshot for the subject in the given month
// into per-student histories. Students absent from a session's snapshot
// (enrolled later) simply have no entry for that date.
func (s *ReportService) Monthly(ctx context.Context, subjectID string, month, year int) (*dto.MonthlyReport, error) {
	if subjectID == "" || month < 1 || month > 12 || year < 2000 || year > 2200 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId, month and year are required")
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	rows, err := s.sessions.ListReportRows(ctx, subjectID, from, to)
	if err != nil {
		return nil, storeErr(err, "failed to fetch attendance sessions")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no attendance sessions found for this subject in the selected month")
	}

	header, err := s.sessions.SubjectHeader(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, storeErr(err, "failed to fetch subject")
	}

	accumulators := make(map[string]*dto.StudentReport)
	var order []string
	sessionIDs := make(map[string]struct{})

	for _, row := range rows {
		sessionIDs[row.SessionID] = struct{}{}

		acc, ok := accumulators[row.StudentID]
		if !ok {
			acc = &dto.StudentReport{StudentID: row.StudentID, StudentName: row.StudentName}
			accumulators[row.StudentID] = acc
			order = append(order, row.StudentID)
		}

		entry := dto.DateEntry{
			Date:      formatReportDate(row.SessionDate),
			Status:    string(row.Status),
			SessionID: row.SessionID,
		}
		switch row.Status {
		case models.StatusPresent:
			acc.Present++
		case models.StatusLeave:
			acc.Leave++
		}
		acc.Dates = append(acc.Dates, entry)
	}

	report := make([]dto.StudentReport, 0, len(order))
	for _, id := range order {
		report = append(report, *accumulators[id])
	}

	return &dto.MonthlyReport{
		SubjectID:      subjectID,
		SubjectName:    header.SubjectName,
		InstructorName: header.InstructorName,
		Stage:          header.Stage,
		Department:     header.Department,
		Month:          month,
		Year:           year,
		TotalSessions:  len(sessionIDs),
		Report:         report,
	}, nil
}

// ExportMonthly renders the monthly report as a downloadable CSV or PDF.
func (s *ReportService) ExportMonthly(ctx context.Context, subjectID string, month, year int, format ReportFormat) ([]byte, string, string, error) {
	report, err := s.Monthly(ctx, subjectID, month, year)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student ID", "Student Name", "Present", "Leave", "Recorded Sessions"},
	}
	for _, student := range report.Report {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":        student.StudentID,
			"Student Name":      student.StudentName,
			"Present":           strconv.Itoa(student.Present),
			"Leave":             strconv.Itoa(student.Leave),
			"Recorded Sessions": strconv.Itoa(len(student.Dates)),
		})
	}

	base := fmt.Sprintf("attendance-%s-%d-%02d", subjectID, year, month)
	title := fmt.Sprintf("%s attendance %02d/%d", report.SubjectName, month, year)

	switch format {
	case ReportFormatCSV:
		data, err := export.CSV(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, base + ".csv", "text/csv", nil
	case ReportFormatPDF:
		data, err := export.PDF(dataset, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, base + ".pdf", "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// formatReportDate renders dates as d/m/yyyy to match the report contract.
func formatReportDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
