package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authUseCase "github.com/allisson/covert/internal/auth/usecase"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

// verifyResult is the JSON shape of a verification run.
type verifyResult struct {
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	TotalChecked  int64       `json:"total_checked"`
	SignedCount   int64       `json:"signed_count"`
	UnsignedCount int64       `json:"unsigned_count"`
	ValidCount    int64       `json:"valid_count"`
	InvalidCount  int64       `json:"invalid_count"`
	InvalidLogs   []uuid.UUID `json:"invalid_logs"`
	Passed        bool        `json:"passed"`
}

// RunVerifyAuditLogs checks the signatures of the audit logs written in [startDate, endDate).
// An empty endDate means now. The signing key is derived from the root key, so the
// lifecycle behind auditLogUseCase must be unsealed. Any invalid signature fails the run.
func RunVerifyAuditLogs(
	ctx context.Context,
	auditLogUseCase authUseCase.AuditLogUseCase,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	start, err := parseDate(startDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end := time.Now().UTC()
	if endDate != "" {
		if end, err = parseDate(endDate); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	logger.Info("verifying audit logs", slog.Time("start_date", start), slog.Time("end_date", end))

	report, err := auditLogUseCase.VerifyBatch(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	result := verifyResult{
		StartDate:     start,
		EndDate:       end,
		TotalChecked:  report.TotalChecked,
		SignedCount:   report.SignedCount,
		UnsignedCount: report.UnsignedCount,
		ValidCount:    report.ValidCount,
		InvalidCount:  report.InvalidCount,
		InvalidLogs:   report.InvalidLogs,
		Passed:        report.InvalidCount == 0,
	}

	if format == "json" {
		if err := writeJSON(writer, result); err != nil {
			return err
		}
	} else {
		writeVerifyText(writer, result)
	}

	logger.Info("verification completed",
		slog.Int64("total_checked", result.TotalChecked),
		slog.Int64("valid", result.ValidCount),
		slog.Int64("invalid", result.InvalidCount),
		slog.Int64("unsigned", result.UnsignedCount),
	)

	if !result.Passed {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", result.InvalidCount)
	}
	return nil
}

// parseDate accepts "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" (start of day), both in UTC.
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{dateTimeLayout, dateLayout} {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid date format (expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS): %s",
		dateStr,
	)
}

func writeVerifyText(writer io.Writer, result verifyResult) {
	_, _ = fmt.Fprintf(writer, "Audit Log Integrity Verification\n\n")
	_, _ = fmt.Fprintf(writer, "Time Range: %s to %s\n\n",
		result.StartDate.Format(dateTimeLayout), result.EndDate.Format(dateTimeLayout))

	_, _ = fmt.Fprintf(writer, "Total Checked:  %d\n", result.TotalChecked)
	_, _ = fmt.Fprintf(writer, "Signed:         %d\n", result.SignedCount)
	_, _ = fmt.Fprintf(writer, "Unsigned:       %d\n", result.UnsignedCount)
	_, _ = fmt.Fprintf(writer, "Valid:          %d\n", result.ValidCount)
	_, _ = fmt.Fprintf(writer, "Invalid:        %d\n\n", result.InvalidCount)

	switch {
	case !result.Passed:
		_, _ = fmt.Fprintf(writer, "WARNING: %d log(s) failed integrity check!\n", result.InvalidCount)
		for _, id := range result.InvalidLogs {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case result.TotalChecked == 0:
		_, _ = fmt.Fprintf(writer, "Status: No logs found in specified time range\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
}
