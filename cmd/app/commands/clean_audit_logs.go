package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	authUseCase "github.com/allisson/covert/internal/auth/usecase"
)

// RunCleanAuditLogs deletes audit logs older than the specified number of days.
// Supports dry-run mode to preview deletion count and both text/JSON output formats.
func RunCleanAuditLogs(
	ctx context.Context,
	auditLogUseCase authUseCase.AuditLogUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	logger.Info("cleaning audit logs",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	count, err := auditLogUseCase.DeleteOlderThan(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}

	if err := writeCountResult(writer, format, countResult{
		Action: "delete",
		Noun:   "audit log",
		Count:  count,
		Days:   days,
		DryRun: dryRun,
	}); err != nil {
		return err
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}
