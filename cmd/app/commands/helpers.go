// Package commands contains CLI command implementations for the application.
package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/covert/internal/app"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleUseCase "github.com/allisson/covert/internal/lifecycle/usecase"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// UnsealFromReader loads the lifecycle state and submits key shares read from reader,
// one per line, until the process is unsealed. Blank lines are skipped.
func UnsealFromReader(ctx context.Context, lifecycle lifecycleUseCase.LifecycleUseCase, reader io.Reader) error {
	if err := lifecycle.Load(ctx); err != nil {
		return fmt.Errorf("failed to load lifecycle state: %w", err)
	}

	switch lifecycle.State() {
	case lifecycleDomain.StateUnsealed:
		return nil
	case lifecycleDomain.StateUninitialized:
		return fmt.Errorf("the service is not initialized")
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key == "" {
			continue
		}

		output, err := lifecycle.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: key})
		if err != nil {
			return fmt.Errorf("failed to submit key share: %w", err)
		}
		if !output.Sealed {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read key shares: %w", err)
	}

	return fmt.Errorf("not enough key shares to unseal")
}

// countResult is the outcome of a cleanup command.
type countResult struct {
	Action string `json:"-"`
	Noun   string `json:"-"`
	Count  int64  `json:"count"`
	Days   int    `json:"days"`
	DryRun bool   `json:"dry_run"`

	RevokedLeases int `json:"revoked_leases,omitempty"`
	Failed        int `json:"failed,omitempty"`
}

// writeCountResult writes a cleanup outcome as text or, with format "json", as JSON.
func writeCountResult(writer io.Writer, format string, result countResult) error {
	if format == "json" {
		return writeJSON(writer, result)
	}

	if result.DryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would %s %d %s(s) older than %d day(s)\n",
			result.Action, result.Count, result.Noun, result.Days)
		return nil
	}
	_, _ = fmt.Fprintf(writer, "Successfully %sd %d %s(s) older than %d day(s)\n",
		result.Action, result.Count, result.Noun, result.Days)
	if result.RevokedLeases > 0 {
		_, _ = fmt.Fprintf(writer, "Revoked %d lease(s) owned by them\n", result.RevokedLeases)
	}
	if result.Failed > 0 {
		_, _ = fmt.Fprintf(writer, "%d %s(s) kept because their leases could not be revoked\n",
			result.Failed, result.Noun)
	}
	return nil
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(writer io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
