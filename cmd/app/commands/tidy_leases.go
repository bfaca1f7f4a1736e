package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	leaseUseCase "github.com/allisson/covert/internal/lease/usecase"
)

// RunTidyLeases revokes every lease past its expiry in batches of batchSize. Leases whose
// revocation fails stay in place and make the command fail.
func RunTidyLeases(
	ctx context.Context,
	leases leaseUseCase.LeaseUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	format string,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be a positive number, got: %d", batchSize)
	}

	logger.Info("tidying expired leases", slog.Int("batch_size", batchSize))

	revoked, revokeErr := leases.RevokeExpired(ctx, batchSize)

	remaining, err := leases.ListExpired(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired leases: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]int{"revoked": revoked, "remaining": len(remaining)}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Revoked %d expired lease(s)\n", revoked)
		if len(remaining) > 0 {
			_, _ = fmt.Fprintf(writer, "%d expired lease(s) could not be revoked\n", len(remaining))
		}
	}

	logger.Info("tidy completed", slog.Int("revoked", revoked), slog.Int("remaining", len(remaining)))

	if revokeErr != nil {
		return fmt.Errorf("failed to revoke expired leases: %w", revokeErr)
	}
	return nil
}
