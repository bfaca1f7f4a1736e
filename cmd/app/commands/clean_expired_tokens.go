package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	authUseCase "github.com/allisson/covert/internal/auth/usecase"
	apperrors "github.com/allisson/covert/internal/errors"
	leaseUseCase "github.com/allisson/covert/internal/lease/usecase"
)

// RunCleanExpiredTokens deletes tokens that expired more than the specified number of days ago.
// Each token's leases are revoked first; a token whose sweep fails is kept for the next run.
func RunCleanExpiredTokens(
	ctx context.Context,
	tokenUseCase authUseCase.TokenUseCase,
	leases leaseUseCase.LeaseUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	logger.Info("cleaning expired tokens",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	tokens, err := tokenUseCase.ListExpired(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to list expired tokens: %w", err)
	}

	result := countResult{
		Action: "delete",
		Noun:   "expired token",
		Days:   days,
		DryRun: dryRun,
	}
	if dryRun {
		result.Count = int64(len(tokens))
	} else {
		for _, token := range tokens {
			revoked, err := leases.RevokeByToken(ctx, token.ID)
			result.RevokedLeases += revoked
			if err != nil {
				result.Failed++
				logger.Error("lease sweep for expired token failed",
					slog.String("token_id", token.ID.String()),
					slog.Int("revoked", revoked),
					slog.Any("error", err),
				)
				continue
			}

			if err := tokenUseCase.Delete(ctx, token.ID); err != nil &&
				!apperrors.Is(err, authDomain.ErrTokenNotFound) {
				return fmt.Errorf("failed to delete expired token %s: %w", token.ID, err)
			}
			result.Count++
		}
	}

	if err := writeCountResult(writer, format, result); err != nil {
		return err
	}

	logger.Info("cleanup completed",
		slog.Int64("count", result.Count),
		slog.Int("revoked_leases", result.RevokedLeases),
		slog.Int("failed", result.Failed),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	if result.Failed > 0 {
		return fmt.Errorf("failed to revoke the leases of %d expired token(s)", result.Failed)
	}
	return nil
}
