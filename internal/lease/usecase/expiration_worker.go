package usecase

import (
	"context"
	"log/slog"
	"time"
)

// WorkerConfig holds expiration worker configuration.
type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// ExpirationWorker periodically revokes leases past expiry through LeaseUseCase.Revoke.
// Leases whose revocation fails stay in place and are attempted again on the next tick.
type ExpirationWorker struct {
	config       WorkerConfig
	leaseUseCase LeaseUseCase
	active       func() bool
	logger       *slog.Logger
}

// NewExpirationWorker creates an ExpirationWorker. Ticks are skipped while active
// reports false; a nil active runs every tick.
func NewExpirationWorker(
	config WorkerConfig,
	leaseUseCase LeaseUseCase,
	active func() bool,
	logger *slog.Logger,
) *ExpirationWorker {
	if active == nil {
		active = func() bool { return true }
	}
	return &ExpirationWorker{
		config:       config,
		leaseUseCase: leaseUseCase,
		active:       active,
		logger:       logger,
	}
}

// Start runs the expiration loop until ctx is done.
func (w *ExpirationWorker) Start(ctx context.Context) error {
	w.logger.Info("starting lease expiration worker",
		slog.Duration("interval", w.config.Interval),
		slog.Int("batch_size", w.config.BatchSize),
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping lease expiration worker")
			return ctx.Err()
		case <-ticker.C:
			if !w.active() {
				continue
			}
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("failed to revoke expired leases", slog.Any("error", err))
			}
		}
	}
}

// RunOnce makes one pass over the leases expired so far. A lease whose revocation fails does
// not stop the pass; the failures are returned after every expired lease was attempted.
func (w *ExpirationWorker) RunOnce(ctx context.Context) (int, error) {
	revoked, err := w.leaseUseCase.RevokeExpired(ctx, max(w.config.BatchSize, 1))
	if revoked > 0 {
		w.logger.Info("revoked expired leases", slog.Int("count", revoked))
	}
	return revoked, err
}
