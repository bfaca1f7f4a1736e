// Package service holds the collaborators the lease manager calls into.
package service

import (
	"context"
	"log/slog"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

// Revoker releases the resource backing a lease. It is implemented by the secret engine
// that issued the lease and must treat an already released resource as success.
type Revoker interface {
	Revoke(ctx context.Context, lease *leaseDomain.Lease) error
}

// RevokerFunc adapts a function to the Revoker interface.
type RevokerFunc func(ctx context.Context, lease *leaseDomain.Lease) error

// Revoke calls f.
func (f RevokerFunc) Revoke(ctx context.Context, lease *leaseDomain.Lease) error {
	return f(ctx, lease)
}

// LoggingRevoker is used when no engine is mounted to release resources. It records the
// revocation and always succeeds.
type LoggingRevoker struct {
	logger *slog.Logger
}

// NewLoggingRevoker creates a LoggingRevoker.
func NewLoggingRevoker(logger *slog.Logger) *LoggingRevoker {
	return &LoggingRevoker{logger: logger}
}

// Revoke logs the lease and returns nil.
func (r *LoggingRevoker) Revoke(ctx context.Context, lease *leaseDomain.Lease) error {
	r.logger.InfoContext(ctx, "lease revoked",
		slog.String("lease_id", lease.ID),
		slog.String("mount_path", lease.MountPath),
	)
	return nil
}
