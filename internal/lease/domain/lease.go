// Package domain defines leases: time-bound grants over dynamically issued secrets.
package domain

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
)

// Lease tracks one dynamically issued secret. ID starts with MountPath, so a prefix of the
// ID space is also a prefix of the mount space.
type Lease struct {
	ID              string
	MountPath       string
	TokenID         *uuid.UUID
	EntityID        *uuid.UUID
	TTL             time.Duration
	MaxTTL          time.Duration
	Renewable       bool
	Metadata        map[string]string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	LastRenewedAt   *time.Time
	RevokeAttempts  int
	LastRevokeError string
}

// IsExpired reports whether the lease expired at or before now.
func (l *Lease) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// MaxExpiresAt is the latest expiry renewals may reach. Zero when MaxTTL is unbounded.
func (l *Lease) MaxExpiresAt() time.Time {
	if l.MaxTTL <= 0 {
		return time.Time{}
	}
	return l.IssuedAt.Add(l.MaxTTL)
}

// Renew extends the expiry by increment from now, bounded by MaxExpiresAt.
func (l *Lease) Renew(now time.Time, increment time.Duration) {
	if increment <= 0 {
		increment = l.TTL
	}
	expiresAt := now.Add(increment)
	if limit := l.MaxExpiresAt(); !limit.IsZero() && expiresAt.After(limit) {
		expiresAt = limit
	}
	l.ExpiresAt = expiresAt
	l.LastRenewedAt = &now
}

// Clone returns a deep copy of the lease.
func (l *Lease) Clone() *Lease {
	cloned := *l
	cloned.Metadata = maps.Clone(l.Metadata)
	if l.TokenID != nil {
		tokenID := *l.TokenID
		cloned.TokenID = &tokenID
	}
	if l.EntityID != nil {
		entityID := *l.EntityID
		cloned.EntityID = &entityID
	}
	if l.LastRenewedAt != nil {
		renewed := *l.LastRenewedAt
		cloned.LastRenewedAt = &renewed
	}
	return &cloned
}

// ExpiryCursor marks a position in the (ExpiresAt, ID) ordering of expired leases.
type ExpiryCursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned right after the lease.
func (l *Lease) CursorAfter() *ExpiryCursor {
	return &ExpiryCursor{ExpiresAt: l.ExpiresAt, ID: l.ID}
}

// IsAfter reports whether the lease sorts after the cursor. Every lease is after a nil cursor.
func (l *Lease) IsAfter(cursor *ExpiryCursor) bool {
	if cursor == nil {
		return true
	}
	if !l.ExpiresAt.Equal(cursor.ExpiresAt) {
		return l.ExpiresAt.After(cursor.ExpiresAt)
	}
	return l.ID > cursor.ID
}

// RegisterLeaseInput is what a secret engine reports when it issues a time-bound secret.
type RegisterLeaseInput struct {
	MountPath  string
	SecretPath string
	TokenID    *uuid.UUID
	EntityID   *uuid.UUID
	TTL        time.Duration
	MaxTTL     time.Duration
	Renewable  bool
	Metadata   map[string]string
}

// Validate checks the input. MountPath must already be normalized.
func (r *RegisterLeaseInput) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MountPath, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.SecretPath, validation.Length(0, 512)),
		validation.Field(&r.TTL, validation.Min(time.Duration(0))),
		validation.Field(&r.MaxTTL, validation.Min(time.Duration(0))),
	)
}

// NewLeaseID builds a lease id of the form <mount path><secret path>/<uuid>.
func NewLeaseID(mountPath, secretPath string) string {
	secretPath = strings.Trim(secretPath, "/")
	if secretPath != "" {
		secretPath += "/"
	}
	return mountPath + secretPath + uuid.Must(uuid.NewV7()).String()
}
