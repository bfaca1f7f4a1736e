package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Token is a bearer credential. Only the SHA-256 hash of the plain token is stored.
type Token struct {
	ID        uuid.UUID
	TokenHash string
	EntityID  *uuid.UUID
	Policies  []string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token has an expiry at or before now.
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	cloned := *t
	cloned.Policies = slices.Clone(t.Policies)
	if t.EntityID != nil {
		entityID := *t.EntityID
		cloned.EntityID = &entityID
	}
	if t.ExpiresAt != nil {
		expiresAt := *t.ExpiresAt
		cloned.ExpiresAt = &expiresAt
	}
	return &cloned
}

// IssueTokenInput describes a token to issue. A zero TTL issues a token without expiry.
type IssueTokenInput struct {
	EntityID *uuid.UUID
	Policies []string
	TTL      time.Duration
}

// IssueTokenOutput carries the plain token. It is returned once and never stored.
type IssueTokenOutput struct {
	Token      *Token
	PlainToken string
}
