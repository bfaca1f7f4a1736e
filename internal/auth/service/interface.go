// Package service provides technical services for token handling and audit log integrity.
package service

import (
	authDomain "github.com/allisson/covert/internal/auth/domain"
)

// TokenService defines operations for bearer token generation and hashing.
type TokenService interface {
	// GenerateToken creates a new random token. Returns the plain token (shown to the
	// caller once) and its SHA-256 hash (stored).
	GenerateToken() (plainToken string, tokenHash string, err error)

	// HashToken hashes a plain token using SHA-256.
	HashToken(plainToken string) string
}

// AuditSigner signs and verifies audit logs with a key derived from the root key.
type AuditSigner interface {
	// Sign returns the HMAC-SHA256 signature of the canonical form of log.
	Sign(rootKey []byte, log *authDomain.AuditLog) ([]byte, error)

	// Verify returns ErrSignatureInvalid when the stored signature does not match.
	Verify(rootKey []byte, log *authDomain.AuditLog) error
}
