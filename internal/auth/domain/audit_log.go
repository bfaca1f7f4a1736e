package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an authenticated dispatch through the control-plane router.
// Signature is an HMAC-SHA256 over the canonical form of the record, keyed from
// the root key that was held in memory when the request was served.
type AuditLog struct {
	ID         uuid.UUID
	RequestID  string
	TokenID    uuid.UUID
	EntityID   *uuid.UUID
	Operation  string
	Capability string
	Path       string
	Allowed    bool
	Metadata   map[string]any
	Signature  []byte
	IsSigned   bool
	CreatedAt  time.Time
}

// HasValidSignature reports whether the record carries a signature of the expected size.
// It does not verify the signature.
func (a *AuditLog) HasValidSignature() bool {
	return a.IsSigned && len(a.Signature) == SignatureLength
}

// VerificationReport summarizes an integrity check over a range of audit logs.
type VerificationReport struct {
	TotalChecked  int64
	SignedCount   int64
	UnsignedCount int64
	ValidCount    int64
	InvalidCount  int64
	InvalidLogs   []uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
}
