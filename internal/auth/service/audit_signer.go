package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	authDomain "github.com/allisson/covert/internal/auth/domain"
)

const signingKeyInfo = "covert-audit-log-signing-v1"

type auditSigner struct{}

// NewAuditSigner creates an audit log signer using HKDF-SHA256 for key derivation
// and HMAC-SHA256 for signatures.
func NewAuditSigner() AuditSigner {
	return &auditSigner{}
}

// deriveSigningKey derives a 32-byte signing key so the root key itself never keys the MAC.
func (a *auditSigner) deriveSigningKey(rootKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, rootKey, nil, []byte(signingKeyInfo))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}

	return signingKey, nil
}

// canonicalizeLog encodes the signed fields in a fixed order.
// Variable-length fields are length-prefixed so distinct records never collide.
func (a *auditSigner) canonicalizeLog(log *authDomain.AuditLog) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = append(buf, log.ID[:]...)
	buf = append(buf, log.TokenID[:]...)
	if log.EntityID != nil {
		buf = append(buf, 1)
		buf = append(buf, log.EntityID[:]...)
	} else {
		buf = append(buf, 0)
	}

	buf = appendLengthPrefixed(buf, []byte(log.RequestID))
	buf = appendLengthPrefixed(buf, []byte(log.Operation))
	buf = appendLengthPrefixed(buf, []byte(log.Capability))
	buf = appendLengthPrefixed(buf, []byte(log.Path))

	if log.Allowed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	if log.Metadata != nil {
		metadataBytes, err := json.Marshal(log.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadataBytes)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(log.CreatedAt.UnixNano()))

	return buf, nil
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// Sign generates the HMAC-SHA256 signature for the audit log.
func (a *auditSigner) Sign(rootKey []byte, log *authDomain.AuditLog) ([]byte, error) {
	signingKey, err := a.deriveSigningKey(rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer clear(signingKey)

	canonical, err := a.canonicalizeLog(log)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize log: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Verify checks the stored signature in constant time.
func (a *auditSigner) Verify(rootKey []byte, log *authDomain.AuditLog) error {
	expectedSig, err := a.Sign(rootKey, log)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(log.Signature, expectedSig) {
		return authDomain.ErrSignatureInvalid
	}

	return nil
}
