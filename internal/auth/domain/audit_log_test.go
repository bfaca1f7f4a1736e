package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuditLog_HasValidSignature(t *testing.T) {
	tests := []struct {
		name     string
		log      AuditLog
		expected bool
	}{
		{
			name:     "Success_SignedWithFullSignature",
			log:      AuditLog{IsSigned: true, Signature: make([]byte, SignatureLength)},
			expected: true,
		},
		{
			name:     "Failure_NotSigned",
			log:      AuditLog{IsSigned: false, Signature: make([]byte, SignatureLength)},
			expected: false,
		},
		{
			name:     "Failure_ShortSignature",
			log:      AuditLog{IsSigned: true, Signature: make([]byte, 16)},
			expected: false,
		},
		{
			name:     "Failure_NilSignature",
			log:      AuditLog{IsSigned: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.log.HasValidSignature())
		})
	}
}

func TestToken_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Token{}).IsExpired(now))
	assert.True(t, (&Token{ExpiresAt: &past}).IsExpired(now))
	assert.True(t, (&Token{ExpiresAt: &now}).IsExpired(now))
	assert.False(t, (&Token{ExpiresAt: &future}).IsExpired(now))
}

func TestToken_Clone(t *testing.T) {
	future := time.Now().Add(time.Hour)
	token := &Token{Policies: []string{"reader"}, ExpiresAt: &future}

	cloned := token.Clone()
	cloned.Policies[0] = "writer"
	*cloned.ExpiresAt = time.Time{}

	assert.Equal(t, []string{"reader"}, token.Policies)
	assert.Equal(t, future, *token.ExpiresAt)
}
