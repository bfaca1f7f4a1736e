package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]string
	revoked    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{operations: map[string]string{}, revoked: map[string]int{}}
}

func (r *recordingMetrics) RecordOperation(_ context.Context, domain, operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[domain+"/"+operation] = status
}

func (r *recordingMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (r *recordingMetrics) RecordLeasesRevoked(_ context.Context, trigger string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[trigger] += count
}

func (r *recordingMetrics) RecordSealed(context.Context, bool) {}

func TestLeaseUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	inner, _ := newTestLeaseUseCase(t, okRevoker())
	m := newRecordingMetrics()
	uc := NewLeaseUseCaseWithMetrics(inner, m)

	tokenID := uuid.New()
	for range 3 {
		register(t, uc, &leaseDomain.RegisterLeaseInput{MountPath: "team/db/", SecretPath: "creds", TokenID: &tokenID})
	}
	single := register(t, uc, &leaseDomain.RegisterLeaseInput{MountPath: "kv/", SecretPath: "a"})
	register(t, uc, &leaseDomain.RegisterLeaseInput{MountPath: "kv/", SecretPath: "b"})

	require.NoError(t, uc.Revoke(ctx, single.ID))
	count, err := uc.RevokeByToken(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	count, err = uc.RevokeByMountPrefix(ctx, "kv/")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = uc.Revoke(ctx, "kv/missing")
	require.Error(t, err)

	assert.Equal(t, map[string]int{"lease": 1, "token": 3, "mount": 1}, m.revoked)
	assert.Equal(t, "success", m.operations["lease/lease_register"])
	assert.Equal(t, "error", m.operations["lease/lease_revoke"])
}
