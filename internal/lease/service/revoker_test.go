package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

func TestLoggingRevoker_Revoke(t *testing.T) {
	var buf bytes.Buffer
	revoker := NewLoggingRevoker(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := revoker.Revoke(context.Background(), &leaseDomain.Lease{ID: "kv/abc", MountPath: "kv/"})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"lease_id":"kv/abc"`)
}

func TestRevokerFunc(t *testing.T) {
	expected := errors.New("engine unavailable")
	revoker := RevokerFunc(func(ctx context.Context, lease *leaseDomain.Lease) error {
		return expected
	})

	assert.ErrorIs(t, revoker.Revoke(context.Background(), &leaseDomain.Lease{}), expected)
}
