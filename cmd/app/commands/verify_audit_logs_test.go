package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	authRepository "github.com/allisson/covert/internal/auth/repository"
)

func TestRunVerifyAuditLogs(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	startDate := now.Format("2006-01-02")
	endDate := now.AddDate(0, 0, 1).Format("2006-01-02")
	key := fixedKey(bytes.Repeat([]byte{7}, 32))

	setup := func(t *testing.T) *authRepository.MemoryAuditLogRepository {
		repo := authRepository.NewMemoryAuditLogRepository()
		useCase := newAuditLogUseCase(repo, key)
		for range 4 {
			require.NoError(t, useCase.Create(ctx, &authDomain.AuditLog{Path: "sys/policies", Allowed: true}))
		}
		// Written while sealed.
		require.NoError(t, newAuditLogUseCase(repo, nil).Create(ctx, &authDomain.AuditLog{Path: "sys/policies"}))
		return repo
	}

	t.Run("success-text", func(t *testing.T) {
		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), key), discardLogger, &out, startDate, endDate, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Audit Log Integrity Verification")
		require.Contains(t, out.String(), "Total Checked:  5")
		require.Contains(t, out.String(), "Unsigned:       1")
		require.Contains(t, out.String(), "Status: PASSED")
	})

	t.Run("success-json", func(t *testing.T) {
		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), key), discardLogger, &out, startDate, endDate, "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, float64(5), result["total_checked"])
		require.Equal(t, float64(4), result["valid_count"])
		require.Equal(t, true, result["passed"])
	})

	t.Run("no-logs-in-range", func(t *testing.T) {
		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), key), discardLogger, &out,
			"2020-01-01", "2020-01-02", "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "No logs found")
	})

	t.Run("invalid-dates", func(t *testing.T) {
		err := RunVerifyAuditLogs(ctx, nil, discardLogger, nil, "invalid", endDate, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid start date")

		err = RunVerifyAuditLogs(ctx, nil, discardLogger, nil, endDate, startDate, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "end date must be after start date")

		err = RunVerifyAuditLogs(ctx, nil, discardLogger, nil, startDate, "tomorrow", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid end date")
	})

	t.Run("end-date-defaults-to-now", func(t *testing.T) {
		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), key), discardLogger, &out, startDate, "", "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, float64(4), result["signed_count"])
	})

	t.Run("sealed", func(t *testing.T) {
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), nil), discardLogger, &bytes.Buffer{},
			startDate, endDate, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to verify audit logs")
	})

	t.Run("integrity-failure", func(t *testing.T) {
		otherKey := fixedKey(bytes.Repeat([]byte{9}, 32))

		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, newAuditLogUseCase(setup(t), otherKey), discardLogger, &out,
			startDate, endDate, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "integrity check failed: 4 invalid signature(s)")
		require.Contains(t, out.String(), "WARNING: 4 log(s) failed integrity check!")
	})
}
