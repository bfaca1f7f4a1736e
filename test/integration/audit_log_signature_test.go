package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/covert/internal/testutil"
)

// TestAuditLogSignature_EndToEnd checks that authorization decisions are stored signed,
// survive a restart and expose tampering.
func TestAuditLogSignature_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	for _, dbDriver := range drivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)
			ctx.initialize(t)
			ctx.unseal(t)

			start := time.Now().UTC().Add(-time.Second)

			ctx.mustRequest(t, http.MethodGet, "/v1/sys/mounts", ctx.rootToken, nil, nil)
			ctx.mustRequest(t, http.MethodGet, "/v1/sys/policies", ctx.rootToken, nil, nil)
			resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/sys/mounts", "bogus-token", nil)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)

			// Unauthenticated and unknown-token requests are not audited.
			require.Equal(t, 2, testutil.CountRows(t, ctx.db, "audit_logs"))

			end := time.Now().UTC().Add(time.Second)

			t.Run("VerifyBatch_AllValid", func(t *testing.T) {
				auditLogs, err := ctx.container.AuditLogUseCase()
				require.NoError(t, err)

				report, err := auditLogs.VerifyBatch(context.Background(), start, end)
				require.NoError(t, err)
				assert.Equal(t, int64(2), report.TotalChecked)
				assert.Equal(t, int64(2), report.SignedCount)
				assert.Equal(t, int64(2), report.ValidCount)
				assert.Zero(t, report.InvalidCount)
			})

			t.Run("VerifyBatch_RequiresRootKey", func(t *testing.T) {
				ctx.mustRequest(t, http.MethodPut, "/v1/sys/seal", "", nil, nil)

				auditLogs, err := ctx.container.AuditLogUseCase()
				require.NoError(t, err)
				_, err = auditLogs.VerifyBatch(context.Background(), start, end)
				require.Error(t, err)
			})

			t.Run("VerifyBatch_AfterRestart", func(t *testing.T) {
				ctx.stop(t)
				ctx.start(t)
				ctx.unseal(t)

				auditLogs, err := ctx.container.AuditLogUseCase()
				require.NoError(t, err)

				report, err := auditLogs.VerifyBatch(context.Background(), start, end)
				require.NoError(t, err)
				assert.Equal(t, int64(2), report.ValidCount)
			})

			t.Run("VerifyBatch_DetectsTampering", func(t *testing.T) {
				_, err := ctx.db.Exec("UPDATE audit_logs SET path = 'sys/policies/root' WHERE path = 'sys/mounts'")
				require.NoError(t, err)

				auditLogs, err := ctx.container.AuditLogUseCase()
				require.NoError(t, err)

				report, err := auditLogs.VerifyBatch(context.Background(), start, end)
				require.NoError(t, err)
				assert.Equal(t, int64(1), report.InvalidCount)
				assert.Equal(t, int64(1), report.ValidCount)
				assert.Len(t, report.InvalidLogs, 1)
			})
		})
	}
}
