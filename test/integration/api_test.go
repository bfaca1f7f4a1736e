// Package integration provides end-to-end tests for the control plane API against
// both PostgreSQL and MySQL.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/covert/internal/app"
	authDomain "github.com/allisson/covert/internal/auth/domain"
	"github.com/allisson/covert/internal/config"
	leaseDomain "github.com/allisson/covert/internal/lease/domain"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	"github.com/allisson/covert/internal/testutil"
)

var drivers = []string{"postgres", "mysql"}

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	dbDriver  string
	dsn       string
	keys      []string
	rootToken string
}

// apiResponse is the envelope of every successful response.
type apiResponse struct {
	Data json.RawMessage `json:"data"`
}

func newConfig(dbDriver, dsn string) *config.Config {
	return &config.Config{
		DBDriver:                 dbDriver,
		DBConnectionString:       dsn,
		DBMaxOpenConnections:     10,
		DBMaxIdleConnections:     5,
		DBConnMaxLifetime:        time.Hour,
		ServerHost:               "localhost",
		ServerPort:               8080,
		LogLevel:                 "error",
		RootTokenTTL:             time.Hour,
		UnsealDefaultShares:      3,
		UnsealDefaultThreshold:   2,
		LeaseDefaultTTL:          time.Hour,
		LeaseMaxTTL:              24 * time.Hour,
		LeaseExpirationInterval:  time.Minute,
		LeaseExpirationBatchSize: 100,
		LeaseRevokeMaxRetries:    2,
		LeaseRevokeConcurrency:   4,
	}
}

// setupIntegrationTest migrates a clean database and starts an API server over it.
// The service is left uninitialized.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var (
		db  *sql.DB
		dsn string
	)
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	ctx := &integrationTestContext{db: db, dbDriver: dbDriver, dsn: dsn}
	ctx.start(t)
	return ctx
}

// start builds a fresh container over the same database, as a process restart would.
func (ctx *integrationTestContext) start(t *testing.T) {
	t.Helper()

	ctx.container = app.NewContainer(newConfig(ctx.dbDriver, ctx.dsn))
	require.NoError(t, ctx.container.StartLifecycle(context.Background()))

	httpSrv, err := ctx.container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")
	ctx.server = httptest.NewServer(httpSrv.GetHandler())
}

// stop closes the API server and the container.
func (ctx *integrationTestContext) stop(t *testing.T) {
	t.Helper()
	if ctx.server != nil {
		ctx.server.Close()
	}
	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()
	ctx.stop(t)
	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path, token string,
	body any,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Vault-Token", token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// mustRequest performs a request expecting 200 and decodes the data envelope into out.
func (ctx *integrationTestContext) mustRequest(
	t *testing.T,
	method, path, token string,
	body any,
	out any,
) {
	t.Helper()
	resp, respBody := ctx.makeRequest(t, method, path, token, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBody))

	if out == nil {
		return
	}
	var envelope apiResponse
	require.NoError(t, json.Unmarshal(respBody, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// initialize initializes the service through the API and records the shares and root token.
func (ctx *integrationTestContext) initialize(t *testing.T) {
	t.Helper()
	var output struct {
		Keys      []string `json:"keys"`
		RootToken string   `json:"root_token"`
	}
	ctx.mustRequest(t, http.MethodPost, "/v1/sys/init", "", map[string]any{}, &output)
	require.Len(t, output.Keys, 3)
	ctx.keys = output.Keys
	ctx.rootToken = output.RootToken
}

// unseal submits threshold shares.
func (ctx *integrationTestContext) unseal(t *testing.T) {
	t.Helper()
	for _, key := range ctx.keys[:2] {
		ctx.mustRequest(t, http.MethodPut, "/v1/sys/unseal", "", map[string]any{"key": key}, nil)
	}
}

func (ctx *integrationTestContext) registerLease(t *testing.T, mountPath string, tokenID *uuid.UUID) *leaseDomain.Lease {
	t.Helper()
	leases, err := ctx.container.LeaseUseCase()
	require.NoError(t, err)

	lease, err := leases.Register(context.Background(), &leaseDomain.RegisterLeaseInput{
		MountPath:  mountPath,
		SecretPath: "creds/app",
		TokenID:    tokenID,
		TTL:        time.Hour,
		Renewable:  true,
	})
	require.NoError(t, err)
	return lease
}

func TestIntegration_Health_BasicChecks(t *testing.T) {
	for _, dbDriver := range drivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)

			resp, _ := ctx.makeRequest(t, http.MethodGet, "/health", "", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", "", nil)
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			assert.Contains(t, string(body), string(lifecycleDomain.StateUninitialized))

			ctx.initialize(t)
			ctx.unseal(t)

			resp, _ = ctx.makeRequest(t, http.MethodGet, "/ready", "", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestIntegration_Lifecycle_CompleteFlow(t *testing.T) {
	for _, dbDriver := range drivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)

			var status struct {
				State       string `json:"state"`
				Initialized bool   `json:"initialized"`
				Sealed      bool   `json:"sealed"`
				Progress    int    `json:"progress"`
			}

			t.Run("01_Status_Uninitialized", func(t *testing.T) {
				ctx.mustRequest(t, http.MethodGet, "/v1/sys/status", "", nil, &status)
				assert.False(t, status.Initialized)
			})

			t.Run("02_Init", func(t *testing.T) {
				ctx.initialize(t)

				resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/sys/init", "", map[string]any{})
				assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "init is only served uninitialized")
			})

			t.Run("03_Unseal_Progress", func(t *testing.T) {
				ctx.mustRequest(t, http.MethodPut, "/v1/sys/unseal", "", map[string]any{"key": ctx.keys[0]}, nil)
				ctx.mustRequest(t, http.MethodGet, "/v1/sys/status", "", nil, &status)
				assert.True(t, status.Sealed)
				assert.Equal(t, 1, status.Progress)

				ctx.mustRequest(t, http.MethodPut, "/v1/sys/unseal", "", map[string]any{"key": ctx.keys[1]}, nil)
				ctx.mustRequest(t, http.MethodGet, "/v1/sys/status", "", nil, &status)
				assert.False(t, status.Sealed)
			})

			t.Run("04_Seal", func(t *testing.T) {
				ctx.mustRequest(t, http.MethodPut, "/v1/sys/seal", "", nil, nil)

				resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/sys/mounts", ctx.rootToken, nil)
				assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			})

			t.Run("05_Restart_LoadsSealedState", func(t *testing.T) {
				ctx.stop(t)
				ctx.start(t)

				ctx.mustRequest(t, http.MethodGet, "/v1/sys/status", "", nil, &status)
				assert.True(t, status.Initialized)
				assert.True(t, status.Sealed)

				// Shares from the first process still unseal, and the root token survived.
				ctx.unseal(t)
				ctx.mustRequest(t, http.MethodGet, "/v1/sys/mounts", ctx.rootToken, nil, nil)
			})
		})
	}
}

func TestIntegration_Mounts_LeaseCascade(t *testing.T) {
	for _, dbDriver := range drivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)
			ctx.initialize(t)
			ctx.unseal(t)

			ctx.mustRequest(t, http.MethodPost, "/v1/sys/mounts/team/db", ctx.rootToken,
				map[string]any{"type": "database", "description": "team database"}, nil)
			ctx.mustRequest(t, http.MethodPost, "/v1/sys/mounts/kv", ctx.rootToken,
				map[string]any{"type": "kv"}, nil)

			resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/sys/mounts/kv", ctx.rootToken,
				map[string]any{"type": "kv"})
			assert.Equal(t, http.StatusConflict, resp.StatusCode)

			for range 5 {
				ctx.registerLease(t, "team/db/", nil)
			}
			kept := ctx.registerLease(t, "kv/", nil)
			assert.Equal(t, 6, testutil.CountRows(t, ctx.db, "leases"))

			var disabled struct {
				RevokedLeases int `json:"revoked_leases"`
			}
			ctx.mustRequest(t, http.MethodDelete, "/v1/sys/mounts/team/db", ctx.rootToken, nil, &disabled)
			assert.Equal(t, 5, disabled.RevokedLeases)
			assert.Equal(t, 1, testutil.CountRows(t, ctx.db, "leases"))

			var lookup struct {
				ID string `json:"id"`
			}
			ctx.mustRequest(t, http.MethodGet, "/v1/sys/leases/lookup/"+kept.ID, ctx.rootToken, nil, &lookup)
			assert.Equal(t, kept.ID, lookup.ID)

			resp, _ = ctx.makeRequest(t, http.MethodDelete, "/v1/sys/mounts/team/db", ctx.rootToken, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestIntegration_Authorization_TokenRevokeCascade(t *testing.T) {
	for _, dbDriver := range drivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)
			ctx.initialize(t)
			ctx.unseal(t)

			ctx.mustRequest(t, http.MethodPost, "/v1/sys/policies", ctx.rootToken, map[string]any{
				"name": "operator",
				"rules": []map[string]any{
					{"path": "sys/mounts", "capabilities": []string{"read"}},
					{"path": "sys/token/revoke", "capabilities": []string{"update"}},
				},
			}, nil)

			var entity struct {
				ID string `json:"id"`
			}
			ctx.mustRequest(t, http.MethodPost, "/v1/sys/entity", ctx.rootToken,
				map[string]any{"name": "alice"}, &entity)
			ctx.mustRequest(t, http.MethodPut, "/v1/sys/entity/policy", ctx.rootToken,
				map[string]any{"name": "alice", "policy_names": []string{"operator"}}, nil)

			tokens, err := ctx.container.TokenUseCase()
			require.NoError(t, err)
			entityID := uuid.MustParse(entity.ID)
			issued, err := tokens.Issue(context.Background(), &authDomain.IssueTokenInput{
				EntityID: &entityID,
				TTL:      time.Hour,
			})
			require.NoError(t, err)
			token := issued.PlainToken

			// The entity's policy grants reading mounts but nothing else.
			ctx.mustRequest(t, http.MethodGet, "/v1/sys/mounts", token, nil, nil)
			resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/sys/mounts/kv", token, map[string]any{"type": "kv"})
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)

			ctx.mustRequest(t, http.MethodPost, "/v1/sys/mounts/kv", ctx.rootToken,
				map[string]any{"type": "kv"}, nil)
			for range 3 {
				ctx.registerLease(t, "kv/", &issued.Token.ID)
			}
			ctx.registerLease(t, "kv/", nil)

			var revoked struct {
				RevokedLeases int `json:"revoked_leases"`
			}
			ctx.mustRequest(t, http.MethodPost, "/v1/sys/token/revoke", token,
				map[string]any{"token": token}, &revoked)
			assert.Equal(t, 3, revoked.RevokedLeases)
			assert.Equal(t, 1, testutil.CountRows(t, ctx.db, "leases"))

			resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/sys/mounts", token, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)

			// Revoking an unknown token succeeds.
			ctx.mustRequest(t, http.MethodPost, "/v1/sys/token/revoke", ctx.rootToken,
				map[string]any{"token": token}, &revoked)
			assert.Zero(t, revoked.RevokedLeases)
		})
	}
}
