package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

var sealConfigColumns = []string{
	"secret_shares", "secret_threshold", "key_check", "wrapped_root_key", "kms_key_uri", "created_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func createTestSealConfig() *lifecycleDomain.SealConfig {
	return &lifecycleDomain.SealConfig{
		SecretShares:    5,
		SecretThreshold: 3,
		KeyCheck:        "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		WrappedRootKey:  []byte("wrapped"),
		KMSKeyURI:       "base64key://c2VjcmV0",
		CreatedAt:       time.Now().UTC(),
	}
}

func TestPostgreSQLSealConfigRepository_Create(t *testing.T) {
	ctx := context.Background()
	sealConfig := createTestSealConfig()

	t.Run("Success_Create", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO seal_config").
			WithArgs(
				sealConfigID,
				5,
				3,
				sealConfig.KeyCheck,
				sealConfig.WrappedRootKey,
				sealConfig.KMSKeyURI,
				sealConfig.CreatedAt,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		repo := NewPostgreSQLSealConfigRepository(db)
		require.NoError(t, repo.Create(ctx, sealConfig))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_AlreadyInitialized", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO seal_config").WillReturnError(&pq.Error{Code: "23505"})

		repo := NewPostgreSQLSealConfigRepository(db)
		assert.ErrorIs(t, repo.Create(ctx, sealConfig), lifecycleDomain.ErrAlreadyInitialized)
	})

	t.Run("Error_ExecFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO seal_config").WillReturnError(errors.New("connection reset"))

		repo := NewPostgreSQLSealConfigRepository(db)
		assert.ErrorContains(t, repo.Create(ctx, sealConfig), "failed to create seal config")
	})
}

func TestPostgreSQLSealConfigRepository_Get(t *testing.T) {
	ctx := context.Background()
	sealConfig := createTestSealConfig()

	t.Run("Success_Get", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM seal_config WHERE id").
			WithArgs(sealConfigID).
			WillReturnRows(sqlmock.NewRows(sealConfigColumns).AddRow(
				5, 3, sealConfig.KeyCheck, sealConfig.WrappedRootKey, sealConfig.KMSKeyURI, sealConfig.CreatedAt,
			))

		repo := NewPostgreSQLSealConfigRepository(db)
		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, sealConfig, got)
	})

	t.Run("Success_WithoutWrappedKey", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM seal_config WHERE id").
			WillReturnRows(sqlmock.NewRows(sealConfigColumns).AddRow(
				1, 1, sealConfig.KeyCheck, nil, "", sealConfig.CreatedAt,
			))

		repo := NewPostgreSQLSealConfigRepository(db)
		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, got.WrappedRootKey)
		assert.Empty(t, got.KMSKeyURI)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM seal_config WHERE id").WillReturnError(sql.ErrNoRows)

		repo := NewPostgreSQLSealConfigRepository(db)
		_, err := repo.Get(ctx)
		assert.ErrorIs(t, err, lifecycleDomain.ErrSealConfigNotFound)
	})
}

func TestMySQLSealConfigRepository(t *testing.T) {
	ctx := context.Background()
	sealConfig := createTestSealConfig()

	t.Run("Success_Create", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO seal_config").WillReturnResult(sqlmock.NewResult(1, 1))

		repo := NewMySQLSealConfigRepository(db)
		require.NoError(t, repo.Create(ctx, sealConfig))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_AlreadyInitialized", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO seal_config").WillReturnError(&mysql.MySQLError{Number: 1062})

		repo := NewMySQLSealConfigRepository(db)
		assert.ErrorIs(t, repo.Create(ctx, sealConfig), lifecycleDomain.ErrAlreadyInitialized)
	})

	t.Run("Success_Get", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM seal_config WHERE id").
			WithArgs(sealConfigID).
			WillReturnRows(sqlmock.NewRows(sealConfigColumns).AddRow(
				5, 3, sealConfig.KeyCheck, sealConfig.WrappedRootKey, sealConfig.KMSKeyURI, sealConfig.CreatedAt,
			))

		repo := NewMySQLSealConfigRepository(db)
		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, sealConfig, got)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM seal_config WHERE id").WillReturnError(sql.ErrNoRows)

		repo := NewMySQLSealConfigRepository(db)
		_, err := repo.Get(ctx)
		assert.ErrorIs(t, err, lifecycleDomain.ErrSealConfigNotFound)
	})
}

func TestMemorySealConfigRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySealConfigRepository()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, lifecycleDomain.ErrSealConfigNotFound)

	sealConfig := createTestSealConfig()
	require.NoError(t, repo.Create(ctx, sealConfig))
	assert.ErrorIs(t, repo.Create(ctx, sealConfig), lifecycleDomain.ErrAlreadyInitialized)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sealConfig, got)

	got.WrappedRootKey[0] = 'X'
	again, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("wrapped"), again.WrappedRootKey)
}
