package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"gocloud.dev/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("Success_LocalSecrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		require.NotNil(t, keeper)
		defer func() {
			assert.NoError(t, keeper.Close())
		}()

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok)
	})

	t.Run("Error_InvalidURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})

	t.Run("Error_EmptyURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "")
		assert.Error(t, err)
		assert.Nil(t, keeper)
	})
}

func TestKMSService_WrapRootKey(t *testing.T) {
	ctx := context.Background()
	keyURI := generateLocalSecretsURI(t)

	keeper, err := NewKMSService().OpenKeeper(ctx, keyURI)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, keeper.Close())
	}()

	rootKey := randomKey(t)
	wrapped, err := keeper.Encrypt(ctx, rootKey)
	require.NoError(t, err)
	assert.NotEqual(t, rootKey, wrapped)

	t.Run("Success_SameKeyUnwraps", func(t *testing.T) {
		unwrapped, err := keeper.Decrypt(ctx, wrapped)
		require.NoError(t, err)
		assert.Equal(t, rootKey, unwrapped)
	})

	t.Run("Error_DifferentKeyFails", func(t *testing.T) {
		other, err := NewKMSService().OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, other.Close())
		}()

		_, err = other.Decrypt(ctx, wrapped)
		assert.Error(t, err)
	})
}
