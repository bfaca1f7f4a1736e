package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyHolder(t *testing.T) {
	t.Run("Success_StoreAndUse", func(t *testing.T) {
		holder := NewKeyHolder()
		key := randomKey(t)
		expected := append([]byte(nil), key...)

		holder.Store(key)
		assert.True(t, holder.Held())

		err := holder.With(func(got []byte) error {
			assert.Equal(t, expected, got)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Success_StoreWipesInput", func(t *testing.T) {
		holder := NewKeyHolder()
		key := randomKey(t)

		holder.Store(key)
		assert.Equal(t, make([]byte, len(key)), key)
	})

	t.Run("Error_NothingHeld", func(t *testing.T) {
		holder := NewKeyHolder()
		assert.False(t, holder.Held())

		err := holder.With(func([]byte) error { return nil })
		assert.ErrorIs(t, err, ErrKeyNotHeld)
	})

	t.Run("Success_DestroyDropsKey", func(t *testing.T) {
		holder := NewKeyHolder()
		holder.Store(randomKey(t))
		holder.Destroy()

		assert.False(t, holder.Held())
		assert.ErrorIs(t, holder.With(func([]byte) error { return nil }), ErrKeyNotHeld)
	})
}
