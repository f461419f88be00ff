package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Run("LoadBeforeStoreIsNotFound", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Load()
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("StoreThenLoadRoundTrips", func(t *testing.T) {
		s := NewMemoryStore()
		blob := []byte{0x01, 0x02, 0x03, 0x04}
		require.NoError(t, s.Store(blob))

		loaded, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, blob, loaded)
	})

	t.Run("SecondStoreOverwrites", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Store([]byte{0xAA}))
		require.NoError(t, s.Store([]byte{0xBB, 0xCC}))

		loaded, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []byte{0xBB, 0xCC}, loaded)
	})

	t.Run("LoadReturnsACopy", func(t *testing.T) {
		s := NewMemoryStore()
		blob := []byte{0x01, 0x02}
		require.NoError(t, s.Store(blob))

		loaded, err := s.Load()
		require.NoError(t, err)
		loaded[0] = 0xFF

		reloaded, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, byte(0x01), reloaded[0])
	})
}
