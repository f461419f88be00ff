package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegenerationHistory(t *testing.T) {
	t.Run("InitializeRecordsOneEvent", func(t *testing.T) {
		ts := newToken(t)
		events := ts.Events()
		require.Len(t, events, 1)
	})

	t.Run("MostRecentRegenerationIsFirst", func(t *testing.T) {
		ts := newToken(t)
		firstKey := ts.AgreementKey

		require.NoError(t, ts.Regenerate(fakeRand()))
		secondX, secondY := ts.AgreementKey.PublicXY()

		events := ts.Events()
		require.Len(t, events, 2)
		assert.Equal(t, secondX, events[0].X)
		assert.Equal(t, secondY, events[0].Y)

		firstX, firstY := firstKey.PublicXY()
		assert.Equal(t, firstX, events[1].X)
		assert.Equal(t, firstY, events[1].Y)
	})

	t.Run("BoundedToMaxEvents", func(t *testing.T) {
		ts := newToken(t)
		for i := 0; i < maxRegenerationEvents+10; i++ {
			require.NoError(t, ts.Regenerate(fakeRand()))
		}
		assert.Len(t, ts.Events(), maxRegenerationEvents)
	})
}
