package state

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/authcore/primitives"
)

func systemRand() primitives.RandFunc {
	return func(buf []byte) error {
		for i := range buf {
			buf[i] = byte(i*37 + 11)
		}
		return nil
	}
}

func TestReset(t *testing.T) {
	t.Run("ProducesValidDefaultState", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)
		assert.True(t, pd.Valid)
		assert.Equal(t, uint8(DefaultPinRetries), pd.PinRetries)
		assert.NotEmpty(t, pd.C)
		assert.Len(t, pd.Tag, 16)
	})

	t.Run("PersistsLoadableBlob", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		loaded, err := Load(store)
		require.NoError(t, err)
		assert.True(t, loaded.Valid)
	})

	t.Run("SeedsNonceCounterFromNowCounter", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 42, false)
		require.NoError(t, err)
		assert.Equal(t, byte(42), pd.NonceCtr[0])
		assert.Equal(t, byte(0), pd.NonceCtr[4])
	})

	t.Run("DefaultPinValidatesImmediately", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		sd, ks, err := ValidatePin(store, pd, []byte(DefaultPin))
		require.NoError(t, err)
		assert.Len(t, ks, 32)
		assert.Equal(t, uint8(len(DefaultPin)), sd.PinLength)
		assert.Equal(t, uint32(0), sd.SignCtr)

		wantHash := sha256.Sum256([]byte(DefaultPin))
		assert.Equal(t, wantHash[:16], sd.PinHash[:])
	})

	t.Run("SeedsForcePinChangeFromCaller", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, true)
		require.NoError(t, err)
		require.NotNil(t, pd.ForcePinChange)
		assert.True(t, *pd.ForcePinChange)

		store2 := NewMemoryStore()
		pd2, err := Reset(store2, systemRand(), 0, false)
		require.NoError(t, err)
		require.NotNil(t, pd2.ForcePinChange)
		assert.False(t, *pd2.ForcePinChange)
	})
}

func TestLoad(t *testing.T) {
	t.Run("NotFoundWhenNeverStored", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := Load(store)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InvalidWhenValidFlagFalse", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)
		pd.Valid = false

		blob, err := Serialize(*pd)
		require.NoError(t, err)
		require.NoError(t, store.Store(blob))

		_, err = Load(store)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("CorruptOnGarbageBlob", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Store([]byte{0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF}))
		_, err := Load(store)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestSerializeDeserialize(t *testing.T) {
	store := NewMemoryStore()
	pd, err := Reset(store, systemRand(), 7, false)
	require.NoError(t, err)

	t.Run("RoundTripWithLengthPrefix", func(t *testing.T) {
		blob, err := Serialize(*pd)
		require.NoError(t, err)

		decoded, err := Deserialize(blob)
		require.NoError(t, err)
		assert.Equal(t, pd.Valid, decoded.Valid)
		assert.Equal(t, pd.Salt, decoded.Salt)
		assert.Equal(t, pd.NonceCtr, decoded.NonceCtr)
		assert.Equal(t, pd.PinRetries, decoded.PinRetries)
		assert.Equal(t, pd.C, decoded.C)
		assert.Equal(t, pd.Tag, decoded.Tag)
	})

	t.Run("RoundTripBareCBOR", func(t *testing.T) {
		blob, err := Serialize(*pd)
		require.NoError(t, err)
		bare := blob[4:] // strip the length prefix, leaving bare CBOR

		decoded, err := Deserialize(bare)
		require.NoError(t, err)
		assert.Equal(t, pd.Valid, decoded.Valid)
	})
}

func TestUpdateSecret(t *testing.T) {
	t.Run("NonceMonotonicAcrossNWrites", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		sd, ks, err := ValidatePin(store, pd, []byte(DefaultPin))
		require.NoError(t, err)

		const n = 5
		for i := 0; i < n; i++ {
			sd.SignCtr++
			require.NoError(t, UpdateSecret(store, pd, sd, ks))
		}

		// ValidatePin itself performs one UpdateSecret, plus n here.
		assert.Equal(t, uint32(1+n), uint32(pd.NonceCtr[0]))

		reloaded, err := Load(store)
		require.NoError(t, err)
		assert.Equal(t, pd.NonceCtr, reloaded.NonceCtr)
	})

	t.Run("PersistedValuesSurviveRoundTrip", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)
		sd, ks, err := ValidatePin(store, pd, []byte(DefaultPin))
		require.NoError(t, err)

		sd.SignCtr = 99
		require.NoError(t, UpdateSecret(store, pd, sd, ks))

		sd2, _, err := ValidatePin(store, pd, []byte(DefaultPin))
		require.NoError(t, err)
		assert.Equal(t, uint32(99), sd2.SignCtr)
	})
}

func TestValidatePin(t *testing.T) {
	t.Run("WrongPinDecrementsRetriesAndFails", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		_, _, err = ValidatePin(store, pd, []byte("wrong"))
		assert.ErrorIs(t, err, ErrPinInvalid)
		assert.Equal(t, uint8(DefaultPinRetries-1), pd.PinRetries)
	})

	t.Run("SuccessRestoresRetries", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		_, _, err = ValidatePin(store, pd, []byte("wrong"))
		require.ErrorIs(t, err, ErrPinInvalid)
		assert.Equal(t, uint8(DefaultPinRetries-1), pd.PinRetries)

		_, _, err = ValidatePin(store, pd, []byte(DefaultPin))
		require.NoError(t, err)
		assert.Equal(t, uint8(DefaultPinRetries), pd.PinRetries)
	})

	t.Run("RetriesExhaustedBlocksFastWithoutFurtherDecryptAttempt", func(t *testing.T) {
		store := NewMemoryStore()
		pd, err := Reset(store, systemRand(), 0, false)
		require.NoError(t, err)

		for i := 0; i < DefaultPinRetries; i++ {
			_, _, err = ValidatePin(store, pd, []byte("wrong"))
			assert.ErrorIs(t, err, ErrPinInvalid)
		}
		assert.Equal(t, uint8(0), pd.PinRetries)

		_, _, err = ValidatePin(store, pd, []byte(DefaultPin))
		assert.ErrorIs(t, err, ErrPinBlocked)
	})
}

func TestIncrementNonce(t *testing.T) {
	t.Run("SimpleIncrement", func(t *testing.T) {
		var n [nonceSize]byte
		n[0] = 5
		got := incrementNonce(n)
		assert.Equal(t, byte(6), got[0])
	})

	t.Run("CarriesAcrossBytes", func(t *testing.T) {
		var n [nonceSize]byte
		n[0] = 0xFF
		got := incrementNonce(n)
		assert.Equal(t, byte(0), got[0])
		assert.Equal(t, byte(1), got[1])
	})
}
