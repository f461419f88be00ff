package cose

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedKey() Key {
	var k Key
	for i := range k.X {
		k.X[i] = byte(i + 1)
	}
	for i := range k.Y {
		k.Y[i] = byte(255 - i)
	}
	return k
}

func TestEncodeDecode(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		k := fixedKey()
		b, err := Encode(k)
		require.NoError(t, err)

		decoded, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, k, decoded)
	})

	t.Run("EncodesExpectedLabels", func(t *testing.T) {
		k := fixedKey()
		b, err := Encode(k)
		require.NoError(t, err)

		var raw map[int64]interface{}
		require.NoError(t, cbor.Unmarshal(b, &raw))

		// cbor/v2 decodes positive integers into interface{} as uint64 and
		// negative integers as int64.
		assert.Equal(t, uint64(KtyEC2), raw[1])
		assert.Equal(t, int64(AlgECDHES), raw[3])
		assert.Equal(t, uint64(CrvP256), raw[-1])
		assert.True(t, bytes.Equal(k.X[:], raw[-2].([]byte)))
		assert.True(t, bytes.Equal(k.Y[:], raw[-3].([]byte)))
	})

	t.Run("RejectsWrongKty", func(t *testing.T) {
		raw := map[int64]interface{}{
			1:  int64(1), // OKP, not EC2
			3:  int64(AlgECDHES),
			-1: int64(CrvP256),
			-2: bytes.Repeat([]byte{1}, 32),
			-3: bytes.Repeat([]byte{2}, 32),
		}
		b, err := cbor.Marshal(raw)
		require.NoError(t, err)

		_, err = Decode(b)
		assert.ErrorIs(t, err, ErrUnsupportedKey)
	})

	t.Run("RejectsWrongAlg", func(t *testing.T) {
		raw := map[int64]interface{}{
			1:  int64(KtyEC2),
			3:  int64(-7), // ES256, not ECDH-ES
			-1: int64(CrvP256),
			-2: bytes.Repeat([]byte{1}, 32),
			-3: bytes.Repeat([]byte{2}, 32),
		}
		b, err := cbor.Marshal(raw)
		require.NoError(t, err)

		_, err = Decode(b)
		assert.ErrorIs(t, err, ErrUnsupportedKey)
	})

	t.Run("RejectsShortCoordinate", func(t *testing.T) {
		raw := map[int64]interface{}{
			1:  int64(KtyEC2),
			3:  int64(AlgECDHES),
			-1: int64(CrvP256),
			-2: []byte{1, 2, 3},
			-3: bytes.Repeat([]byte{2}, 32),
		}
		b, err := cbor.Marshal(raw)
		require.NoError(t, err)

		_, err = Decode(b)
		assert.ErrorIs(t, err, ErrMalformedKey)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := Decode([]byte{0xFF, 0xFF})
		assert.Error(t, err)
	})
}
