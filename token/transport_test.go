package token

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/authcore/cose"
	"github.com/sage-x-project/authcore/primitives"
)

func TestECDHHandshake(t *testing.T) {
	t.Run("BothSidesAgreeOnSharedMaterial", func(t *testing.T) {
		authenticator := newToken(t)

		platformKP, err := primitives.NewP256KeyPair()
		require.NoError(t, err)
		px, py := platformKP.PublicXY()

		authShared, err := authenticator.ECDH(cose.Key{X: px, Y: py})
		require.NoError(t, err)
		require.Len(t, authShared, SharedSize)

		ax, ay := authenticator.AgreementKey.PublicXY()
		z, err := platformKP.ECDH(ax[:], ay[:])
		require.NoError(t, err)

		salt := make([]byte, 32)
		prk := primitives.HKDFExtract(salt, z)
		hmacKey, err := primitives.HKDFExpand(prk, []byte(hmacKeyInfo), 32)
		require.NoError(t, err)
		aesKey, err := primitives.HKDFExpand(prk, []byte(aesKeyInfo), 32)
		require.NoError(t, err)
		platformShared := append(append([]byte{}, hmacKey...), aesKey...)

		assert.Equal(t, platformShared, authShared)
	})

	t.Run("RejectsOffCurvePeer", func(t *testing.T) {
		authenticator := newToken(t)
		var bad cose.Key
		bad.X[0] = 1
		bad.Y[0] = 1
		_, err := authenticator.ECDH(bad)
		assert.ErrorIs(t, err, primitives.ErrInvalidPoint)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	shared := make([]byte, SharedSize)
	for i := range shared {
		shared[i] = byte(i)
	}
	iv := make([]byte, 16)
	for i := range iv {
		iv[i] = byte(200 + i)
	}
	plaintext := []byte("0123456789abcdef") // exactly one AES block

	t.Run("RoundTrip", func(t *testing.T) {
		wire, err := Encrypt(iv, shared, plaintext)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(wire, iv))

		got, err := Decrypt(shared, wire)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("RejectsShortShared", func(t *testing.T) {
		_, err := Encrypt(iv, shared[:10], plaintext)
		assert.ErrorIs(t, err, ErrShortShared)

		_, err = Decrypt(shared[:10], append(iv, plaintext...))
		assert.ErrorIs(t, err, ErrShortShared)
	})

	t.Run("RejectsUnalignedPlaintext", func(t *testing.T) {
		_, err := Encrypt(iv, shared, []byte("short"))
		assert.Error(t, err)
	})
}

func TestAuthenticateVerify(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	msg := []byte("command bytes to authenticate")

	t.Run("VerifyAcceptsOwnMAC", func(t *testing.T) {
		ts := newToken(t)
		mac := Authenticate(key, msg)
		assert.True(t, ts.Verify(key, msg, mac, false))
	})

	t.Run("VerifyRejectsTamperedMAC", func(t *testing.T) {
		ts := newToken(t)
		mac := Authenticate(key, msg)
		mac[0] ^= 0xFF
		assert.False(t, ts.Verify(key, msg, mac, false))
	})

	t.Run("PinTokenVerifyFailsWhenNotInUse", func(t *testing.T) {
		ts := newToken(t)
		mac := Authenticate(ts.PinToken[:], msg)
		assert.False(t, ts.Verify(ts.PinToken[:], msg, mac, true))
	})

	t.Run("PinTokenVerifySucceedsWhenInUse", func(t *testing.T) {
		ts := newToken(t)
		ts.BeginUsing(true, 0, nil, 0)
		mac := Authenticate(ts.PinToken[:], msg)
		assert.True(t, ts.Verify(ts.PinToken[:], msg, mac, true))
	})
}
