// Package cose encodes and decodes the COSE_Key representation used for
// the authenticator's ECDH key-agreement public key (spec.md §4.4,
// §6): kty=2 (EC2), alg=-25 (ECDH-ES+HKDF-256), crv=1 (P-256),
// label -2 → x, label -3 → y.
package cose

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// COSE key-type, algorithm, and curve identifiers from the IANA COSE
// registry, scoped to the one combination this authenticator uses.
const (
	KtyEC2    = 2
	AlgECDHES = -25
	CrvP256   = 1
)

// ErrUnsupportedKey is returned when a decoded COSE_Key does not match
// kty=EC2/alg=ECDH-ES+HKDF-256/crv=P-256 — the single combination this
// authenticator core understands (spec.md §1 Non-goals: one algorithm).
var ErrUnsupportedKey = errors.New("cose: unsupported key type/algorithm/curve")

// ErrMalformedKey is returned when a decoded COSE_Key is missing the x or
// y coordinate, or either is not 32 bytes.
var ErrMalformedKey = errors.New("cose: malformed EC2 coordinate")

// Key is the decoded form of a COSE_Key EC2 P-256 point.
type Key struct {
	X [32]byte
	Y [32]byte
}

// wireKey mirrors the COSE_Key CBOR map using its integer labels. CBOR
// map keys must be int64 for cbor/v2 to match the integer label form COSE
// specifies rather than falling back to string keys.
type wireKey struct {
	Kty int64  `cbor:"1,keyasint"`
	Alg int64  `cbor:"3,keyasint"`
	Crv int64  `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

// Encode produces the CBOR-encoded COSE_Key for the authenticator's own
// ECDH public key.
func Encode(k Key) ([]byte, error) {
	w := wireKey{
		Kty: KtyEC2,
		Alg: AlgECDHES,
		Crv: CrvP256,
		X:   append([]byte{}, k.X[:]...),
		Y:   append([]byte{}, k.Y[:]...),
	}
	b, err := cbor.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("cose: encode key: %w", err)
	}
	return b, nil
}

// Decode parses a CBOR-encoded COSE_Key, validating it is the one
// kty/alg/crv combination this authenticator supports.
func Decode(data []byte) (Key, error) {
	var w wireKey
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Key{}, fmt.Errorf("cose: decode key: %w", err)
	}
	if w.Kty != KtyEC2 || w.Alg != AlgECDHES || w.Crv != CrvP256 {
		return Key{}, ErrUnsupportedKey
	}
	if len(w.X) != 32 || len(w.Y) != 32 {
		return Key{}, ErrMalformedKey
	}
	var k Key
	copy(k.X[:], w.X)
	copy(k.Y[:], w.Y)
	return k, nil
}
