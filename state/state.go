// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package state owns the authenticator's at-rest representation: a
// plaintext PublicData header wrapping an AEAD-sealed SecretData blob, and
// the reset/load/update/validate-pin pipeline built on top of it. Callers
// hold PublicData/SecretData as explicit values threaded through these
// functions; nothing in this package is a process-wide singleton.
package state

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sage-x-project/authcore/primitives"
)

const (
	// DefaultPin is the literal factory PIN set by Reset.
	DefaultPin = "candystick"
	// DefaultPinRetries is the retry ceiling restored on every successful
	// PIN validation and set fresh at Reset.
	DefaultPinRetries = 8
	// MaxPinLength bounds SecretData.PinLength.
	MaxPinLength = 63

	saltSize     = 32
	nonceSize    = 12
	pinHashSize  = 16
	masterSecretSize = 32
)

// Sentinel errors, matching spec.md §7's error-kind table for the
// persistent-state component.
var (
	ErrNotFound    = errors.New("state: no persisted blob")
	ErrCorrupt     = errors.New("state: CBOR decode failure")
	ErrInvalid     = errors.New("state: blob decoded with valid=false")
	ErrPinInvalid  = errors.New("state: PIN does not match")
	ErrPinBlocked  = errors.New("state: PIN retries exhausted")
	ErrStorageError = errors.New("state: persistence backend failed")
)

// PublicData is the plaintext-at-rest header: everything needed to locate
// and decrypt SecretData, but none of the secret material itself.
type PublicData struct {
	Valid          bool
	Salt           [saltSize]byte
	NonceCtr       [nonceSize]byte
	PinRetries     uint8
	ForcePinChange *bool
	C              []byte
	Tag            []byte
}

// SecretData lives only inside PublicData's AEAD-sealed ciphertext.
type SecretData struct {
	MasterSecret [masterSecretSize]byte
	PinHash      [pinHashSize]byte
	PinLength    uint8
	SignCtr      uint32
}

// Store is the opaque blob read/write collaborator from spec.md §6
// (persist_load / persist_store). Load returns ErrNotFound when nothing
// has been written yet.
type Store interface {
	Load() ([]byte, error)
	Store(data []byte) error
}

// --- CBOR wire framing -----------------------------------------------

type wireMeta struct {
	Valid      bool   `cbor:"valid"`
	Salt       []byte `cbor:"salt"`
	NonceCtr   []byte `cbor:"nonce_ctr"`
	PinRetries uint8  `cbor:"pin_retries"`
}

type wirePublicData struct {
	Meta           wireMeta `cbor:"meta"`
	ForcePinChange *bool    `cbor:"forcePINChange,omitempty"`
	C              []byte   `cbor:"c"`
	Tag            []byte   `cbor:"tag"`
}

type wireSecretData struct {
	MasterSecret []byte `cbor:"master_secret"`
	PinHash      []byte `cbor:"pin_hash"`
	PinLength    uint8  `cbor:"pin_length"`
	SignCtr      uint32 `cbor:"sign_ctr"`
}

func (pd PublicData) toWire() wirePublicData {
	return wirePublicData{
		Meta: wireMeta{
			Valid:      pd.Valid,
			Salt:       append([]byte{}, pd.Salt[:]...),
			NonceCtr:   append([]byte{}, pd.NonceCtr[:]...),
			PinRetries: pd.PinRetries,
		},
		ForcePinChange: pd.ForcePinChange,
		C:              pd.C,
		Tag:            pd.Tag,
	}
}

func (w wirePublicData) toPublicData() (PublicData, error) {
	var pd PublicData
	if len(w.Meta.Salt) != saltSize {
		return pd, ErrCorrupt
	}
	if len(w.Meta.NonceCtr) != nonceSize {
		return pd, ErrCorrupt
	}
	pd.Valid = w.Meta.Valid
	copy(pd.Salt[:], w.Meta.Salt)
	copy(pd.NonceCtr[:], w.Meta.NonceCtr)
	pd.PinRetries = w.Meta.PinRetries
	pd.ForcePinChange = w.ForcePinChange
	pd.C = w.C
	pd.Tag = w.Tag
	return pd, nil
}

func (sd SecretData) toWire() wireSecretData {
	return wireSecretData{
		MasterSecret: append([]byte{}, sd.MasterSecret[:]...),
		PinHash:      append([]byte{}, sd.PinHash[:]...),
		PinLength:    sd.PinLength,
		SignCtr:      sd.SignCtr,
	}
}

func (w wireSecretData) toSecretData() (SecretData, error) {
	var sd SecretData
	if len(w.MasterSecret) != masterSecretSize {
		return sd, ErrCorrupt
	}
	if len(w.PinHash) != pinHashSize {
		return sd, ErrCorrupt
	}
	copy(sd.MasterSecret[:], w.MasterSecret)
	copy(sd.PinHash[:], w.PinHash)
	sd.PinLength = w.PinLength
	sd.SignCtr = w.SignCtr
	return sd, nil
}

func encodeSecretData(sd SecretData) ([]byte, error) {
	b, err := cbor.Marshal(sd.toWire())
	if err != nil {
		return nil, fmt.Errorf("state: encode secret data: %w", err)
	}
	return b, nil
}

func decodeSecretData(b []byte) (SecretData, error) {
	var w wireSecretData
	if err := cbor.Unmarshal(b, &w); err != nil {
		return SecretData{}, ErrCorrupt
	}
	return w.toSecretData()
}

// isCBORMapMarker reports whether b opens a CBOR major-type-5 (map)
// header, covering the fixed-count forms 0xA0-0xB7, the 1/2/4/8-byte
// length-prefixed forms 0xB8-0xBB, and the indefinite form 0xBF.
func isCBORMapMarker(b byte) bool {
	return b >= 0xA0 && b <= 0xBF
}

// Serialize emits [u32_le length][CBOR], per spec.md §6.
func Serialize(pd PublicData) ([]byte, error) {
	body, err := cbor.Marshal(pd.toWire())
	if err != nil {
		return nil, fmt.Errorf("state: encode public data: %w", err)
	}
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// Deserialize accepts either [u32_le length][CBOR] or bare CBOR. A CBOR map
// marker right after the first four bytes marks the length-prefixed form;
// otherwise a leading map marker marks bare CBOR (spec.md §4.3).
func Deserialize(data []byte) (PublicData, error) {
	if len(data) == 0 {
		return PublicData{}, ErrCorrupt
	}
	body := data
	if (len(data) > 4 && isCBORMapMarker(data[4])) || !isCBORMapMarker(data[0]) {
		if len(data) < 4 {
			return PublicData{}, ErrCorrupt
		}
		body = data[4:]
	}
	var w wirePublicData
	if err := cbor.Unmarshal(body, &w); err != nil {
		return PublicData{}, ErrCorrupt
	}
	return w.toPublicData()
}

// --- nonce arithmetic --------------------------------------------------

// incrementNonce adds 1 to a 12-byte little-endian counter, carrying
// across bytes (a 96-bit increment).
func incrementNonce(n [nonceSize]byte) [nonceSize]byte {
	var out [nonceSize]byte
	copy(out[:], n[:])
	for i := 0; i < nonceSize; i++ {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

func nonceFromCounter(counter uint32) [nonceSize]byte {
	var n [nonceSize]byte
	binary.LittleEndian.PutUint32(n[:4], counter)
	return n
}

// --- PIN hashing ---------------------------------------------------------

// pinHash computes LEFT(SHA-256(pin), 16), the CTAP2 PIN hash.
func pinHash(pin []byte) [pinHashSize]byte {
	sum := sha256.Sum256(pin)
	var out [pinHashSize]byte
	copy(out[:], sum[:pinHashSize])
	return out
}

// storageKey derives K_s = HKDF-extract(salt, PH).
func storageKey(salt [saltSize]byte, ph [pinHashSize]byte) []byte {
	return primitives.HKDFExtract(salt[:], ph[:])
}

// --- operations ----------------------------------------------------------

// Reset generates a fresh master secret and salt, seals a freshly
// initialized SecretData under the factory PIN, and persists the result
// via store. forcePinChangeDefault seeds the returned PublicData's
// ForcePinChange flag (spec.md §9: production deployments set this true
// so the factory PIN cannot silently remain in effect). It returns the
// new PublicData for the caller to hold.
func Reset(store Store, rnd primitives.RandFunc, nowCounter uint32, forcePinChangeDefault bool) (*PublicData, error) {
	var m [masterSecretSize]byte
	if err := rnd(m[:]); err != nil {
		return nil, fmt.Errorf("state: draw master secret: %w", err)
	}
	defer primitives.Zero(m[:])

	var salt [saltSize]byte
	if err := rnd(salt[:]); err != nil {
		return nil, fmt.Errorf("state: draw salt: %w", err)
	}

	ph := pinHash([]byte(DefaultPin))
	sd := SecretData{
		PinHash:   ph,
		PinLength: uint8(len(DefaultPin)),
		SignCtr:   0,
	}
	copy(sd.MasterSecret[:], m[:])

	ks := storageKey(salt, ph)
	defer primitives.Zero(ks)

	nonce := nonceFromCounter(nowCounter)

	sdBytes, err := encodeSecretData(sd)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(sdBytes)

	c, tag, err := primitives.AESGCMSeal(ks, nonce[:], nil, sdBytes)
	if err != nil {
		return nil, fmt.Errorf("state: seal secret data: %w", err)
	}

	pd := &PublicData{
		Valid:          true,
		Salt:           salt,
		NonceCtr:       nonce,
		PinRetries:     DefaultPinRetries,
		ForcePinChange: &forcePinChangeDefault,
		C:              c,
		Tag:            tag,
	}

	blob, err := Serialize(*pd)
	if err != nil {
		return nil, err
	}
	if err := store.Store(blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return pd, nil
}

// Load reads and decodes the persisted PublicData. Callers that see
// ErrNotFound or ErrInvalid must run Reset.
func Load(store Store) (*PublicData, error) {
	blob, err := store.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	pd, err := Deserialize(blob)
	if err != nil {
		return nil, err
	}
	if !pd.Valid {
		return nil, ErrInvalid
	}
	return &pd, nil
}

// UpdateSecret increments nonce_ctr, re-seals sd under ks with the new
// nonce, and persists the updated PublicData. The increment happens
// before the seal and is written atomically with the new ciphertext by
// the Store implementation (see state.FileStore).
func UpdateSecret(store Store, pd *PublicData, sd *SecretData, ks []byte) error {
	pd.NonceCtr = incrementNonce(pd.NonceCtr)

	sdBytes, err := encodeSecretData(*sd)
	if err != nil {
		return err
	}
	defer primitives.Zero(sdBytes)

	c, tag, err := primitives.AESGCMSeal(ks, pd.NonceCtr[:], nil, sdBytes)
	if err != nil {
		return fmt.Errorf("state: seal secret data: %w", err)
	}
	pd.C = c
	pd.Tag = tag

	blob, err := Serialize(*pd)
	if err != nil {
		return err
	}
	if err := store.Store(blob); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// ValidatePin decrements pd.PinRetries and persists BEFORE attempting
// decryption, so a crash mid-verification still counts the attempt. On
// success it restores PinRetries to DefaultPinRetries, re-seals under the
// incremented nonce, and returns the decrypted SecretData plus K_s'. On
// failure it reports ErrPinInvalid, or ErrPinBlocked once retries are
// exhausted.
func ValidatePin(store Store, pd *PublicData, pinBytes []byte) (*SecretData, []byte, error) {
	if pd.PinRetries == 0 {
		return nil, nil, ErrPinBlocked
	}

	pd.PinRetries--
	blob, err := Serialize(*pd)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Store(blob); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	ph := pinHash(pinBytes)
	ks := storageKey(pd.Salt, ph)

	sdBytes, err := primitives.AESGCMOpen(ks, pd.NonceCtr[:], nil, pd.C, pd.Tag)
	if err != nil {
		primitives.Zero(ks)
		return nil, nil, ErrPinInvalid
	}
	defer primitives.Zero(sdBytes)

	sd, err := decodeSecretData(sdBytes)
	if err != nil {
		primitives.Zero(ks)
		return nil, nil, err
	}

	pd.PinRetries = DefaultPinRetries
	if err := UpdateSecret(store, pd, &sd, ks); err != nil {
		primitives.Zero(ks)
		return nil, nil, err
	}

	return &sd, ks, nil
}
