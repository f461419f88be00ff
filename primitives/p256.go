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

// Package primitives wraps the NIST P-256 and AES/HKDF/HMAC primitives the
// rest of the authenticator core is built from. Every other package
// (credential, state, token, cose) composes these; nothing here knows
// about credentials, PINs, or the PIN/UV Auth Protocol.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidPoint is returned by ECDH when the peer's public key is not on
// P-256, or is the point at infinity.
var ErrInvalidPoint = errors.New("primitives: peer point is off-curve or identity")

// ErrInvalidLength is returned by AES-CBC operations when the plaintext or
// ciphertext is not a positive multiple of the AES block size.
var ErrInvalidLength = errors.New("primitives: input length is not a positive multiple of the block size")

// ErrAeadAuth is returned by AES-GCM open on tag mismatch.
var ErrAeadAuth = errors.New("primitives: AEAD authentication failed")

// RandFunc fills buf with cryptographically strong random bytes. Per
// spec.md §6 it MUST NOT fail in a well-behaved implementation; the error
// return exists so a caller backed by a fallible entropy source has
// somewhere to report it rather than panicking inside a library package.
type RandFunc func(buf []byte) error

// CryptoRandFunc adapts an io.Reader (typically crypto/rand.Reader) to
// RandFunc.
func CryptoRandFunc(r io.Reader) RandFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)
		return err
	}
}

// KeyPair is a P-256 keypair used for ECDH and as a derived credential
// key. It exposes the private scalar and public point; it has no signing
// method.
type KeyPair struct {
	priv *ecdh.PrivateKey
}

// NewP256KeyPair generates a fresh P-256 keypair from the system CSPRNG.
func NewP256KeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate P-256 key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// P256KeyPairFromScalar builds a keypair from a 32-byte big-endian scalar,
// as produced by credential derivation. A zero scalar, or one not below the
// curve order, is rejected with an error, which callers use as their
// signal to draw or expand a new candidate.
func P256KeyPairFromScalar(scalar []byte) (*KeyPair, error) {
	priv, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, fmt.Errorf("invalid P-256 scalar: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// Private returns the raw 32-byte big-endian private scalar.
func (kp *KeyPair) Private() []byte {
	return kp.priv.Bytes()
}

// PublicXY returns the 32-byte big-endian X and Y coordinates of the public
// point, matching the uncompressed SEC1 point split used by COSE_Key.
func (kp *KeyPair) PublicXY() (x, y [32]byte) {
	pub := kp.priv.PublicKey().Bytes() // 0x04 || X || Y (65 bytes)
	copy(x[:], pub[1:33])
	copy(y[:], pub[33:65])
	return x, y
}

// PublicUncompressed returns the 65-byte 0x04||X||Y SEC1 encoding.
func (kp *KeyPair) PublicUncompressed() []byte {
	return kp.priv.PublicKey().Bytes()
}

// ECDH performs a P-256 Diffie-Hellman agreement against a peer's X and Y
// coordinates, rejecting off-curve and identity points with ErrInvalidPoint.
func (kp *KeyPair) ECDH(peerX, peerY []byte) ([]byte, error) {
	return ECDH(kp.priv, peerX, peerY)
}

// ECDH performs a P-256 Diffie-Hellman agreement using an explicit private
// key and a peer's X/Y coordinates. Returns the big-endian encoding of the
// shared point's X coordinate (32 bytes), matching spec.md's z = Q.x.
func ECDH(priv *ecdh.PrivateKey, peerX, peerY []byte) ([]byte, error) {
	peerPoint, err := sec1Uncompressed(peerX, peerY)
	if err != nil {
		return nil, err
	}
	peerPub, err := ecdh.P256().NewPublicKey(peerPoint)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	z, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	if allZero(z) {
		return nil, ErrInvalidPoint
	}
	return z, nil
}

// sec1Uncompressed builds the 0x04||X||Y encoding and validates the point
// is actually on P-256 and not the identity, per spec.md §4.1's
// "rejects identity and off-curve points" requirement.
func sec1Uncompressed(x, y []byte) ([]byte, error) {
	if len(x) != 32 || len(y) != 32 {
		return nil, ErrInvalidPoint
	}
	curve := elliptic.P256()
	bx := new(big.Int).SetBytes(x)
	by := new(big.Int).SetBytes(y)
	if bx.Sign() == 0 && by.Sign() == 0 {
		return nil, ErrInvalidPoint
	}
	if !curve.IsOnCurve(bx, by) {
		return nil, ErrInvalidPoint
	}
	out := make([]byte, 65)
	out[0] = 0x04
	copy(out[1:33], x)
	copy(out[33:65], y)
	return out, nil
}

func allZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// HKDFExtract is HKDF-SHA256's extract step (RFC 5869 §2.2).
func HKDFExtract(salt, ikm []byte) []byte {
	prk := hkdf.Extract(sha256.New, ikm, salt)
	out := make([]byte, len(prk))
	copy(out, prk)
	return out
}

// HKDFExpand is HKDF-SHA256's expand step (RFC 5869 §2.3).
func HKDFExpand(prk, info []byte, length int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// HMACSHA256 computes HMAC-SHA256(key, msg).
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// SHA256 hashes msg with SHA-256.
func SHA256(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}

// CTEqual compares two byte slices in constant time. Slices of different
// lengths compare unequal at once, so only the contents, not the length,
// are protected; callers compare secrets of a known, fixed length (MAC
// tags, PIN hashes, AEAD tags).
func CTEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// AESCBCEncrypt encrypts plaintext with AES-256-CBC. The spec deliberately
// applies no padding (spec.md §9 "AES-CBC without padding") — callers must
// present a plaintext whose length is a positive multiple of the AES block
// size, or receive ErrInvalidLength.
func AESCBCEncrypt(iv, key, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 || len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrInvalidLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-cbc: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidLength
	}
	ct := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, plaintext)
	return ct, nil
}

// AESCBCDecrypt decrypts ciphertext produced by AESCBCEncrypt. It cannot
// fail on an authentication basis (the mode is unauthenticated); upstream
// integrity is the caller's responsibility (spec.md §4.4).
func AESCBCDecrypt(iv, key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-cbc: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidLength
	}
	pt := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ciphertext)
	return pt, nil
}

// AESGCMSeal seals plaintext with AES-256-GCM, returning ciphertext and tag
// separately, matching the PublicData.{c,tag} at-rest split (spec.md §3).
func AESGCMSeal(key, nonce, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aes-gcm: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, nil, fmt.Errorf("aes-gcm: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, aad)
	tagSize := aead.Overhead()
	return sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:], nil
}

// AESGCMOpen opens a ciphertext/tag pair sealed by AESGCMSeal. Tag mismatch
// (including any single bit flipped in ciphertext, tag, or nonce) is
// reported as ErrAeadAuth, never a partial plaintext.
func AESGCMOpen(key, nonce, aad, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-gcm: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("aes-gcm: %w", err)
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	pt, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAeadAuth
	}
	return pt, nil
}

// Zero overwrites b with zero bytes in place. Used on every exit path that
// held plaintext secret material (spec.md §9, "scoped secret zeroisation").
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
