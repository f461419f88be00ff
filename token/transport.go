// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package token

import (
	"errors"
	"fmt"

	"github.com/sage-x-project/authcore/cose"
	"github.com/sage-x-project/authcore/primitives"
)

// SharedSize is the length of the key material produced by ECDH: a
// 32-byte hmac_key followed by a 32-byte aes_key (spec.md §4.4).
const SharedSize = 64

const (
	hmacKeyInfo = "CTAP2 HMAC key"
	aesKeyInfo  = "CTAP2 AES key"
)

// ErrShortShared is returned when a caller presents fewer than SharedSize
// bytes of key-agreement output to Encrypt or Decrypt.
var ErrShortShared = errors.New("token: shared key material shorter than 64 bytes")

// PublicKey returns the authenticator's own COSE_Key-shaped ECDH public
// point, sent to the platform during the handshake.
func (ts *TokenState) PublicKey() cose.Key {
	x, y := ts.AgreementKey.PublicXY()
	return cose.Key{X: x, Y: y}
}

// ECDH performs the key-agreement handshake against the platform's COSE
// EC2 public key: Q = ecdh(a, peer.x, peer.y), z = Q.x, prk =
// HKDF-extract(salt=0x00×32, ikm=z), and returns hmac_key‖aes_key, each
// half HKDF-expanded from prk under its own fixed info string
// (spec.md §4.4 steps 1-6, §6).
func (ts *TokenState) ECDH(peer cose.Key) ([]byte, error) {
	z, err := ts.AgreementKey.ECDH(peer.X[:], peer.Y[:])
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(z)

	salt := make([]byte, 32)
	prk := primitives.HKDFExtract(salt, z)
	defer primitives.Zero(prk)

	hmacKey, err := primitives.HKDFExpand(prk, []byte(hmacKeyInfo), 32)
	if err != nil {
		return nil, fmt.Errorf("token: derive hmac_key: %w", err)
	}
	aesKey, err := primitives.HKDFExpand(prk, []byte(aesKeyInfo), 32)
	if err != nil {
		primitives.Zero(hmacKey)
		return nil, fmt.Errorf("token: derive aes_key: %w", err)
	}

	shared := make([]byte, 0, SharedSize)
	shared = append(shared, hmacKey...)
	shared = append(shared, aesKey...)
	primitives.Zero(hmacKey)
	primitives.Zero(aesKey)
	return shared, nil
}

// Encrypt encrypts plaintext under shared's aes_key half (shared[32:64])
// with AES-256-CBC under the given 16-byte iv, returning the wire framing
// iv‖ct (spec.md §4.4, §6). The caller supplies iv; this package does not
// generate it, so the CTAP2 command layer controls IV reuse policy.
func Encrypt(iv, shared, plaintext []byte) ([]byte, error) {
	if len(shared) < SharedSize {
		return nil, ErrShortShared
	}
	ct, err := primitives.AESCBCEncrypt(iv, shared[32:64], plaintext)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(iv)+len(ct))
	out = append(out, iv...)
	out = append(out, ct...)
	return out, nil
}

// Decrypt splits ivCt into its 16-byte iv prefix and ciphertext suffix and
// decrypts under shared's aes_key half. AES-CBC here is unauthenticated
// (spec.md §9): callers that need integrity must authenticate the
// plaintext separately via Authenticate/Verify.
func Decrypt(shared, ivCt []byte) ([]byte, error) {
	if len(shared) < SharedSize {
		return nil, ErrShortShared
	}
	if len(ivCt) < 16 {
		return nil, primitives.ErrInvalidLength
	}
	iv, ct := ivCt[:16], ivCt[16:]
	return primitives.AESCBCDecrypt(iv, shared[32:64], ct)
}

// Authenticate computes HMAC-SHA256(key, msg), the authenticate(key, msg)
// primitive of spec.md §4.4.
func Authenticate(key, msg []byte) []byte {
	return primitives.HMACSHA256(key, msg)
}

// Verify checks a MAC produced by Authenticate in constant time. When the
// key being verified against is this token's own pin_token, the caller
// MUST pass isPinToken=true: verify then additionally returns false
// whenever the token is not currently InUse, per spec.md §4.4's
// verify(key, msg, mac) definition.
func (ts *TokenState) Verify(key, msg, mac []byte, isPinToken bool) bool {
	if isPinToken && !ts.InUse {
		return false
	}
	want := Authenticate(key, msg)
	return primitives.CTEqual(want, mac)
}
