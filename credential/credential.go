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

// Package credential derives per-credential P-256 keypairs from a single
// 32-byte master secret. Credentials are never stored on the authenticator:
// the relying party holds the only durable handle to one, the 32-byte
// context CTX, and the keypair is rebuilt from (M, CTX) on demand.
package credential

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sage-x-project/authcore/primitives"
)

// MasterSecretSize is the fixed length of the master secret M.
const MasterSecretSize = 32

// ContextSize is the fixed length of the per-credential context CTX.
const ContextSize = 32

const deriveInfoLabel = "CRED"

// maxExpandAttempts bounds the re-expand-with-incremented-counter loop
// that handles the rare out-of-range scalar case. P-256's order is within
// 2^-32 of 2^256, so a second attempt succeeds for all practical purposes;
// this bound only guards against a pathological RNG/HKDF mismatch.
const maxExpandAttempts = 8

// ErrInvalidMasterSecret is returned when M is not exactly MasterSecretSize
// bytes.
var ErrInvalidMasterSecret = errors.New("credential: master secret must be 32 bytes")

// ErrInvalidContext is returned when CTX is not exactly ContextSize bytes.
var ErrInvalidContext = errors.New("credential: context must be 32 bytes")

// ErrContextInvalid is the credential-ID integrity error from spec.md §9:
// the context's MAC did not verify against the master secret's subkey.
var ErrContextInvalid = errors.New("credential: context failed integrity check")

// NewCredential draws a fresh CTX from rand and derives its keypair,
// mirroring derive_credential's derivation exactly so the two never
// disagree about what a given (M, CTX) pair produces.
func NewCredential(m []byte, rnd primitives.RandFunc) (ctx []byte, kp *primitives.KeyPair, err error) {
	if len(m) != MasterSecretSize {
		return nil, nil, ErrInvalidMasterSecret
	}
	ctx = make([]byte, ContextSize)
	if err := rnd(ctx); err != nil {
		return nil, nil, fmt.Errorf("credential: draw context: %w", err)
	}
	kp, err = deriveKeyPair(m, ctx)
	if err != nil {
		return nil, nil, err
	}
	return ctx, kp, nil
}

// DeriveCredential is the deterministic counterpart to NewCredential: the
// same (M, CTX) pair always yields bit-identical keys, across reboots and
// across processes.
func DeriveCredential(m, ctx []byte) (*primitives.KeyPair, error) {
	if len(m) != MasterSecretSize {
		return nil, ErrInvalidMasterSecret
	}
	if len(ctx) != ContextSize {
		return nil, ErrInvalidContext
	}
	return deriveKeyPair(m, ctx)
}

// deriveKeyPair implements sub = HKDF-extract(salt=CTX, ikm=M);
// priv = HKDF-expand(sub, info="CRED"<counter>, L=32), retrying with an
// incremented counter whenever the candidate scalar is zero or >= the
// curve order (crypto/ecdh rejects both, so that rejection is the signal
// to retry rather than a separate range check here).
func deriveKeyPair(m, ctx []byte) (*primitives.KeyPair, error) {
	sub := primitives.HKDFExtract(ctx, m)
	defer primitives.Zero(sub)

	for attempt := 0; attempt < maxExpandAttempts; attempt++ {
		info := deriveInfo(attempt)
		scalar, err := primitives.HKDFExpand(sub, info, 32)
		if err != nil {
			return nil, fmt.Errorf("credential: expand private scalar: %w", err)
		}
		kp, err := primitives.P256KeyPairFromScalar(scalar)
		primitives.Zero(scalar)
		if err == nil {
			return kp, nil
		}
		// Out-of-range or zero scalar: re-expand under a distinguishing
		// info string and try again, per spec.md §4.2.
	}
	return nil, fmt.Errorf("credential: could not derive an in-range P-256 scalar after %d attempts", maxExpandAttempts)
}

// deriveInfo builds the HKDF info parameter for a given retry attempt.
// Attempt 0 uses the bare label so the common case matches the spec's
// literal info="CRED"; later attempts append a 4-byte big-endian counter
// so a retry can never collide with the first expansion's output.
func deriveInfo(attempt int) []byte {
	if attempt == 0 {
		return []byte(deriveInfoLabel)
	}
	info := make([]byte, len(deriveInfoLabel)+4)
	copy(info, deriveInfoLabel)
	binary.BigEndian.PutUint32(info[len(deriveInfoLabel):], uint32(attempt))
	return info
}
