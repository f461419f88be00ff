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

// Package token owns the PIN/UV Auth Protocol Two state: the ephemeral
// authenticator ECDH keypair, the 32-byte pinUvAuthToken, and the
// time-bounded in-use state machine built on top of them. The package is
// single-threaded and cooperative, matching the authenticator core's
// concurrency model — callers serialize access, TokenState holds no lock.
package token

import (
	"errors"

	"github.com/sage-x-project/authcore/primitives"
)

// Time limits and the largeBlobWrite permission bit, all fixed constants
// per spec.md §4.4/§6.
const (
	InitialUsageTimeLimitMs uint32 = 19000
	UserPresentTimeLimitMs  uint32 = 19000
	MaxUsageTimePeriodMs    uint32 = 600000

	PermissionLargeBlobWrite uint8 = 0x10

	// MaxRPIDLength bounds TokenState.RPID.
	MaxRPIDLength = 128

	pinTokenSize = 32

	// maxScalarDrawAttempts bounds the redraw-on-out-of-range-scalar loop
	// in newAgreementKeyPair. P-256's order is within 2^-32 of 2^256, so a
	// second draw succeeds for all practical purposes; this bound only
	// guards against a pathological RNG.
	maxScalarDrawAttempts = 8
)

// ErrRPIDTooLong is returned by SetRPID when rpID exceeds MaxRPIDLength.
var ErrRPIDTooLong = errors.New("token: rp_id exceeds maximum length")

// TokenState is the in-RAM PIN/UV token and its owning ECDH keypair. It is
// lost on power-off and must be rebuilt by Initialize at every power-up.
//
// Invariant (spec.md §3): UsageTimer == nil iff InUse == false iff
// PinKey == nil.
type TokenState struct {
	AgreementKey *primitives.KeyPair
	PinToken     [pinTokenSize]byte

	InUse       bool
	Permissions uint8
	RPID        string

	UserPresent  bool
	UserVerified bool

	InitialUsageTimeLimit uint32
	UserPresentTimeLimit  uint32
	MaxUsageTimePeriod    uint32
	UsageTimer            *uint32
	Used                  bool

	PinKey []byte

	PinRetries uint8
	UVRetries  uint8

	history RegenerationHistory
}

// Initialize is called at power-up: it generates a fresh ECDH keypair via
// Regenerate, then a fresh pinUvAuthToken via ResetPinUvAuthToken,
// starting the token in the Idle state.
func Initialize(rnd primitives.RandFunc) (*TokenState, error) {
	ts := &TokenState{
		MaxUsageTimePeriod: MaxUsageTimePeriodMs,
		PinRetries:         8,
		UVRetries:          8,
	}
	if err := ts.Regenerate(rnd); err != nil {
		return nil, err
	}
	if err := ts.ResetPinUvAuthToken(rnd); err != nil {
		return nil, err
	}
	return ts, nil
}

// GetUserVerifiedFlag reports the user-verified flag, which only reads as
// true while the token is InUse.
func (ts *TokenState) GetUserVerifiedFlag() bool {
	return ts.UserVerified && ts.InUse
}

// SetRPID binds the token to a relying-party id, enforcing the
// ≤128-byte bound from spec.md §3.
func (ts *TokenState) SetRPID(rpID string) error {
	if len(rpID) > MaxRPIDLength {
		return ErrRPIDTooLong
	}
	ts.RPID = rpID
	return nil
}

// BeginUsing transitions Idle → InUse: it records whether the user was
// observed present, marks user_verified, starts the usage timer at t0,
// caches the storage key derived for this session, and sets the
// requested permission bitmask. Both 19-second limits are (re)set to
// their defaults, per spec.md §4.4.
func (ts *TokenState) BeginUsing(userIsPresent bool, permissions uint8, pinKey []byte, t0 uint32) {
	ts.InUse = true
	ts.UserPresent = userIsPresent
	ts.UserVerified = true
	ts.Permissions = permissions
	ts.PinKey = pinKey
	timer := t0
	ts.UsageTimer = &timer
	ts.InitialUsageTimeLimit = InitialUsageTimeLimitMs
	ts.UserPresentTimeLimit = UserPresentTimeLimitMs
}

// Observe polls the usage timer against nowMs, using wrap-around-safe
// unsigned subtraction (spec.md §6, §9). It is a no-op in Idle.
func (ts *TokenState) Observe(nowMs uint32) {
	if !ts.InUse || ts.UsageTimer == nil {
		return
	}
	delta := nowMs - *ts.UsageTimer // uint32 wraps correctly on its own

	if delta > ts.UserPresentTimeLimit {
		ts.UserPresent = false
	}
	if (delta > ts.InitialUsageTimeLimit && !ts.Used) || delta > ts.MaxUsageTimePeriod {
		ts.toIdle()
	}
}

// MarkUsed records the first successful authenticated operation with this
// token, extending its effective life to MaxUsageTimePeriod.
func (ts *TokenState) MarkUsed() {
	ts.Used = true
}

// ClearPermissionsExceptLbw masks Permissions down to the largeBlobWrite
// bit alone.
func (ts *TokenState) ClearPermissionsExceptLbw() {
	ts.Permissions &= PermissionLargeBlobWrite
}

// StopUsing unconditionally transitions InUse → Idle: the in-protocol
// cancellation primitive. Beyond the common Idle-clearing, it also drops
// the rp_id binding and restores MaxUsageTimePeriod to its 600-second
// default.
func (ts *TokenState) StopUsing() {
	ts.toIdle()
	ts.RPID = ""
	ts.MaxUsageTimePeriod = MaxUsageTimePeriodMs
}

// toIdle performs the Idle-clearing shared by Observe's forced transition
// and StopUsing: clears in_use, all user-presence/verification flags,
// the usage timer, used, and the cached storage key, then restores the
// two 19-second limits to their defaults.
func (ts *TokenState) toIdle() {
	ts.InUse = false
	ts.Permissions = 0
	ts.UserPresent = false
	ts.UserVerified = false
	ts.UsageTimer = nil
	ts.Used = false
	if ts.PinKey != nil {
		primitives.Zero(ts.PinKey)
		ts.PinKey = nil
	}
	ts.InitialUsageTimeLimit = InitialUsageTimeLimitMs
	ts.UserPresentTimeLimit = UserPresentTimeLimitMs
}

// Regenerate replaces the ECDH key-agreement keypair and wipes the
// current pinUvAuthToken's bytes in place. It does not by itself clear
// InUse; callers that regenerate normally also call StopUsing.
//
// The keypair is drawn through rnd alone (spec.md's single-randomness-
// collaborator architecture), never through crypto/rand directly, so a
// caller that has overridden the entropy source for deterministic
// testing (authcore.Core.SetRand) gets a reproducible agreement key too.
func (ts *TokenState) Regenerate(rnd primitives.RandFunc) error {
	kp, err := newAgreementKeyPair(rnd)
	if err != nil {
		return err
	}
	ts.AgreementKey = kp
	primitives.Zero(ts.PinToken[:])
	ts.history.record(kp)
	return nil
}

// newAgreementKeyPair draws a 32-byte scalar via rnd and builds a P-256
// keypair from it, redrawing whenever the scalar is zero or out of the
// curve's range — the same reject-and-retry shape
// credential.deriveKeyPair uses for its HKDF-derived scalars, applied
// here to a directly-drawn one.
func newAgreementKeyPair(rnd primitives.RandFunc) (*primitives.KeyPair, error) {
	var scalar [32]byte
	for attempt := 0; attempt < maxScalarDrawAttempts; attempt++ {
		if err := rnd(scalar[:]); err != nil {
			return nil, err
		}
		kp, err := primitives.P256KeyPairFromScalar(scalar[:])
		primitives.Zero(scalar[:])
		if err == nil {
			return kp, nil
		}
		// Out-of-range or zero scalar: redraw and try again.
	}
	return nil, errors.New("token: could not draw an in-range P-256 scalar after a bounded number of attempts")
}

// ResetPinUvAuthToken replaces the pinUvAuthToken with 32 fresh random
// bytes.
func (ts *TokenState) ResetPinUvAuthToken(rnd primitives.RandFunc) error {
	var tok [pinTokenSize]byte
	if err := rnd(tok[:]); err != nil {
		return err
	}
	ts.PinToken = tok
	return nil
}
