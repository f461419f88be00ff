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

// Package authcore provides centralized management of the authenticator's
// cryptographic core, wiring primitives, credential, state, and token
// into the small set of device-level operations a CTAP2 command
// dispatcher (out of this module's scope) would call into.
package authcore

import (
	"crypto/rand"
	"fmt"

	"github.com/sage-x-project/authcore/cose"
	"github.com/sage-x-project/authcore/credential"
	"github.com/sage-x-project/authcore/primitives"
	"github.com/sage-x-project/authcore/state"
	"github.com/sage-x-project/authcore/token"
)

// Core holds the device's persistent-state backend and its live token
// state, and sequences the operations spec.md describes independently
// (Reset, PIN validation, credential derivation, the token handshake)
// into the device-level lifecycle a caller actually drives.
type Core struct {
	store                 state.Store
	rnd                   primitives.RandFunc
	forcePinChangeDefault bool
	public                *state.PublicData
	token                 *token.TokenState
	deriver               credential.Deriver
}

// NewCore wires a Core against the given persistent-state backend, using
// crypto/rand as its entropy source. ForcePinChange on Reset defaults to
// false; set it with SetForcePinChangeDefault.
func NewCore(store state.Store) *Core {
	return &Core{
		store: store,
		rnd:   primitives.CryptoRandFunc(rand.Reader),
	}
}

// SetRand overrides the entropy source, for deterministic testing.
func (c *Core) SetRand(rnd primitives.RandFunc) {
	c.rnd = rnd
}

// SetForcePinChangeDefault controls whether Reset seeds a freshly
// reformatted device's PublicData.ForcePinChange as true, forcing a PIN
// change before the factory PIN can be used to authorize anything
// (spec.md §9: a shipped device with a known default PIN is a
// documented pre-production posture; production deployments MUST set
// this true). Device configuration supplies this via
// config.PinConfig.ForcePinChangeDefault.
func (c *Core) SetForcePinChangeDefault(on bool) {
	c.forcePinChangeDefault = on
}

// RequireContextIntegrity toggles the credential-ID integrity MAC check
// (spec.md §9) on DeriveCredentialWithContext. DeriveCredential, which
// draws a fresh context, does not check a MAC.
func (c *Core) RequireContextIntegrity(on bool) {
	c.deriver.RequireContextIntegrity = on
}

// Reset reinitializes the device: a fresh master secret and default PIN
// in persistent state, and a fresh token (ECDH keypair + pinUvAuthToken)
// in RAM. nowCounter seeds the at-rest nonce counter (spec.md §6).
func (c *Core) Reset(nowCounter uint32) error {
	pd, err := state.Reset(c.store, c.rnd, nowCounter, c.forcePinChangeDefault)
	if err != nil {
		return fmt.Errorf("authcore: reset persistent state: %w", err)
	}
	c.public = pd

	ts, err := token.Initialize(c.rnd)
	if err != nil {
		return fmt.Errorf("authcore: initialize token state: %w", err)
	}
	c.token = ts
	return nil
}

// Load reads the persistent state blob and brings up a fresh token,
// for power-up without reformatting (spec.md §4.3/§4.4: TokenState is
// always rebuilt from scratch at boot; only PublicData/SecretData
// persist across power cycles).
func (c *Core) Load() error {
	pd, err := state.Load(c.store)
	if err != nil {
		return fmt.Errorf("authcore: load persistent state: %w", err)
	}
	c.public = pd

	ts, err := token.Initialize(c.rnd)
	if err != nil {
		return fmt.Errorf("authcore: initialize token state: %w", err)
	}
	c.token = ts
	return nil
}

// ValidatePin checks pin against the stored PIN hash, decrementing and
// persisting the retry counter on every attempt (spec.md §4.3). On
// success it returns the device's master secret's decrypted SecretData,
// which the caller is responsible for zeroing once done
// (primitives.Zero(secretData.MasterSecret[:])).
func (c *Core) ValidatePin(pin []byte) (*state.SecretData, error) {
	sd, ks, err := state.ValidatePin(c.store, c.public, pin)
	if err != nil {
		return nil, err
	}
	primitives.Zero(ks)
	return sd, nil
}

// DeriveCredential derives a P-256 keypair from the device's master
// secret and a per-credential context (spec.md §4.2). masterSecret is
// typically state.SecretData.MasterSecret from a prior ValidatePin.
func (c *Core) DeriveCredential(masterSecret []byte) (ctx []byte, kp *primitives.KeyPair, err error) {
	return credential.NewCredential(masterSecret, c.rnd)
}

// DeriveCredentialWithContext re-derives a previously-issued credential
// keypair from its context, optionally verifying ctxMAC when
// RequireContextIntegrity is on.
func (c *Core) DeriveCredentialWithContext(masterSecret, ctx, ctxMAC []byte) (*primitives.KeyPair, error) {
	return c.deriver.Derive(masterSecret, ctx, ctxMAC)
}

// PublicKey returns the token's COSE_Key-encoded ECDH public point, the
// first message of the PIN/UV Auth Protocol Two handshake.
func (c *Core) PublicKey() cose.Key {
	return c.token.PublicKey()
}

// Handshake performs the ECDH agreement against the platform's public
// key, producing the 64-byte hmac_key‖aes_key shared material.
func (c *Core) Handshake(peer cose.Key) ([]byte, error) {
	return c.token.ECDH(peer)
}

// BeginUsing transitions the token Idle → InUse after a successful PIN
// or UV check, caching the storage key derived from this handshake for
// later re-sealing of persistent state.
func (c *Core) BeginUsing(userIsPresent bool, permissions uint8, storageKey []byte, nowMs uint32) {
	c.token.BeginUsing(userIsPresent, permissions, storageKey, nowMs)
}

// Observe polls the token's usage timer; callers invoke this on every
// CTAP2 command boundary (spec.md §4.4, §9).
func (c *Core) Observe(nowMs uint32) {
	c.token.Observe(nowMs)
}

// StopUsing cancels the current token session unconditionally.
func (c *Core) StopUsing() {
	c.token.StopUsing()
}

// Regenerate replaces the token's ECDH keypair and clears its
// pinUvAuthToken, then stops any in-progress session.
func (c *Core) Regenerate() error {
	if err := c.token.Regenerate(c.rnd); err != nil {
		return err
	}
	c.token.StopUsing()
	return nil
}

// Token exposes the live TokenState for callers that need direct access
// (e.g. Authenticate/Verify, RegenerationHistory).
func (c *Core) Token() *token.TokenState {
	return c.token
}

// PublicData exposes the current in-RAM snapshot of persistent state's
// public half, refreshed by Reset/Load/ValidatePin.
func (c *Core) PublicData() *state.PublicData {
	return c.public
}
