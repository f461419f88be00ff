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
	"time"

	"github.com/sage-x-project/authcore/primitives"
)

// RegenerationEvent records one authenticatorKeyAgreementKey replacement.
// It is a diagnostic aid only — nothing in spec.md requires it, and it is
// never persisted to PublicData/SecretData; it lives purely in RAM and is
// lost on power-off along with the rest of TokenState.
type RegenerationEvent struct {
	At time.Time
	X  [32]byte
	Y  [32]byte
}

// RegenerationHistory is an in-RAM, append-only log of the key-agreement
// keypairs a TokenState has cycled through, newest first when read back
// via Events. Bounded to maxRegenerationEvents so a platform that spams
// authenticatorClientPIN/getKeyAgreement + regenerate in a loop cannot
// grow it without bound.
type RegenerationHistory struct {
	events []RegenerationEvent
}

const maxRegenerationEvents = 32

func (h *RegenerationHistory) record(kp *primitives.KeyPair) {
	x, y := kp.PublicXY()
	h.events = append(h.events, RegenerationEvent{At: time.Now(), X: x, Y: y})
	if len(h.events) > maxRegenerationEvents {
		h.events = h.events[len(h.events)-maxRegenerationEvents:]
	}
}

// Events returns the recorded regeneration events, most recent first.
func (ts *TokenState) Events() []RegenerationEvent {
	src := ts.history.events
	out := make([]RegenerationEvent, len(src))
	for i, e := range src {
		out[len(src)-1-i] = e
	}
	return out
}
