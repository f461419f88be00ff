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

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Replace the token's ECDH keypair and clear its pinUvAuthToken",
	Long: `regenerate draws a fresh ECDH key-agreement keypair for the PIN/UV
Auth Protocol Two handshake, clears the current pinUvAuthToken, and stops
any in-progress token session. A platform that had already completed a
handshake must perform it again against the new public key.

Since the token state lives only in RAM, a freshly booted process already
has a freshly-regenerated keypair; this command exists to force that
without a full power cycle.`,
	Example: `  authcore-cli regenerate`,
	RunE:    runRegenerate,
}

func init() {
	rootCmd.AddCommand(regenerateCmd)
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	core, err := bringUpCore()
	if err != nil {
		return err
	}

	if err := core.Regenerate(); err != nil {
		return fmt.Errorf("regenerate token keypair: %w", err)
	}

	pub := core.PublicKey()
	fmt.Println("Token keypair regenerated.")
	fmt.Printf("  New public key (x): %s\n", hex.EncodeToString(pub.X[:]))
	fmt.Printf("  New public key (y): %s\n", hex.EncodeToString(pub.Y[:]))

	events := core.Token().Events()
	fmt.Printf("  Regeneration history (%d events):\n", len(events))
	for i, ev := range events {
		if i >= 5 {
			fmt.Printf("  ... and %d more\n", len(events)-5)
			break
		}
		fmt.Printf("  %s: x=%s\n", ev.At.Format("2006-01-02 15:04:05"), hex.EncodeToString(ev.X[:8]))
	}
	return nil
}
