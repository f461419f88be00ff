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

	"github.com/sage-x-project/authcore/primitives"
	"github.com/spf13/cobra"
)

var deriveCredentialPin string

var deriveCredentialCmd = &cobra.Command{
	Use:   "derive-credential",
	Short: "Derive a fresh per-credential P-256 keypair",
	Long: `derive-credential validates the given PIN, then derives a fresh P-256
keypair from the device's master secret and a freshly-drawn 32-byte
context. The context is the only durable handle to the credential; the
authenticator never stores it. Keep it with the relying party record and
pass it back to re-derive the same keypair.`,
	Example: `  authcore-cli derive-credential --pin candystick`,
	RunE:    runDeriveCredential,
}

func init() {
	rootCmd.AddCommand(deriveCredentialCmd)
	deriveCredentialCmd.Flags().StringVar(&deriveCredentialPin, "pin", "", "PIN to validate before deriving (required)")
	deriveCredentialCmd.MarkFlagRequired("pin")
}

func runDeriveCredential(cmd *cobra.Command, args []string) error {
	core, err := bringUpCore()
	if err != nil {
		return err
	}

	sd, err := core.ValidatePin([]byte(deriveCredentialPin))
	if err != nil {
		return fmt.Errorf("validate PIN: %w", err)
	}
	defer primitives.Zero(sd.MasterSecret[:])

	ctx, kp, err := core.DeriveCredential(sd.MasterSecret[:])
	if err != nil {
		return fmt.Errorf("derive credential: %w", err)
	}

	x, y := kp.PublicXY()
	fmt.Println("Credential derived.")
	fmt.Printf("  Context (keep this): %s\n", hex.EncodeToString(ctx))
	fmt.Printf("  Public key (x): %s\n", hex.EncodeToString(x[:]))
	fmt.Printf("  Public key (y): %s\n", hex.EncodeToString(y[:]))
	return nil
}
