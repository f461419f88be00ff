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
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var cfgDir string

var rootCmd = &cobra.Command{
	Use:   "authcore-cli",
	Short: "authcore device CLI - bring-up and diagnostics for the authenticator core",
	Long: `authcore-cli drives the authenticator's cryptographic core directly,
for manual bring-up and diagnostics outside of a CTAP2 command dispatcher.

This tool supports:
- Device reset and state reload
- ECDH public key inspection
- Credential derivation
- PIN validation
- Token-key regeneration`,
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&cfgDir, "config-dir", "c", "config", "configuration directory")

	// Note: Commands are registered in their respective files
	// - reset.go: resetCmd
	// - pubkey.go: pubkeyCmd
	// - derive_credential.go: deriveCredentialCmd
	// - validate_pin.go: validatePinCmd
	// - regenerate.go: regenerateCmd
}
