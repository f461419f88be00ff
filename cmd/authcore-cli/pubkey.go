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

	"github.com/sage-x-project/authcore/cose"
	"github.com/spf13/cobra"
)

var pubkeyFormat string

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the token's ECDH public key",
	Long: `Print the authenticator's current PIN/UV Auth Protocol Two ECDH
public key, the first message a platform needs to begin the handshake.`,
	Example: `  # Print the raw x/y coordinates
  authcore-cli pubkey

  # Print the COSE_Key CBOR encoding, hex-dumped
  authcore-cli pubkey --format cose`,
	RunE: runPubkey,
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
	pubkeyCmd.Flags().StringVarP(&pubkeyFormat, "format", "f", "xy", "output format (xy, cose)")
}

func runPubkey(cmd *cobra.Command, args []string) error {
	core, err := bringUpCore()
	if err != nil {
		return err
	}

	key := core.PublicKey()
	switch pubkeyFormat {
	case "xy":
		fmt.Printf("x: %s\n", hex.EncodeToString(key.X[:]))
		fmt.Printf("y: %s\n", hex.EncodeToString(key.Y[:]))
	case "cose":
		b, err := cose.Encode(key)
		if err != nil {
			return fmt.Errorf("encode COSE_Key: %w", err)
		}
		fmt.Println(hex.EncodeToString(b))
	default:
		return fmt.Errorf("unsupported output format: %s", pubkeyFormat)
	}
	return nil
}
