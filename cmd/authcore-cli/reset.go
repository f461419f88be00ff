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
	"time"

	"github.com/sage-x-project/authcore/authcore"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reformat the device: fresh master secret and factory PIN",
	Long: `Reset generates a fresh master secret and salt, seals a freshly
initialized secret block under the factory PIN, and persists it to the
configured storage backend. Any previously-derived credentials and the
current PIN become unrecoverable.`,
	Example: `  # Reset the device configured in ./config
  authcore-cli reset

  # Reset a device using a different config directory
  authcore-cli --config-dir ./devconfig reset`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	core := authcore.NewCore(store)
	if cfg.Pin != nil {
		core.SetForcePinChangeDefault(cfg.Pin.ForcePinChangeDefault)
	}
	nowCounter := uint32(time.Now().Unix())
	if err := core.Reset(nowCounter); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}

	pub := core.PublicKey()
	fmt.Println("Device reset successful!")
	fmt.Printf("  Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("  PIN retries: %d\n", core.PublicData().PinRetries)
	fmt.Printf("  ECDH public key (x): %s\n", hex.EncodeToString(pub.X[:]))
	fmt.Printf("  ECDH public key (y): %s\n", hex.EncodeToString(pub.Y[:]))
	if cfg.Pin != nil && cfg.Pin.ForcePinChangeDefault {
		fmt.Println("  Factory PIN is now in effect; a PIN change is required before use.")
	} else {
		fmt.Println("  Factory PIN is now in effect.")
	}
	return nil
}
