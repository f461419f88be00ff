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
	"errors"
	"fmt"

	"github.com/sage-x-project/authcore/primitives"
	"github.com/sage-x-project/authcore/state"
	"github.com/spf13/cobra"
)

var pinFlag string

var validatePinCmd = &cobra.Command{
	Use:   "validate-pin",
	Short: "Validate a PIN against the stored PIN hash",
	Long: `Validate checks the given PIN against the device's stored PIN hash,
decrementing and persisting the retry counter on every attempt (a failed
attempt still counts, even across a crash). Success prints the retry
ceiling being restored; it never prints the decrypted master secret.`,
	Example: `  authcore-cli validate-pin --pin candystick`,
	RunE:    runValidatePin,
}

func init() {
	rootCmd.AddCommand(validatePinCmd)
	validatePinCmd.Flags().StringVar(&pinFlag, "pin", "", "PIN to validate (required)")
	validatePinCmd.MarkFlagRequired("pin")
}

func runValidatePin(cmd *cobra.Command, args []string) error {
	core, err := bringUpCore()
	if err != nil {
		return err
	}

	sd, err := core.ValidatePin([]byte(pinFlag))
	if err != nil {
		switch {
		case errors.Is(err, state.ErrPinBlocked):
			return fmt.Errorf("PIN retries exhausted, device must be reset")
		case errors.Is(err, state.ErrPinInvalid):
			return fmt.Errorf("PIN does not match, retries remaining: %d", core.PublicData().PinRetries)
		default:
			return fmt.Errorf("validate PIN: %w", err)
		}
	}
	defer primitives.Zero(sd.MasterSecret[:])

	fmt.Println("PIN accepted.")
	fmt.Printf("  Retries restored to: %d\n", core.PublicData().PinRetries)
	fmt.Printf("  PIN length on record: %d\n", sd.PinLength)
	return nil
}
