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

// Package config loads the authenticator core's device-level settings:
// the PIN retry ceiling and default PIN policy, the PIN/UV token's time
// limits, and the persistent-state storage backend. Every field here has
// a spec-mandated default (spec.md §6); a config file only overrides
// them, it never supplies a value the spec leaves undefined.
package config

// DeviceConfig is the top-level, environment-scoped configuration for
// one authenticator device.
type DeviceConfig struct {
	Environment string         `yaml:"environment" json:"environment"`
	Pin         *PinConfig     `yaml:"pin" json:"pin"`
	Token       *TokenConfig   `yaml:"token" json:"token"`
	Storage     *StorageConfig `yaml:"storage" json:"storage"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
}

// PinConfig controls the PIN subsystem's policy knobs (spec.md §4.3,
// §6).
type PinConfig struct {
	// RetryCeiling is the configured PIN retry ceiling (default 8). It is
	// loaded and validated only: state.ValidatePin uses the fixed
	// state.DefaultPinRetries and does not read this field.
	RetryCeiling uint8 `yaml:"retry_ceiling" json:"retry_ceiling"`
	// MaxLength is the configured PIN length bound (default 63, the CTAP2
	// cap; the factory PIN is 10 bytes). It is loaded and validated only;
	// no code in this module reads it.
	MaxLength uint8 `yaml:"max_length" json:"max_length"`
	// ForcePinChangeDefault seeds PublicData.ForcePinChange on Reset.
	// spec.md §3 marks the field itself required but leaves the
	// production default to the device policy (spec.md §9).
	ForcePinChangeDefault bool `yaml:"force_pin_change_default" json:"force_pin_change_default"`
}

// TokenConfig controls the PIN/UV Auth Protocol Two token's time limits
// (spec.md §4.4, §6). The values are loaded and validated only: the token
// package uses its own fixed constants (token.InitialUsageTimeLimitMs and
// friends) and does not read this type.
type TokenConfig struct {
	InitialUsageTimeLimitMs uint32 `yaml:"initial_usage_time_limit_ms" json:"initial_usage_time_limit_ms"`
	UserPresentTimeLimitMs  uint32 `yaml:"user_present_time_limit_ms" json:"user_present_time_limit_ms"`
	MaxUsageTimePeriodMs    uint32 `yaml:"max_usage_time_period_ms" json:"max_usage_time_period_ms"`
}

// StorageConfig selects and configures the persistent-state backend
// (spec.md §6's persist_load/persist_store collaborator).
type StorageConfig struct {
	// Backend is "memory" or "file".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the blob path when Backend is "file".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
	Output string `yaml:"output" json:"output"` // stdout, stderr, file path
}

// ValidationError is one configuration problem found by Validate.
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// Validate checks cfg for internally-inconsistent or out-of-range
// values. Warnings (e.g. a PIN retry ceiling above the spec's default of
// 8) are reported but do not fail Load; only "error"-level entries do.
func Validate(cfg *DeviceConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Pin != nil {
		if cfg.Pin.RetryCeiling == 0 {
			errs = append(errs, ValidationError{Field: "pin.retry_ceiling", Message: "must be at least 1", Level: "error"})
		} else if cfg.Pin.RetryCeiling > defaultPinRetryCeiling {
			errs = append(errs, ValidationError{Field: "pin.retry_ceiling", Message: "above the default of 8", Level: "warning"})
		}
		if cfg.Pin.MaxLength == 0 || cfg.Pin.MaxLength > 63 {
			errs = append(errs, ValidationError{Field: "pin.max_length", Message: "must be between 1 and 63", Level: "error"})
		}
	}

	if cfg.Token != nil {
		if cfg.Token.InitialUsageTimeLimitMs == 0 {
			errs = append(errs, ValidationError{Field: "token.initial_usage_time_limit_ms", Message: "must be nonzero", Level: "error"})
		}
		if cfg.Token.MaxUsageTimePeriodMs < cfg.Token.InitialUsageTimeLimitMs {
			errs = append(errs, ValidationError{Field: "token.max_usage_time_period_ms", Message: "must be >= initial_usage_time_limit_ms", Level: "error"})
		}
	}

	if cfg.Storage != nil {
		switch cfg.Storage.Backend {
		case "memory":
		case "file":
			if cfg.Storage.Path == "" {
				errs = append(errs, ValidationError{Field: "storage.path", Message: "required when backend is \"file\"", Level: "error"})
			}
		default:
			errs = append(errs, ValidationError{Field: "storage.backend", Message: "must be \"memory\" or \"file\"", Level: "error"})
		}
	}

	return errs
}
