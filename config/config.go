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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// spec.md §6's fixed defaults.
const (
	defaultPinRetryCeiling         uint8  = 8
	defaultPinMaxLength            uint8  = 63
	defaultInitialUsageTimeLimitMs uint32 = 19000
	defaultUserPresentTimeLimitMs  uint32 = 19000
	defaultMaxUsageTimePeriodMs    uint32 = 600000
)

// LoadFromFile loads a DeviceConfig from a YAML (or, failing that, JSON)
// file, then fills in any unset fields with spec-mandated defaults.
func LoadFromFile(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DeviceConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves cfg to path, choosing YAML or JSON by file extension.
func SaveToFile(cfg *DeviceConfig, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in every field spec.md fixes a value for, and any
// nil sub-config, so a caller never has to nil-check before reading.
func setDefaults(cfg *DeviceConfig) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Pin == nil {
		cfg.Pin = &PinConfig{}
	}
	if cfg.Pin.RetryCeiling == 0 {
		cfg.Pin.RetryCeiling = defaultPinRetryCeiling
	}
	if cfg.Pin.MaxLength == 0 {
		cfg.Pin.MaxLength = defaultPinMaxLength
	}

	if cfg.Token == nil {
		cfg.Token = &TokenConfig{}
	}
	if cfg.Token.InitialUsageTimeLimitMs == 0 {
		cfg.Token.InitialUsageTimeLimitMs = defaultInitialUsageTimeLimitMs
	}
	if cfg.Token.UserPresentTimeLimitMs == 0 {
		cfg.Token.UserPresentTimeLimitMs = defaultUserPresentTimeLimitMs
	}
	if cfg.Token.MaxUsageTimePeriodMs == 0 {
		cfg.Token.MaxUsageTimePeriodMs = defaultMaxUsageTimePeriodMs
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{Backend: "memory"}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
