// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// candidateConfigNames lists the file names Load tries, in priority
// order, inside a LoaderOptions.ConfigDir before giving up and running
// on an all-defaults config. "<env>.yaml" is resolved per-call since it
// depends on the detected environment; the rest are fixed.
func candidateConfigNames(env string) []string {
	return []string{fmt.Sprintf("%s.yaml", env), "default.yaml", "config.yaml"}
}

// Load builds a DeviceConfig by walking candidateConfigNames inside
// options.ConfigDir and taking the first one that exists and parses, then
// applying defaults, environment-variable substitution,
// environment-variable overrides, and validation, in that order. Defaults
// only fill fields the file left unset; substitution rewrites ${VAR}
// references; overrides replace values from both the file and the
// defaults.
func Load(opts ...LoaderOptions) (*DeviceConfig, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg := firstLoadableConfig(options.ConfigDir, candidateConfigNames(env))
	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, e := range Validate(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// firstLoadableConfig returns the first of names (joined under dir) that
// parses successfully, or an empty, not-yet-defaulted DeviceConfig if
// none do.
func firstLoadableConfig(dir string, names []string) *DeviceConfig {
	for _, name := range names {
		cfg, err := loadConfigFile(filepath.Join(dir, name))
		if err == nil {
			return cfg
		}
	}
	return &DeviceConfig{}
}

// loadConfigFile loads a single config file.
func loadConfigFile(path string) (*DeviceConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// envOverride is one AUTHCORE_* environment variable and the DeviceConfig
// field it writes to when set.
type envOverride struct {
	name string
	set  func(cfg *DeviceConfig, value string)
}

// environmentOverrides lists, in the same order they are checked, every
// environment variable that takes priority over both a config file and
// its defaults. Driving applyEnvironmentOverrides from this table keeps
// the override set itself separate from the act of applying it.
var environmentOverrides = []envOverride{
	{"AUTHCORE_STORAGE_BACKEND", func(cfg *DeviceConfig, v string) {
		if cfg.Storage != nil {
			cfg.Storage.Backend = v
		}
	}},
	{"AUTHCORE_STORAGE_PATH", func(cfg *DeviceConfig, v string) {
		if cfg.Storage != nil {
			cfg.Storage.Path = v
		}
	}},
	{"AUTHCORE_LOG_LEVEL", func(cfg *DeviceConfig, v string) {
		if cfg.Logging != nil {
			cfg.Logging.Level = v
		}
	}},
	{"AUTHCORE_LOG_FORMAT", func(cfg *DeviceConfig, v string) {
		if cfg.Logging != nil {
			cfg.Logging.Format = v
		}
	}},
}

// applyEnvironmentOverrides overrides cfg with environment variables,
// which take priority over both the file and its defaults.
func applyEnvironmentOverrides(cfg *DeviceConfig) {
	for _, o := range environmentOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.set(cfg, v)
		}
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*DeviceConfig, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *DeviceConfig {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
