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
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// substituteFields runs SubstituteEnvVars over each field pointer in
// place, skipping nils. DeviceConfig's sub-configs are flat string bags,
// so listing "which fields are substitutable" this way reads as one call
// per sub-config rather than one assignment statement per field.
func substituteFields(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = SubstituteEnvVars(*f)
		}
	}
}

// SubstituteEnvVarsInConfig substitutes environment variables into every
// string field of cfg that can legitimately come from a secret or a
// deployment-specific path: the storage backend/location and the logging
// sink. Fields the spec fixes outright (PIN policy, token time limits)
// are never env-substitutable, so they are not listed here.
func SubstituteEnvVarsInConfig(cfg *DeviceConfig) {
	if cfg == nil {
		return
	}

	if cfg.Storage != nil {
		substituteFields(&cfg.Storage.Backend, &cfg.Storage.Path)
	}

	if cfg.Logging != nil {
		substituteFields(&cfg.Logging.Level, &cfg.Logging.Format, &cfg.Logging.Output)
	}
}

// environmentVarNames are the process environment variables GetEnvironment
// consults, in priority order, before falling back to "development".
var environmentVarNames = []string{"AUTHCORE_ENV", "ENVIRONMENT"}

// GetEnvironment returns the current deployment environment, read from the
// first of environmentVarNames that is set, lower-cased, or "development"
// if none are.
func GetEnvironment() string {
	for _, name := range environmentVarNames {
		if v := os.Getenv(name); v != "" {
			return strings.ToLower(v)
		}
	}
	return "development"
}

// productionEnvironments and developmentEnvironments classify
// GetEnvironment's possible values for IsProduction/IsDevelopment, rather
// than each function re-deriving the current environment and
// string-comparing it inline.
var (
	productionEnvironments  = map[string]bool{"production": true}
	developmentEnvironments = map[string]bool{"development": true, "local": true}
)

// IsProduction reports whether the current environment is production.
func IsProduction() bool {
	return productionEnvironments[GetEnvironment()]
}

// IsDevelopment reports whether the current environment is development or
// local.
func IsDevelopment() bool {
	return developmentEnvironments[GetEnvironment()]
}
