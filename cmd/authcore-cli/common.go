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

	"github.com/sage-x-project/authcore/authcore"
	"github.com/sage-x-project/authcore/config"
	"github.com/sage-x-project/authcore/state"
)

// loadConfig loads the device config for the directory set by --config-dir,
// tolerating a missing config tree (every field then takes its spec
// default, matching config.setDefaults).
func loadConfig() (*config.DeviceConfig, error) {
	return config.Load(config.LoaderOptions{ConfigDir: cfgDir})
}

// processMemoryStore backs every "memory" openStore call in this process,
// so state written by reset is still there for a later command in the
// same process. Nothing survives the process exiting.
var processMemoryStore = state.NewMemoryStore()

// openStore builds the persistent-state backend named by cfg.Storage.
func openStore(cfg *config.DeviceConfig) (state.Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		if cfg.Storage.Path == "" {
			return nil, fmt.Errorf("storage backend %q requires storage.path", cfg.Storage.Backend)
		}
		return state.NewFileStore(cfg.Storage.Path), nil
	case "memory":
		return processMemoryStore, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// bringUpCore wires a Core against the configured store and loads its
// persisted state, reporting state.ErrNotFound so callers can tell the
// operator to run `reset` first.
func bringUpCore() (*authcore.Core, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	core := authcore.NewCore(store)
	if err := core.Load(); err != nil {
		return nil, err
	}
	return core, nil
}
