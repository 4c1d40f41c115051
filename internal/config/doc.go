// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for voxrun.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation. The defaults reproduce the
// classic xtts_api_server launch line, so a machine with no config file at
// all still gets a working server on port 8020.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: XTTS server process settings (interpreter, flags, paths)
//   - ProbeConfig: CUDA probe behavior
//   - DaemonConfig: Background mode and log rotation settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (VOXRUN_*)
//   - ~/.voxrun/config.toml
//   - ~/.voxrun/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	port := cfg.Server.Port
//	python := cfg.Server.Python
package config
