// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for voxrun.
//
// This package implements all voxrun commands. The default invocation
// with no arguments is the launcher itself: probe CUDA, pick the GPU
// or CPU profile, start the XTTS API server, and mirror its exit
// status. Every other command is operator tooling around that core.
//
// # Key Types
//
//   - Command: enumeration of all available CLI commands
//   - Args: parsed command-line arguments with global and launch flags
//   - JSONResponse: envelope for all --json output
//
// # Usage
//
// Parse and route commands:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdLaunch:
//	    err = cli.HandleLaunch(args)
//	case cli.CmdStatus:
//	    err = cli.HandleStatus(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
// Core:
//   - launch (default): probe CUDA and start the server
//   - stop: stop the background daemon
//   - status: GPU, probe, server, and daemon report
//   - monitor: live dashboard
//   - doctor: health checks with fix hints
//
// Tooling:
//   - voices: reference voice library
//   - bench: synthesis benchmarks
//   - history: launch records and statistics
//   - config: configuration management
//   - setup: first-run wizard
//
// All commands support --json for scripted use.
package cli
