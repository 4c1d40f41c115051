// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package xtts launches and talks to the XTTS API server.
//
// The package owns the launch decision: a CUDA probe outcome maps to
// one of two fixed profiles, GPU (cuda plus DeepSpeed) or CPU, and the
// chosen profile drives the argument list handed to the Python server
// process. It also provides the HTTP client for a running server and a
// detached daemon mode with a supervising process, a state file, and
// rotated logs.
//
// # Key Types
//
//   - Profile: device plus DeepSpeed stance for one launch
//   - Decision: resolved profile plus the probe that produced it
//   - Launcher: starts the server process, foreground or supervised
//   - ServerExitError: carries the server's exit status to the caller
//   - Client: HTTP client for the server's API
//   - DaemonState: record of a running supervisor in ~/.voxrun
//
// # Usage
//
//	dec := xtts.Decide(ctx, cfg.Server, time.Minute)
//	fmt.Printf("Running on %s\n", dec.Profile)
//	err := xtts.NewLauncher(cfg.Server).Run(ctx, dec.Profile)
//
// A non-zero server exit comes back as *ServerExitError so main can
// mirror the status code.
package xtts
