// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides launch history persistence for voxrun.
//
// Every server launch leaves a record: which profile was chosen, what
// the CUDA probe said, how long the server ran, and how it exited. The
// history feeds the history command, the status summary, and the
// fallback statistics in doctor.
//
// # Key Types
//
//   - LaunchStore: file-backed store for launch records
//   - LaunchRecord: one server launch from decision to exit
//   - Stats: aggregates over the stored history
//
// # Usage
//
// Open the store and record a launch:
//
//	store, err := storage.NewLaunchStore()
//	id, err := store.Begin(&storage.LaunchRecord{Device: "cuda", DeepSpeed: true})
//	...
//	err = store.Finish(id, exitCode)
//
// Inspect the history:
//
//	records, err := store.List()
//	stats, err := store.Stats()
//
// # Storage Location
//
// Records are stored in ~/.voxrun/history/ as JSON files, newest
// records pruned last.
package storage
