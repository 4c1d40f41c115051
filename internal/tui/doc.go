// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui provides the live monitor dashboard for voxrun.
//
// The monitor is a full-screen bubbletea program that polls the XTTS
// server, the daemon state file, the GPU inventory, and the voice
// library on a fixed interval and renders them as one page. It is
// read-only: starting and stopping the server stays with the launch
// and stop commands.
//
// # Key Types
//
//   - Model: the bubbletea model for the dashboard
//   - Snapshot: one poll of everything the dashboard shows
//
// # Usage
//
//	m := tui.NewModel(config.Global())
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	_, err := p.Run()
package tui
