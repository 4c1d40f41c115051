// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helper functions for voxrun.
//
// This package contains common helpers used throughout the launcher
// for string display, type conversion, and file operations.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - PadWidth: display-width aware padding for table columns
//
// Type Conversion:
//   - IntToString, Int64ToString: numeric to string conversion
//   - FloatToString: float formatting with fixed precision
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	// Truncate long voice names safely for table display
//	display := util.TruncateWidth(voiceName, 30)
//
//	// Write records atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
