// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared formatting and input helpers for voxrun commands.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// DURATION FORMATTING
// =============================================================================

// formatDuration formats a duration in human-readable long form.
// Examples: "45s", "3m", "2h", "5d"
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// formatDurationShort formats a duration with sub-minute precision.
// Examples: "350ms", "4.2s", "3m12s", "1h05m"
func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// =============================================================================
// SIZE FORMATTING
// =============================================================================

// formatBytes formats a byte count in human-readable form.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// =============================================================================
// INPUT
// =============================================================================

// promptInput reads one line from stdin with a prompt.
func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// =============================================================================
// PATH VALIDATION
// =============================================================================

// ValidateOutputPath checks that a user-supplied output path does not
// escape the current working directory via traversal, unless absolute.
// SECURITY: Blocks "../../../etc/cron.d/x" style paths from flag values.
func ValidateOutputPath(path string) error {
	if path == "" {
		return NewValidationError("output path", "", "path is empty", "")
	}

	// Absolute paths are taken as deliberate operator intent.
	if filepath.IsAbs(path) {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot determine working directory: %w", err)
	}

	if !isPathWithinDir(path, cwd) {
		return NewValidationError(
			"output path", path,
			"relative path escapes the working directory",
			"voxrun bench --out results.json",
		)
	}
	return nil
}

// isPathWithinDir reports whether path resolves inside dir.
func isPathWithinDir(path, dir string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
