// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helper functions for voxrun.
package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Display-width aware string handling.
// Voice names and file paths may contain CJK or other double-width
// characters; byte- or rune-based truncation would misalign table columns.
// go-runewidth handles the Unicode width tables.

// TruncateWidth truncates a string to a maximum display width, appending
// "..." when truncation occurs. Double-width characters count as 2 columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadWidth pads a string with spaces to the given display width.
// Strings already at or beyond the width are returned unchanged.
func PadWidth(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// StringWidth returns the display width of a string in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateRunes truncates a string to a maximum number of runes (characters),
// appending "..." when truncation occurs. This is safe for UTF-8 strings as
// it counts characters, not bytes. Use TruncateWidth for table alignment.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
