// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection and capability handling for voxrun.
//
// Detects TTY status, terminal dimensions, and color support so output
// degrades cleanly when piped or redirected. Launch output in particular
// is consumed by systemd units and shell wrappers, which must never
// receive ANSI escapes.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY reports whether stdin is an interactive terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is an interactive terminal.
// False when output is piped or redirected.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStderrTTY reports whether stderr is an interactive terminal.
func IsStderrTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// =============================================================================
// TERMINAL DIMENSIONS
// =============================================================================

// GetTerminalWidth returns the terminal width in columns.
// Returns 80 when detection fails, clamps to a 40 column minimum.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width < 40 {
		return 40
	}
	return width
}

// GetTerminalSize returns terminal width and height.
// Returns 80x24 when detection fails.
func GetTerminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

// WrapText wraps text at word boundaries to the given width.
// Words longer than the width are left intact on their own line.
func WrapText(text string, width int) string {
	if width <= 0 {
		width = 80
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(wrapLine(line, width))
	}
	return result.String()
}

func wrapLine(line string, width int) string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return line
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range words {
		wordLen := len(word)
		if i > 0 {
			if lineLen+1+wordLen > width {
				result.WriteString("\n")
				lineLen = 0
			} else {
				result.WriteString(" ")
				lineLen++
			}
		}
		result.WriteString(word)
		lineLen += wordLen
	}
	return result.String()
}

// =============================================================================
// COLOR SUPPORT
// =============================================================================

var (
	colorsEnabled     bool
	colorsEnabledOnce sync.Once
)

// ColorsEnabled reports whether colored output should be used.
//
// Resolution order:
//  1. NO_COLOR set (any value) disables colors (https://no-color.org/)
//  2. FORCE_COLOR set enables colors even when piped
//  3. Otherwise colors require stdout to be a TTY
func ColorsEnabled() bool {
	colorsEnabledOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// ForceColorsEnabled overrides color detection. Test hook.
func ForceColorsEnabled(enabled bool) {
	colorsEnabledOnce.Do(func() {})
	colorsEnabled = enabled
}

// GetColorProfile returns the termenv color profile honoring ColorsEnabled.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// INTERACTIVITY
// =============================================================================

// CanPrompt reports whether interactive prompting is possible.
// Requires both stdin and stdout to be TTYs.
func CanPrompt() bool {
	return IsTTY() && IsStdoutTTY()
}

// TTYRequiredError indicates a command needs an interactive terminal.
type TTYRequiredError struct {
	// Command is the command that requires a TTY.
	Command string
}

// Error implements the error interface.
func (e *TTYRequiredError) Error() string {
	return fmt.Sprintf("%s requires an interactive terminal (stdin is not a TTY)", e.Command)
}

// RequiresTTY returns an error when the command cannot prompt.
func RequiresTTY(command string) error {
	if !CanPrompt() {
		return &TTYRequiredError{Command: command}
	}
	return nil
}

// =============================================================================
// CAPABILITIES
// =============================================================================

// TerminalCapabilities summarizes what the attached terminal supports.
type TerminalCapabilities struct {
	// IsInteractive is true when stdin and stdout are both TTYs.
	IsInteractive bool
	// SupportsColor is true when colored output is enabled.
	SupportsColor bool
	// Width is the terminal width in columns.
	Width int
	// Height is the terminal height in rows.
	Height int
}

// GetTerminalCapabilities detects the current terminal's capabilities.
func GetTerminalCapabilities() TerminalCapabilities {
	width, height := GetTerminalSize()
	return TerminalCapabilities{
		IsInteractive: CanPrompt(),
		SupportsColor: ColorsEnabled(),
		Width:         width,
		Height:        height,
	}
}
