// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for voxrun CLI output.
//
// Command files define local styles for their own layouts; the styles
// here are the shared palette so launch, status, doctor, and the rest
// agree on what a title, an error, and a separator look like.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// init pins the lipgloss color profile to our own detection so NO_COLOR
// and piped output are honored everywhere styles render.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle renders command headers (cyan, bold).
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true).
			MarginBottom(1)

	// SectionStyle renders section headers within output (white, bold).
	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true).
			MarginTop(1)

	// LabelStyle renders field labels (gray, fixed width for alignment).
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	// ValueStyle renders field values (light gray).
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// SuccessStyle renders success indicators (green, bold).
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	// ErrorStyle renders error indicators (red, bold).
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// WarningStyle renders warnings (orange).
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle renders secondary text (dark gray).
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// SeparatorStyle renders horizontal rules (darker gray).
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// HighlightStyle renders emphasized values (bright green).
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	// InfoStyle renders informational notes (blue).
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	// PlainStyle renders text unstyled.
	PlainStyle = lipgloss.NewStyle()
)

// =============================================================================
// RENDERING HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule. Default width 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderSeparatorAdaptive renders a rule sized to the terminal, capped.
func RenderSeparatorAdaptive(maxWidth int) string {
	w := GetTerminalWidth()
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderStatus renders a bracketed status indicator.
// Recognizes ok, error/fail, and warning; anything else renders dim.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "running", "pass":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a field label at a custom width.
func RenderLabel(label string, width ...int) string {
	style := LabelStyle
	if len(width) > 0 && width[0] > 0 {
		style = LabelStyle.Width(width[0])
	}
	return style.Render(label)
}

// RenderConditional applies the style only when colors are enabled,
// so captured output stays clean.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// GetStyleForTTY returns the style when stdout is a TTY, plain otherwise.
func GetStyleForTTY(style lipgloss.Style) lipgloss.Style {
	if !IsStdoutTTY() {
		return PlainStyle
	}
	return style
}

// RenderWrapped renders styled text wrapped to the terminal width.
func RenderWrapped(style lipgloss.Style, text string) string {
	wrapped := WrapText(text, GetTerminalWidth())
	return style.Render(wrapped)
}
