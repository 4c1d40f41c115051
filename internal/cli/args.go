// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Ergonomic argument parsing for voxrun CLI commands.
//
// Eliminates duplicated flag-walking loops across the command files.
// Handles the common patterns:
//   - Subcommands:    voxrun history list, voxrun voices search
//   - Flags:          --json, --quick, --port 8020, --speaker=calm_female
//   - Positional:     voxrun history show 3, voxrun voices search calm
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgParser provides structured access to command arguments.
type ArgParser struct {
	// subcommand is the first non-flag argument (e.g. "list" in "voices list").
	subcommand string
	// flags maps flag names (without --) to their values.
	flags map[string]string
	// boolFlags contains flags that appeared without a value.
	boolFlags map[string]bool
	// positional holds non-flag arguments after the subcommand.
	positional []string
	// raw is the original argument slice, untouched.
	raw []string
}

// NewArgParser parses a raw argument slice into structured form.
//
// Parsing rules:
//   - "--flag=value" sets flags["flag"] = "value"
//   - "--flag value" sets flags["flag"] = "value" when value doesn't start with -
//   - "--flag" alone sets boolFlags["flag"] = true
//   - First bare argument becomes the subcommand
//   - Remaining bare arguments are positional
func NewArgParser(args []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
		raw:       args,
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case strings.HasPrefix(arg, "--"):
			name := strings.TrimPrefix(arg, "--")

			// --flag=value form
			if eq := strings.Index(name, "="); eq != -1 {
				value := name[eq+1:]
				name = name[:eq]
				// Explicit true/false values route to boolFlags so
				// BoolFlag("x") works for both --x and --x=true.
				switch strings.ToLower(value) {
				case "true":
					p.boolFlags[name] = true
				case "false":
					p.boolFlags[name] = false
				default:
					p.flags[name] = value
				}
				i++
				continue
			}

			// --flag value form: lookahead for a non-flag value
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				p.flags[name] = args[i+1]
				i += 2
				continue
			}

			// Bare --flag is boolean
			p.boolFlags[name] = true
			i++

		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			// Short flags are boolean only (-q, -v)
			name := strings.TrimPrefix(arg, "-")
			p.boolFlags[name] = true
			i++

		default:
			if p.subcommand == "" && len(p.positional) == 0 {
				p.subcommand = arg
			} else {
				p.positional = append(p.positional, arg)
			}
			i++
		}
	}

	return p
}

// Subcommand returns the first non-flag argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a --flag and whether it was present.
func (p *ArgParser) Flag(name string) (string, bool) {
	v, ok := p.flags[name]
	return v, ok
}

// FlagOrDefault returns the flag value or a default when absent.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v, ok := p.flags[name]; ok {
		return v
	}
	return def
}

// FlagInt returns a flag parsed as int and whether it was present and valid.
func (p *ArgParser) FlagInt(name string) (int, bool) {
	v, ok := p.flags[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FlagIntOrDefault returns a flag parsed as int or a default.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	if n, ok := p.FlagInt(name); ok {
		return n
	}
	return def
}

// BoolFlag reports whether a boolean flag is set true.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[name]
}

// HasFlag reports whether a flag was present in any form.
func (p *ArgParser) HasFlag(name string) bool {
	if _, ok := p.flags[name]; ok {
		return true
	}
	_, ok := p.boolFlags[name]
	return ok
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns positional arguments from index onward.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Raw returns the original unparsed argument slice.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

// ParseIntWithValidation parses a string as a positive integer with a
// descriptive error naming the field.
func ParseIntWithValidation(value, field string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", field, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", field, n)
	}
	return n, nil
}

// ParseBoolString parses common boolean spellings.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func ParseBoolString(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %q (use true/false, yes/no, on/off, or 1/0)", value)
	}
}

// JoinPositionalArgs joins positional arguments into a single string.
// Used by commands that take free text (e.g. voices search two word query).
func JoinPositionalArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
