// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for voxrun.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: cfg
//
// Subcommands:
//   show (default)      Display the effective configuration as TOML
//   get <key>           Print one value (dot notation)
//   set <key> <value>   Set a value and save
//   keys                List every settable key
//   reset               Reset to default configuration
//   path                Show the configuration file path
//
// Examples:
//   voxrun config                           Show effective config
//   voxrun config get server.device        Print one value
//   voxrun config set server.device cpu    Pin the CPU profile
//   voxrun config set server.port 8021
//   voxrun config set daemon.auto_restart true
//   voxrun config reset                    Back to the stock launch line
//   voxrun config path                     Where the TOML lives
//
// Show prints the loaded configuration, which includes environment
// overrides, so operators see what a launch would actually use. On a
// TTY the TOML is syntax highlighted; piped output is plain text.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args)
	case "get":
		key := JoinPositionalArgs(args.Raw)
		if key == "" {
			return ErrMissingArgument("config get", "key", "voxrun config get server.device")
		}
		return configGet(args, key)
	case "set":
		if len(args.Raw) < 2 {
			return ErrMissingArgument("config set", "key and value", "voxrun config set server.device cpu")
		}
		return configSet(args, args.Raw[0], strings.Join(args.Raw[1:], " "))
	case "keys":
		return configKeys(args)
	case "reset":
		return configReset(args)
	case "path":
		return configPath(args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected show, get, set, keys, reset, or path", "voxrun config show")
	}
}

// =============================================================================
// SHOW
// =============================================================================

func configShow(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if args.JSON {
		data := ConfigData{Keys: map[string]string{}}
		if p, err := config.ConfigPathTOML(); err == nil {
			data.Path = p
		}
		for _, key := range config.GetAllKeys() {
			if v, err := cfg.Get(key); err == nil {
				data.Keys[key] = fmt.Sprintf("%v", v)
			}
		}
		NewJSONResponse("config", data).Print()
		return nil
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	fmt.Println(TitleStyle.Render("voxrun configuration"))
	if p, err := config.ConfigPathTOML(); err == nil {
		note := p
		if _, statErr := os.Stat(p); statErr != nil {
			note += " (not written yet, showing defaults and environment)"
		}
		fmt.Println(DimStyle.Render("# " + note))
	}
	fmt.Println(renderTOML(sb.String()))
	return nil
}

// renderTOML syntax-highlights TOML for terminal display. Piped output
// and NO_COLOR get the text untouched.
func renderTOML(src string) string {
	if !IsStdoutTTY() || !ColorsEnabled() {
		return src
	}

	lexer := lexers.Get("toml")
	if lexer == nil {
		return src
	}
	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return src
	}
	return buf.String()
}

// =============================================================================
// GET AND SET
// =============================================================================

func configGet(args Args, key string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	value, err := cfg.Get(key)
	if err != nil {
		return NewNotFoundError("config key", key, "run 'voxrun config keys' for the full list")
	}

	if args.JSON {
		NewJSONResponse("config", map[string]interface{}{key: value}).Print()
		return nil
	}
	fmt.Printf("%v\n", value)
	return nil
}

func configSet(args Args, key, value string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error(), "voxrun config set server.device cpu")
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError(key, value, err.Error(), "")
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	config.SetGlobal(cfg)

	if args.JSON {
		NewJSONResponse("config", map[string]interface{}{key: value, "saved": true}).Print()
		return nil
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)

	// Settings take effect on the next launch; a running daemon keeps
	// the profile it started with.
	if _, running, _ := xtts.DaemonStatus(); running {
		fmt.Println(DimStyle.Render("The running daemon keeps its current settings until restarted."))
	}
	return nil
}

// =============================================================================
// KEYS, RESET, PATH
// =============================================================================

func configKeys(args Args) error {
	keys := config.GetAllKeys()

	if args.JSON {
		NewJSONResponse("config", map[string]interface{}{"keys": keys}).Print()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("%s%v\n", LabelStyle.Width(34).Render(key), value)
	}
	return nil
}

func configReset(args Args) error {
	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	config.SetGlobal(cfg)

	if args.JSON {
		NewJSONResponse("config", map[string]interface{}{"reset": true}).Print()
		return nil
	}
	fmt.Printf("%s configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	return nil
}

func configPath(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}

	if args.JSON {
		_, statErr := os.Stat(path)
		NewJSONResponse("config", map[string]interface{}{
			"path":   path,
			"exists": statErr == nil,
		}).Print()
		return nil
	}

	fmt.Println(path)
	if _, err := os.Stat(path); err != nil {
		fmt.Println(DimStyle.Render("(file does not exist yet; 'voxrun setup' or 'voxrun config set' creates it)"))
	}
	return nil
}
