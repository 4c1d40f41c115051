// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// voices.go - Reference voice library commands.
//
// Command: voices
// Short:   List and inspect the speaker reference voices
// Aliases: speakers
//
// Examples:
//   voxrun voices                 List indexed reference voices
//   voxrun voices search anna     Find voices by name
//   voxrun voices show anna       Full details and quality findings
//   voxrun voices reindex         Rescan the speaker folder
//
// The index lives in SQLite inside the speaker folder, so it travels
// with the voices. Listing auto-scans an empty index instead of
// telling the operator to run reindex first.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/voices"
)

// HandleVoices dispatches the voices subcommands.
func HandleVoices(args Args) error {
	cfg := config.Global()

	lib, err := openVoiceLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	switch args.Subcommand {
	case "", "list":
		return voicesList(lib, args, "")
	case "search":
		query := JoinPositionalArgs(args.Raw)
		if query == "" {
			return ErrMissingArgument("voices search", "query", "voxrun voices search anna")
		}
		return voicesList(lib, args, query)
	case "show", "info":
		name := JoinPositionalArgs(args.Raw)
		if name == "" {
			return ErrMissingArgument("voices show", "voice name", "voxrun voices show anna")
		}
		return voicesShow(lib, args, name)
	case "reindex", "scan":
		return voicesReindex(lib, args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected list, search, show, or reindex", "voxrun voices list")
	}
}

// openVoiceLibrary opens the index for one-shot commands. Watching is
// for the monitor; a command that exits immediately has no use for it.
func openVoiceLibrary(cfg *config.Config) (*voices.Library, error) {
	libCfg := voices.DefaultConfig(cfg.Server.SpeakersFolder)
	libCfg.EnableWatch = false

	lib, err := voices.NewLibrary(libCfg)
	if err != nil {
		if errors.Is(err, voices.ErrInvalidFolder) {
			return nil, NewNotFoundError("speakers folder", cfg.Server.SpeakersFolder,
				"create it or point server.speakers_folder at the right place")
		}
		return nil, err
	}
	return lib, nil
}

// ensureScanned scans the folder when the index has never been built.
func ensureScanned(lib *voices.Library, args Args) error {
	if lib.IsScanned() {
		return nil
	}
	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render("Index is empty, scanning the speaker folder..."))
	}
	return lib.Scan(context.Background())
}

// =============================================================================
// LIST AND SEARCH
// =============================================================================

func voicesList(lib *voices.Library, args Args, query string) error {
	if err := ensureScanned(lib, args); err != nil {
		return err
	}

	var found []voices.Voice
	var err error
	if query == "" {
		found, err = lib.List()
	} else {
		found, err = lib.Search(query)
	}
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("voices", voicesData(found, query)).Print()
		return nil
	}

	if len(found) == 0 {
		if query != "" {
			fmt.Printf("No voices match %q.\n", query)
		} else {
			fmt.Println("No reference voices indexed. Drop WAV files into the speaker folder.")
		}
		return nil
	}

	printVoiceTable(found)
	return nil
}

func voicesData(found []voices.Voice, query string) VoicesData {
	data := VoicesData{Count: len(found), Query: query, Voices: []VoiceInfo{}}
	for i := range found {
		v := &found[i]
		data.Voices = append(data.Voices, VoiceInfo{
			Name:         v.Name,
			File:         v.Path,
			DurationSecs: v.Duration().Seconds(),
			SampleRate:   v.SampleRate,
			Channels:     v.Channels,
			SizeBytes:    v.Size,
			Issues:       strings.Join(v.Issues(), "; "),
		})
	}
	return data
}

func printVoiceTable(found []voices.Voice) {
	fmt.Printf("%-24s %10s %10s %4s %10s  %s\n",
		"NAME", "DURATION", "RATE", "CH", "SIZE", "NOTES")
	fmt.Println(SeparatorStyle.Render(strings.Repeat("-", 70)))

	for i := range found {
		v := &found[i]
		notes := ""
		if n := len(v.Issues()); n > 0 {
			notes = WarningStyle.Render(fmt.Sprintf("%d issue(s)", n))
		}
		name := v.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Printf("%-24s %10s %9dHz %4d %10s  %s\n",
			name,
			formatDurationShort(v.Duration()),
			v.SampleRate,
			v.Channels,
			formatBytes(v.Size),
			notes)
	}
	fmt.Printf("\n%d voice(s). Inspect one with 'voxrun voices show <name>'.\n", len(found))
}

// =============================================================================
// SHOW
// =============================================================================

func voicesShow(lib *voices.Library, args Args, name string) error {
	if err := ensureScanned(lib, args); err != nil {
		return err
	}

	v, err := lib.Get(name)
	if errors.Is(err, voices.ErrVoiceNotFound) {
		return NewNotFoundError("voice", name, "run 'voxrun voices' to list indexed voices")
	}
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("voices", voicesData([]voices.Voice{*v}, "")).Print()
		return nil
	}

	fmt.Println(TitleStyle.Render(v.Name))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("File:"), v.Path)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Duration:"), formatDurationShort(v.Duration()))
	fmt.Printf("  %s%d Hz, %d channel(s), %d-bit\n", statusLabelStyle.Render("Format:"),
		v.SampleRate, v.Channels, v.BitDepth)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Size:"), formatBytes(v.Size))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Indexed:"), v.IndexedAt.Local().Format("2006-01-02 15:04"))

	issues := v.Issues()
	if len(issues) == 0 {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Quality:"), SuccessStyle.Render("good cloning source"))
		return nil
	}
	fmt.Printf("  %s\n", statusLabelStyle.Render("Quality:"))
	for _, issue := range issues {
		fmt.Printf("    %s %s\n", WarningStyle.Render("!"), issue)
	}
	return nil
}

// =============================================================================
// REINDEX
// =============================================================================

func voicesReindex(lib *voices.Library, args Args) error {
	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render("Scanning the speaker folder..."))
	}

	if err := lib.Scan(context.Background()); err != nil {
		if errors.Is(err, voices.ErrScanning) {
			return fmt.Errorf("a scan is already in progress")
		}
		return err
	}

	stats := lib.Stats()
	if args.JSON {
		NewJSONResponse("voices", map[string]interface{}{
			"indexed":        stats.VoiceCount,
			"total_duration": stats.TotalDuration.String(),
		}).Print()
		return nil
	}

	fmt.Printf("%s indexed %d voice(s)", SuccessStyle.Render("[OK]"), stats.VoiceCount)
	if stats.TotalDuration > 0 {
		fmt.Printf(", %s of reference audio", formatDuration(stats.TotalDuration))
	}
	fmt.Println()
	return nil
}
