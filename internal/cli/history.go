// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Launch history commands.
//
// Command: history [subcommand]
// Short:   Show past launches and their outcomes
// Aliases: hist
//
// Subcommands:
//   list (default)      Recent launches, newest first
//   show <n|id>         One launch record in full
//   stats               Aggregates over the stored history
//   clear               Delete all launch records
//
// Examples:
//   voxrun history                List recent launches
//   voxrun history show 1         Most recent launch in full
//   voxrun history stats          GPU/CPU split, fallbacks, uptime
//   voxrun history stats --json   Aggregates for scripts
//   voxrun history clear          Wipe the history
//
// Records are written on every launch, foreground or daemon, and
// closed with the server's exit code. A record whose probe failed is
// the paper trail for a silent CPU fallback.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/storage"
)

// HandleHistory dispatches the history subcommands.
func HandleHistory(args Args) error {
	store, err := storage.NewLaunchStore()
	if err != nil {
		return fmt.Errorf("opening launch history: %w", err)
	}

	switch args.Subcommand {
	case "", "list":
		return historyList(store, args)
	case "show":
		ref := JoinPositionalArgs(args.Raw)
		if ref == "" {
			return ErrMissingArgument("history show", "record number or id", "voxrun history show 1")
		}
		return historyShow(store, args, ref)
	case "stats":
		return historyStats(store, args)
	case "clear":
		return historyClear(store, args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected list, show, stats, or clear", "voxrun history list")
	}
}

// =============================================================================
// LIST
// =============================================================================

func historyList(store *storage.LaunchStore, args Args) error {
	records, err := store.List()
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("history", historyData(records)).Print()
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No launches recorded yet. Run 'voxrun' to start the server.")
		return nil
	}

	fmt.Print(storage.FormatLaunchList(records))
	fmt.Printf("\n%d launch(es). Details with 'voxrun history show <n>'.\n", len(records))
	return nil
}

func historyData(records []storage.LaunchRecord) HistoryData {
	data := HistoryData{Count: len(records), Launches: []HistoryRecord{}}
	for i := range records {
		data.Launches = append(data.Launches, historyRecord(&records[i]))
	}
	return data
}

func historyRecord(rec *storage.LaunchRecord) HistoryRecord {
	hr := HistoryRecord{
		ID:          rec.ID,
		StartedAt:   rec.StartedAt.UTC().Format(time.RFC3339),
		Device:      rec.Device,
		DeepSpeed:   rec.DeepSpeed,
		GpuName:     rec.GpuName,
		ProbeFailed: rec.ProbeFailed,
		Fallback:    rec.Fallback(),
		Daemon:      rec.Daemon,
		Outcome:     rec.Outcome(),
		ExitCode:    rec.ExitCode,
		Args:        rec.Args,
	}
	if !rec.EndedAt.IsZero() {
		hr.EndedAt = rec.EndedAt.UTC().Format(time.RFC3339)
		hr.Uptime = formatDurationShort(rec.Duration())
	}
	return hr
}

// =============================================================================
// SHOW
// =============================================================================

// historyShow resolves ref as a 1-based index first ("show 1" is the
// most recent launch), then as a record id prefix.
func historyShow(store *storage.LaunchStore, args Args, ref string) error {
	rec, err := resolveRecord(store, ref)
	if errors.Is(err, storage.ErrLaunchNotFound) {
		return NewNotFoundError("launch record", ref, "run 'voxrun history' to list records")
	}
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("history", historyRecord(rec)).Print()
		return nil
	}

	printLaunchRecord(rec)
	return nil
}

func resolveRecord(store *storage.LaunchStore, ref string) (*storage.LaunchRecord, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 {
			return nil, storage.ErrLaunchNotFound
		}
		return store.LoadByIndex(n - 1)
	}
	return store.Load(ref)
}

func printLaunchRecord(rec *storage.LaunchRecord) {
	profile := "CPU (cpu)"
	if rec.Device == "cuda" {
		profile = "GPU (cuda)"
		if rec.DeepSpeed {
			profile = "GPU (cuda + DeepSpeed)"
		}
	}

	mode := "foreground"
	if rec.Daemon {
		mode = "daemon"
	}

	fmt.Println(TitleStyle.Render("Launch " + rec.ID))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Started:"),
		rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Profile:"), profile)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Mode:"), mode)
	if rec.GpuName != "" {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("GPU:"), rec.GpuName)
	}

	switch {
	case rec.ProbeFailed:
		fmt.Printf("  %s%s probe could not run, fell back to CPU\n",
			statusLabelStyle.Render("Probe:"), RenderStatus("warn"))
	case !rec.Probed:
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Probe:"),
			DimStyle.Render("skipped (device pinned)"))
	default:
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Probe:"),
			strings.TrimSpace(rec.ProbeOutput))
	}

	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Outcome:"), rec.Outcome())
	if !rec.EndedAt.IsZero() {
		fmt.Printf("  %s%s (exit code %d)\n", statusLabelStyle.Render("Uptime:"),
			formatDuration(rec.Duration()), rec.ExitCode)
	}
	if len(rec.Args) > 0 {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Args:"),
			DimStyle.Render(strings.Join(rec.Args, " ")))
	}
}

// =============================================================================
// STATS
// =============================================================================

func historyStats(store *storage.LaunchStore, args Args) error {
	stats, err := store.Stats()
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("history", HistoryStatsData{
			Total:         stats.TotalLaunches,
			GpuLaunches:   stats.GPULaunches,
			CpuLaunches:   stats.CPULaunches,
			Fallbacks:     stats.Fallbacks,
			ProbeFailures: stats.ProbeFailures,
			NonZeroExits:  stats.NonZeroExits,
			AvgUptimeSecs: int64(stats.AvgUptime.Seconds()),
		}).Print()
		return nil
	}

	if stats.TotalLaunches == 0 {
		fmt.Println("No launches recorded yet.")
		return nil
	}

	fmt.Println(TitleStyle.Render("Launch statistics"))
	fmt.Printf("  %s%d\n", statusLabelStyle.Render("Launches:"), stats.TotalLaunches)
	fmt.Printf("  %s%d GPU / %d CPU\n", statusLabelStyle.Render("Profiles:"),
		stats.GPULaunches, stats.CPULaunches)
	if stats.Fallbacks > 0 {
		fmt.Printf("  %s%s %d probed for CUDA but ran on CPU\n",
			statusLabelStyle.Render("Fallbacks:"), RenderStatus("warn"), stats.Fallbacks)
	}
	if stats.ProbeFailures > 0 {
		fmt.Printf("  %s%d (probe process could not run)\n",
			statusLabelStyle.Render("Probe errors:"), stats.ProbeFailures)
	}
	if stats.NonZeroExits > 0 {
		fmt.Printf("  %s%d\n", statusLabelStyle.Render("Failed exits:"), stats.NonZeroExits)
	}
	if stats.AvgUptime > 0 {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Avg uptime:"),
			formatDuration(stats.AvgUptime))
	}
	return nil
}

// =============================================================================
// CLEAR
// =============================================================================

func historyClear(store *storage.LaunchStore, args Args) error {
	if err := store.Clear(); err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("history", map[string]interface{}{"cleared": true}).Print()
		return nil
	}
	fmt.Printf("%s launch history cleared\n", SuccessStyle.Render("[OK]"))
	return nil
}
