// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// bench.go - Synthesis benchmarks against the running server.
//
// Command: bench
// Short:   Measure synthesis latency and throughput
// Aliases: benchmark
//
// Examples:
//   voxrun bench                          Standard suite, configured speaker
//   voxrun bench --speaker calm_female    Pick the reference voice
//   voxrun bench --quick                  One phrase per category
//   voxrun bench compare anna ben         Same suite across speakers
//   voxrun bench list                     Saved results
//
// Results are saved under ~/.voxrun/benchmarks/ so CPU and GPU launches
// of the same host can be compared after the fact.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/benchmark"
	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// HandleBench dispatches the bench subcommands.
func HandleBench(args Args) error {
	switch args.Subcommand {
	case "", "run":
		return benchRun(args)
	case "compare":
		return benchCompare(args)
	case "list":
		return benchList(args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected run, compare, or list", "voxrun bench --speaker anna")
	}
}

// benchFlags holds the command-local flags parsed from Raw.
type benchFlags struct {
	speaker    string
	language   string
	iterations int
	quick      bool
	noSave     bool
}

func parseBenchFlags(raw []string) (benchFlags, []string, error) {
	var flags benchFlags
	var positional []string

	i := 0
	for i < len(raw) {
		arg := raw[i]
		switch {
		case arg == "--speaker" && i+1 < len(raw):
			flags.speaker = raw[i+1]
			i += 2
		case strings.HasPrefix(arg, "--speaker="):
			flags.speaker = strings.TrimPrefix(arg, "--speaker=")
			i++
		case arg == "--language" && i+1 < len(raw):
			flags.language = raw[i+1]
			i += 2
		case strings.HasPrefix(arg, "--language="):
			flags.language = strings.TrimPrefix(arg, "--language=")
			i++
		case arg == "--iterations" && i+1 < len(raw):
			n, err := ParseIntWithValidation(raw[i+1], "--iterations")
			if err != nil {
				return flags, nil, err
			}
			flags.iterations = n
			i += 2
		case strings.HasPrefix(arg, "--iterations="):
			n, err := ParseIntWithValidation(strings.TrimPrefix(arg, "--iterations="), "--iterations")
			if err != nil {
				return flags, nil, err
			}
			flags.iterations = n
			i++
		case arg == "--quick":
			flags.quick = true
			i++
		case arg == "--no-save":
			flags.noSave = true
			i++
		case strings.HasPrefix(arg, "-"):
			return flags, nil, NewValidationError("flag", arg,
				"unknown bench flag", "voxrun bench --speaker anna --quick")
		default:
			positional = append(positional, arg)
			i++
		}
	}
	return flags, positional, nil
}

// benchClient builds a client whose synthesis timeout honors the bench
// configuration, and verifies the server answers before any phrase runs.
func benchClient(ctx context.Context, cfg *config.Config) (*xtts.Client, error) {
	cc := xtts.DefaultClientConfig()
	cc.BaseURL = cfg.Server.LocalURL()
	cc.SynthesisTimeout = time.Duration(cfg.Bench.TimeoutSecs) * time.Second
	client := xtts.NewClientWithConfig(cc)

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()
	if err := client.CheckRunning(checkCtx); err != nil {
		return nil, fmt.Errorf("xtts server is not running at %s, start it with 'voxrun launch': %w",
			cfg.Server.LocalURL(), err)
	}
	return client, nil
}

// resolveBenchSpeaker picks the reference voice: flag, then config,
// then the first speaker the server lists.
func resolveBenchSpeaker(ctx context.Context, client *xtts.Client, cfg *config.Config, flag string) (string, error) {
	want := flag
	if want == "" {
		want = cfg.Bench.Speaker
	}
	if want != "" {
		name, err := client.ResolveSpeaker(ctx, want)
		if err != nil {
			if xtts.IsSpeakerNotFound(err) {
				return "", NewNotFoundError("speaker", want,
					"run 'voxrun voices' to list reference voices")
			}
			return "", err
		}
		return name, nil
	}

	names, err := client.ListSpeakerNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", NewNotFoundError("speaker", "(any)",
			"add reference WAVs to the speaker folder first")
	}
	return names[0], nil
}

// =============================================================================
// RUN
// =============================================================================

func benchRun(args Args) error {
	flags, positional, err := parseBenchFlags(args.Raw)
	if err != nil {
		return err
	}
	if flags.speaker == "" && len(positional) > 0 {
		flags.speaker = positional[0]
	}

	cfg := config.Global()
	ctx := context.Background()

	client, err := benchClient(ctx, cfg)
	if err != nil {
		return err
	}

	speaker, err := resolveBenchSpeaker(ctx, client, cfg, flags.speaker)
	if err != nil {
		return err
	}

	opts := benchmark.DefaultOptions(speaker)
	opts.Language = cfg.Bench.Language
	if flags.language != "" {
		opts.Language = flags.language
	}
	if flags.iterations > 0 {
		opts.Iterations = flags.iterations
	}

	phrases := benchmark.GetStandardPhrases()
	if flags.quick {
		phrases = benchmark.GetQuickSuite()
	}

	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render(fmt.Sprintf(
			"Benchmarking %d phrase(s) x %d iteration(s) against %s (speaker: %s)...",
			len(phrases), opts.Iterations, client.BaseURL(), speaker)))
	}

	runner := benchmark.NewRunner(client, opts)
	result, runErr := runner.RunSuite(ctx, phrases)

	if !flags.noSave && result != nil {
		if store, err := benchmark.NewStorage(); err == nil {
			// Best effort; a failed save never voids the measurements.
			_ = store.Save(result)
		}
	}

	if args.JSON {
		if runErr != nil {
			NewJSONErrorResponse("bench", runErr).Print()
			return runErr
		}
		NewJSONResponse("bench", result).Print()
		return nil
	}

	printBenchResult(result)
	return runErr
}

func printBenchResult(result *benchmark.Result) {
	if result == nil {
		return
	}

	fmt.Println(TitleStyle.Render("Benchmark: " + result.Speaker))
	fmt.Println(SeparatorStyle.Render(strings.Repeat("=", 41)))

	fmt.Printf("%-22s %10s %10s %8s %8s\n", "PHRASE", "LATENCY", "BEST", "RTF", "CHARS/S")
	fmt.Println(SeparatorStyle.Render(strings.Repeat("-", 64)))
	for _, test := range result.Tests {
		if test.Status != benchmark.TestStatusPassed {
			fmt.Printf("%-22s %s %s\n", test.Name,
				ErrorStyle.Render("[FAIL]"), DimStyle.Render(test.Error))
			continue
		}
		fmt.Printf("%-22s %10s %10s %8.2f %8.1f\n",
			test.Name,
			benchmark.FormatLatency(test.Latency),
			benchmark.FormatLatency(test.BestLatency),
			test.RTF,
			test.CharsPerSec)
	}

	fmt.Println()
	fmt.Println(result.Summary())
	if result.AvgRTF > 0 && result.AvgRTF >= 1 {
		fmt.Println(WarningStyle.Render("Synthesis is slower than playback. ") +
			DimStyle.Render("A CUDA launch usually lands well below 1.0x, see 'voxrun doctor'."))
	}
}

// =============================================================================
// COMPARE
// =============================================================================

func benchCompare(args Args) error {
	flags, positional, err := parseBenchFlags(args.Raw)
	if err != nil {
		return err
	}
	if len(positional) < 2 {
		return ErrMissingArgument("bench compare", "two or more speakers",
			"voxrun bench compare anna ben")
	}

	cfg := config.Global()
	ctx := context.Background()

	client, err := benchClient(ctx, cfg)
	if err != nil {
		return err
	}

	speakers := make([]string, 0, len(positional))
	for _, want := range positional {
		name, err := client.ResolveSpeaker(ctx, want)
		if err != nil {
			if xtts.IsSpeakerNotFound(err) {
				return NewNotFoundError("speaker", want,
					"run 'voxrun voices' to list reference voices")
			}
			return err
		}
		speakers = append(speakers, name)
	}

	opts := benchmark.DefaultOptions(speakers[0])
	opts.Language = cfg.Bench.Language
	if flags.language != "" {
		opts.Language = flags.language
	}
	if flags.iterations > 0 {
		opts.Iterations = flags.iterations
	}

	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render(fmt.Sprintf(
			"Comparing %d speakers against %s, this runs the full suite per speaker...",
			len(speakers), client.BaseURL())))
	}

	runner := benchmark.NewRunner(client, opts)
	comparison, runErr := runner.RunComparison(ctx, speakers)

	if !flags.noSave && comparison != nil {
		if store, err := benchmark.NewStorage(); err == nil {
			_ = store.SaveComparison(comparison)
		}
	}

	if args.JSON {
		if runErr != nil {
			NewJSONErrorResponse("bench", runErr).Print()
			return runErr
		}
		NewJSONResponse("bench", comparison).Print()
		return nil
	}

	if comparison != nil {
		fmt.Println(comparison.ComparisonSummary())
	}
	return runErr
}

// =============================================================================
// LIST
// =============================================================================

func benchList(args Args) error {
	store, err := benchmark.NewStorage()
	if err != nil {
		return err
	}

	files, err := store.List()
	if err != nil {
		return err
	}

	if args.JSON {
		NewJSONResponse("bench", map[string]interface{}{
			"count": len(files),
			"files": files,
		}).Print()
		return nil
	}

	if len(files) == 0 {
		fmt.Println("No saved benchmarks. Run 'voxrun bench' against a running server.")
		return nil
	}
	fmt.Printf("Saved benchmarks (%d):\n", len(files))
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
