// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run wizard for voxrun.
//
// Command: setup
// Short:   Interactive first-run configuration
// Aliases: init
//
// Subcommands:
//   (default)           Full interactive wizard
//   quick               Write defaults without prompting
//
// Examples:
//   voxrun setup                  Walk through interpreter, folders, device
//   voxrun setup quick            Accept every default
//
// The wizard walks through:
//   1. Python interpreter (the env with torch and xtts_api_server)
//   2. CUDA probe against that interpreter
//   3. Speaker and model folders
//   4. Port and device policy
//   5. Saving ~/.voxrun/config.toml
//
// Every prompt is pre-filled with the current value, so rerunning the
// wizard edits the existing configuration rather than starting over.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
	"github.com/jeranaias/voxrun/internal/voices"
)

// HandleSetup runs the first-run wizard.
func HandleSetup(args Args) error {
	switch args.Subcommand {
	case "", "wizard":
		if !IsTTY() {
			// Piped stdin cannot answer prompts; behave like quick
			// setup so provisioning scripts still get a config file.
			return setupQuick(args)
		}
		return setupWizard(args)
	case "quick":
		return setupQuick(args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected quick or nothing", "voxrun setup")
	}
}

// =============================================================================
// QUICK SETUP
// =============================================================================

// setupQuick writes the current effective configuration to disk without
// prompting. Environment overrides are captured into the file.
func setupQuick(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	path, _ := config.ConfigPathTOML()
	if args.JSON {
		NewJSONResponse("setup", map[string]interface{}{
			"path":  path,
			"quick": true,
		}).Print()
		return nil
	}

	fmt.Printf("%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
	fmt.Println(DimStyle.Render("Edit with 'voxrun config set', or rerun 'voxrun setup' on a terminal."))
	return nil
}

// =============================================================================
// INTERACTIVE WIZARD
// =============================================================================

func setupWizard(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	fmt.Println(TitleStyle.Render("voxrun setup"))
	fmt.Println("Configure the XTTS API server launcher. Enter keeps the shown value.")
	fmt.Println()

	// Step 1: interpreter.
	python, err := promptWithDefault(line, "Python interpreter", cfg.Server.Python)
	if err != nil {
		return err
	}
	cfg.Server.Python = python

	// Step 2: probe that interpreter so the operator sees the decision
	// a launch would make before committing to it.
	probeCUDAStep(cfg)

	// Step 3: folders.
	if cfg.Server.SpeakersFolder, err = promptWithDefault(line,
		"Speaker reference folder", cfg.Server.SpeakersFolder); err != nil {
		return err
	}
	if cfg.Server.ModelsFolder, err = promptWithDefault(line,
		"Model folder", cfg.Server.ModelsFolder); err != nil {
		return err
	}

	// Step 4: port and device policy.
	portStr, err := promptWithDefault(line, "Server port", strconv.Itoa(cfg.Server.Port))
	if err != nil {
		return err
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil || port < 1 || port > 65535 {
		return NewValidationError("port", portStr, "must be a number between 1 and 65535",
			"voxrun setup")
	}
	cfg.Server.Port = port

	device, err := promptWithDefault(line, "Device policy (auto/cuda/cpu)", cfg.Server.Device)
	if err != nil {
		return err
	}
	device = strings.ToLower(strings.TrimSpace(device))
	if device == "gpu" {
		device = "cuda"
	}
	if device != "auto" && device != "cuda" && device != "cpu" {
		return NewValidationError("device", device, "must be auto, cuda, or cpu", "voxrun setup")
	}
	cfg.Server.Device = device

	cfg.Daemon.AutoRestart = promptYesNo(line, "Restart the server automatically in daemon mode?",
		cfg.Daemon.AutoRestart)

	// Step 5: validate and save.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	config.SetGlobal(cfg)

	path, _ := config.ConfigPathTOML()
	fmt.Println()
	fmt.Printf("%s wrote %s\n", SuccessStyle.Render("[OK]"), path)

	// Index the voices now if the folder already has samples, so the
	// first 'voxrun voices' is instant.
	offerVoiceScan(cfg)

	fmt.Println(renderQuickstart())
	return nil
}

// probeCUDAStep runs the CUDA probe with the chosen interpreter and
// narrates the outcome. Setup never fails on a probe error; it reports
// the CPU fallback the same way a launch would.
func probeCUDAStep(cfg *config.Config) {
	fmt.Println(DimStyle.Render("Probing CUDA (cold torch imports take a few seconds)..."))

	timeout := time.Duration(cfg.Probe.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := detect.ProbeCUDA(ctx, cfg.Server.Python)
	switch {
	case res.Failed():
		fmt.Printf("%s probe could not run (%v); launches will use the CPU profile\n",
			RenderStatus("warn"), res.Err)
		if gpu, err := detect.DetectGPUCached(); err == nil && gpu != nil && gpu.Type == detect.GpuTypeNvidia {
			fmt.Println(DimStyle.Render("  An NVIDIA GPU is present. Check that this interpreter has a CUDA torch build."))
		}
	case res.Available:
		fmt.Printf("%s CUDA available; launches will use the GPU profile with DeepSpeed\n",
			RenderStatus("ok"))
	default:
		fmt.Printf("%s no CUDA; launches will use the CPU profile\n", RenderStatus("warn"))
	}
	fmt.Println()
}

// offerVoiceScan indexes the speaker folder when it exists and has
// content. Errors are shrugged off; the voices command can scan later.
func offerVoiceScan(cfg *config.Config) {
	lib, err := voices.NewLibrary(voices.DefaultConfig(cfg.Server.SpeakersFolder))
	if err != nil {
		return
	}
	defer lib.Close()

	if err := lib.Scan(context.Background()); err != nil {
		return
	}
	if stats := lib.Stats(); stats.VoiceCount > 0 {
		fmt.Printf("%s indexed %d reference voice(s)\n",
			SuccessStyle.Render("[OK]"), stats.VoiceCount)
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

// promptWithDefault reads a line pre-filled with the current value.
func promptWithDefault(line *liner.State, label, current string) (string, error) {
	answer, err := line.PromptWithSuggestion(label+": ", current, len(current))
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", fmt.Errorf("setup aborted")
	}
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

// promptYesNo asks a yes/no question; Enter keeps the default.
func promptYesNo(line *liner.State, label string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	answer, err := line.Prompt(fmt.Sprintf("%s [%s]: ", label, hint))
	if err != nil {
		return defaultYes
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}

// =============================================================================
// QUICKSTART
// =============================================================================

const quickstartMarkdown = `# Next steps

- ` + "`voxrun`" + ` probes CUDA and starts the server in the foreground
- ` + "`voxrun launch --daemon`" + ` runs it in the background
- ` + "`voxrun status`" + ` shows the GPU, the probe, and server liveness
- ` + "`voxrun voices`" + ` lists the reference voices in the speaker folder
- ` + "`voxrun doctor`" + ` diagnoses a machine that falls back to CPU

The server answers on the configured port once the model finishes
loading; ` + "`voxrun monitor`" + ` watches it come up.
`

// renderQuickstart renders the post-setup pointers, as markdown on a
// capable terminal and as plain text everywhere else.
func renderQuickstart() string {
	if !IsStdoutTTY() || !ColorsEnabled() {
		return quickstartMarkdown
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()),
	)
	if err != nil {
		return quickstartMarkdown
	}
	rendered, err := renderer.Render(quickstartMarkdown)
	if err != nil {
		return quickstartMarkdown
	}
	return rendered
}
