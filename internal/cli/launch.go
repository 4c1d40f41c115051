// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// launch.go - Launch, stop, and the hidden daemon supervisor entry.
//
// Command: launch (default)
// Short:   Probe CUDA and start the XTTS API server
// Aliases: start, serve, run
//
// Examples:
//   voxrun                        Probe and launch in the foreground
//   voxrun --device cpu           Force the CPU profile, skip the probe
//   voxrun launch --daemon        Launch in the background
//   voxrun launch --dry-run -v    Show the decision without starting
//   voxrun stop                   Stop the background daemon
//
// Flags:
//   --device, --deepspeed, --daemon, --dry-run, --port, --host,
//   --speakers, --models
//
// The probe is fail-open: a probe that cannot run selects the CPU
// profile so the host still gets a working server. The fallback is
// never silent; a warning lands on stderr and the launch record keeps
// the probe outcome for later inspection.
//
// With --json the decision envelope is printed before stdio is handed
// to the server, so scripts can read one JSON document and then treat
// the rest of the stream as server output.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
	"github.com/jeranaias/voxrun/internal/storage"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// Local styles for launch output.
var (
	launchLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Width(12)
)

// stopTimeout bounds how long stop waits for the daemon to shut down
// before killing it.
const stopTimeout = 30 * time.Second

// =============================================================================
// LAUNCH COMMAND
// =============================================================================

// HandleLaunch resolves the device profile and starts the XTTS API
// server, in the foreground unless --daemon was given.
func HandleLaunch(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		// A malformed config file must not silently launch with
		// defaults the operator did not choose.
		return fmt.Errorf("config: %w", err)
	}
	if err := applyLaunchOverrides(cfg, args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(args.Raw) > 0 {
		return NewValidationError(
			"argument", args.Raw[0], "unknown launch argument",
			"voxrun launch --daemon --port 8020",
		)
	}

	if args.Daemon {
		return launchDaemon(cfg, args)
	}

	ctx := context.Background()
	dec := decide(ctx, cfg)
	reportFallback(dec, cfg, args)

	if args.DryRun {
		return launchDryRun(cfg, dec, args)
	}

	if args.JSON {
		NewJSONResponse("launch", launchData(cfg, dec, false, 0)).Print()
	} else if !args.Quiet {
		fmt.Println(launchStatusLine(dec.Profile))
		if args.Verbose {
			fmt.Println(DimStyle.Render("  " + xtts.CommandLine(cfg.Server, dec.Profile)))
		}
	}

	launcher := xtts.NewLauncher(cfg.Server)
	proc, err := launcher.Start(dec.Profile)
	if err != nil {
		return err
	}

	store, recID := recordLaunch(cfg, dec, false, proc.PID())

	// Block until the server exits. Its status becomes ours.
	runErr := xtts.WaitRelayed(ctx, proc)
	finishRecord(store, recID, runErr)
	return runErr
}

// decide resolves the launch profile with the configured probe timeout.
func decide(ctx context.Context, cfg *config.Config) xtts.Decision {
	timeout := time.Duration(cfg.Probe.TimeoutSecs) * time.Second
	return xtts.Decide(ctx, cfg.Server, timeout)
}

// applyLaunchOverrides layers CLI flags over the loaded configuration.
// Precedence: flags, then environment, then file, then defaults.
func applyLaunchOverrides(cfg *config.Config, args Args) error {
	if args.Device != "" {
		device := strings.ToLower(args.Device)
		if device == "gpu" {
			device = "cuda"
		}
		if device != "auto" && device != "cuda" && device != "cpu" {
			return NewValidationError("--device", args.Device,
				"must be cuda, cpu, or auto", "voxrun --device cpu")
		}
		cfg.Server.Device = device
	}
	if args.DeepSpeed != "" {
		policy := strings.ToLower(args.DeepSpeed)
		switch policy {
		case "true", "1", "yes":
			policy = "on"
		case "false", "0", "no":
			policy = "off"
		}
		if policy != "on" && policy != "off" && policy != "auto" {
			return NewValidationError("--deepspeed", args.DeepSpeed,
				"must be on, off, or auto", "voxrun launch --deepspeed off")
		}
		cfg.Server.DeepSpeed = policy
	}
	if args.Port != 0 {
		cfg.Server.Port = args.Port
	}
	if args.Host != "" {
		cfg.Server.Host = args.Host
	}
	if args.Speakers != "" {
		cfg.Server.SpeakersFolder = args.Speakers
	}
	if args.Models != "" {
		cfg.Server.ModelsFolder = args.Models
	}
	return nil
}

// launchStatusLine names the chosen profile before the server starts.
func launchStatusLine(p xtts.Profile) string {
	switch {
	case p.Device == xtts.DeviceCUDA && p.DeepSpeed:
		return "Starting XTTS API server (GPU profile: cuda + DeepSpeed)"
	case p.Device == xtts.DeviceCUDA:
		return "Starting XTTS API server (GPU profile: cuda)"
	default:
		return "Starting XTTS API server (CPU profile: cpu)"
	}
}

// reportFallback surfaces a probe that could not run at all. Falling
// back to CPU is deliberate, but doing it silently strands operators
// debugging a mysteriously slow server.
func reportFallback(dec xtts.Decision, cfg *config.Config, args Args) {
	if !dec.Probed || !dec.Probe.Failed() || !cfg.Probe.WarnOnFailure {
		return
	}
	fmt.Fprintf(os.Stderr, "%s CUDA probe failed (%v); continuing with the CPU profile\n",
		WarningStyle.Render("Warning:"), dec.Probe.Err)
	if args.Verbose && dec.Probe.Stderr != "" {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("  probe stderr: "+dec.Probe.Stderr))
	}
	fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("  Run 'voxrun doctor' to diagnose GPU detection."))
}

// launchDryRun prints the decision and the exact command, starts nothing.
func launchDryRun(cfg *config.Config, dec xtts.Decision, args Args) error {
	if args.JSON {
		data := launchData(cfg, dec, false, 0)
		data.DryRun = true
		NewJSONResponse("launch", data).Print()
		return nil
	}

	fmt.Printf("%s%s\n", launchLabelStyle.Render("Profile:"), dec.Profile)
	if dec.Probed {
		answer := "no CUDA"
		if dec.Probe.Available {
			answer = "CUDA available"
		}
		if dec.Probe.Failed() {
			answer = fmt.Sprintf("probe failed (%v)", dec.Probe.Err)
		}
		fmt.Printf("%s%s in %s\n", launchLabelStyle.Render("Probe:"),
			answer, formatDurationShort(dec.Probe.Duration))
	} else {
		fmt.Printf("%s%s\n", launchLabelStyle.Render("Probe:"),
			"skipped (device pinned)")
	}
	fmt.Printf("%s%s\n", launchLabelStyle.Render("Command:"),
		xtts.CommandLine(cfg.Server, dec.Profile))
	return nil
}

// launchData assembles the --json payload for a launch decision.
func launchData(cfg *config.Config, dec xtts.Decision, daemon bool, pid int) LaunchData {
	return LaunchData{
		Profile:     dec.Profile.String(),
		Device:      string(dec.Profile.Device),
		DeepSpeed:   dec.Profile.DeepSpeed,
		Probed:      dec.Probed,
		ProbeOutput: dec.Probe.Output,
		ProbeFailed: dec.Probed && dec.Probe.Failed(),
		Command:     append([]string{cfg.Server.Python}, xtts.BuildArgs(cfg.Server, dec.Profile)...),
		Daemon:      daemon,
		PID:         pid,
	}
}

// =============================================================================
// DAEMON MODE
// =============================================================================

// launchDaemon starts the detached supervisor and reports the profile
// it chose. The probe runs in the supervisor so the parent never holds
// the terminal for a cold torch import twice.
func launchDaemon(cfg *config.Config, args Args) error {
	exportLaunchEnv(args)

	var progress io.Writer = os.Stderr
	if args.Quiet || args.JSON {
		progress = nil
	}

	st, err := xtts.StartDaemon(context.Background(), progress)
	if errors.Is(err, xtts.ErrDaemonRunning) {
		return fmt.Errorf("daemon already running (server pid %d, log %s)",
			st.ServerPID, st.LogFile)
	}
	if err != nil {
		return err
	}

	profile := st.Profile()
	if args.JSON {
		data := launchData(cfg, xtts.Decision{Profile: profile}, true, st.ServerPID)
		NewJSONResponse("launch", data).Print()
		return nil
	}

	fmt.Println(daemonStartedLine(profile))
	fmt.Printf("  %s%d\n", launchLabelStyle.Render("Server PID:"), st.ServerPID)
	fmt.Printf("  %s%s\n", launchLabelStyle.Render("Log file:"), st.LogFile)
	fmt.Printf("  %s%s\n", launchLabelStyle.Render("URL:"), cfg.Server.LocalURL())
	fmt.Println()
	fmt.Println(DimStyle.Render("Stop with 'voxrun stop', watch with 'voxrun monitor'."))
	return nil
}

// daemonStartedLine names the profile the supervisor settled on.
func daemonStartedLine(p xtts.Profile) string {
	switch {
	case p.Device == xtts.DeviceCUDA && p.DeepSpeed:
		return "XTTS API server running in the background (GPU profile: cuda + DeepSpeed)"
	case p.Device == xtts.DeviceCUDA:
		return "XTTS API server running in the background (GPU profile: cuda)"
	default:
		return "XTTS API server running in the background (CPU profile: cpu)"
	}
}

// exportLaunchEnv forwards explicit flag overrides to the re-executed
// supervisor through the same environment variables operators use, so
// both processes resolve an identical configuration.
func exportLaunchEnv(args Args) {
	if args.Device != "" {
		device := strings.ToLower(args.Device)
		if device == "gpu" {
			device = "cuda"
		}
		os.Setenv("VOXRUN_DEVICE", device)
	}
	if args.DeepSpeed != "" {
		os.Setenv("VOXRUN_DEEPSPEED", strings.ToLower(args.DeepSpeed))
	}
	if args.Port != 0 {
		os.Setenv("VOXRUN_PORT", strconv.Itoa(args.Port))
	}
	if args.Host != "" {
		os.Setenv("VOXRUN_HOST", args.Host)
	}
	if args.Speakers != "" {
		os.Setenv("VOXRUN_SPEAKERS_FOLDER", args.Speakers)
	}
	if args.Models != "" {
		os.Setenv("VOXRUN_MODELS_FOLDER", args.Models)
	}
}

// HandleDaemon is the hidden supervisor entry point re-executed by
// --daemon. It runs detached; everything it has to say goes to the
// rotated server log. The return value becomes the process exit code.
func HandleDaemon(args Args) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxrun daemon: %v\n", err)
		return 1
	}

	dec := decide(context.Background(), cfg)

	store, recID := recordLaunch(cfg, dec, true, 0)
	code := xtts.RunSupervisor(cfg, dec)
	if store != nil && recID != "" {
		_ = store.Finish(recID, code)
	}
	return code
}

// =============================================================================
// HISTORY RECORDING
// =============================================================================

// recordLaunch persists the history record for a launch that just
// started. History failures never block a launch.
func recordLaunch(cfg *config.Config, dec xtts.Decision, daemon bool, pid int) (*storage.LaunchStore, string) {
	store, err := storage.NewLaunchStore()
	if err != nil {
		return nil, ""
	}

	rec := &storage.LaunchRecord{
		Device:      string(dec.Profile.Device),
		DeepSpeed:   dec.Profile.DeepSpeed,
		Probed:      dec.Probed,
		ProbeOutput: dec.Probe.Output,
		ProbeFailed: dec.Probed && dec.Probe.Failed(),
		Daemon:      daemon,
		PID:         pid,
		Args:        xtts.BuildArgs(cfg.Server, dec.Profile),
	}
	if gpu, err := detect.DetectGPUCached(); err == nil && gpu != nil {
		rec.GpuName = gpu.Name
	}

	id, err := store.Begin(rec)
	if err != nil {
		return nil, ""
	}
	return store, id
}

// finishRecord closes the record with the exit code derived from the
// run error, mirroring what the process will report.
func finishRecord(store *storage.LaunchStore, id string, runErr error) {
	if store == nil || id == "" {
		return
	}
	_ = store.Finish(id, GetExitCode(runErr))
}

// =============================================================================
// STOP COMMAND
// =============================================================================

// HandleStop stops the background daemon. Idempotent: stopping an
// already-stopped daemon reports the fact and exits zero.
func HandleStop(args Args) error {
	st, err := xtts.StopDaemon(stopTimeout)
	if errors.Is(err, xtts.ErrDaemonNotRunning) {
		if args.JSON {
			NewJSONResponse("stop", StopData{Stopped: false}).Print()
			return nil
		}
		fmt.Println("voxrun daemon is not running.")
		return nil
	}
	if err != nil {
		return err
	}

	uptime := time.Since(st.StartedAt)
	if args.JSON {
		NewJSONResponse("stop", StopData{
			Stopped:       true,
			SupervisorPID: st.SupervisorPID,
			ServerPID:     st.ServerPID,
			Uptime:        formatDurationShort(uptime),
		}).Print()
		return nil
	}

	fmt.Printf("%s voxrun daemon stopped (server pid %d, up %s)\n",
		SuccessStyle.Render("[OK]"), st.ServerPID, formatDuration(uptime))
	return nil
}
