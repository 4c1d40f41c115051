// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - One-page report of hardware, probe, server, and daemon.
//
// Command: status
// Short:   Show CUDA capability and server state
// Aliases: s
//
// Examples:
//   voxrun status                 Full report including a live probe
//   voxrun status --json          Machine-readable report
//
// The probe runs fresh on every status call so the report reflects the
// decision the next launch would make, not a stale cached answer. Cold
// torch imports make this take a few seconds; a progress note goes to
// stderr so the wait is explained.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
	"github.com/jeranaias/voxrun/internal/storage"
	"github.com/jeranaias/voxrun/internal/voices"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// serverCheckTimeout bounds the liveness check against a server that
// may be mid model load and slow to answer.
const serverCheckTimeout = 3 * time.Second

var statusLabelStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("245")).
	Width(14)

// HandleStatus reports hardware, probe outcome, server liveness, daemon
// state, voice library, and the last launch in one page.
func HandleStatus(args Args) error {
	cfg := config.Global()
	ctx := context.Background()

	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render("Probing CUDA (cold torch imports take a few seconds)..."))
	}

	data := collectStatus(ctx, cfg)

	if args.JSON {
		NewJSONResponse("status", data).Print()
		return nil
	}

	printStatus(cfg, data, args)
	return nil
}

// collectStatus gathers every section of the report. Collection never
// fails; sections that cannot be read report themselves as absent.
func collectStatus(ctx context.Context, cfg *config.Config) StatusData {
	var data StatusData

	data.System = collectSystem()
	data.Probe = collectProbe(ctx, cfg)
	data.Server = collectServer(ctx, cfg)
	data.Daemon = collectDaemon()
	data.Voices = collectVoices(ctx, cfg)
	data.LastLaunch = collectLastLaunch()

	return data
}

func collectSystem() SystemInfo {
	info := SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	gpu, err := detect.DetectGPUCached()
	if err != nil || gpu == nil {
		gpu = detect.GetCPUInfo()
	}
	info.GPU = gpu.String()
	info.GpuType = gpu.Type.String()
	info.VramGB = int(gpu.VramGB)
	info.Driver = gpu.Driver
	return info
}

func collectProbe(ctx context.Context, cfg *config.Config) ProbeInfo {
	timeout := time.Duration(cfg.Probe.TimeoutSecs) * time.Second
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := detect.BuildCudaReport(probeCtx, cfg.Server.Python)

	info := ProbeInfo{
		Available:  report.Probe.Available,
		Output:     report.Probe.Output,
		Failed:     report.Probe.Failed(),
		DurationMs: report.Probe.Duration.Milliseconds(),
		Command:    detect.ProbeCommand(cfg.Server.Python),
		Warnings:   report.Warnings,
	}
	if report.Probe.Err != nil {
		info.Error = report.Probe.Err.Error()
	}
	return info
}

func collectServer(ctx context.Context, cfg *config.Config) ServerInfo {
	info := ServerInfo{URL: cfg.Server.LocalURL()}

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()

	client := xtts.NewClientForServer(cfg.Server)
	info.Running = client.CheckRunning(checkCtx) == nil
	return info
}

func collectDaemon() DaemonInfo {
	st, running, err := xtts.DaemonStatus()
	if err != nil || st == nil {
		return DaemonInfo{Running: false}
	}
	info := DaemonInfo{
		Running:       running,
		SupervisorPID: st.SupervisorPID,
		ServerPID:     st.ServerPID,
		Restarts:      st.Restarts,
		LogFile:       st.LogFile,
		Profile:       st.Profile().String(),
	}
	if !st.StartedAt.IsZero() {
		info.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	return info
}

func collectVoices(ctx context.Context, cfg *config.Config) VoicesStats {
	stats := VoicesStats{SpeakersDir: cfg.Server.SpeakersFolder}

	lib, err := voices.NewLibrary(voices.DefaultConfig(cfg.Server.SpeakersFolder))
	if err != nil {
		return stats
	}
	defer lib.Close()

	s := lib.Stats()
	stats.Count = s.VoiceCount
	if s.TotalDuration > 0 {
		stats.TotalDuration = formatDuration(s.TotalDuration)
	}
	if !s.LastScan.IsZero() {
		stats.LastScan = s.LastScan.UTC().Format(time.RFC3339)
	}
	return stats
}

func collectLastLaunch() *LaunchSummary {
	store, err := storage.NewLaunchStore()
	if err != nil {
		return nil
	}
	rec, err := store.Last()
	if err != nil {
		return nil
	}
	return &LaunchSummary{
		ID:        rec.ID,
		StartedAt: rec.StartedAt.UTC().Format(time.RFC3339),
		Device:    rec.Device,
		DeepSpeed: rec.DeepSpeed,
		Outcome:   rec.Outcome(),
		ExitCode:  rec.ExitCode,
		Fallback:  rec.Fallback(),
	}
}

// =============================================================================
// HUMAN OUTPUT
// =============================================================================

func printStatus(cfg *config.Config, data StatusData, args Args) {
	fmt.Println(TitleStyle.Render("voxrun status"))
	fmt.Println(SeparatorStyle.Render(strings.Repeat("=", 41)))

	printSystemSection(data.System)
	printProbeSection(data.Probe, args)
	printServerSection(data.Server)
	printDaemonSection(data.Daemon)
	printVoicesSection(data.Voices)
	printLastLaunchSection(data.LastLaunch)
}

func printSystemSection(sys SystemInfo) {
	fmt.Println(SectionStyle.Render("System"))
	fmt.Printf("  %s%s/%s\n", statusLabelStyle.Render("Platform:"), sys.OS, sys.Arch)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("GPU:"), sys.GPU)
}

func printProbeSection(probe ProbeInfo, args Args) {
	fmt.Println(SectionStyle.Render("CUDA probe"))
	if args.Verbose {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Command:"),
			DimStyle.Render(strings.Join(probe.Command, " ")))
	}

	switch {
	case probe.Failed:
		fmt.Printf("  %s%s %s\n", statusLabelStyle.Render("Result:"),
			RenderStatus("fail"), "probe could not run")
		if probe.Error != "" {
			fmt.Printf("  %s%s\n", statusLabelStyle.Render("Error:"), probe.Error)
		}
	case probe.Available:
		fmt.Printf("  %s%s CUDA available (%s)\n", statusLabelStyle.Render("Result:"),
			RenderStatus("ok"), formatDurationShort(time.Duration(probe.DurationMs)*time.Millisecond))
	default:
		fmt.Printf("  %s%s no CUDA, launches use the CPU profile\n",
			statusLabelStyle.Render("Result:"), RenderStatus("warn"))
	}

	for _, w := range probe.Warnings {
		fmt.Printf("  %s\n", WarningStyle.Render("! ")+w)
	}
}

func printServerSection(server ServerInfo) {
	fmt.Println(SectionStyle.Render("Server"))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("URL:"), server.URL)
	if server.Running {
		fmt.Printf("  %s%s answering\n", statusLabelStyle.Render("Status:"), RenderStatus("ok"))
	} else {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Status:"),
			DimStyle.Render("not reachable"))
	}
}

func printDaemonSection(daemon DaemonInfo) {
	fmt.Println(SectionStyle.Render("Daemon"))
	if !daemon.Running {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Status:"),
			DimStyle.Render("not running"))
		return
	}

	fmt.Printf("  %s%s (supervisor pid %d)\n", statusLabelStyle.Render("Status:"),
		RenderStatus("running"), daemon.SupervisorPID)
	fmt.Printf("  %s%d\n", statusLabelStyle.Render("Server PID:"), daemon.ServerPID)
	if daemon.Profile != "" {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Profile:"), daemon.Profile)
	}
	if daemon.StartedAt != "" {
		if started, err := time.Parse(time.RFC3339, daemon.StartedAt); err == nil {
			fmt.Printf("  %s%s\n", statusLabelStyle.Render("Uptime:"),
				formatDuration(time.Since(started)))
		}
	}
	if daemon.Restarts > 0 {
		fmt.Printf("  %s%d\n", statusLabelStyle.Render("Restarts:"), daemon.Restarts)
	}
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Log file:"), daemon.LogFile)
}

func printVoicesSection(v VoicesStats) {
	fmt.Println(SectionStyle.Render("Voices"))
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Folder:"), v.SpeakersDir)
	if v.LastScan == "" {
		fmt.Printf("  %s%s\n", statusLabelStyle.Render("Index:"),
			DimStyle.Render("not indexed (run 'voxrun voices reindex')"))
		return
	}
	line := fmt.Sprintf("%d voices", v.Count)
	if v.TotalDuration != "" {
		line += fmt.Sprintf(", %s of reference audio", v.TotalDuration)
	}
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Index:"), line)
}

func printLastLaunchSection(last *LaunchSummary) {
	fmt.Println(SectionStyle.Render("Last launch"))
	if last == nil {
		fmt.Printf("  %s\n", DimStyle.Render("No launches recorded."))
		fmt.Println()
		return
	}

	profile := "CPU (cpu)"
	if last.Device == "cuda" {
		profile = "GPU (cuda)"
		if last.DeepSpeed {
			profile = "GPU (cuda, deepspeed)"
		}
	}

	when := last.StartedAt
	if started, err := time.Parse(time.RFC3339, last.StartedAt); err == nil {
		when = fmt.Sprintf("%s (%s ago)",
			started.Local().Format("2006-01-02 15:04"),
			formatDuration(time.Since(started)))
	}

	fmt.Printf("  %s%s\n", statusLabelStyle.Render("When:"), when)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Profile:"), profile)
	fmt.Printf("  %s%s\n", statusLabelStyle.Render("Outcome:"), last.Outcome)
	if last.Fallback {
		fmt.Printf("  %s\n", WarningStyle.Render("! ")+"probed for CUDA but launched on CPU")
	}
	fmt.Println()
}
