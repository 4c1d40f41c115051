// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Health checks for the launch environment.
//
// Command: doctor
// Short:   Diagnose GPU detection and launch prerequisites
//
// Examples:
//   voxrun doctor                 Run all health checks
//   voxrun doctor fix             Apply safe automatic repairs
//   voxrun doctor --json          Machine-readable results
//
// Checks are ordered by how often they explain "why did my launch pick
// CPU": interpreter, probe, hardware, then the folders and state the
// server needs. A failed probe is a warning, not a failure, because
// launches deliberately fall back to CPU and keep working.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
	"github.com/jeranaias/voxrun/internal/storage"
	"github.com/jeranaias/voxrun/internal/voices"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// =============================================================================
// CHECK TYPES
// =============================================================================

// CheckStatus is the outcome of one health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the bracketed marker for human output.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "[??]"
	}
}

// HealthCheck is one named check with its outcome.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	// Fix names the command or action that resolves the finding.
	Fix string
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

// HandleDoctor runs every health check and reports the results. Any
// failed check makes the command exit non-zero; warnings do not.
func HandleDoctor(args Args) error {
	if args.Subcommand == "fix" {
		return doctorFix(args)
	}
	if args.Subcommand != "" {
		return NewValidationError("subcommand", args.Subcommand,
			"doctor accepts no subcommand except 'fix'", "voxrun doctor fix")
	}

	cfg := config.Global()

	if !args.Quiet && !args.JSON {
		StderrPrintln(DimStyle.Render("Running health checks (the CUDA probe takes a few seconds)..."))
	}

	checks := runHealthChecks(context.Background(), cfg)
	summary := summarize(checks)

	if args.JSON {
		NewJSONResponse("doctor", doctorData(checks, summary)).Print()
	} else {
		printChecks(checks, summary)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d health check(s) failed", summary.Failed)
	}
	return nil
}

func runHealthChecks(ctx context.Context, cfg *config.Config) []HealthCheck {
	checks := []HealthCheck{
		checkConfig(),
		checkPython(cfg),
	}

	probeCtx, cancel := context.WithTimeout(ctx,
		time.Duration(cfg.Probe.TimeoutSecs)*time.Second)
	report := detect.BuildCudaReport(probeCtx, cfg.Server.Python)
	cancel()

	checks = append(checks,
		checkGPU(report),
		checkProbe(report),
		checkSpeakers(cfg),
		checkModels(cfg),
		checkPort(cfg),
		checkDaemonState(ctx, cfg),
		checkHistory(),
	)
	return checks
}

func summarize(checks []HealthCheck) DoctorSummary {
	var s DoctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			s.Passed++
		case CheckWarn:
			s.Warned++
		case CheckFail:
			s.Failed++
		}
	}
	s.Healthy = s.Failed == 0
	return s
}

func doctorData(checks []HealthCheck, summary DoctorSummary) DoctorData {
	data := DoctorData{Summary: summary}
	for _, c := range checks {
		data.Checks = append(data.Checks, DoctorCheck{
			Name:    c.Name,
			Status:  c.Status.String(),
			Message: c.Message,
			Fix:     c.Fix,
		})
	}
	return data
}

func printChecks(checks []HealthCheck, summary DoctorSummary) {
	fmt.Println(TitleStyle.Render("voxrun doctor"))
	fmt.Println(SeparatorStyle.Render(strings.Repeat("=", 41)))

	for _, c := range checks {
		fmt.Printf("%s %s: %s\n", c.Status.Symbol(), c.Name, c.Message)
		if c.Fix != "" && c.Status != CheckPass {
			fmt.Printf("       %s\n", DimStyle.Render("fix: "+c.Fix))
		}
	}

	fmt.Println()
	line := fmt.Sprintf("%d passed, %d warning, %d failed",
		summary.Passed, summary.Warned, summary.Failed)
	if summary.Healthy {
		fmt.Println(SuccessStyle.Render("Healthy: ") + line)
	} else {
		fmt.Println(ErrorStyle.Render("Unhealthy: ") + line)
	}
}

// =============================================================================
// INDIVIDUAL CHECKS
// =============================================================================

func checkConfig() HealthCheck {
	check := HealthCheck{Name: "config"}

	cfg, err := config.Load()
	if err != nil {
		check.Status = CheckFail
		check.Message = err.Error()
		check.Fix = "voxrun config reset"
		return check
	}
	if err := cfg.Validate(); err != nil {
		check.Status = CheckFail
		check.Message = err.Error()
		check.Fix = "voxrun config set <key> <value>, or voxrun config reset"
		return check
	}

	path, _ := config.ConfigPathTOML()
	if _, statErr := os.Stat(path); statErr != nil {
		check.Status = CheckPass
		check.Message = "no config file, built-in defaults apply"
		return check
	}
	check.Status = CheckPass
	check.Message = "valid (" + path + ")"
	return check
}

func checkPython(cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "python"}

	python := cfg.Server.Python
	path, err := exec.LookPath(python)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%q not found in PATH", python)
		check.Fix = "install Python or point server.python at the venv interpreter"
		return check
	}
	check.Status = CheckPass
	check.Message = path
	return check
}

func checkGPU(report detect.CudaReport) HealthCheck {
	check := HealthCheck{Name: "gpu"}
	gpu := report.GPU

	switch gpu.Type {
	case detect.GpuTypeNvidia:
		check.Status = CheckPass
		check.Message = gpu.String()
		if report.MemoryTotalMB > 0 && report.MemoryPercent > 90 {
			check.Status = CheckWarn
			check.Message = fmt.Sprintf("%s, VRAM %.0f%% used", gpu.String(), report.MemoryPercent)
			check.Fix = "free VRAM before launching or enable server.lowvram"
		}
	case detect.GpuTypeAmd:
		check.Status = CheckWarn
		check.Message = gpu.String() + ", stock torch cannot drive it through CUDA"
		check.Fix = "install a ROCm torch build if GPU synthesis is required"
	case detect.GpuTypeAppleSilicon:
		check.Status = CheckWarn
		check.Message = gpu.String() + ", CUDA is not available on macOS"
	default:
		check.Status = CheckWarn
		check.Message = "no discrete GPU detected, synthesis runs on CPU"
	}
	return check
}

// checkProbe grades the probe that decides the launch profile. The
// probe failing outright is a warning: launches still work, they just
// land on the CPU profile.
func checkProbe(report detect.CudaReport) HealthCheck {
	check := HealthCheck{Name: "cuda probe"}
	probe := report.Probe

	switch {
	case probe.Failed():
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("probe could not run (%v), launches fall back to CPU", probe.Err)
		check.Fix = "check that the interpreter has torch installed"
	case probe.Available:
		check.Status = CheckPass
		check.Message = fmt.Sprintf("CUDA available (answered in %s)",
			formatDurationShort(probe.Duration))
	case report.GPU.Type == detect.GpuTypeNvidia:
		check.Status = CheckWarn
		check.Message = "NVIDIA GPU present but torch reports CUDA unavailable"
		check.Fix = "install a CUDA build of torch in the server's Python environment"
	default:
		check.Status = CheckPass
		check.Message = "no CUDA, the CPU profile is the correct choice here"
	}
	return check
}

func checkSpeakers(cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "speakers folder"}
	dir := cfg.Server.SpeakersFolder

	info, err := os.Stat(dir)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%q does not exist", dir)
		check.Fix = "voxrun doctor fix"
		return check
	}
	if !info.IsDir() {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%q is not a directory", dir)
		return check
	}

	lib, err := voices.NewLibrary(voices.DefaultConfig(dir))
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("voice index unavailable: %v", err)
		return check
	}
	defer lib.Close()

	stats := lib.Stats()
	if stats.LastScan.IsZero() {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("%q exists but was never indexed", dir)
		check.Fix = "voxrun voices reindex"
		return check
	}
	if stats.VoiceCount == 0 {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("%q holds no reference voices", dir)
		check.Fix = "add speaker WAV files, then voxrun voices reindex"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("%d reference voices in %q", stats.VoiceCount, dir)
	return check
}

func checkModels(cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "models folder"}
	dir := cfg.Server.ModelsFolder

	info, err := os.Stat(dir)
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("%q does not exist yet, the server creates it on first download", dir)
		check.Fix = "voxrun doctor fix"
		return check
	}
	if !info.IsDir() {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%q is not a directory", dir)
		return check
	}
	if err := checkWritable(dir); err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("%q is not writable: %v", dir, err)
		check.Fix = "fix directory permissions, model downloads land here"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("%q is writable", dir)
	return check
}

// checkWritable proves write access by creating and removing a probe
// file. Permission bits lie on network mounts; an actual write does not.
func checkWritable(dir string) error {
	probe := filepath.Join(dir, ".voxrun_write_test")
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(probe)
}

// checkPort reports a port squatter before the server trips over it
// with a less helpful bind error. Skipped when our own server answers.
func checkPort(cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "port"}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	checkCtx, cancel := context.WithTimeout(context.Background(), serverCheckTimeout)
	defer cancel()
	client := xtts.NewClientForServer(cfg.Server)
	if client.CheckRunning(checkCtx) == nil {
		check.Status = CheckPass
		check.Message = fmt.Sprintf("XTTS server answering on %s", cfg.Server.LocalURL())
		return check
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("port %d is held by another process", cfg.Server.Port)
		check.Fix = "stop the other process or voxrun config set server.port <port>"
		return check
	}
	ln.Close()
	check.Status = CheckPass
	check.Message = fmt.Sprintf("port %d is free", cfg.Server.Port)
	return check
}

// checkDaemonState cross-checks the daemon state file against reality.
func checkDaemonState(ctx context.Context, cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "daemon"}

	st, running, err := xtts.DaemonStatus()
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("daemon state unreadable: %v", err)
		check.Fix = "voxrun stop"
		return check
	}
	if st == nil {
		check.Status = CheckPass
		check.Message = "not running"
		return check
	}
	if !running {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("stale state file for dead supervisor pid %d", st.SupervisorPID)
		check.Fix = "voxrun doctor fix"
		return check
	}

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()
	client := xtts.NewClientForServer(cfg.Server)
	if client.CheckRunning(checkCtx) != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("supervisor pid %d alive but the server is not answering yet", st.SupervisorPID)
		check.Fix = "watch with 'voxrun monitor', model loads take a while"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("running (supervisor pid %d, server pid %d)", st.SupervisorPID, st.ServerPID)
	return check
}

func checkHistory() HealthCheck {
	check := HealthCheck{Name: "history"}

	store, err := storage.NewLaunchStore()
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("launch history unavailable: %v", err)
		return check
	}
	if err := checkWritable(store.BaseDir); err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("history directory not writable: %v", err)
		return check
	}
	check.Status = CheckPass
	check.Message = store.BaseDir
	return check
}

// =============================================================================
// AUTOMATIC REPAIR
// =============================================================================

// doctorFix applies the repairs that are safe to do without asking:
// creating missing folders, writing a default config, and clearing
// stale daemon state. Anything riskier stays a printed fix hint.
func doctorFix(args Args) error {
	cfg := config.Global()
	var fixed, failed int

	report := func(action string, err error) {
		if err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", ErrorStyle.Render("[FAIL]"), action, err)
			return
		}
		fixed++
		fmt.Printf("%s %s\n", SuccessStyle.Render("[OK]"), action)
	}

	if _, err := os.Stat(cfg.Server.SpeakersFolder); os.IsNotExist(err) {
		report("create speakers folder "+cfg.Server.SpeakersFolder,
			os.MkdirAll(cfg.Server.SpeakersFolder, 0o755))
	}
	if _, err := os.Stat(cfg.Server.ModelsFolder); os.IsNotExist(err) {
		report("create models folder "+cfg.Server.ModelsFolder,
			os.MkdirAll(cfg.Server.ModelsFolder, 0o755))
	}

	if path, err := config.ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			report("write default config "+path, config.Save(config.Default()))
		}
	}

	if st, running, _ := xtts.DaemonStatus(); st != nil && !running {
		// StopDaemon removes the stale state file on its way out.
		_, err := xtts.StopDaemon(time.Second)
		if errors.Is(err, xtts.ErrDaemonNotRunning) {
			err = nil
		}
		report("clear stale daemon state", err)
	}

	if fixed == 0 && failed == 0 {
		fmt.Println("Nothing to fix.")
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d repair(s) failed", failed)
	}
	return nil
}
