// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// =============================================================================
// CUDA REPORT
// =============================================================================

// CudaReport combines the probe outcome with a hardware cross-check.
// Status and doctor render it so operators can tell "no GPU in the box"
// apart from "GPU present but the probe environment is broken".
type CudaReport struct {
	// Probe is the CUDA probe outcome driving the launch decision.
	Probe ProbeResult
	// GPU is the detected hardware, never nil.
	GPU *GpuInfo
	// MemoryUsedMB and MemoryTotalMB are current VRAM numbers when the
	// hardware exposes them, otherwise Total reflects the detected size.
	MemoryUsedMB  int
	MemoryTotalMB int
	// MemoryPercent is the percentage of VRAM used (0-100).
	MemoryPercent float64
	// Warnings lists issues found while cross-checking probe and hardware.
	Warnings []string
}

// CPUFallback reports whether the launcher would pick the CPU profile.
func (r CudaReport) CPUFallback() bool {
	return !r.Probe.Available
}

// BuildCudaReport runs the probe, inventories the hardware, and
// cross-checks the two. CANCELLATION: Context enables timeout and
// cancellation
func BuildCudaReport(ctx context.Context, python string) CudaReport {
	probe := ProbeCUDA(ctx, python)

	gpu, _ := DetectGPUCached()
	if gpu == nil {
		gpu = GetCPUInfo()
	}

	report := CudaReport{
		Probe:    probe,
		GPU:      gpu,
		Warnings: make([]string, 0),
	}

	if gpu.Type == GpuTypeNvidia {
		if usage := GetNvidiaMemoryUsage(); usage != nil {
			report.MemoryUsedMB = usage.UsedMB
			report.MemoryTotalMB = usage.TotalMB
			if usage.TotalMB > 0 {
				report.MemoryPercent = float64(usage.UsedMB) / float64(usage.TotalMB) * 100
			}
		}
	} else {
		report.MemoryTotalMB = int(gpu.VramGB) * 1024
	}

	report.Warnings = append(report.Warnings, DiagnoseCPUFallback(probe, gpu, python)...)

	if report.MemoryPercent > 90 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("VRAM is nearly full (%.1f%% used) - model load may fail or spill to CPU", report.MemoryPercent))
	}

	return report
}

// =============================================================================
// CPU FALLBACK DIAGNOSIS
// =============================================================================

// DiagnoseCPUFallback explains why the launcher will not use CUDA. Returns
// an empty slice when the probe answered True. The wording targets the
// operator who expected GPU synthesis and got CPU.
func DiagnoseCPUFallback(probe ProbeResult, gpu *GpuInfo, python string) []string {
	warnings := make([]string, 0)

	if probe.Available {
		return warnings
	}

	if probe.Failed() {
		warnings = append(warnings,
			fmt.Sprintf("CUDA probe failed to run: %v - falling back to CPU", probe.Err))
		if probe.Stderr != "" {
			warnings = append(warnings, "probe stderr: "+lastLine(probe.Stderr))
		}
	}

	if python == "" {
		python = "python"
	}
	if _, err := exec.LookPath(python); err != nil {
		warnings = append(warnings,
			fmt.Sprintf("python: %q not found in PATH - the CUDA probe cannot run", python))
	}

	if gpu == nil {
		return warnings
	}

	switch gpu.Type {
	case GpuTypeNvidia:
		// Hardware is there but torch says no. Almost always an
		// environment problem, not a hardware one.
		warnings = append(warnings,
			fmt.Sprintf("%s detected but torch reports CUDA unavailable - check that the active Python environment has a CUDA build of torch", gpu.Name))
	case GpuTypeAmd:
		warnings = append(warnings,
			fmt.Sprintf("%s detected - stock torch has no CUDA support for AMD; install a ROCm torch build to use it", gpu.Name))
	case GpuTypeAppleSilicon:
		warnings = append(warnings,
			"CUDA is not available on macOS - the server will run on CPU")
	default:
		if !checkNvidiaSmiAvailable() {
			warnings = append(warnings, nvidiaSmiHint())
		}
		if runtime.GOOS == "linux" && !checkRocmInstalled() {
			warnings = append(warnings,
				"AMD: ROCm not installed - only relevant if this machine has an AMD GPU")
		}
		if len(warnings) == 0 {
			warnings = append(warnings,
				"no GPU detected - ensure GPU drivers are properly installed")
		}
	}

	return warnings
}

// nvidiaSmiHint returns a PATH-aware hint about missing nvidia-smi.
func nvidiaSmiHint() string {
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(`C:\Windows\System32\nvidia-smi.exe`); os.IsNotExist(err) {
			return "NVIDIA: nvidia-smi not found - NVIDIA drivers may not be installed"
		}
		return "NVIDIA: nvidia-smi found but not in PATH"
	}
	return "NVIDIA: nvidia-smi not in PATH - NVIDIA drivers may not be installed"
}

// checkNvidiaSmiAvailable checks if nvidia-smi is available and working.
func checkNvidiaSmiAvailable() bool {
	for _, path := range getNvidiaSmiPaths() {
		cmd := exec.Command(path, "--version")
		if err := cmd.Run(); err == nil {
			return true
		}
	}
	return false
}

// checkRocmInstalled checks if ROCm is installed on Linux.
func checkRocmInstalled() bool {
	if _, err := exec.LookPath("rocm-smi"); err == nil {
		return true
	}
	if _, err := os.Stat("/opt/rocm"); err == nil {
		return true
	}
	return false
}

// lastLine returns the final non-empty line of s, which for a Python
// traceback is the exception itself.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return s
}
