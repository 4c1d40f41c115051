// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// CUDA REPORT TESTS
// =============================================================================

func TestBuildCudaReport_ProbeAvailable(t *testing.T) {
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		return "True\n", "", nil
	})

	report := BuildCudaReport(context.Background(), "python")

	if report.GPU == nil {
		t.Fatal("CudaReport.GPU should never be nil")
	}
	if report.CPUFallback() {
		t.Error("probe answered True, CPUFallback should be false")
	}
	if report.MemoryPercent < 0 || report.MemoryPercent > 100 {
		t.Errorf("MemoryPercent = %f, want 0-100", report.MemoryPercent)
	}

	t.Logf("GPU: %s, warnings: %d", report.GPU.Name, len(report.Warnings))
}

func TestBuildCudaReport_ProbeFailure(t *testing.T) {
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		return "", "ModuleNotFoundError: No module named 'torch'", errors.New("exit status 1")
	})

	report := BuildCudaReport(context.Background(), "python")

	if !report.CPUFallback() {
		t.Error("failed probe should report CPU fallback")
	}
	if len(report.Warnings) == 0 {
		t.Fatal("failed probe should surface at least one warning")
	}

	joined := strings.Join(report.Warnings, "\n")
	if !strings.Contains(joined, "CUDA probe failed") {
		t.Errorf("warnings should name the probe failure, got:\n%s", joined)
	}
	if !strings.Contains(joined, "ModuleNotFoundError") {
		t.Errorf("warnings should carry the probe's stderr tail, got:\n%s", joined)
	}
}

// =============================================================================
// DIAGNOSIS TESTS
// =============================================================================

func TestDiagnoseCPUFallback_NoWarningsWhenAvailable(t *testing.T) {
	probe := ProbeResult{Available: true, Output: "True"}
	gpu := &GpuInfo{Name: "NVIDIA GeForce RTX 4090", Type: GpuTypeNvidia}

	warnings := DiagnoseCPUFallback(probe, gpu, "python")
	if len(warnings) != 0 {
		t.Errorf("available probe should produce no warnings, got %v", warnings)
	}
}

func TestDiagnoseCPUFallback_NvidiaPresentButProbeSaysNo(t *testing.T) {
	probe := ProbeResult{Available: false, Output: "False"}
	gpu := &GpuInfo{Name: "NVIDIA GeForce RTX 3080", Type: GpuTypeNvidia}

	warnings := DiagnoseCPUFallback(probe, gpu, "python")
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "RTX 3080") {
		t.Errorf("warning should name the detected GPU, got:\n%s", joined)
	}
	if !strings.Contains(joined, "CUDA build of torch") {
		t.Errorf("warning should point at the torch build, got:\n%s", joined)
	}
}

func TestDiagnoseCPUFallback_AmdHardware(t *testing.T) {
	probe := ProbeResult{Available: false, Output: "False"}
	gpu := &GpuInfo{Name: "AMD Radeon RX 7900 XTX", Type: GpuTypeAmd}

	warnings := DiagnoseCPUFallback(probe, gpu, "python")
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "ROCm") {
		t.Errorf("AMD hardware should get a ROCm hint, got:\n%s", joined)
	}
}

func TestDiagnoseCPUFallback_AppleSilicon(t *testing.T) {
	probe := ProbeResult{Available: false, Output: "False"}
	gpu := &GpuInfo{Name: "Apple M3 Max", Type: GpuTypeAppleSilicon}

	warnings := DiagnoseCPUFallback(probe, gpu, "python")
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "macOS") {
		t.Errorf("Apple Silicon should get a macOS explanation, got:\n%s", joined)
	}
}

func TestDiagnoseCPUFallback_ProbeError(t *testing.T) {
	probe := ProbeResult{
		Available: false,
		Stderr:    "Traceback (most recent call last):\n  ...\nModuleNotFoundError: No module named 'torch'",
		Err:       errors.New("exit status 1"),
	}

	warnings := DiagnoseCPUFallback(probe, &GpuInfo{Name: "CPU Only", Type: GpuTypeCPU}, "python")
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "probe failed") {
		t.Errorf("probe error should be the first warning, got:\n%s", joined)
	}
	// The stderr tail should be the exception line, not the whole traceback.
	if !strings.Contains(joined, "ModuleNotFoundError: No module named 'torch'") {
		t.Errorf("stderr tail should surface the exception, got:\n%s", joined)
	}
	if strings.Contains(joined, "Traceback") {
		t.Errorf("full traceback should not be dumped into warnings, got:\n%s", joined)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"single", "single"},
		{"first\nsecond\n", "second"},
		{"first\n\n  third  \n\n", "third"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := lastLine(tc.in); got != tc.want {
			t.Errorf("lastLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
