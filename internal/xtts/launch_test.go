// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
)

// stubDecideProbe replaces the probe for the duration of one test and
// counts how often it ran.
func stubDecideProbe(t *testing.T, res detect.ProbeResult) *int {
	t.Helper()
	calls := 0
	orig := probeCUDA
	probeCUDA = func(ctx context.Context, python string) detect.ProbeResult {
		calls++
		return res
	}
	t.Cleanup(func() { probeCUDA = orig })
	return &calls
}

func TestSelectProfile(t *testing.T) {
	tests := []struct {
		name  string
		probe detect.ProbeResult
		want  Profile
	}{
		{
			name:  "cuda available selects gpu",
			probe: detect.ProbeResult{Available: true, Output: "True"},
			want:  Profile{Device: DeviceCUDA, DeepSpeed: true},
		},
		{
			name:  "cuda unavailable selects cpu",
			probe: detect.ProbeResult{Available: false, Output: "False"},
			want:  Profile{Device: DeviceCPU, DeepSpeed: false},
		},
		{
			name:  "probe failure falls back to cpu",
			probe: detect.ProbeResult{Available: false, Err: errors.New("exec: \"python\": executable file not found")},
			want:  Profile{Device: DeviceCPU, DeepSpeed: false},
		},
		{
			name:  "empty probe output selects cpu",
			probe: detect.ProbeResult{Available: false, Output: ""},
			want:  Profile{Device: DeviceCPU, DeepSpeed: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectProfile(tt.probe)
			if got != tt.want {
				t.Errorf("SelectProfile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProfile_DeepSpeedPairing(t *testing.T) {
	if gpu := GPUProfile(); !gpu.DeepSpeed {
		t.Error("GPU profile must enable DeepSpeed")
	}
	if cpu := CPUProfile(); cpu.DeepSpeed {
		t.Error("CPU profile must not enable DeepSpeed")
	}
}

func TestProfile_String(t *testing.T) {
	tests := []struct {
		profile Profile
		want    string
	}{
		{Profile{Device: DeviceCUDA, DeepSpeed: true}, "GPU (cuda, deepspeed)"},
		{Profile{Device: DeviceCUDA, DeepSpeed: false}, "GPU (cuda)"},
		{Profile{Device: DeviceCPU, DeepSpeed: false}, "CPU (cpu)"},
	}
	for _, tt := range tests {
		if got := tt.profile.String(); got != tt.want {
			t.Errorf("Profile%+v.String() = %q, want %q", tt.profile, got, tt.want)
		}
	}
}

func TestBuildArgs_GPUDefaults(t *testing.T) {
	cfg := config.Default().Server

	got := BuildArgs(cfg, GPUProfile())
	want := []string{
		"-m", "xtts_api_server",
		"-hs", "0.0.0.0",
		"-p", "8020",
		"-sf", "speakers/",
		"-mf", "models/",
		"-ms", "api",
		"-d", "cuda",
		"--deepspeed",
		"--listen",
		"--use-cache",
		"--streaming-mode-improve",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgs(gpu) =\n  %v\nwant\n  %v", got, want)
	}
}

func TestBuildArgs_CPUDefaults(t *testing.T) {
	cfg := config.Default().Server

	got := BuildArgs(cfg, CPUProfile())
	want := []string{
		"-m", "xtts_api_server",
		"-hs", "0.0.0.0",
		"-p", "8020",
		"-sf", "speakers/",
		"-mf", "models/",
		"-ms", "api",
		"-d", "cpu",
		"--listen",
		"--use-cache",
		"--streaming-mode-improve",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgs(cpu) =\n  %v\nwant\n  %v", got, want)
	}
}

// The two stances may differ only in the device value and the presence
// of the DeepSpeed flag. Everything else must match flag for flag.
func TestBuildArgs_ProfilesDifferOnlyInAcceleration(t *testing.T) {
	cfg := config.Default().Server

	gpu := BuildArgs(cfg, GPUProfile())
	cpu := BuildArgs(cfg, CPUProfile())

	normalized := make([]string, 0, len(gpu))
	for _, arg := range gpu {
		switch arg {
		case "--deepspeed":
			continue
		case "cuda":
			normalized = append(normalized, "cpu")
		default:
			normalized = append(normalized, arg)
		}
	}
	if !reflect.DeepEqual(normalized, cpu) {
		t.Errorf("profiles diverge beyond device and deepspeed:\n  gpu: %v\n  cpu: %v", gpu, cpu)
	}
}

func TestBuildArgs_NeverDeepSpeedOnCPU(t *testing.T) {
	cfg := config.Default().Server
	for _, arg := range BuildArgs(cfg, CPUProfile()) {
		if arg == "--deepspeed" {
			t.Fatal("CPU launch must not carry --deepspeed")
		}
	}
}

func TestBuildArgs_OptionalFlags(t *testing.T) {
	cfg := config.Default().Server
	cfg.OutputFolder = "output/"
	cfg.ModelVersion = "v2.0.2"
	cfg.LowVram = true
	cfg.ExtraArgs = []string{"--debug"}
	cfg.Listen = false
	cfg.UseCache = false
	cfg.StreamingModeImprove = false

	got := BuildArgs(cfg, CPUProfile())
	want := []string{
		"-m", "xtts_api_server",
		"-hs", "0.0.0.0",
		"-p", "8020",
		"-sf", "speakers/",
		"-mf", "models/",
		"-o", "output/",
		"-ms", "api",
		"-v", "v2.0.2",
		"-d", "cpu",
		"--lowvram",
		"--debug",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgs() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestDecide_AutoProbesOnce(t *testing.T) {
	calls := stubDecideProbe(t, detect.ProbeResult{Available: true, Output: "True"})

	cfg := config.Default().Server
	dec := Decide(context.Background(), cfg, time.Minute)

	if *calls != 1 {
		t.Fatalf("probe ran %d times, want 1", *calls)
	}
	if !dec.Probed {
		t.Error("Decide() with device=auto should report Probed")
	}
	if dec.Profile != GPUProfile() {
		t.Errorf("Decide() profile = %+v, want GPU", dec.Profile)
	}
}

func TestDecide_ProbeFailureFallsBackToCPU(t *testing.T) {
	stubDecideProbe(t, detect.ProbeResult{
		Available: false,
		Stderr:    "ModuleNotFoundError: No module named 'torch'",
		Err:       errors.New("exit status 1"),
	})

	cfg := config.Default().Server
	dec := Decide(context.Background(), cfg, time.Minute)

	if dec.Profile != CPUProfile() {
		t.Errorf("Decide() profile = %+v, want CPU fallback", dec.Profile)
	}
	if !dec.Probe.Failed() {
		t.Error("decision should preserve the probe failure for diagnostics")
	}
}

func TestDecide_DeviceOverrideSkipsProbe(t *testing.T) {
	tests := []struct {
		device string
		want   Profile
	}{
		{"cuda", GPUProfile()},
		{"gpu", GPUProfile()},
		{"cpu", CPUProfile()},
		{"CUDA", GPUProfile()},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			calls := stubDecideProbe(t, detect.ProbeResult{Available: false})

			cfg := config.Default().Server
			cfg.Device = tt.device
			dec := Decide(context.Background(), cfg, time.Minute)

			if *calls != 0 {
				t.Errorf("probe ran %d times, want 0 for explicit device", *calls)
			}
			if dec.Probed {
				t.Error("Decide() with explicit device should not report Probed")
			}
			if dec.Profile != tt.want {
				t.Errorf("Decide() profile = %+v, want %+v", dec.Profile, tt.want)
			}
		})
	}
}

func TestDecide_DeepSpeedPolicy(t *testing.T) {
	tests := []struct {
		name      string
		device    string
		policy    string
		available bool
		want      Profile
	}{
		{"auto keeps gpu default", "auto", "auto", true, Profile{DeviceCUDA, true}},
		{"auto keeps cpu default", "auto", "auto", false, Profile{DeviceCPU, false}},
		{"off disables on gpu", "auto", "off", true, Profile{DeviceCUDA, false}},
		{"on cannot force cpu", "cpu", "on", false, Profile{DeviceCPU, false}},
		{"on confirms gpu", "cuda", "on", false, Profile{DeviceCUDA, true}},
		{"off on explicit cuda", "cuda", "off", false, Profile{DeviceCUDA, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubDecideProbe(t, detect.ProbeResult{Available: tt.available})

			cfg := config.Default().Server
			cfg.Device = tt.device
			cfg.DeepSpeed = tt.policy
			dec := Decide(context.Background(), cfg, time.Minute)

			if dec.Profile != tt.want {
				t.Errorf("Decide(device=%s, deepspeed=%s) = %+v, want %+v",
					tt.device, tt.policy, dec.Profile, tt.want)
			}
		})
	}
}

func TestCommandLine(t *testing.T) {
	cfg := config.Default().Server
	line := CommandLine(cfg, GPUProfile())

	if !strings.HasPrefix(line, "python -m xtts_api_server ") {
		t.Errorf("CommandLine() = %q, want python -m xtts_api_server prefix", line)
	}
	if !strings.Contains(line, "-d cuda --deepspeed") {
		t.Errorf("CommandLine() = %q, want device and deepspeed adjacent", line)
	}
}
