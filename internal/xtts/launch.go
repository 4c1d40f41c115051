// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
)

// =============================================================================
// LAUNCH PROFILES
// =============================================================================

// Device is the compute device the XTTS server is told to use.
type Device string

const (
	// DeviceCUDA runs inference on the first CUDA GPU.
	DeviceCUDA Device = "cuda"
	// DeviceCPU runs inference on the CPU.
	DeviceCPU Device = "cpu"
)

// Profile is a complete launch stance for the server: which device to
// pass and whether to enable the DeepSpeed inference engine. DeepSpeed
// only works with CUDA, so the two fields travel together.
type Profile struct {
	Device    Device
	DeepSpeed bool
}

// GPUProfile returns the accelerated stance: CUDA with DeepSpeed on.
func GPUProfile() Profile {
	return Profile{Device: DeviceCUDA, DeepSpeed: true}
}

// CPUProfile returns the fallback stance: CPU, no DeepSpeed.
func CPUProfile() Profile {
	return Profile{Device: DeviceCPU, DeepSpeed: false}
}

// String renders the profile for status lines, e.g. "GPU (cuda, deepspeed)".
func (p Profile) String() string {
	if p.Device == DeviceCUDA {
		if p.DeepSpeed {
			return "GPU (cuda, deepspeed)"
		}
		return "GPU (cuda)"
	}
	return "CPU (cpu)"
}

// SelectProfile maps a CUDA probe outcome to a launch profile. A probe
// that reported CUDA available selects the GPU profile; anything else,
// including a probe that failed to run at all, selects the CPU profile.
func SelectProfile(probe detect.ProbeResult) Profile {
	if probe.Available {
		return GPUProfile()
	}
	return CPUProfile()
}

// =============================================================================
// POLICY RESOLUTION
// =============================================================================

// Decision is the resolved launch profile plus how it was reached. When
// the device policy forced a profile without probing, Probed is false
// and Probe is the zero value.
type Decision struct {
	Profile Profile
	Probe   detect.ProbeResult
	Probed  bool
}

// probeCUDA is swapped in tests to simulate probe outcomes.
var probeCUDA = detect.ProbeCUDA

// Decide resolves the launch profile from the configured device and
// deepspeed policies. The CUDA probe runs only when the device policy
// is "auto"; explicit "cuda" or "cpu" settings skip it entirely.
//
// CANCELLATION: Context bounds the probe. A cancelled context makes the
// probe fail, which resolves to the CPU profile.
func Decide(ctx context.Context, cfg config.ServerConfig, probeTimeout time.Duration) Decision {
	switch strings.ToLower(cfg.Device) {
	case "cuda", "gpu":
		return Decision{Profile: applyDeepSpeedPolicy(GPUProfile(), cfg.DeepSpeed)}
	case "cpu":
		return Decision{Profile: applyDeepSpeedPolicy(CPUProfile(), cfg.DeepSpeed)}
	}

	pctx := ctx
	if probeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}
	probe := probeCUDA(pctx, cfg.Python)
	return Decision{
		Profile: applyDeepSpeedPolicy(SelectProfile(probe), cfg.DeepSpeed),
		Probe:   probe,
		Probed:  true,
	}
}

// applyDeepSpeedPolicy layers the configured deepspeed policy over the
// base profile. "auto" keeps the profile's own setting. "on" enables
// DeepSpeed only on CUDA; the server rejects it on CPU, so a CPU
// profile stays unaccelerated no matter what the policy says.
func applyDeepSpeedPolicy(p Profile, policy string) Profile {
	switch strings.ToLower(policy) {
	case "on":
		if p.Device == DeviceCUDA {
			p.DeepSpeed = true
		}
	case "off":
		p.DeepSpeed = false
	}
	return p
}

// =============================================================================
// ARGUMENT CONSTRUCTION
// =============================================================================

// BuildArgs returns the interpreter argv (everything after "python")
// that launches the XTTS server with the given profile. With default
// configuration and the GPU profile this produces the classic line:
//
//	-m xtts_api_server -hs 0.0.0.0 -p 8020 -sf speakers/ -mf models/
//	-ms api -d cuda --deepspeed --listen --use-cache
//	--streaming-mode-improve
//
// The CPU profile differs only in the device value and the absence of
// --deepspeed; every other flag is identical between the two.
func BuildArgs(cfg config.ServerConfig, p Profile) []string {
	args := []string{
		"-m", cfg.Module,
		"-hs", cfg.Host,
		"-p", strconv.Itoa(cfg.Port),
		"-sf", cfg.SpeakersFolder,
		"-mf", cfg.ModelsFolder,
	}
	if cfg.OutputFolder != "" {
		args = append(args, "-o", cfg.OutputFolder)
	}
	args = append(args, "-ms", cfg.ModelSource)
	if cfg.ModelVersion != "" {
		args = append(args, "-v", cfg.ModelVersion)
	}
	args = append(args, "-d", string(p.Device))
	if p.DeepSpeed {
		args = append(args, "--deepspeed")
	}
	if cfg.Listen {
		args = append(args, "--listen")
	}
	if cfg.UseCache {
		args = append(args, "--use-cache")
	}
	if cfg.StreamingModeImprove {
		args = append(args, "--streaming-mode-improve")
	}
	if cfg.LowVram {
		args = append(args, "--lowvram")
	}
	args = append(args, cfg.ExtraArgs...)
	return args
}

// CommandLine renders the full launch command for display, interpreter
// included.
func CommandLine(cfg config.ServerConfig, p Profile) string {
	return cfg.Python + " " + strings.Join(BuildArgs(cfg, p), " ")
}
