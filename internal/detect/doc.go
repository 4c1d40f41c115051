// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect decides whether the XTTS server should run on CUDA or CPU.
//
// The decision comes from a probe subprocess: a Python one-liner that imports
// torch and prints torch.cuda.is_available(). The probe's stdout is matched
// for the literal substring "True"; anything else selects CPU, including a
// missing interpreter or a crashed probe. Probe failures are never fatal
// because the launcher always has a working CPU fallback.
//
// The package also inventories physical GPUs (nvidia-smi, rocm-smi,
// system_profiler) so status and doctor output can explain why the probe
// picked CPU on a machine that visibly has a GPU.
//
// # Key Types
//
//   - ProbeResult: outcome of one CUDA probe run
//   - GpuInfo: detected GPU hardware information
//   - GpuType: GPU vendor classification
//   - CudaReport: probe outcome plus hardware cross-check for diagnostics
//
// # Usage
//
//	res := detect.ProbeCUDA(ctx, "python")
//	if res.Available {
//		// launch with the CUDA profile
//	}
//
//	gpu, _ := detect.DetectGPUCached()
//	fmt.Println(gpu.String()) // "NVIDIA GeForce RTX 4090 (24GB VRAM)"
package detect
