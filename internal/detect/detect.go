// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// GPU TYPES
// =============================================================================

// GpuType identifies the GPU vendor.
type GpuType int

const (
	GpuTypeCPU GpuType = iota
	GpuTypeNvidia
	GpuTypeAmd
	GpuTypeAppleSilicon
)

func (g GpuType) String() string {
	switch g {
	case GpuTypeCPU:
		return "CPU"
	case GpuTypeNvidia:
		return "NVIDIA"
	case GpuTypeAmd:
		return "AMD"
	case GpuTypeAppleSilicon:
		return "Apple Silicon"
	default:
		return "Unknown"
	}
}

// CudaCapable reports whether stock PyTorch builds can drive this GPU
// through torch.cuda. Only NVIDIA qualifies; AMD needs a ROCm build that
// still answers through torch.cuda, so the probe stays the final authority.
func (g GpuType) CudaCapable() bool {
	return g == GpuTypeNvidia
}

// GpuInfo describes a detected GPU.
type GpuInfo struct {
	// Name is the human-readable GPU name, e.g. "NVIDIA GeForce RTX 4090".
	Name string
	// VramGB is the VRAM size in gigabytes. For CPU-only results this
	// holds total system RAM instead.
	VramGB uint32
	// Driver is the driver version string, empty if unknown.
	Driver string
	// Type is the GPU vendor classification.
	Type GpuType
}

// String returns a human-readable description like
// "NVIDIA GeForce RTX 4090 (24GB VRAM) [Driver: 535.154.05]".
func (g *GpuInfo) String() string {
	unit := "VRAM"
	if g.Type == GpuTypeCPU {
		unit = "RAM"
	}
	s := fmt.Sprintf("%s (%dGB %s)", g.Name, g.VramGB, unit)
	if g.Driver != "" {
		s += fmt.Sprintf(" [Driver: %s]", g.Driver)
	}
	return s
}

// =============================================================================
// DETECTION CACHE
// =============================================================================

var (
	gpuCache         *GpuInfo
	gpuCacheTime     time.Time
	gpuCacheMu       sync.Mutex
	gpuCacheDuration = 5 * time.Minute
)

// DetectGPUCached returns the detected GPU, using a cached result when the
// last detection is fresh. Hardware does not change between invocations, so
// status and monitor refreshes skip the subprocess round-trips.
func DetectGPUCached() (*GpuInfo, error) {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()

	if gpuCache != nil && time.Since(gpuCacheTime) < gpuCacheDuration {
		return gpuCache, nil
	}

	info, err := DetectGPU()
	if err != nil {
		return nil, err
	}

	gpuCache = info
	gpuCacheTime = time.Now()
	return info, nil
}

// ClearGPUCache discards the cached detection result.
func ClearGPUCache() {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()
	gpuCache = nil
	gpuCacheTime = time.Time{}
}

// =============================================================================
// GPU DETECTION
// =============================================================================

// DetectGPU detects the primary GPU on this machine. It never returns a nil
// info on success; machines with no discrete GPU get a CPU-only result.
func DetectGPU() (*GpuInfo, error) {
	return DetectGPUWithContext(context.Background())
}

// DetectGPUWithContext detects the primary GPU with context support.
// CANCELLATION: Context enables timeout and cancellation
func DetectGPUWithContext(ctx context.Context) (*GpuInfo, error) {
	// Apply a default timeout if the caller didn't set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	if info := detectNvidiaWithContext(ctx); info != nil {
		return info, nil
	}
	if info := detectAmdWithContext(ctx); info != nil {
		return info, nil
	}
	if info := detectAppleSiliconWithContext(ctx); info != nil {
		return info, nil
	}
	return GetCPUInfoWithContext(ctx), nil
}

// =============================================================================
// NVIDIA DETECTION
// =============================================================================

// detectNvidiaWithContext detects NVIDIA GPUs via nvidia-smi.
// CANCELLATION: Context enables timeout and cancellation
func detectNvidiaWithContext(ctx context.Context) *GpuInfo {
	var output []byte
	var err error

	for _, path := range getNvidiaSmiPaths() {
		cmd := exec.CommandContext(ctx, path,
			"--query-gpu=name,memory.total,driver_version",
			"--format=csv,noheader,nounits")
		output, err = cmd.Output()
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}

	// First GPU only. Multi-GPU boxes still launch a single server.
	line := strings.TrimSpace(string(output))
	line = strings.Split(line, "\n")[0]
	parts := strings.Split(line, ", ")
	if len(parts) < 2 {
		return nil
	}

	name := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(name, "NVIDIA") {
		name = "NVIDIA " + name
	}

	vramGB := uint32(0)
	if mib, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64); err == nil {
		vramGB = uint32(math.Round(float64(mib) / 1024))
	}

	driver := ""
	if len(parts) >= 3 {
		driver = strings.TrimSpace(parts[2])
	}

	return &GpuInfo{
		Name:   name,
		VramGB: vramGB,
		Driver: driver,
		Type:   GpuTypeNvidia,
	}
}

// getNvidiaSmiPaths returns candidate nvidia-smi locations, PATH first.
// Windows installs sometimes have the binary outside PATH.
func getNvidiaSmiPaths() []string {
	paths := []string{"nvidia-smi"}
	if runtime.GOOS == "windows" {
		paths = append(paths,
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		)
	}
	return paths
}

// =============================================================================
// AMD DETECTION
// =============================================================================

// detectAmdWithContext detects AMD GPUs via rocm-smi on Linux. Detection is
// for diagnostics only: an AMD GPU never satisfies the CUDA probe unless a
// ROCm torch build is installed, and then the probe speaks for itself.
// CANCELLATION: Context enables timeout and cancellation
func detectAmdWithContext(ctx context.Context) *GpuInfo {
	if runtime.GOOS != "linux" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "rocm-smi", "--showproductname")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	name := ""
	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "Card series") || strings.Contains(line, "Card Series") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) > 1 {
				name = strings.TrimSpace(parts[1])
			}
			break
		}
	}
	if name == "" {
		return nil
	}
	if !strings.Contains(strings.ToUpper(name), "AMD") {
		name = "AMD " + name
	}

	driver := ""
	cmd = exec.CommandContext(ctx, "rocm-smi", "--showdriverversion")
	if output, err := cmd.Output(); err == nil {
		for _, line := range strings.Split(string(output), "\n") {
			if strings.Contains(line, "Driver version") {
				parts := strings.SplitN(line, ":", 2)
				if len(parts) > 1 {
					driver = strings.TrimSpace(parts[1])
				}
				break
			}
		}
	}

	return &GpuInfo{
		Name:   name,
		Driver: driver,
		Type:   GpuTypeAmd,
	}
}

// =============================================================================
// APPLE SILICON DETECTION
// =============================================================================

// detectAppleSiliconWithContext detects Apple Silicon on macOS. CUDA never
// works there, so a hit means the CPU profile with an explanation attached.
// CANCELLATION: Context enables timeout and cancellation
func detectAppleSiliconWithContext(ctx context.Context) *GpuInfo {
	if runtime.GOOS != "darwin" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	stdout := string(output)
	if !strings.Contains(stdout, "Apple") {
		return nil
	}

	name := "Apple Silicon"
	chipNames := []string{
		"M4 Ultra", "M4 Max", "M4 Pro", "M4",
		"M3 Ultra", "M3 Max", "M3 Pro", "M3",
		"M2 Ultra", "M2 Max", "M2 Pro", "M2",
		"M1 Ultra", "M1 Max", "M1 Pro", "M1",
	}
	for _, chip := range chipNames {
		if strings.Contains(stdout, chip) {
			name = "Apple " + chip
			break
		}
	}

	// Unified memory doubles as VRAM on Apple Silicon.
	vramGB := uint32(8)
	cmd = exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize")
	if output, err := cmd.Output(); err == nil {
		if bytes, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64); err == nil {
			vramGB = uint32(bytes / 1_073_741_824)
		}
	}

	driver := ""
	cmd = exec.CommandContext(ctx, "sw_vers", "-productVersion")
	if output, err := cmd.Output(); err == nil {
		driver = "macOS " + strings.TrimSpace(string(output))
	}

	return &GpuInfo{
		Name:   name,
		VramGB: vramGB,
		Driver: driver,
		Type:   GpuTypeAppleSilicon,
	}
}

// =============================================================================
// CPU FALLBACK
// =============================================================================

// GetCPUInfo returns GpuInfo for CPU-only machines. VramGB holds total
// system RAM, which bounds how large a model the CPU server can load.
func GetCPUInfo() *GpuInfo {
	return GetCPUInfoWithContext(context.Background())
}

// GetCPUInfoWithContext returns CPU-only GpuInfo with context support.
// CANCELLATION: Context enables timeout and cancellation
func GetCPUInfoWithContext(ctx context.Context) *GpuInfo {
	ramGB := uint32(0)

	switch runtime.GOOS {
	case "darwin":
		cmd := exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize")
		if output, err := cmd.Output(); err == nil {
			if bytes, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64); err == nil {
				ramGB = uint32(bytes / 1_073_741_824)
			}
		}
	case "linux":
		if data, err := os.ReadFile("/proc/meminfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "MemTotal:") {
					parts := strings.Fields(line)
					if len(parts) >= 2 {
						if kb, err := strconv.ParseUint(parts[1], 10, 64); err == nil {
							ramGB = uint32(kb / 1024 / 1024)
						}
					}
					break
				}
			}
		}
	case "windows":
		cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
			`[Math]::Round((Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory / 1GB, 0)`)
		if output, err := cmd.Output(); err == nil {
			if val, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 32); err == nil {
				ramGB = uint32(val)
			}
		}
	}

	if ramGB == 0 {
		ramGB = 4 // Minimum fallback
	}

	return &GpuInfo{
		Name:   "CPU Only",
		VramGB: ramGB,
		Type:   GpuTypeCPU,
	}
}

// =============================================================================
// NVIDIA MEMORY USAGE
// =============================================================================

// GpuMemoryUsage contains real-time GPU memory usage.
type GpuMemoryUsage struct {
	TotalMB        int
	UsedMB         int
	FreeMB         int
	GPUUtilization int // 0-100
}

// GetNvidiaMemoryUsage reads current VRAM usage from nvidia-smi. Returns
// nil when nvidia-smi is unavailable. The monitor view polls this while the
// server loads the model onto the GPU.
func GetNvidiaMemoryUsage() *GpuMemoryUsage {
	var output []byte
	var err error

	for _, path := range getNvidiaSmiPaths() {
		cmd := exec.Command(path,
			"--query-gpu=memory.total,memory.used,memory.free,utilization.gpu",
			"--format=csv,noheader,nounits")
		output, err = cmd.Output()
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}

	line := strings.TrimSpace(string(output))
	line = strings.Split(line, "\n")[0]
	parts := strings.Split(line, ", ")
	if len(parts) < 3 {
		return nil
	}

	total, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	used, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	free, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
	util := 0
	if len(parts) > 3 {
		util, _ = strconv.Atoi(strings.TrimSpace(parts[3]))
	}

	return &GpuMemoryUsage{
		TotalMB:        total,
		UsedMB:         used,
		FreeMB:         free,
		GPUUtilization: util,
	}
}
