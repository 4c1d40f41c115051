// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Structured JSON output for scripted voxrun usage.
//
// Every command accepting --json emits exactly one JSONResponse on
// stdout, success or failure, so wrappers can always json-decode the
// result. Human-readable text never mixes into JSON output; progress
// and warnings go to stderr.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// JSONResponse is the envelope for all --json command output.
type JSONResponse struct {
	// Success indicates whether the command succeeded.
	Success bool `json:"success"`
	// Data holds command-specific payload, omitted when empty.
	Data interface{} `json:"data,omitempty"`
	// Error holds the error message when Success is false.
	Error *string `json:"error,omitempty"`
	// Timestamp is when the response was generated (RFC3339, UTC).
	Timestamp string `json:"timestamp"`
	// Command identifies which command produced the response.
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a success response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failure response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout, indented.
func (r *JSONResponse) Print() {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON response: %v\n", err)
	}
}

// PrintCompact writes the response to stdout on a single line.
func (r *JSONResponse) PrintCompact() {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(r); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON response: %v\n", err)
	}
}

// String returns the indented JSON form.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"encoding failed: %v"}`, err)
	}
	return string(data)
}

// OutputJSON runs a handler and emits its result as a JSON response
// when jsonMode is set. When jsonMode is false the handler still runs
// but the caller is expected to have printed human output itself.
// Returns the handler's error either way.
func OutputJSON(jsonMode bool, command string, handler func() (interface{}, error)) error {
	data, err := handler()
	if !jsonMode {
		return err
	}
	if err != nil {
		NewJSONErrorResponse(command, err).Print()
		return err
	}
	NewJSONResponse(command, data).Print()
	return nil
}

// StderrPrint prints to stderr, keeping stdout clean for JSON.
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// StderrPrintln prints a line to stderr.
func StderrPrintln(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
}

// =============================================================================
// COMMAND DATA SHAPES
// =============================================================================

// LaunchData is the --json payload for the launch command.
type LaunchData struct {
	// Profile is the human form of the chosen profile.
	Profile string `json:"profile"`
	// Device is the resolved device flag value (cuda or cpu).
	Device string `json:"device"`
	// DeepSpeed indicates whether --deepspeed was passed to the server.
	DeepSpeed bool `json:"deepspeed"`
	// Probed indicates whether the CUDA probe ran (false when pinned).
	Probed bool `json:"probed"`
	// ProbeOutput is the probe's stdout when it ran.
	ProbeOutput string `json:"probe_output,omitempty"`
	// ProbeFailed is true when the probe itself could not run.
	ProbeFailed bool `json:"probe_failed,omitempty"`
	// Command is the full server argv.
	Command []string `json:"command"`
	// Daemon indicates background mode.
	Daemon bool `json:"daemon"`
	// PID is the server process ID once started.
	PID int `json:"pid,omitempty"`
	// DryRun indicates the server was not actually started.
	DryRun bool `json:"dry_run,omitempty"`
}

// StatusData is the --json payload for the status command.
type StatusData struct {
	System SystemInfo  `json:"system"`
	Probe  ProbeInfo   `json:"probe"`
	Server ServerInfo  `json:"server"`
	Daemon DaemonInfo  `json:"daemon"`
	Voices VoicesStats `json:"voices"`
	// LastLaunch summarizes the most recent launch record, if any.
	LastLaunch *LaunchSummary `json:"last_launch,omitempty"`
}

// SystemInfo describes the host hardware.
type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	GPU     string `json:"gpu"`
	GpuType string `json:"gpu_type"`
	VramGB  int    `json:"vram_gb,omitempty"`
	Driver  string `json:"driver,omitempty"`
}

// ProbeInfo describes the most recent CUDA probe run.
type ProbeInfo struct {
	Available  bool     `json:"available"`
	Output     string   `json:"output,omitempty"`
	Failed     bool     `json:"failed"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Command    []string `json:"command"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ServerInfo describes the XTTS API server liveness.
type ServerInfo struct {
	Running bool   `json:"running"`
	URL     string `json:"url"`
}

// DaemonInfo describes the background daemon state.
type DaemonInfo struct {
	Running       bool   `json:"running"`
	SupervisorPID int    `json:"supervisor_pid,omitempty"`
	ServerPID     int    `json:"server_pid,omitempty"`
	StartedAt     string `json:"started_at,omitempty"`
	Restarts      int    `json:"restarts,omitempty"`
	LogFile       string `json:"log_file,omitempty"`
	Profile       string `json:"profile,omitempty"`
}

// VoicesStats summarizes the voice library.
type VoicesStats struct {
	Count         int    `json:"count"`
	SpeakersDir   string `json:"speakers_dir"`
	TotalDuration string `json:"total_duration,omitempty"`
	LastScan      string `json:"last_scan,omitempty"`
}

// LaunchSummary condenses a launch record for status output.
type LaunchSummary struct {
	ID        string `json:"id"`
	StartedAt string `json:"started_at"`
	Device    string `json:"device"`
	DeepSpeed bool   `json:"deepspeed"`
	Outcome   string `json:"outcome"`
	ExitCode  int    `json:"exit_code,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// DoctorData is the --json payload for the doctor command.
type DoctorData struct {
	Checks  []DoctorCheck `json:"checks"`
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is one health check result.
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// DoctorSummary aggregates check results.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// VoicesData is the --json payload for the voices command.
type VoicesData struct {
	Count  int         `json:"count"`
	Query  string      `json:"query,omitempty"`
	Voices []VoiceInfo `json:"voices"`
}

// VoiceInfo is one reference voice in JSON output.
type VoiceInfo struct {
	Name         string  `json:"name"`
	File         string  `json:"file"`
	DurationSecs float64 `json:"duration_secs"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
	SizeBytes    int64   `json:"size_bytes"`
	Issues       string  `json:"issues,omitempty"`
}

// ConfigData is the --json payload for config show.
type ConfigData struct {
	Path string            `json:"path"`
	Keys map[string]string `json:"keys"`
}

// HistoryData is the --json payload for history list.
type HistoryData struct {
	Count    int             `json:"count"`
	Launches []HistoryRecord `json:"launches"`
}

// HistoryRecord is one launch record in JSON output.
type HistoryRecord struct {
	ID          string   `json:"id"`
	StartedAt   string   `json:"started_at"`
	EndedAt     string   `json:"ended_at,omitempty"`
	Device      string   `json:"device"`
	DeepSpeed   bool     `json:"deepspeed"`
	GpuName     string   `json:"gpu_name,omitempty"`
	ProbeFailed bool     `json:"probe_failed,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
	Daemon      bool     `json:"daemon,omitempty"`
	Outcome     string   `json:"outcome"`
	ExitCode    int      `json:"exit_code"`
	Uptime      string   `json:"uptime,omitempty"`
	Args        []string `json:"args,omitempty"`
}

// HistoryStatsData is the --json payload for history stats.
type HistoryStatsData struct {
	Total         int   `json:"total"`
	GpuLaunches   int   `json:"gpu_launches"`
	CpuLaunches   int   `json:"cpu_launches"`
	Fallbacks     int   `json:"fallbacks"`
	ProbeFailures int   `json:"probe_failures"`
	NonZeroExits  int   `json:"non_zero_exits"`
	AvgUptimeSecs int64 `json:"avg_uptime_secs"`
}

// VersionData is the --json payload for the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// StopData is the --json payload for the stop command.
type StopData struct {
	Stopped       bool   `json:"stopped"`
	SupervisorPID int    `json:"supervisor_pid,omitempty"`
	ServerPID     int    `json:"server_pid,omitempty"`
	Uptime        string `json:"uptime,omitempty"`
}
