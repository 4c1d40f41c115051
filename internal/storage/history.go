// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/voxrun/internal/util"
)

// =============================================================================
// LAUNCH RECORD TYPE
// =============================================================================

// LaunchRecord represents one server launch, from the probe decision to
// the process exit.
type LaunchRecord struct {
	// Identity
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`

	// Decision
	Device      string `json:"device"`
	DeepSpeed   bool   `json:"deepspeed"`
	Probed      bool   `json:"probed"`
	ProbeOutput string `json:"probe_output,omitempty"`
	ProbeFailed bool   `json:"probe_failed,omitempty"`
	GpuName     string `json:"gpu_name,omitempty"`

	// Process
	Daemon     bool     `json:"daemon,omitempty"`
	PID        int      `json:"pid,omitempty"`
	Args       []string `json:"args,omitempty"`
	Finished   bool     `json:"finished"`
	ExitCode   int      `json:"exit_code"`
	DurationMs int64    `json:"duration_ms,omitempty"`
}

// Duration returns how long the server ran. Zero while it is still
// running.
func (r *LaunchRecord) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Fallback reports whether this launch probed for CUDA and ended up on
// the CPU anyway.
func (r *LaunchRecord) Fallback() bool {
	return r.Probed && r.Device == "cpu"
}

// Outcome renders the exit state for tables and status lines.
func (r *LaunchRecord) Outcome() string {
	if !r.Finished {
		return "running"
	}
	if r.ExitCode == 0 {
		return "ok"
	}
	return "exit " + util.IntToString(r.ExitCode)
}

// ExportJSON exports the record as pretty-printed JSON.
func (r *LaunchRecord) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// =============================================================================
// LAUNCH STORE
// =============================================================================

// LaunchStore handles launch record persistence.
type LaunchStore struct {
	// BaseDir is the directory for storing records
	// Default: ~/.voxrun/history/
	BaseDir string

	// MaxRecords limits stored records (0 = unlimited)
	MaxRecords int
}

// NewLaunchStore creates a store under the user's home directory.
func NewLaunchStore() (*LaunchStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(homeDir, ".voxrun", "history")
	return NewLaunchStoreWithDir(baseDir)
}

// NewLaunchStoreWithDir creates a store with a custom directory.
func NewLaunchStoreWithDir(baseDir string) (*LaunchStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &LaunchStore{
		BaseDir:    baseDir,
		MaxRecords: 200,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Begin persists a new record for a launch that just started and
// returns its ID. StartedAt defaults to now.
func (s *LaunchStore) Begin(rec *LaunchRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = generateLaunchID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	return s.Save(rec)
}

// Finish marks a record as exited with the given code.
func (s *LaunchStore) Finish(id string, exitCode int) error {
	rec, err := s.Load(id)
	if err != nil {
		return err
	}
	rec.Finished = true
	rec.ExitCode = exitCode
	rec.EndedAt = time.Now()
	rec.DurationMs = rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	_, err = s.Save(rec)
	return err
}

// Save persists a record and returns its ID.
func (s *LaunchStore) Save(rec *LaunchRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = generateLaunchID()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(rec.ID), data, 0644); err != nil {
		return "", err
	}

	if s.MaxRecords > 0 {
		s.enforceLimit()
	}

	return rec.ID, nil
}

// enforceLimit removes the oldest records if over limit.
func (s *LaunchStore) enforceLimit() {
	records, err := s.List()
	if err != nil || len(records) <= s.MaxRecords {
		return
	}

	// List is newest first; everything past the limit goes.
	for _, rec := range records[s.MaxRecords:] {
		s.Delete(rec.ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a record by ID.
func (s *LaunchStore) Load(id string) (*LaunchRecord, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLaunchNotFound
		}
		return nil, err
	}

	var rec LaunchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadByIndex loads a record by its position in the list (0 = most
// recent).
func (s *LaunchStore) LoadByIndex(index int) (*LaunchRecord, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(records) {
		return nil, ErrLaunchNotFound
	}
	rec := records[index]
	return &rec, nil
}

// Last returns the most recent record, or ErrLaunchNotFound for an
// empty history.
func (s *LaunchStore) Last() (*LaunchRecord, error) {
	return s.LoadByIndex(0)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all records, most recent first.
func (s *LaunchStore) List() ([]LaunchRecord, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []LaunchRecord{}, nil
		}
		return nil, err
	}

	var records []LaunchRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		rec, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a record by ID.
func (s *LaunchStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrLaunchNotFound
		}
		return err
	}
	return nil
}

// Clear removes all records.
func (s *LaunchStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats aggregates the stored history for status and doctor output.
type Stats struct {
	TotalLaunches int
	GPULaunches   int
	CPULaunches   int
	Fallbacks     int // probed for CUDA, launched on CPU
	ProbeFailures int // probe itself failed to run
	NonZeroExits  int
	LastLaunch    time.Time
	AvgUptime     time.Duration // finished launches only
}

// Stats computes aggregates over every stored record.
func (s *LaunchStore) Stats() (Stats, error) {
	records, err := s.List()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	var totalUptime time.Duration
	var finished int

	for _, rec := range records {
		stats.TotalLaunches++
		if rec.Device == "cuda" {
			stats.GPULaunches++
		} else {
			stats.CPULaunches++
		}
		if rec.Fallback() {
			stats.Fallbacks++
		}
		if rec.ProbeFailed {
			stats.ProbeFailures++
		}
		if rec.Finished {
			finished++
			totalUptime += rec.Duration()
			if rec.ExitCode != 0 {
				stats.NonZeroExits++
			}
		}
		if rec.StartedAt.After(stats.LastLaunch) {
			stats.LastLaunch = rec.StartedAt
		}
	}
	if finished > 0 {
		stats.AvgUptime = totalUptime / time.Duration(finished)
	}
	return stats, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a record ID.
func (s *LaunchStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// generateLaunchID creates a unique record ID.
func generateLaunchID() string {
	return "launch_" + uuid.New().String()
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrLaunchNotFound is returned when a launch record doesn't exist.
// Use errors.Is(err, ErrLaunchNotFound) to check for this error.
var ErrLaunchNotFound = &LaunchError{Message: "launch record not found"}

// LaunchError represents a history-related error.
// It implements the error interface and can be compared using errors.Is.
type LaunchError struct {
	Message string
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing launch errors.
func (e *LaunchError) Is(target error) bool {
	t, ok := target.(*LaunchError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// HISTORY LIST FORMATTING
// =============================================================================

// FormatLaunchList formats launch records for display in a table.
// Returns a human-readable string with ID, start time, profile, outcome
// and uptime columns.
func FormatLaunchList(records []LaunchRecord) string {
	if len(records) == 0 {
		return "No launches recorded."
	}

	var sb strings.Builder
	sb.WriteString("Launch history:\n")
	sb.WriteString("----------------------------------------------------------------------\n")
	sb.WriteString(formatPadded("ID", 14) + " " +
		formatPadded("Started", 17) + " " +
		formatPadded("Device", 7) + " " +
		formatPadded("DeepSpeed", 10) + " " +
		formatPadded("Outcome", 8) + " Uptime\n")
	sb.WriteString("----------------------------------------------------------------------\n")

	for _, rec := range records {
		idStr := rec.ID
		if len(idStr) > 14 {
			idStr = idStr[:14]
		}
		ds := "off"
		if rec.DeepSpeed {
			ds = "on"
		}
		uptime := "-"
		if rec.Finished {
			uptime = rec.Duration().Round(time.Second).String()
		}

		sb.WriteString(formatPadded(idStr, 14) + " " +
			formatPadded(rec.StartedAt.Format("2006-01-02 15:04"), 17) + " " +
			formatPadded(rec.Device, 7) + " " +
			formatPadded(ds, 10) + " " +
			formatPadded(rec.Outcome(), 8) + " " +
			uptime + "\n")
	}
	return sb.String()
}

// formatPadded pads a string to the specified width with spaces.
func formatPadded(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	padding := width - len(runes)
	for i := 0; i < padding; i++ {
		s += " "
	}
	return s
}
