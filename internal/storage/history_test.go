// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// LAUNCH STORE TESTS
// =============================================================================

func TestNewLaunchStoreWithDir(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewLaunchStoreWithDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if store.BaseDir != tempDir {
		t.Errorf("BaseDir = %q, want %q", store.BaseDir, tempDir)
	}
	if store.MaxRecords != 200 {
		t.Errorf("MaxRecords = %d, want 200", store.MaxRecords)
	}
}

func TestLaunchStore_BeginAndLoad(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	rec := &LaunchRecord{
		Device:      "cuda",
		DeepSpeed:   true,
		Probed:      true,
		ProbeOutput: "True",
		GpuName:     "NVIDIA GeForce RTX 3090",
		Args:        []string{"-m", "xtts_api_server", "-d", "cuda"},
		PID:         12345,
	}

	id, err := store.Begin(rec)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if id == "" {
		t.Error("Expected non-empty ID")
	}
	if !strings.HasPrefix(id, "launch_") {
		t.Errorf("ID should start with 'launch_', got %q", id)
	}
	if rec.StartedAt.IsZero() {
		t.Error("Begin should stamp StartedAt")
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Device != "cuda" || !loaded.DeepSpeed {
		t.Errorf("Loaded profile = %s/%v, want cuda/deepspeed", loaded.Device, loaded.DeepSpeed)
	}
	if loaded.Finished {
		t.Error("A just-begun launch should not be finished")
	}
	if loaded.GpuName != "NVIDIA GeForce RTX 3090" {
		t.Errorf("GpuName = %q", loaded.GpuName)
	}
}

func TestLaunchStore_Finish(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	rec := &LaunchRecord{Device: "cpu", StartedAt: time.Now().Add(-90 * time.Second)}
	id, err := store.Begin(rec)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := store.Finish(id, 3); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Finished {
		t.Error("record should be finished")
	}
	if loaded.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", loaded.ExitCode)
	}
	if loaded.EndedAt.IsZero() {
		t.Error("EndedAt should be stamped")
	}
	if loaded.Duration() < 80*time.Second {
		t.Errorf("Duration = %v, want at least the 90s the launch ran", loaded.Duration())
	}
	if loaded.Outcome() != "exit 3" {
		t.Errorf("Outcome() = %q, want %q", loaded.Outcome(), "exit 3")
	}
}

func TestLaunchStore_FinishNotFound(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Finish("launch_missing", 0); !errors.Is(err, ErrLaunchNotFound) {
		t.Errorf("Expected ErrLaunchNotFound, got %v", err)
	}
}

func TestLaunchStore_LoadNotFound(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	_, err = store.Load("nonexistent-id")
	if !errors.Is(err, ErrLaunchNotFound) {
		t.Errorf("Expected ErrLaunchNotFound, got %v", err)
	}
}

func TestLaunchStore_Delete(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	id, _ := store.Begin(&LaunchRecord{Device: "cpu"})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, ErrLaunchNotFound) {
		t.Error("Record should not exist after delete")
	}
}

func TestLaunchStore_DeleteNotFound(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Delete("nonexistent-id"); !errors.Is(err, ErrLaunchNotFound) {
		t.Errorf("Expected ErrLaunchNotFound, got %v", err)
	}
}

func TestLaunchStore_ListNewestFirst(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	// Empty list
	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected empty list, got %d items", len(records))
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := store.Begin(&LaunchRecord{
			Device:    "cpu",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
	}

	records, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].StartedAt.After(records[i-1].StartedAt) {
			t.Error("List should be sorted newest first")
		}
	}

	last, err := store.Last()
	if err != nil {
		t.Fatalf("Last failed: %v", err)
	}
	if !last.StartedAt.Equal(records[0].StartedAt) {
		t.Error("Last should return the newest record")
	}
}

func TestLaunchStore_LoadByIndexOutOfRange(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := store.LoadByIndex(0); !errors.Is(err, ErrLaunchNotFound) {
		t.Errorf("Expected ErrLaunchNotFound for empty store, got %v", err)
	}
}

func TestLaunchStore_EnforcesLimit(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.MaxRecords = 5

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		_, err := store.Begin(&LaunchRecord{
			Device:    "cpu",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("store holds %d records, want pruned to 5", len(records))
	}
	// The oldest three must be the ones that fell off.
	oldest := records[len(records)-1]
	if oldest.StartedAt.Before(base.Add(2 * time.Minute)) {
		t.Errorf("pruning removed the wrong records, oldest kept = %v", oldest.StartedAt)
	}
}

func TestLaunchStore_Clear(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Begin(&LaunchRecord{Device: "cuda"}); err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	records, _ := store.List()
	if len(records) != 0 {
		t.Errorf("store holds %d records after Clear, want 0", len(records))
	}
}

func TestLaunchStore_Stats(t *testing.T) {
	store, err := NewLaunchStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	// Two GPU launches, one clean CPU launch, one probe-failure
	// fallback that exited non-zero.
	gpu1, _ := store.Begin(&LaunchRecord{Device: "cuda", DeepSpeed: true, Probed: true})
	store.Finish(gpu1, 0)
	gpu2, _ := store.Begin(&LaunchRecord{Device: "cuda", DeepSpeed: true, Probed: true})
	store.Finish(gpu2, 0)
	cpu, _ := store.Begin(&LaunchRecord{Device: "cpu", Probed: true})
	store.Finish(cpu, 0)
	bad, _ := store.Begin(&LaunchRecord{Device: "cpu", Probed: true, ProbeFailed: true})
	store.Finish(bad, 1)

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalLaunches != 4 {
		t.Errorf("TotalLaunches = %d, want 4", stats.TotalLaunches)
	}
	if stats.GPULaunches != 2 || stats.CPULaunches != 2 {
		t.Errorf("GPU/CPU = %d/%d, want 2/2", stats.GPULaunches, stats.CPULaunches)
	}
	if stats.Fallbacks != 2 {
		t.Errorf("Fallbacks = %d, want 2", stats.Fallbacks)
	}
	if stats.ProbeFailures != 1 {
		t.Errorf("ProbeFailures = %d, want 1", stats.ProbeFailures)
	}
	if stats.NonZeroExits != 1 {
		t.Errorf("NonZeroExits = %d, want 1", stats.NonZeroExits)
	}
	if stats.LastLaunch.IsZero() {
		t.Error("LastLaunch should be set")
	}
}

func TestLaunchRecord_Fallback(t *testing.T) {
	tests := []struct {
		name string
		rec  LaunchRecord
		want bool
	}{
		{"probed cpu is a fallback", LaunchRecord{Device: "cpu", Probed: true}, true},
		{"probed cuda is not", LaunchRecord{Device: "cuda", Probed: true}, false},
		{"forced cpu is not", LaunchRecord{Device: "cpu", Probed: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Fallback(); got != tt.want {
				t.Errorf("Fallback() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatLaunchList(t *testing.T) {
	out := FormatLaunchList(nil)
	if out != "No launches recorded." {
		t.Errorf("empty list output = %q", out)
	}

	records := []LaunchRecord{
		{
			ID:         "launch_0123456789abcdef",
			StartedAt:  time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
			Device:     "cuda",
			DeepSpeed:  true,
			Finished:   true,
			ExitCode:   0,
			DurationMs: 125000,
		},
		{
			ID:        "launch_fedcba9876543210",
			StartedAt: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
			Device:    "cpu",
		},
	}
	out = FormatLaunchList(records)

	if !strings.Contains(out, "cuda") || !strings.Contains(out, "cpu") {
		t.Errorf("table missing device column values:\n%s", out)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("table missing outcome for the finished launch:\n%s", out)
	}
	if !strings.Contains(out, "running") {
		t.Errorf("table missing running state for the live launch:\n%s", out)
	}
	if !strings.Contains(out, "2m5s") {
		t.Errorf("table missing uptime:\n%s", out)
	}
}
