// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
)

// useTempHome points the config directory, and with it the daemon
// state file, at a scratch location.
func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("USERPROFILE", dir)
	return dir
}

func TestDaemonState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.json")

	in := &DaemonState{
		SupervisorPID: 4242,
		ServerPID:     4243,
		Device:        "cuda",
		DeepSpeed:     true,
		StartedAt:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		LogFile:       "/tmp/server.log",
		Restarts:      2,
	}
	if err := saveDaemonStateTo(path, in); err != nil {
		t.Fatalf("saveDaemonStateTo() error: %v", err)
	}

	out, err := loadDaemonStateFrom(path)
	if err != nil {
		t.Fatalf("loadDaemonStateFrom() error: %v", err)
	}
	if out == nil {
		t.Fatal("loadDaemonStateFrom() = nil for an existing file")
	}
	if *out != *in {
		t.Errorf("state round trip:\n  got  %+v\n  want %+v", out, in)
	}
}

func TestDaemonState_MissingFileIsNotAnError(t *testing.T) {
	st, err := loadDaemonStateFrom(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("loadDaemonStateFrom(missing) error: %v", err)
	}
	if st != nil {
		t.Errorf("loadDaemonStateFrom(missing) = %+v, want nil", st)
	}
}

func TestDaemonState_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDaemonStateFrom(path); err == nil {
		t.Error("loadDaemonStateFrom(corrupt) should fail")
	}
}

func TestDaemonState_Alive(t *testing.T) {
	var nilState *DaemonState
	if nilState.Alive() {
		t.Error("nil state reported alive")
	}
	if (&DaemonState{SupervisorPID: 0}).Alive() {
		t.Error("pid 0 reported alive")
	}
	if !(&DaemonState{SupervisorPID: os.Getpid()}).Alive() {
		t.Error("own pid reported dead")
	}
}

func TestDaemonState_Profile(t *testing.T) {
	st := &DaemonState{Device: "cuda", DeepSpeed: true}
	if got := st.Profile(); got != GPUProfile() {
		t.Errorf("Profile() = %+v, want GPU profile", got)
	}
	st = &DaemonState{Device: "cpu"}
	if got := st.Profile(); got != CPUProfile() {
		t.Errorf("Profile() = %+v, want CPU profile", got)
	}
}

func TestDaemonStatePath_UnderConfigDir(t *testing.T) {
	home := useTempHome(t)

	path, err := DaemonStatePath()
	if err != nil {
		t.Fatalf("DaemonStatePath() error: %v", err)
	}
	want := filepath.Join(home, ".voxrun", "daemon.json")
	if path != want {
		t.Errorf("DaemonStatePath() = %q, want %q", path, want)
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	useTempHome(t)

	_, err := StopDaemon(time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("StopDaemon() with no state = %v, want ErrDaemonNotRunning", err)
	}
}

func TestStopDaemon_ClearsStaleState(t *testing.T) {
	useTempHome(t)
	if err := config.EnsureConfigDir(); err != nil {
		t.Fatal(err)
	}
	path, err := DaemonStatePath()
	if err != nil {
		t.Fatal(err)
	}
	// A pid from a long-dead supervisor.
	stale := &DaemonState{SupervisorPID: 1 << 30, Device: "cpu"}
	if err := saveDaemonStateTo(path, stale); err != nil {
		t.Fatal(err)
	}

	_, err = StopDaemon(time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("StopDaemon() with stale state = %v, want ErrDaemonNotRunning", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("stale state file should have been removed")
	}
}

func TestDaemonStatus(t *testing.T) {
	useTempHome(t)

	st, running, err := DaemonStatus()
	if err != nil {
		t.Fatalf("DaemonStatus() error: %v", err)
	}
	if st != nil || running {
		t.Errorf("DaemonStatus() = %+v running=%v, want none", st, running)
	}

	if err := config.EnsureConfigDir(); err != nil {
		t.Fatal(err)
	}
	path, _ := DaemonStatePath()
	live := &DaemonState{SupervisorPID: os.Getpid(), Device: "cuda", DeepSpeed: true}
	if err := saveDaemonStateTo(path, live); err != nil {
		t.Fatal(err)
	}

	st, running, err = DaemonStatus()
	if err != nil {
		t.Fatalf("DaemonStatus() error: %v", err)
	}
	if st == nil || !running {
		t.Fatalf("DaemonStatus() = %+v running=%v, want live state", st, running)
	}
	if st.Profile() != GPUProfile() {
		t.Errorf("recorded profile = %+v", st.Profile())
	}
}

func TestOpenDaemonLog_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	dc := config.Default().Daemon
	dc.LogDir = dir

	w, path, err := openDaemonLog(dc)
	if err != nil {
		t.Fatalf("openDaemonLog() error: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("server line\n")); err != nil {
		t.Fatalf("write to daemon log: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("log path %q not under %q", path, dir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file missing after write: %v", err)
	}
}
