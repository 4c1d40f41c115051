// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeVoice drops a synthetic WAV into dir. The name is slash
// separated and may include subdirectories.
func writeVoice(t *testing.T, dir, name string, channels, sampleRate, bitDepth, dataLen int) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buildWav(channels, sampleRate, bitDepth, dataLen), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// newTestLibrary opens a library over a temp speaker folder with
// watching off so tests stay deterministic.
func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.EnableWatch = false
	lib, err := NewLibrary(cfg)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib, dir
}

func TestNewLibrary_InvalidFolder(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "missing"))
	if _, err := NewLibrary(cfg); !errors.Is(err, ErrInvalidFolder) {
		t.Errorf("NewLibrary error = %v, want ErrInvalidFolder", err)
	}
}

func TestNewLibrary_FolderIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "speakers")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := DefaultConfig(file)
	cfg.DatabasePath = filepath.Join(dir, "voices.db")
	if _, err := NewLibrary(cfg); !errors.Is(err, ErrInvalidFolder) {
		t.Errorf("NewLibrary error = %v, want ErrInvalidFolder", err)
	}
}

func TestScanAndGet(t *testing.T) {
	lib, dir := newTestLibrary(t)

	writeVoice(t, dir, "alice.wav", 1, 22050, 16, 220500)       // 5s
	writeVoice(t, dir, "narrators/bob.WAV", 2, 48000, 16, 192000) // 1s
	writeVoice(t, dir, ".cache/ghost.wav", 1, 22050, 16, 44100)
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("notes"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	v, err := lib.Get("alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", v.SampleRate)
	}
	if v.Channels != 1 {
		t.Errorf("Channels = %d, want 1", v.Channels)
	}
	if v.Path != "alice.wav" {
		t.Errorf("Path = %q, want alice.wav", v.Path)
	}
	if v.Duration() != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", v.Duration())
	}

	// Lookup tolerates case and a trailing extension
	if _, err := lib.Get("ALICE"); err != nil {
		t.Errorf("Get(ALICE) failed: %v", err)
	}
	if _, err := lib.Get("bob.wav"); err != nil {
		t.Errorf("Get(bob.wav) failed: %v", err)
	}

	// Hidden directories and non-audio files stay out
	if _, err := lib.Get("ghost"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get(ghost) error = %v, want ErrVoiceNotFound", err)
	}

	voices, err := lib.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("List returned %d voices, want 2", len(voices))
	}
	if voices[0].Name != "alice" || voices[1].Name != "bob" {
		t.Errorf("List order = [%s %s], want [alice bob]", voices[0].Name, voices[1].Name)
	}
}

func TestGet_NotFound(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if _, err := lib.Get("nobody"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get error = %v, want ErrVoiceNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeVoice(t, dir, "alice_calm.wav", 1, 22050, 16, 44100)
	writeVoice(t, dir, "alice_excited.wav", 1, 22050, 16, 44100)
	writeVoice(t, dir, "bob.wav", 1, 22050, 16, 44100)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"alice", 2},
		{"ALICE", 2},
		{"excited", 1},
		{"", 3},
		{"zed", 0},
		{"%", 0}, // LIKE wildcards are literal in queries
	}

	for _, tt := range tests {
		got, err := lib.Search(tt.query)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) returned %d voices, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestRemove(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeVoice(t, dir, "carol.wav", 1, 22050, 16, 44100)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if err := lib.Remove("CAROL.wav"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := lib.Get("carol"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrVoiceNotFound", err)
	}
	if err := lib.Remove("carol"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("second Remove error = %v, want ErrVoiceNotFound", err)
	}
}

func TestScan_SkipsMalformed(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeVoice(t, dir, "good.wav", 1, 22050, 16, 44100)
	if err := os.WriteFile(filepath.Join(dir, "junk.wav"), []byte("not audio"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	voices, err := lib.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "good" {
		t.Errorf("List = %v, want only good", voices)
	}
}

func TestScan_SkipsOversizeFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.EnableWatch = false
	cfg.MaxFileSize = 64

	lib, err := NewLibrary(cfg)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	defer lib.Close()

	writeVoice(t, dir, "tiny.wav", 1, 22050, 16, 0) // 44 byte header only
	writeVoice(t, dir, "big.wav", 1, 22050, 16, 1000)

	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if _, err := lib.Get("tiny"); err != nil {
		t.Errorf("Get(tiny) failed: %v", err)
	}
	if _, err := lib.Get("big"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get(big) error = %v, want ErrVoiceNotFound", err)
	}
}

func TestScan_DropsDeletedFiles(t *testing.T) {
	lib, dir := newTestLibrary(t)
	gone := writeVoice(t, dir, "gone.wav", 1, 22050, 16, 44100)
	writeVoice(t, dir, "keep.wav", 1, 22050, 16, 44100)

	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if voices, _ := lib.List(); len(voices) != 2 {
		t.Fatalf("List returned %d voices, want 2", len(voices))
	}

	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("rescan failed: %v", err)
	}

	if _, err := lib.Get("gone"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get(gone) error = %v, want ErrVoiceNotFound", err)
	}
	if _, err := lib.Get("keep"); err != nil {
		t.Errorf("Get(keep) failed: %v", err)
	}
}

func TestStats(t *testing.T) {
	lib, dir := newTestLibrary(t)

	if lib.IsScanned() {
		t.Error("IsScanned true before any scan")
	}

	writeVoice(t, dir, "a.wav", 1, 22050, 16, 44100) // 1s
	writeVoice(t, dir, "b.wav", 1, 22050, 16, 88200) // 2s
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	stats := lib.Stats()
	if stats.VoiceCount != 2 {
		t.Errorf("VoiceCount = %d, want 2", stats.VoiceCount)
	}
	if stats.TotalDuration != 3*time.Second {
		t.Errorf("TotalDuration = %v, want 3s", stats.TotalDuration)
	}
	if stats.IsScanning {
		t.Error("IsScanning true after scan finished")
	}
	if stats.DatabaseSize == 0 {
		t.Error("DatabaseSize = 0, want > 0")
	}
	if !lib.IsScanned() {
		t.Error("IsScanned false after scan")
	}
}

func TestReopenKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.EnableWatch = false

	lib, err := NewLibrary(cfg)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	writeVoice(t, dir, "keep.wav", 1, 22050, 16, 44100)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewLibrary(cfg)
	if err != nil {
		t.Fatalf("NewLibrary reopen failed: %v", err)
	}
	defer reopened.Close()

	if !reopened.IsScanned() {
		t.Error("IsScanned false after reopen")
	}
	if _, err := reopened.Get("keep"); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}

func TestScan_StartsWatcher(t *testing.T) {
	dir := t.TempDir()
	lib, err := NewLibrary(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	defer lib.Close()

	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if lib.watcher == nil {
		t.Error("expected Scan to start a watcher")
	}
}

// Watcher callbacks are tested directly; exercising them through real
// file system events would race the debounce timers.
func TestWatcher_IncrementalUpdate(t *testing.T) {
	lib, dir := newTestLibrary(t)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	pw := NewPollingWatcher(lib, time.Hour)
	defer pw.Close()

	path := writeVoice(t, dir, "late.wav", 1, 22050, 16, 44100)
	if err := pw.updateVoice(path); err != nil {
		t.Fatalf("updateVoice failed: %v", err)
	}

	v, err := lib.Get("late")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if v.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", v.SampleRate)
	}

	if err := pw.removeVoice(path); err != nil {
		t.Fatalf("removeVoice failed: %v", err)
	}
	if _, err := lib.Get("late"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get after remove error = %v, want ErrVoiceNotFound", err)
	}
}

func TestWatcher_MalformedOverwriteKeepsRow(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := writeVoice(t, dir, "carol.wav", 1, 22050, 16, 44100)
	if err := lib.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	fw, err := NewFsnotifyWatcher(lib, 10*time.Millisecond)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer fw.Close()

	// A half-written file must not clobber the indexed row
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := fw.updateVoice(path); err == nil {
		t.Error("expected parse error for garbage overwrite")
	}
	if _, err := lib.Get("carol"); err != nil {
		t.Errorf("Get after failed update: %v", err)
	}

	// Once the file is gone the row goes with it
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := fw.updateVoice(path); err != nil {
		t.Fatalf("updateVoice after delete failed: %v", err)
	}
	if _, err := lib.Get("carol"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("Get after delete error = %v, want ErrVoiceNotFound", err)
	}
}

func TestVoice_Issues(t *testing.T) {
	tests := []struct {
		name   string
		voice  Voice
		issues int
	}{
		{"clean mono", Voice{Channels: 1, SampleRate: 22050, BitDepth: 16, DurationMs: 8000}, 0},
		{"stereo", Voice{Channels: 2, SampleRate: 22050, BitDepth: 16, DurationMs: 8000}, 1},
		{"low sample rate", Voice{Channels: 1, SampleRate: 8000, BitDepth: 16, DurationMs: 8000}, 1},
		{"8-bit", Voice{Channels: 1, SampleRate: 22050, BitDepth: 8, DurationMs: 8000}, 1},
		{"too short", Voice{Channels: 1, SampleRate: 22050, BitDepth: 16, DurationMs: 1500}, 1},
		{"too long", Voice{Channels: 1, SampleRate: 22050, BitDepth: 16, DurationMs: 45000}, 1},
		{"everything wrong", Voice{Channels: 2, SampleRate: 8000, BitDepth: 8, DurationMs: 1000}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.voice.Issues(); len(got) != tt.issues {
				t.Errorf("Issues() = %v, want %d issues", got, tt.issues)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
