// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voices

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// VOICE WATCHER INTERFACE
// =============================================================================

// VoiceWatcher is the interface for file watching implementations
type VoiceWatcher interface {
	// Watch starts watching for file changes
	Watch() error

	// Close stops watching and releases resources
	Close() error
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher implements VoiceWatcher using fsnotify
type FsnotifyWatcher struct {
	lib      *Library
	watcher  *fsnotify.Watcher
	debounce time.Duration
	mu       sync.Mutex
	pending  map[string]time.Time // File path -> last change time
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewFsnotifyWatcher creates a new fsnotify-based watcher
func NewFsnotifyWatcher(lib *Library, debounce time.Duration) (*FsnotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FsnotifyWatcher{
		lib:      lib,
		watcher:  watcher,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for file changes
func (fw *FsnotifyWatcher) Watch() error {
	// Add the speaker folder and any subfolders
	if err := fw.addRecursive(fw.lib.root); err != nil {
		return err
	}

	// Start event processing goroutine
	go fw.processEvents()

	// Start debounce timer goroutine
	go fw.processPending()

	return nil
}

// addRecursive adds a directory and all its subdirectories to the watch list
func (fw *FsnotifyWatcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			return nil
		}
		if shouldIgnoreDir(filepath.Base(path)) && path != dir {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			// Non-fatal, continue
			return nil
		}
		return nil
	})
}

// processEvents processes file system events
func (fw *FsnotifyWatcher) processEvents() {
	// Add panic recovery to prevent crashes
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Handle Write and Create events on samples
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				fw.handleVoiceChange(event.Name)
			}

			// Handle Rename events (treat as delete of old name)
			if event.Op&fsnotify.Rename == fsnotify.Rename {
				fw.removeVoice(event.Name)
			}

			// Handle Remove events
			if event.Op&fsnotify.Remove == fsnotify.Remove {
				fw.removeVoice(event.Name)
			}

			// Handle new directories
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addRecursive(event.Name); err != nil {
						// Retry once after a short delay
						time.Sleep(100 * time.Millisecond)
						fw.addRecursive(event.Name)
					}
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Non-fatal
			_ = err
		}
	}
}

// handleVoiceChange queues a changed sample for reindexing
func (fw *FsnotifyWatcher) handleVoiceChange(path string) {
	if !isWavPath(path) {
		return
	}

	// Add to pending with debounce; encoders write WAVs in bursts
	fw.mu.Lock()
	fw.pending[path] = time.Now()
	fw.mu.Unlock()
}

// processPending processes pending changes once they settle
func (fw *FsnotifyWatcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			fw.mu.Lock()
			var toProcess []string
			for path, changeTime := range fw.pending {
				if now.Sub(changeTime) >= fw.debounce {
					toProcess = append(toProcess, path)
					delete(fw.pending, path)
				}
			}
			fw.mu.Unlock()

			for _, path := range toProcess {
				fw.updateVoice(path)
			}
		}
	}
}

// updateVoice incrementally reindexes a single sample
func (fw *FsnotifyWatcher) updateVoice(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		// File is gone, drop its row
		return fw.removeVoice(path)
	}
	if info.Size() > fw.lib.config.MaxFileSize {
		return nil
	}

	tx, err := fw.lib.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fw.lib.indexVoice(tx, path, info); err != nil {
		// Half-written or malformed sample; leave the old row alone
		return err
	}
	return tx.Commit()
}

// removeVoice drops a sample's row
func (fw *FsnotifyWatcher) removeVoice(path string) error {
	if !isWavPath(path) {
		return nil
	}
	_, err := fw.lib.db.Exec("DELETE FROM voices WHERE name = ?", voiceName(path))
	return err
}

// Close stops watching and releases resources
func (fw *FsnotifyWatcher) Close() error {
	fw.cancel()
	if fw.watcher != nil {
		return fw.watcher.Close()
	}
	return nil
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// PollingWatcher implements VoiceWatcher using periodic polling
type PollingWatcher struct {
	lib      *Library
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	files    map[string]time.Time // File path -> mod time
	mu       sync.Mutex
}

// NewPollingWatcher creates a new polling-based watcher
func NewPollingWatcher(lib *Library, interval time.Duration) *PollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &PollingWatcher{
		lib:      lib,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		files:    make(map[string]time.Time),
	}
}

// Watch starts watching for file changes
func (pw *PollingWatcher) Watch() error {
	// Initial scan
	if err := pw.scan(); err != nil {
		return err
	}

	go pw.poll()
	return nil
}

// scan records the modification times of every sample
func (pw *PollingWatcher) scan() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	newFiles := make(map[string]time.Time)

	err := filepath.Walk(pw.lib.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if shouldIgnoreDir(filepath.Base(path)) && path != pw.lib.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !isWavPath(path) {
			return nil
		}
		newFiles[path] = info.ModTime()
		return nil
	})
	if err != nil {
		return err
	}

	pw.files = newFiles
	return nil
}

// poll periodically checks for changes
func (pw *PollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			pw.checkChanges()
		}
	}
}

// checkChanges diffs file states and updates the library
func (pw *PollingWatcher) checkChanges() {
	pw.mu.Lock()
	oldFiles := make(map[string]time.Time, len(pw.files))
	for k, v := range pw.files {
		oldFiles[k] = v
	}
	pw.mu.Unlock()

	if err := pw.scan(); err != nil {
		return
	}

	pw.mu.Lock()
	currentFiles := pw.files
	pw.mu.Unlock()

	for path, modTime := range currentFiles {
		if oldTime, exists := oldFiles[path]; !exists || !oldTime.Equal(modTime) {
			pw.updateVoice(path)
		}
	}

	for path := range oldFiles {
		if _, exists := currentFiles[path]; !exists {
			pw.removeVoice(path)
		}
	}
}

// updateVoice reindexes a single sample
func (pw *PollingWatcher) updateVoice(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tx, err := pw.lib.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := pw.lib.indexVoice(tx, path, info); err != nil {
		return err
	}
	return tx.Commit()
}

// removeVoice drops a sample's row
func (pw *PollingWatcher) removeVoice(path string) error {
	_, err := pw.lib.db.Exec("DELETE FROM voices WHERE name = ?", voiceName(path))
	return err
}

// Close stops watching
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// startWatcher starts the file watcher (fsnotify or polling fallback)
func (l *Library) startWatcher() error {
	// Try fsnotify first
	fw, err := NewFsnotifyWatcher(l, l.config.WatchDebounce)
	if err == nil {
		if err := fw.Watch(); err == nil {
			l.watcher = fw
			return nil
		}
		fw.Close()
	}

	// Fallback to polling watcher
	pw := NewPollingWatcher(l, 5*time.Second)
	if err := pw.Watch(); err != nil {
		return err
	}

	l.watcher = pw
	return nil
}
