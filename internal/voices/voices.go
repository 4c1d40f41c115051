// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotScanned    = errors.New("voice library not scanned")
	ErrScanning      = errors.New("scan in progress")
	ErrVoiceNotFound = errors.New("voice not found")
	ErrInvalidFolder = errors.New("invalid speaker folder")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// VOICE TYPE
// =============================================================================

// Voice is one reference sample in the speaker folder.
type Voice struct {
	ID         int64
	Name       string // file name without extension
	Path       string // relative to the speaker folder
	Size       int64
	ModTime    time.Time
	SampleRate int
	Channels   int
	BitDepth   int
	DurationMs int64
	IndexedAt  time.Time
}

// Duration returns the sample length.
func (v *Voice) Duration() time.Duration {
	return time.Duration(v.DurationMs) * time.Millisecond
}

// Issues lists quality concerns for a reference voice. XTTS clones from
// roughly the first ten seconds of clean mono audio; samples far from
// that shape degrade the result.
func (v *Voice) Issues() []string {
	var issues []string
	if v.Channels > 1 {
		issues = append(issues, "stereo sample, the server mixes reference audio down to mono")
	}
	if v.SampleRate < 16000 {
		issues = append(issues, fmt.Sprintf("low sample rate (%d Hz), cloning degrades below 16 kHz", v.SampleRate))
	}
	if v.BitDepth < 16 {
		issues = append(issues, fmt.Sprintf("%d-bit audio, re-encode at 16-bit or better", v.BitDepth))
	}
	if d := v.Duration(); d > 0 && d < 3*time.Second {
		issues = append(issues, "shorter than 3s, too little audio to clone from")
	} else if d > 30*time.Second {
		issues = append(issues, "longer than 30s, only the first seconds drive the cloning")
	}
	return issues
}

// =============================================================================
// VOICE LIBRARY
// =============================================================================

// Library indexes the speaker folder for fast lookup and quality checks
type Library struct {
	db      *sql.DB
	watcher VoiceWatcher // Interface for file watching (fsnotify or polling)
	root    string
	mu      sync.RWMutex

	// Scan state
	scanning   bool
	scanningMu sync.Mutex
	lastScan   time.Time
	voiceCount int

	// Configuration
	config *Config
}

// Config holds library configuration
type Config struct {
	// SpeakersDir is the folder the server reads reference voices from
	SpeakersDir string

	// DatabasePath is where to store the SQLite database
	DatabasePath string

	// MaxFileSize is the maximum file size to index (bytes)
	MaxFileSize int64

	// EnableWatch enables file watching for incremental updates
	EnableWatch bool

	// WatchDebounce is the debounce duration for file change events
	WatchDebounce time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(speakersDir string) *Config {
	return &Config{
		SpeakersDir:   speakersDir,
		DatabasePath:  filepath.Join(speakersDir, ".voxrun", "voices.db"),
		MaxFileSize:   256 * 1024 * 1024, // 256MB
		EnableWatch:   true,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// NewLibrary opens the voice library database
func NewLibrary(config *Config) (*Library, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Validate speaker folder
	info, err := os.Stat(config.SpeakersDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFolder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", ErrInvalidFolder)
	}

	// Create database directory if needed
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // No lifetime limit

	// Configure SQLite for better performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	lib := &Library{
		db:     db,
		root:   config.SpeakersDir,
		config: config,
	}

	// Initialize schema
	if err := lib.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Load statistics
	if err := lib.loadStats(); err != nil {
		// Non-fatal, continue
	}

	return lib, nil
}

// initSchema creates the database schema
func (l *Library) initSchema() error {
	if _, err := l.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := l.db.Exec(InitMetadata); err != nil {
		return err
	}
	_, err := l.db.Exec("UPDATE metadata SET value = ? WHERE key = 'speaker_folder'", l.root)
	return err
}

// Close closes the library and releases resources
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		l.watcher.Close()
	}
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

// Scan performs a full rescan of the speaker folder
func (l *Library) Scan(ctx context.Context) error {
	l.scanningMu.Lock()
	if l.scanning {
		l.scanningMu.Unlock()
		return ErrScanning
	}
	l.scanning = true
	l.scanningMu.Unlock()

	defer func() {
		l.scanningMu.Lock()
		l.scanning = false
		l.scanningMu.Unlock()
	}()

	startTime := time.Now()

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Clear existing data
	if _, err := tx.Exec("DELETE FROM voices"); err != nil {
		return fmt.Errorf("failed to clear voices: %w", err)
	}

	var voiceCount int
	err = filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if shouldIgnoreDir(filepath.Base(path)) && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}

		if !isWavPath(path) {
			return nil
		}
		if info.Size() > l.config.MaxFileSize {
			return nil
		}

		if err := l.indexVoice(tx, path, info); err != nil {
			// Unreadable or malformed sample, skip it
			return nil
		}

		voiceCount++
		return nil
	})
	if err != nil && err != context.Canceled {
		return fmt.Errorf("failed to walk speaker folder: %w", err)
	}

	// Update metadata
	now := time.Now().Unix()
	if _, err := tx.Exec("UPDATE metadata SET value = ? WHERE key = 'last_full_scan'", now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Update statistics with proper mutex protection
	l.mu.Lock()
	l.lastScan = startTime
	l.voiceCount = voiceCount
	l.mu.Unlock()

	// Start file watcher if enabled
	if l.config.EnableWatch && l.watcher == nil {
		if err := l.startWatcher(); err != nil {
			// Non-fatal, continue
		}
	}

	return nil
}

// indexVoice parses one WAV header and inserts its row
func (l *Library) indexVoice(tx *sql.Tx, path string, info os.FileInfo) error {
	wav, err := ParseWavFile(path)
	if err != nil {
		return err
	}

	relPath, err := filepath.Rel(l.root, path)
	if err != nil {
		relPath = path
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO voices
			(name, path, size, mod_time, sample_rate, channels, bit_depth, duration_ms, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, voiceName(path), relPath, info.Size(), info.ModTime().Unix(),
		wav.SampleRate, wav.Channels, wav.BitDepth, wav.Duration.Milliseconds(), time.Now().Unix())
	return err
}

// =============================================================================
// LOOKUP
// =============================================================================

const voiceColumns = `id, name, path, size, mod_time, sample_rate, channels, bit_depth, duration_ms, indexed_at`

func scanVoice(row interface{ Scan(...any) error }) (*Voice, error) {
	var v Voice
	var modTime, indexedAt int64
	err := row.Scan(&v.ID, &v.Name, &v.Path, &v.Size, &modTime,
		&v.SampleRate, &v.Channels, &v.BitDepth, &v.DurationMs, &indexedAt)
	if err != nil {
		return nil, err
	}
	v.ModTime = time.Unix(modTime, 0)
	v.IndexedAt = time.Unix(indexedAt, 0)
	return &v, nil
}

// Get looks up a voice by name, with or without the .wav extension,
// case-insensitively.
func (l *Library) Get(name string) (*Voice, error) {
	name = normalizeName(name)
	row := l.db.QueryRow(
		"SELECT "+voiceColumns+" FROM voices WHERE name = ? COLLATE NOCASE", name)
	v, err := scanVoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return v, nil
}

// List returns every voice ordered by name.
func (l *Library) List() ([]Voice, error) {
	rows, err := l.db.Query("SELECT " + voiceColumns + " FROM voices ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var voices []Voice
	for rows.Next() {
		v, err := scanVoice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		voices = append(voices, *v)
	}
	return voices, rows.Err()
}

// Search returns voices whose name contains the query. SQLite LIKE is
// case-insensitive for ASCII, which is what voice names are in practice.
func (l *Library) Search(query string) ([]Voice, error) {
	if query == "" {
		return l.List()
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := l.db.Query(
		"SELECT "+voiceColumns+" FROM voices WHERE name LIKE ? ESCAPE '\\' ORDER BY name", pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var voices []Voice
	for rows.Next() {
		v, err := scanVoice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		voices = append(voices, *v)
	}
	return voices, rows.Err()
}

// Remove deletes a voice row. The file itself is untouched.
func (l *Library) Remove(name string) error {
	res, err := l.db.Exec("DELETE FROM voices WHERE name = ? COLLATE NOCASE", normalizeName(name))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVoiceNotFound
	}
	return nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats returns library statistics
type Stats struct {
	VoiceCount    int
	TotalDuration time.Duration
	LastScan      time.Time
	IsScanning    bool
	DatabaseSize  int64
}

// Stats returns current library statistics
func (l *Library) Stats() Stats {
	l.mu.RLock()
	lastScan := l.lastScan
	l.mu.RUnlock()

	l.scanningMu.Lock()
	scanning := l.scanning
	l.scanningMu.Unlock()

	var count int
	var totalMs int64
	_ = l.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(duration_ms), 0) FROM voices").Scan(&count, &totalMs)

	var dbSize int64
	if info, err := os.Stat(l.config.DatabasePath); err == nil {
		dbSize = info.Size()
	}

	return Stats{
		VoiceCount:    count,
		TotalDuration: time.Duration(totalMs) * time.Millisecond,
		LastScan:      lastScan,
		IsScanning:    scanning,
		DatabaseSize:  dbSize,
	}
}

// IsScanned returns true if the folder has been scanned
func (l *Library) IsScanned() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.lastScan.IsZero()
}

// loadStats loads statistics from the database
func (l *Library) loadStats() error {
	var lastScan int64
	err := l.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_full_scan'").Scan(&lastScan)
	if err != nil {
		return err
	}
	if lastScan > 0 {
		l.lastScan = time.Unix(lastScan, 0)
	}
	return l.db.QueryRow("SELECT COUNT(*) FROM voices").Scan(&l.voiceCount)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isWavPath reports whether path names a WAV file.
func isWavPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// voiceName derives the library name from a file path.
func voiceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalizeName strips a trailing .wav from user input.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if isWavPath(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// shouldIgnoreDir filters hidden directories out of scans and watches.
func shouldIgnoreDir(name string) bool {
	return strings.HasPrefix(name, ".")
}

// escapeLike escapes LIKE wildcards in user queries.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
