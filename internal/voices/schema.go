// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voices provides the reference voice library for voxrun.
package voices

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// SQLite schema for the voice library
const Schema = `
-- Metadata table for schema version and scan state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Voices table: one row per reference WAV in the speaker folder
CREATE TABLE IF NOT EXISTS voices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,  -- file name without extension
    path TEXT NOT NULL,         -- relative to the speaker folder
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL,  -- Unix timestamp
    sample_rate INTEGER NOT NULL,
    channels INTEGER NOT NULL,
    bit_depth INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    indexed_at INTEGER NOT NULL -- Unix timestamp
);

CREATE INDEX IF NOT EXISTS idx_voices_name ON voices(name);
CREATE INDEX IF NOT EXISTS idx_voices_mod_time ON voices(mod_time);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
INSERT OR IGNORE INTO metadata (key, value) VALUES ('last_full_scan', '0');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('speaker_folder', '');
`
