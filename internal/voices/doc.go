// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voices indexes the reference voices the XTTS server clones from.
//
// This package creates and maintains a SQLite-based catalog of the WAV
// samples in the speaker folder, enabling fast lookup and quality checks
// without touching the audio files on every command.
//
// # Key Types
//
//   - Library: Main catalog with SQLite backend
//   - Voice: Indexed sample with audio format and duration
//   - WavInfo: Parsed RIFF/WAVE header
//   - VoiceWatcher: File system watcher for incremental updates
//
// # Usage
//
// Open and populate a library:
//
//	lib, err := voices.NewLibrary(voices.DefaultConfig("speakers/"))
//	err = lib.Scan(ctx)
//
// Look up a voice:
//
//	v, err := lib.Get("calm")
//	for _, issue := range v.Issues() {
//	    fmt.Println("warning:", issue)
//	}
//
// # Storage Location
//
// The catalog lives in .voxrun/voices.db inside the speaker folder, next
// to the samples it describes, so moving the folder moves the index.
package voices
