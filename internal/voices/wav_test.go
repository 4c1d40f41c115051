// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voices

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chunk frames a RIFF chunk, including the pad byte odd sizes require.
func chunk(id string, body []byte) []byte {
	out := make([]byte, 0, 8+len(body)+1)
	out = append(out, id...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// fmtChunk builds a 16-byte PCM fmt chunk body.
func fmtChunk(channels, sampleRate, bitDepth int) []byte {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint16(body[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(body[2:4], uint16(channels))
	binary.LittleEndian.PutUint32(body[4:8], uint32(sampleRate))
	binary.LittleEndian.PutUint32(body[8:12], uint32(sampleRate*channels*bitDepth/8))
	binary.LittleEndian.PutUint16(body[12:14], uint16(channels*bitDepth/8))
	binary.LittleEndian.PutUint16(body[14:16], uint16(bitDepth))
	return body
}

// riff wraps chunks in a RIFF/WAVE container.
func riff(chunks ...[]byte) []byte {
	var payload []byte
	for _, c := range chunks {
		payload = append(payload, c...)
	}
	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+len(payload)))
	out = append(out, "WAVE"...)
	return append(out, payload...)
}

// buildWav builds a PCM WAV with dataLen bytes of silence.
func buildWav(channels, sampleRate, bitDepth, dataLen int) []byte {
	return riff(
		chunk("fmt ", fmtChunk(channels, sampleRate, bitDepth)),
		chunk("data", make([]byte, dataLen)),
	)
}

func TestParseWav_Mono16(t *testing.T) {
	// One second of 22.05 kHz mono 16-bit is 44100 data bytes
	info, err := ParseWav(bytes.NewReader(buildWav(1, 22050, 16, 44100)))
	if err != nil {
		t.Fatalf("ParseWav failed: %v", err)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", info.SampleRate)
	}
	if info.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want 16", info.BitDepth)
	}
	if info.DataBytes != 44100 {
		t.Errorf("DataBytes = %d, want 44100", info.DataBytes)
	}
	if info.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", info.Duration)
	}
}

func TestParseWav_Stereo24Bit(t *testing.T) {
	// 48 kHz stereo 24-bit is 288000 bytes per second
	info, err := ParseWav(bytes.NewReader(buildWav(2, 48000, 24, 144000)))
	if err != nil {
		t.Fatalf("ParseWav failed: %v", err)
	}
	if info.Channels != 2 {
		t.Errorf("Channels = %d, want 2", info.Channels)
	}
	if info.BitDepth != 24 {
		t.Errorf("BitDepth = %d, want 24", info.BitDepth)
	}
	if info.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", info.Duration)
	}
}

func TestParseWav_RejectsNonWav(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RIF")},
		{"wrong magic", []byte("JUNKxxxxWAVE")},
		{"riff but not wave", []byte("RIFF\x04\x00\x00\x00AVI ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWav(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrNotWav) {
				t.Errorf("ParseWav error = %v, want ErrNotWav", err)
			}
		})
	}
}

func TestParseWav_Truncated(t *testing.T) {
	full := buildWav(1, 22050, 16, 100)

	tests := []struct {
		name string
		cut  int
	}{
		{"inside chunk header", 14},
		{"inside fmt body", 24},
		{"after fmt, before data", 12 + 8 + 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWav(bytes.NewReader(full[:tt.cut]))
			if !errors.Is(err, ErrMalformedWav) {
				t.Errorf("ParseWav error = %v, want ErrMalformedWav", err)
			}
		})
	}
}

func TestParseWav_DataBeforeFmt(t *testing.T) {
	// Some encoders write the data chunk first; the parser has to step
	// over the audio to reach the format
	data := riff(
		chunk("data", make([]byte, 44100)),
		chunk("fmt ", fmtChunk(1, 22050, 16)),
	)

	info, err := ParseWav(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseWav failed: %v", err)
	}
	if info.DataBytes != 44100 {
		t.Errorf("DataBytes = %d, want 44100", info.DataBytes)
	}
	if info.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", info.Duration)
	}
}

func TestParseWav_SkipsUnknownChunks(t *testing.T) {
	// The odd-sized LIST chunk exercises the RIFF pad byte
	data := riff(
		chunk("LIST", []byte("INFOabc")),
		chunk("fmt ", fmtChunk(1, 16000, 16)),
		chunk("bext", make([]byte, 10)),
		chunk("data", make([]byte, 3200)),
	)

	info, err := ParseWav(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseWav failed: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", info.SampleRate)
	}
	if info.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", info.Duration)
	}
}

func TestParseWav_ExtendedFmtChunk(t *testing.T) {
	// WAVE_FORMAT_EXTENSIBLE files carry an 18-byte or larger fmt chunk
	body := append(fmtChunk(2, 44100, 16), 0, 0)
	data := riff(chunk("fmt ", body), chunk("data", make([]byte, 176400)))

	info, err := ParseWav(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseWav failed: %v", err)
	}
	if info.Channels != 2 {
		t.Errorf("Channels = %d, want 2", info.Channels)
	}
	if info.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", info.Duration)
	}
}

func TestParseWav_NonsensicalFmt(t *testing.T) {
	tests := []struct {
		name                           string
		channels, sampleRate, bitDepth int
	}{
		{"zero channels", 0, 22050, 16},
		{"zero sample rate", 1, 0, 16},
		{"zero bit depth", 1, 22050, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWav(tt.channels, tt.sampleRate, tt.bitDepth, 100)
			_, err := ParseWav(bytes.NewReader(data))
			if !errors.Is(err, ErrMalformedWav) {
				t.Errorf("ParseWav error = %v, want ErrMalformedWav", err)
			}
		})
	}
}

func TestParseWavFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.wav")
	if err := os.WriteFile(path, buildWav(1, 22050, 16, 88200), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	info, err := ParseWavFile(path)
	if err != nil {
		t.Fatalf("ParseWavFile failed: %v", err)
	}
	if info.Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", info.Duration)
	}

	if _, err := ParseWavFile(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}
