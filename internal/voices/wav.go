// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voices

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// =============================================================================
// WAV HEADER PARSING
// =============================================================================

var (
	// ErrNotWav means the file does not start with a RIFF/WAVE header.
	ErrNotWav = errors.New("not a RIFF/WAVE file")

	// ErrMalformedWav means the header was recognized but could not be
	// read to the end.
	ErrMalformedWav = errors.New("malformed WAV header")
)

// WavInfo holds the format facts read from a WAV header. Only the
// header is read; the audio itself is never loaded.
type WavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int64
	Duration   time.Duration
}

// ParseWav reads the RIFF header and the fmt and data chunks from r.
// Unknown chunks (LIST, bext, cue) are skipped. The reader is left
// positioned inside the file; callers wanting the audio should reopen.
func ParseWav(r io.Reader) (WavInfo, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WavInfo{}, fmt.Errorf("%w: %v", ErrNotWav, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WavInfo{}, ErrNotWav
	}

	var info WavInfo
	var haveFmt, haveData bool

	for !haveFmt || !haveData {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return WavInfo{}, fmt.Errorf("%w: truncated chunk header", ErrMalformedWav)
		}
		chunkID := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			if size < 16 {
				return WavInfo{}, fmt.Errorf("%w: fmt chunk too small", ErrMalformedWav)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return WavInfo{}, fmt.Errorf("%w: truncated fmt chunk", ErrMalformedWav)
			}
			info.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(buf[14:16]))
			haveFmt = true
			if err := skipPad(r, size); err != nil {
				return WavInfo{}, err
			}

		case "data":
			info.DataBytes = int64(size)
			haveData = true
			if haveFmt {
				// Nothing left to learn; don't touch the audio.
				break
			}
			// fmt chunk still ahead of us, step over the samples.
			if err := skipChunk(r, size); err != nil {
				return WavInfo{}, err
			}

		default:
			if err := skipChunk(r, size); err != nil {
				return WavInfo{}, err
			}
		}

		if haveFmt && haveData {
			break
		}
	}

	// Chunks may legally report zero channels in broken encoders; treat
	// that as malformed rather than dividing by it.
	if info.Channels <= 0 || info.SampleRate <= 0 || info.BitDepth <= 0 {
		return WavInfo{}, fmt.Errorf("%w: nonsensical fmt values", ErrMalformedWav)
	}

	bytesPerSec := info.SampleRate * info.Channels * (info.BitDepth / 8)
	if bytesPerSec > 0 {
		seconds := float64(info.DataBytes) / float64(bytesPerSec)
		info.Duration = time.Duration(seconds * float64(time.Second))
	}
	return info, nil
}

// skipChunk steps over a chunk body plus the RIFF pad byte for odd
// sizes.
func skipChunk(r io.Reader, size uint32) error {
	skip := int64(size)
	if size%2 == 1 {
		skip++
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return fmt.Errorf("%w: truncated chunk body", ErrMalformedWav)
	}
	return nil
}

// skipPad consumes the pad byte after an odd-sized chunk that was read
// in full.
func skipPad(r io.Reader, size uint32) error {
	if size%2 == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, 1); err != nil {
		return fmt.Errorf("%w: truncated pad byte", ErrMalformedWav)
	}
	return nil
}

// ParseWavFile opens path and parses its header.
func ParseWavFile(path string) (WavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WavInfo{}, err
	}
	defer f.Close()
	return ParseWav(f)
}
