// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark provides synthesis benchmarking for voxrun.
package benchmark

import (
	"github.com/jeranaias/voxrun/internal/voices"
)

// =============================================================================
// PHRASE DEFINITIONS
// =============================================================================

// Phrase represents a single benchmark phrase.
type Phrase struct {
	Name        string
	Type        PhraseType
	Text        string
	Language    string // empty means the runner's language
	Check       AudioCheck
	Description string
}

// PhraseType categorizes the type of phrase.
type PhraseType string

const (
	PhraseTypeLatency   PhraseType = "latency"
	PhraseTypeSpeed     PhraseType = "speed"
	PhraseTypeSustained PhraseType = "sustained"
	PhraseTypeStress    PhraseType = "stress"
)

// AudioCheck scores the plausibility of the returned audio (0-100).
type AudioCheck func(info voices.WavInfo, text string) float64

// =============================================================================
// STANDARD PHRASE SUITE
// =============================================================================

// GetStandardPhrases returns the standard benchmark phrase suite.
func GetStandardPhrases() []Phrase {
	return []Phrase{
		// Latency phrase - shortest round trip the server will do
		{
			Name:        "Latency Phrase",
			Type:        PhraseTypeLatency,
			Text:        "Hi there.",
			Description: "Measures request latency with a minimal utterance",
			Check:       defaultAudioCheck,
		},

		// Speed phrase - one full sentence
		{
			Name:        "Speed Phrase",
			Type:        PhraseTypeSpeed,
			Text:        "The quick brown fox jumps over the lazy dog near the quiet riverbank.",
			Description: "Measures throughput on a typical sentence",
			Check:       defaultAudioCheck,
		},

		// Sustained phrase - a paragraph, long enough that the model's
		// internal text splitting kicks in
		{
			Name: "Sustained Phrase",
			Type: PhraseTypeSustained,
			Text: "Reading aloud is older than writing itself. Long before books, " +
				"storytellers carried whole histories in their voices, shaping " +
				"pauses and emphasis to hold a crowd. A synthesizer that wants to " +
				"sound human has to learn the same tricks: where to breathe, " +
				"which words to lean on, and when silence says more than speech.",
			Description: "Measures sustained generation across sentence boundaries",
			Check:       defaultAudioCheck,
		},

		// Stress phrase - numbers, currency, and abbreviations force the
		// text normalizer to expand tokens
		{
			Name:        "Normalization Phrase",
			Type:        PhraseTypeStress,
			Text:        "On March 3rd, 2024, Dr. Lang paid $1,234.56 for 2 kg of coffee, roughly 15% more than last year.",
			Description: "Measures handling of numbers, dates, and abbreviations",
			Check:       defaultAudioCheck,
		},
	}
}

// defaultAudioCheck scores returned audio on shape alone: there is no
// reference transcript to compare against, so plausibility is duration
// and format.
func defaultAudioCheck(info voices.WavInfo, text string) float64 {
	score := 0.0

	if info.Duration > 0 {
		score += 40
	}

	// Human speech lands around 10-20 characters per second; anything
	// between 4 and 40 is at least not garbage
	if info.Duration > 0 {
		cps := float64(len(text)) / info.Duration.Seconds()
		if cps >= 4 && cps <= 40 {
			score += 40
		} else if cps > 0 {
			score += 20
		}
	}

	if info.SampleRate >= 16000 {
		score += 20
	}

	return score
}

// =============================================================================
// CUSTOM PHRASE BUILDERS
// =============================================================================

// NewLatencyPhrase creates a custom latency phrase.
func NewLatencyPhrase(name, text string) Phrase {
	return Phrase{
		Name:        name,
		Type:        PhraseTypeLatency,
		Text:        text,
		Description: "Custom latency phrase",
		Check:       defaultAudioCheck,
	}
}

// NewSpeedPhrase creates a custom speed phrase.
func NewSpeedPhrase(name, text string) Phrase {
	return Phrase{
		Name:        name,
		Type:        PhraseTypeSpeed,
		Text:        text,
		Description: "Custom speed phrase",
		Check:       defaultAudioCheck,
	}
}

// NewLanguagePhrase creates a phrase pinned to a specific language.
func NewLanguagePhrase(name, text, language string) Phrase {
	return Phrase{
		Name:        name,
		Type:        PhraseTypeSpeed,
		Text:        text,
		Language:    language,
		Description: "Custom language phrase",
		Check:       defaultAudioCheck,
	}
}

// =============================================================================
// PHRASE SUITE HELPERS
// =============================================================================

// FilterPhrasesByType returns only phrases of a specific type.
func FilterPhrasesByType(phrases []Phrase, phraseType PhraseType) []Phrase {
	filtered := make([]Phrase, 0)
	for _, phrase := range phrases {
		if phrase.Type == phraseType {
			filtered = append(filtered, phrase)
		}
	}
	return filtered
}

// GetQuickSuite returns a minimal suite for quick benchmarking.
func GetQuickSuite() []Phrase {
	allPhrases := GetStandardPhrases()
	// Return just the first phrase of each type
	quick := make([]Phrase, 0)
	seen := make(map[PhraseType]bool)

	for _, phrase := range allPhrases {
		if !seen[phrase.Type] {
			quick = append(quick, phrase)
			seen[phrase.Type] = true
		}
	}

	return quick
}
