// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// =============================================================================
// API TYPES
// =============================================================================

// TTSRequest is the body for the synthesis endpoints. SpeakerWav names
// a sample in the server's speaker folder (with or without the .wav
// extension); Language is an XTTS v2 language code.
type TTSRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// TTSFileRequest asks the server to synthesize to a file on the server
// side instead of returning audio bytes.
type TTSFileRequest struct {
	Text           string `json:"text"`
	SpeakerWav     string `json:"speaker_wav"`
	Language       string `json:"language"`
	FileNameOrPath string `json:"file_name_or_path"`
}

// TTSSettings are the generation parameters the server applies to every
// synthesis request until changed.
type TTSSettings struct {
	StreamChunkSize     int     `json:"stream_chunk_size"`
	Temperature         float64 `json:"temperature"`
	Speed               float64 `json:"speed"`
	LengthPenalty       float64 `json:"length_penalty"`
	RepetitionPenalty   float64 `json:"repetition_penalty"`
	TopK                int     `json:"top_k"`
	TopP                float64 `json:"top_p"`
	EnableTextSplitting bool    `json:"enable_text_splitting"`
}

// DefaultTTSSettings returns the generation parameters the server ships
// with.
func DefaultTTSSettings() TTSSettings {
	return TTSSettings{
		StreamChunkSize:     100,
		Temperature:         0.75,
		Speed:               1.0,
		LengthPenalty:       1.0,
		RepetitionPenalty:   5.0,
		TopK:                50,
		TopP:                0.85,
		EnableTextSplitting: true,
	}
}

// SwitchModelRequest selects a different model folder on a running
// server.
type SwitchModelRequest struct {
	ModelName string `json:"model_name"`
}

// Speaker is one reference voice known to the server.
type Speaker struct {
	Name       string `json:"name"`
	VoiceID    string `json:"voice_id"`
	PreviewURL string `json:"preview_url"`
}

// Folders reports the directories a running server was launched with.
type Folders struct {
	SpeakerFolder string `json:"speaker_folder"`
	OutputFolder  string `json:"output_folder"`
	ModelFolder   string `json:"model_folder"`
}

// apiError is the FastAPI error envelope.
type apiError struct {
	Detail string `json:"detail"`
}

// =============================================================================
// LANGUAGES
// =============================================================================

// SupportedLanguages lists the language codes XTTS v2 can synthesize.
var SupportedLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "pl", "tr", "ru",
	"nl", "cs", "ar", "zh-cn", "hu", "ko", "ja", "hi",
}

// IsSupportedLanguage reports whether code is one of the XTTS v2
// language codes. Matching is case-insensitive.
func IsSupportedLanguage(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// NormalizeLanguage resolves a user-supplied language tag ("EN",
// "en-US", "pt-BR", "zh") to the XTTS code for it. BCP 47 tags collapse
// to their base language, so regional variants of a supported language
// are accepted.
func NormalizeLanguage(tag string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(tag))
	if trimmed == "" {
		return "", fmt.Errorf("empty language tag")
	}
	if IsSupportedLanguage(trimmed) {
		return trimmed, nil
	}

	parsed, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unrecognized language tag %q: %w", tag, err)
	}
	base, _ := parsed.Base()
	code := base.String()
	// XTTS uses the region-qualified code for Chinese.
	if code == "zh" {
		code = "zh-cn"
	}
	if IsSupportedLanguage(code) {
		return code, nil
	}
	return "", fmt.Errorf("language %q is not supported by XTTS v2", tag)
}

// LanguageName returns the English display name for an XTTS language
// code, e.g. "pt" -> "Portuguese". Unknown codes come back unchanged.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "zh-cn" {
		return "Chinese"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}
