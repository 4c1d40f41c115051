// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		want    string
		wantErr bool
	}{
		{"exact code", "en", "en", false},
		{"uppercase", "EN", "en", false},
		{"whitespace", "  ja ", "ja", false},
		{"regional variant", "en-US", "en", false},
		{"brazilian portuguese", "pt-BR", "pt", false},
		{"bare chinese maps to zh-cn", "zh", "zh-cn", false},
		{"qualified chinese", "zh-CN", "zh-cn", false},
		{"unsupported language", "sw", "", true},
		{"garbage tag", "not-a-language-tag", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.tag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeLanguage(%q) = %q, want error", tt.tag, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeLanguage(%q) error: %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestIsSupportedLanguage(t *testing.T) {
	for _, code := range SupportedLanguages {
		if !IsSupportedLanguage(code) {
			t.Errorf("IsSupportedLanguage(%q) = false for a listed code", code)
		}
	}
	if IsSupportedLanguage("tlh") {
		t.Error("IsSupportedLanguage(tlh) = true")
	}
	if !IsSupportedLanguage("ZH-CN") {
		t.Error("IsSupportedLanguage should ignore case")
	}
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English"},
		{"pt", "Portuguese"},
		{"zh-cn", "Chinese"},
		{"ja", "Japanese"},
	}
	for _, tt := range tests {
		if got := LanguageName(tt.code); got != tt.want {
			t.Errorf("LanguageName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestDefaultTTSSettings(t *testing.T) {
	s := DefaultTTSSettings()
	if s.Temperature != 0.75 {
		t.Errorf("Temperature = %v, want 0.75", s.Temperature)
	}
	if s.TopK != 50 || s.TopP != 0.85 {
		t.Errorf("sampling defaults = topK %d topP %v", s.TopK, s.TopP)
	}
	if !s.EnableTextSplitting {
		t.Error("text splitting should default on")
	}
	if s.StreamChunkSize != 100 {
		t.Errorf("StreamChunkSize = %d, want 100", s.StreamChunkSize)
	}
}
