// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClientWithConfig(ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	return client, srv
}

func TestNewClientWithConfig_FillsDefaults(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{})
	def := DefaultClientConfig()

	if c.config.BaseURL != def.BaseURL {
		t.Errorf("BaseURL = %q, want %q", c.config.BaseURL, def.BaseURL)
	}
	if c.config.Timeout != def.Timeout {
		t.Errorf("Timeout = %v, want %v", c.config.Timeout, def.Timeout)
	}
	if c.config.SynthesisTimeout != def.SynthesisTimeout {
		t.Errorf("SynthesisTimeout = %v, want %v", c.config.SynthesisTimeout, def.SynthesisTimeout)
	}
}

func TestNewClientWithConfig_TrimsTrailingSlash(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{BaseURL: "http://localhost:8020/"})
	if c.BaseURL() != "http://localhost:8020" {
		t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
	}
}

func TestNewClientForServer_MapsBindAllToLoopback(t *testing.T) {
	cfg := config.Default().Server
	c := NewClientForServer(cfg)
	if c.BaseURL() != "http://127.0.0.1:8020" {
		t.Errorf("BaseURL() = %q, want loopback for 0.0.0.0 bind", c.BaseURL())
	}
}

func TestClient_CheckRunning(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speakers_list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]string{"calm_female"})
	}))

	if err := client.CheckRunning(context.Background()); err != nil {
		t.Fatalf("CheckRunning() = %v, want nil", err)
	}
}

func TestClient_CheckRunning_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens anymore

	client := NewClientWithConfig(ClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	err := client.CheckRunning(context.Background())
	if err == nil {
		t.Fatal("CheckRunning() against a closed server should fail")
	}
	if !IsNotRunning(err) {
		t.Errorf("IsNotRunning(%v) = false, want true", err)
	}
}

func TestClient_ListSpeakerNames_Sorted(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"zeus", "ada", "morgan"})
	}))

	names, err := client.ListSpeakerNames(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakerNames() error: %v", err)
	}
	want := []string{"ada", "morgan", "zeus"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("ListSpeakerNames() = %v, want %v", names, want)
	}
}

func TestClient_ResolveSpeaker(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"calm_female.wav", "Morgan"})
	}))

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"exact", "Morgan", "Morgan", false},
		{"case insensitive", "morgan", "Morgan", false},
		{"without extension", "calm_female", "calm_female.wav", false},
		{"with extension", "calm_female.wav", "calm_female.wav", false},
		{"unknown", "ghost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.ResolveSpeaker(context.Background(), tt.query)
			if tt.wantErr {
				if !IsSpeakerNotFound(err) {
					t.Fatalf("ResolveSpeaker(%q) err = %v, want speaker-not-found", tt.query, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSpeaker(%q) error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("ResolveSpeaker(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestClient_Speakers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speakers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Speaker{
			{Name: "morgan", VoiceID: "morgan.wav", PreviewURL: "/sample/morgan.wav"},
		})
	}))

	speakers, err := client.Speakers(context.Background())
	if err != nil {
		t.Fatalf("Speakers() error: %v", err)
	}
	if len(speakers) != 1 || speakers[0].Name != "morgan" {
		t.Errorf("Speakers() = %+v", speakers)
	}
}

func TestClient_Languages(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"languages":{"English":"en","Spanish":"es"}}`))
	}))

	langs, err := client.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages() error: %v", err)
	}
	if langs["English"] != "en" || langs["Spanish"] != "es" {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestClient_TTSSettingsRoundTrip(t *testing.T) {
	var received TTSSettings
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_tts_settings":
			_ = json.NewEncoder(w).Encode(DefaultTTSSettings())
		case "/set_tts_settings":
			if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
				t.Errorf("decode settings: %v", err)
			}
			_, _ = w.Write([]byte(`{"message":"Settings successfully applied"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	settings, err := client.GetTTSSettings(context.Background())
	if err != nil {
		t.Fatalf("GetTTSSettings() error: %v", err)
	}
	if settings.Temperature != 0.75 {
		t.Errorf("Temperature = %v, want 0.75", settings.Temperature)
	}

	settings.Speed = 1.25
	if err := client.SetTTSSettings(context.Background(), settings); err != nil {
		t.Fatalf("SetTTSSettings() error: %v", err)
	}
	if received.Speed != 1.25 {
		t.Errorf("server received speed %v, want 1.25", received.Speed)
	}
}

func TestClient_SwitchModel(t *testing.T) {
	var received SwitchModelRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/switch_model" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
	}))

	if err := client.SwitchModel(context.Background(), "v2.0.3"); err != nil {
		t.Fatalf("SwitchModel() error: %v", err)
	}
	if received.ModelName != "v2.0.3" {
		t.Errorf("server received model %q, want v2.0.3", received.ModelName)
	}
}

func TestClient_Folders(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"speaker_folder":"speakers/","output_folder":"output/","model_folder":"models/"}`))
	}))

	folders, err := client.Folders(context.Background())
	if err != nil {
		t.Fatalf("Folders() error: %v", err)
	}
	if folders.SpeakerFolder != "speakers/" || folders.ModelFolder != "models/" {
		t.Errorf("Folders() = %+v", folders)
	}
}

func TestClient_TTSToAudio(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt ")
	var received TTSRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_audio/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))

	audio, err := client.TTSToAudio(context.Background(), TTSRequest{
		Text:       "hello there",
		SpeakerWav: "morgan",
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("TTSToAudio() error: %v", err)
	}
	if string(audio) != string(wav) {
		t.Errorf("TTSToAudio() returned %d bytes, want the WAV payload", len(audio))
	}
	if received.Text != "hello there" || received.Language != "en" {
		t.Errorf("server received %+v", received)
	}
}

func TestClient_TTSToAudio_ServerErrorSurfacesDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Speaker ghost.wav not found"}`))
	}))

	_, err := client.TTSToAudio(context.Background(), TTSRequest{Text: "x", SpeakerWav: "ghost", Language: "en"})
	if err == nil {
		t.Fatal("TTSToAudio() should fail on 400")
	}
	if !strings.Contains(err.Error(), "Speaker ghost.wav not found") {
		t.Errorf("error %q should carry the server detail", err)
	}
}

func TestClient_TTSToFile(t *testing.T) {
	var received TTSFileRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_file" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"message":"stored"}`))
	}))

	req := TTSFileRequest{Text: "hi", SpeakerWav: "morgan", Language: "en", FileNameOrPath: "out.wav"}
	if err := client.TTSToFile(context.Background(), req); err != nil {
		t.Fatalf("TTSToFile() error: %v", err)
	}
	if received.FileNameOrPath != "out.wav" {
		t.Errorf("server received path %q, want out.wav", received.FileNameOrPath)
	}
}

func TestClient_WaitReady_RecoversAfterFailures(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var progressCalls int
	err := client.WaitReady(ctx, 10*time.Millisecond, func(time.Duration) { progressCalls++ })
	if err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	if progressCalls == 0 {
		t.Error("progress callback never fired despite failed attempts")
	}
}

func TestClient_WaitReady_Timeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.WaitReady(ctx, 10*time.Millisecond, nil)
	if err == nil {
		t.Fatal("WaitReady() should time out against a sick server")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false, want true", err)
	}
}

func TestClient_StreamURL(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{BaseURL: "http://127.0.0.1:8020"})
	u := c.StreamURL(TTSRequest{Text: "hello world", SpeakerWav: "morgan", Language: "en"})

	if !strings.HasPrefix(u, "http://127.0.0.1:8020/tts_stream?") {
		t.Errorf("StreamURL() = %q", u)
	}
	if !strings.Contains(u, "text=hello+world") {
		t.Errorf("StreamURL() = %q, want encoded text", u)
	}
	if !strings.Contains(u, "speaker_wav=morgan") || !strings.Contains(u, "language=en") {
		t.Errorf("StreamURL() = %q, missing parameters", u)
	}
}

func TestClient_SampleURL(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{BaseURL: "http://127.0.0.1:8020"})
	if got := c.SampleURL("calm female.wav"); got != "http://127.0.0.1:8020/sample/calm%20female.wav" {
		t.Errorf("SampleURL() = %q", got)
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := &ClientError{Type: ErrorTypeTimeout, Message: "request timed out", Cause: cause}

	if !IsTimeout(err) {
		t.Error("IsTimeout should match a timeout ClientError")
	}
	if got := err.Error(); !strings.Contains(got, "request timed out") {
		t.Errorf("Error() = %q", got)
	}
}
