// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType classifies client failures so callers can give targeted
// help instead of dumping raw transport errors.
type ErrorType int

const (
	// ErrorTypeConnection means the server could not be reached at all.
	ErrorTypeConnection ErrorType = iota
	// ErrorTypeTimeout means the server did not answer in time.
	ErrorTypeTimeout
	// ErrorTypeServerError means the server answered with a non-200 status.
	ErrorTypeServerError
	// ErrorTypeInvalidResponse means the server answered with something
	// the client could not decode.
	ErrorTypeInvalidResponse
)

// ClientError wraps an API failure with its classification.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for common conditions.
var (
	// ErrServerNotRunning indicates no XTTS server answered at the
	// configured address.
	ErrServerNotRunning = errors.New("xtts server is not running")

	// ErrSpeakerNotFound indicates the requested reference voice is not
	// in the server's speaker folder.
	ErrSpeakerNotFound = errors.New("speaker not found")
)

// IsNotRunning reports whether err means the server is unreachable.
func IsNotRunning(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypeConnection
	}
	return errors.Is(err, ErrServerNotRunning)
}

// IsTimeout reports whether err was a client-side timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsSpeakerNotFound reports whether err means an unknown reference
// voice was requested.
func IsSpeakerNotFound(err error) bool {
	return errors.Is(err, ErrSpeakerNotFound)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds the transport settings for talking to a running
// XTTS server.
type ClientConfig struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8020".
	BaseURL string

	// Timeout bounds control-plane calls (listing speakers, settings).
	Timeout time.Duration

	// SynthesisTimeout bounds synthesis calls, which can run for
	// minutes on long texts or CPU inference.
	SynthesisTimeout time.Duration
}

// DefaultClientConfig returns settings for a locally launched server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:          "http://127.0.0.1:8020",
		Timeout:          10 * time.Second,
		SynthesisTimeout: 5 * time.Minute,
	}
}

// Client talks to the XTTS server's HTTP API.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	synthClient *http.Client
}

// NewClient returns a client with default settings.
func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

// NewClientWithConfig returns a client with custom settings. Zero
// fields fall back to the defaults.
func NewClientWithConfig(cfg ClientConfig) *Client {
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SynthesisTimeout == 0 {
		cfg.SynthesisTimeout = def.SynthesisTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		synthClient: &http.Client{Timeout: cfg.SynthesisTimeout},
	}
}

// NewClientForServer returns a client pointed at the server a launch
// configuration describes. Bind-all hosts map to loopback.
func NewClientForServer(cfg config.ServerConfig) *Client {
	cc := DefaultClientConfig()
	cc.BaseURL = cfg.LocalURL()
	return NewClientWithConfig(cc)
}

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// TRANSPORT HELPERS
// =============================================================================

func (c *Client) transportError(err error, path string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{
			Type:    ErrorTypeTimeout,
			Message: fmt.Sprintf("request to %s timed out", path),
			Cause:   err,
		}
	}
	return &ClientError{
		Type:    ErrorTypeConnection,
		Message: fmt.Sprintf("cannot reach XTTS server at %s", c.config.BaseURL),
		Cause:   err,
	}
}

func (c *Client) statusError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("%s returned status %d", path, resp.StatusCode)
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, apiErr.Detail)
	}
	return &ClientError{Type: ErrorTypeServerError, Message: msg}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(err, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{
			Type:    ErrorTypeInvalidResponse,
			Message: fmt.Sprintf("failed to decode %s response", path),
			Cause:   err,
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(err, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{
			Type:    ErrorTypeInvalidResponse,
			Message: fmt.Sprintf("failed to decode %s response", path),
			Cause:   err,
		}
	}
	return nil
}

// =============================================================================
// SERVER STATUS
// =============================================================================

// CheckRunning verifies the server answers at the configured address.
// The speaker list is the cheapest endpoint the server exposes.
func (c *Client) CheckRunning(ctx context.Context) error {
	return c.getJSON(ctx, "/speakers_list", nil)
}

// WaitReady polls the server until it answers or the context expires.
// The progress callback, if set, fires after each failed attempt with
// the elapsed time, so callers can render a spinner or elapsed counter.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration, progress func(elapsed time.Duration)) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.CheckRunning(ctx); err == nil {
			return nil
		}
		if progress != nil {
			progress(time.Since(start))
		}
		select {
		case <-ctx.Done():
			return &ClientError{
				Type:    ErrorTypeTimeout,
				Message: "timed out waiting for the XTTS server to become ready",
				Cause:   ctx.Err(),
			}
		case <-ticker.C:
		}
	}
}

// =============================================================================
// SPEAKERS AND LANGUAGES
// =============================================================================

// ListSpeakerNames returns the plain names of every reference voice in
// the server's speaker folder.
func (c *Client) ListSpeakerNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/speakers_list", &names); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Speakers returns the detailed speaker records, preview URLs included.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	var speakers []Speaker
	if err := c.getJSON(ctx, "/speakers", &speakers); err != nil {
		return nil, err
	}
	sort.Slice(speakers, func(i, j int) bool { return speakers[i].Name < speakers[j].Name })
	return speakers, nil
}

// ResolveSpeaker matches a requested voice name against the server's
// speaker list, case-insensitively and with or without the .wav
// extension. Returns the server's canonical name.
func (c *Client) ResolveSpeaker(ctx context.Context, name string) (string, error) {
	names, err := c.ListSpeakerNames(ctx)
	if err != nil {
		return "", err
	}
	want := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), ".wav"))
	for _, n := range names {
		if strings.ToLower(strings.TrimSuffix(n, ".wav")) == want {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q (server has %d speakers)", ErrSpeakerNotFound, name, len(names))
}

// Languages returns the server's language table mapping display names
// to XTTS codes.
func (c *Client) Languages(ctx context.Context) (map[string]string, error) {
	var resp struct {
		Languages map[string]string `json:"languages"`
	}
	if err := c.getJSON(ctx, "/languages", &resp); err != nil {
		return nil, err
	}
	return resp.Languages, nil
}

// =============================================================================
// SETTINGS AND MODELS
// =============================================================================

// GetTTSSettings fetches the generation parameters currently applied.
func (c *Client) GetTTSSettings(ctx context.Context) (TTSSettings, error) {
	var settings TTSSettings
	if err := c.getJSON(ctx, "/get_tts_settings", &settings); err != nil {
		return TTSSettings{}, err
	}
	return settings, nil
}

// SetTTSSettings replaces the generation parameters on the running
// server.
func (c *Client) SetTTSSettings(ctx context.Context, settings TTSSettings) error {
	return c.postJSON(ctx, "/set_tts_settings", settings, nil)
}

// ModelList returns the model folders the server can switch between.
func (c *Client) ModelList(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.getJSON(ctx, "/get_models_list", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// SwitchModel asks the server to load a different model folder.
func (c *Client) SwitchModel(ctx context.Context, modelName string) error {
	return c.postJSON(ctx, "/switch_model", SwitchModelRequest{ModelName: modelName}, nil)
}

// Folders reports the speaker, output, and model directories the
// server was launched with.
func (c *Client) Folders(ctx context.Context) (Folders, error) {
	var folders Folders
	if err := c.getJSON(ctx, "/get_folders", &folders); err != nil {
		return Folders{}, err
	}
	return folders, nil
}

// =============================================================================
// SYNTHESIS
// =============================================================================

// TTSToAudio synthesizes speech and returns the WAV bytes. Uses the
// synthesis timeout, not the control-plane timeout.
func (c *Client) TTSToAudio(ctx context.Context, req TTSRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/tts_to_audio/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.synthClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(err, "/tts_to_audio/")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "/tts_to_audio/")
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeInvalidResponse,
			Message: "failed to read synthesized audio",
			Cause:   err,
		}
	}
	return audio, nil
}

// TTSToFile synthesizes speech into a file on the server side.
func (c *Client) TTSToFile(ctx context.Context, req TTSFileRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode synthesis request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/tts_to_file", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.synthClient.Do(httpReq)
	if err != nil {
		return c.transportError(err, "/tts_to_file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, "/tts_to_file")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StreamURL builds the URL for the chunked streaming endpoint. The
// caller feeds it to an audio player; no request is made here.
func (c *Client) StreamURL(req TTSRequest) string {
	q := url.Values{}
	q.Set("text", req.Text)
	q.Set("speaker_wav", req.SpeakerWav)
	q.Set("language", req.Language)
	return c.config.BaseURL + "/tts_stream?" + q.Encode()
}

// SampleURL builds the URL serving a speaker's preview sample.
func (c *Client) SampleURL(fileName string) string {
	return c.config.BaseURL + "/sample/" + url.PathEscape(fileName)
}
