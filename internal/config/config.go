// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/voxrun/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete voxrun configuration.
type Config struct {
	// Version of the config schema, bumped on incompatible changes
	Version string `toml:"version" json:"version"`

	// Server configuration (the XTTS process voxrun launches)
	Server ServerConfig `toml:"server" json:"server"`

	// Probe configuration (the CUDA capability check)
	Probe ProbeConfig `toml:"probe" json:"probe"`

	// Daemon configuration (background mode)
	Daemon DaemonConfig `toml:"daemon" json:"daemon"`

	// Voices configuration (speaker library)
	Voices VoicesConfig `toml:"voices" json:"voices"`

	// Bench configuration (synthesis benchmarks)
	Bench BenchConfig `toml:"bench" json:"bench"`
}

// ServerConfig describes the XTTS server process and its launch flags.
// The zero-ish defaults reproduce the classic launch line:
//
//	python -m xtts_api_server -hs 0.0.0.0 -p 8020 -sf speakers/ -mf models/
//	    -ms api -d cuda --deepspeed --listen --use-cache --streaming-mode-improve
type ServerConfig struct {
	// Python is the interpreter that runs both the probe and the server.
	// It must live in the environment that has torch and xtts_api_server
	// installed, so venv paths like ".venv/bin/python" are common here.
	Python string `toml:"python" json:"python"`
	// Module is the Python module launched with -m
	Module string `toml:"module" json:"module"`
	// Host is the bind address. The stock launch binds all interfaces.
	Host string `toml:"host" json:"host"`
	// Port is the API port
	Port int `toml:"port" json:"port"`
	// SpeakersFolder holds speaker reference WAVs
	SpeakersFolder string `toml:"speakers_folder" json:"speakers_folder"`
	// ModelsFolder holds downloaded model weights
	ModelsFolder string `toml:"models_folder" json:"models_folder"`
	// OutputFolder receives synthesized audio files
	OutputFolder string `toml:"output_folder" json:"output_folder"`
	// ModelSource selects how the server loads the model: "api", "apiManual", "local"
	ModelSource string `toml:"model_source" json:"model_source"`
	// ModelVersion pins the XTTS model version, empty for the server default
	ModelVersion string `toml:"model_version" json:"model_version"`
	// Device selects the profile: "auto" (probe decides), "cuda", "cpu"
	Device string `toml:"device" json:"device"`
	// DeepSpeed controls the acceleration extension: "auto" (on for the
	// CUDA profile, off for CPU), "on", "off". DeepSpeed on CPU is refused
	// by the server, so "on" is only honored alongside cuda.
	DeepSpeed string `toml:"deepspeed" json:"deepspeed"`
	// Listen enables network listening
	Listen bool `toml:"listen" json:"listen"`
	// UseCache enables the server's response cache
	UseCache bool `toml:"use_cache" json:"use_cache"`
	// StreamingModeImprove enables the improved streaming pipeline
	StreamingModeImprove bool `toml:"streaming_mode_improve" json:"streaming_mode_improve"`
	// LowVram moves the model between CPU and GPU memory per request
	LowVram bool `toml:"lowvram" json:"lowvram"`
	// ExtraArgs are appended verbatim to the server command line
	ExtraArgs []string `toml:"extra_args" json:"extra_args"`
}

// LocalURL returns the URL local clients use to reach the server. A bind
// address of 0.0.0.0 is reachable locally via loopback.
func (s ServerConfig) LocalURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// ProbeConfig controls the CUDA capability probe.
type ProbeConfig struct {
	// TimeoutSecs bounds one probe run. Cold torch imports are slow.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// WarnOnFailure prints a stderr warning when the probe itself errors
	// before falling back to CPU. The fallback happens either way.
	WarnOnFailure bool `toml:"warn_on_failure" json:"warn_on_failure"`
}

// DaemonConfig controls background mode and its log rotation.
type DaemonConfig struct {
	// LogDir holds daemon logs, empty for ~/.voxrun/logs
	LogDir string `toml:"log_dir" json:"log_dir"`
	// LogMaxSizeMB rotates the server log past this size
	LogMaxSizeMB int `toml:"log_max_size_mb" json:"log_max_size_mb"`
	// LogMaxBackups keeps this many rotated logs
	LogMaxBackups int `toml:"log_max_backups" json:"log_max_backups"`
	// LogMaxAgeDays deletes rotated logs older than this
	LogMaxAgeDays int `toml:"log_max_age_days" json:"log_max_age_days"`
	// LogCompress gzips rotated logs
	LogCompress bool `toml:"log_compress" json:"log_compress"`
	// AutoRestart relaunches the server if it dies in daemon mode
	AutoRestart bool `toml:"auto_restart" json:"auto_restart"`
	// RestartMaxRetries caps consecutive restart attempts
	RestartMaxRetries int `toml:"restart_max_retries" json:"restart_max_retries"`
	// RestartBackoffSecs is the pause between restart attempts
	RestartBackoffSecs int `toml:"restart_backoff_secs" json:"restart_backoff_secs"`
}

// VoicesConfig controls the speaker library index.
type VoicesConfig struct {
	// WatchEnabled keeps the index synced while the monitor runs
	WatchEnabled bool `toml:"watch_enabled" json:"watch_enabled"`
	// WatchDebounceMs coalesces bursts of file events
	WatchDebounceMs int `toml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// BenchConfig controls synthesis benchmarks.
type BenchConfig struct {
	// Language is the synthesis language for benchmark phrases
	Language string `toml:"language" json:"language"`
	// Speaker is the voice used for benchmarks, empty picks the first
	Speaker string `toml:"speaker" json:"speaker"`
	// TimeoutSecs bounds one benchmark synthesis call
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			Python:               "python",
			Module:               "xtts_api_server",
			Host:                 "0.0.0.0",
			Port:                 8020,
			SpeakersFolder:       "speakers/",
			ModelsFolder:         "models/",
			OutputFolder:         "",
			ModelSource:          "api",
			ModelVersion:         "",
			Device:               "auto",
			DeepSpeed:            "auto",
			Listen:               true,
			UseCache:             true,
			StreamingModeImprove: true,
			LowVram:              false,
		},

		Probe: ProbeConfig{
			TimeoutSecs:   60,
			WarnOnFailure: true,
		},

		Daemon: DaemonConfig{
			LogDir:             "",
			LogMaxSizeMB:       10,
			LogMaxBackups:      3,
			LogMaxAgeDays:      28,
			LogCompress:        true,
			AutoRestart:        false,
			RestartMaxRetries:  5,
			RestartBackoffSecs: 5,
		},

		Voices: VoicesConfig{
			WatchEnabled:    false,
			WatchDebounceMs: 500,
		},

		Bench: BenchConfig{
			Language:    "en",
			Speaker:     "",
			TimeoutSecs: 120,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the voxrun configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".voxrun"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	cfg, err := finishLoad(cfg)
	if err != nil {
		return nil, err
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad applies env overrides, migration, and validation to a loaded config.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Server
	if cfg.Server.Python == "" {
		cfg.Server.Python = defaults.Server.Python
	}
	if cfg.Server.Module == "" {
		cfg.Server.Module = defaults.Server.Module
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.SpeakersFolder == "" {
		cfg.Server.SpeakersFolder = defaults.Server.SpeakersFolder
	}
	if cfg.Server.ModelsFolder == "" {
		cfg.Server.ModelsFolder = defaults.Server.ModelsFolder
	}
	if cfg.Server.ModelSource == "" {
		cfg.Server.ModelSource = defaults.Server.ModelSource
	}
	if cfg.Server.Device == "" {
		cfg.Server.Device = defaults.Server.Device
	}
	if cfg.Server.DeepSpeed == "" {
		cfg.Server.DeepSpeed = defaults.Server.DeepSpeed
	}

	// Probe
	if cfg.Probe.TimeoutSecs == 0 {
		cfg.Probe.TimeoutSecs = defaults.Probe.TimeoutSecs
	}

	// Daemon
	if cfg.Daemon.LogMaxSizeMB == 0 {
		cfg.Daemon.LogMaxSizeMB = defaults.Daemon.LogMaxSizeMB
	}
	if cfg.Daemon.LogMaxBackups == 0 {
		cfg.Daemon.LogMaxBackups = defaults.Daemon.LogMaxBackups
	}
	if cfg.Daemon.LogMaxAgeDays == 0 {
		cfg.Daemon.LogMaxAgeDays = defaults.Daemon.LogMaxAgeDays
	}
	if cfg.Daemon.RestartMaxRetries == 0 {
		cfg.Daemon.RestartMaxRetries = defaults.Daemon.RestartMaxRetries
	}
	if cfg.Daemon.RestartBackoffSecs == 0 {
		cfg.Daemon.RestartBackoffSecs = defaults.Daemon.RestartBackoffSecs
	}

	// Voices
	if cfg.Voices.WatchDebounceMs == 0 {
		cfg.Voices.WatchDebounceMs = defaults.Voices.WatchDebounceMs
	}

	// Bench
	if cfg.Bench.Language == "" {
		cfg.Bench.Language = defaults.Bench.Language
	}
	if cfg.Bench.TimeoutSecs == 0 {
		cfg.Bench.TimeoutSecs = defaults.Bench.TimeoutSecs
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	fmt.Fprintln(file, "# voxrun configuration file")
	fmt.Fprintln(file, "# Generated by voxrun - edit with care")
	fmt.Fprintln(file, "#")
	fmt.Fprintln(file, "# Documentation: https://github.com/jeranaias/voxrun")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Server settings
	if c.Server.Python == "" {
		errs = append(errs, ValidationError{
			Field:   "server.python",
			Message: "interpreter cannot be empty",
		})
	}
	if c.Server.Module == "" {
		errs = append(errs, ValidationError{
			Field:   "server.module",
			Message: "server module cannot be empty",
		})
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be 1-65535, got %d", c.Server.Port),
		})
	}

	validDevices := map[string]bool{"auto": true, "cuda": true, "cpu": true}
	if !validDevices[strings.ToLower(c.Server.Device)] {
		errs = append(errs, ValidationError{
			Field:   "server.device",
			Message: fmt.Sprintf("invalid device '%s', must be one of: auto, cuda, cpu", c.Server.Device),
		})
	}

	validDeepSpeed := map[string]bool{"auto": true, "on": true, "off": true}
	if !validDeepSpeed[strings.ToLower(c.Server.DeepSpeed)] {
		errs = append(errs, ValidationError{
			Field:   "server.deepspeed",
			Message: fmt.Sprintf("invalid deepspeed policy '%s', must be one of: auto, on, off", c.Server.DeepSpeed),
		})
	}

	validSources := map[string]bool{"api": true, "apimanual": true, "local": true}
	if !validSources[strings.ToLower(c.Server.ModelSource)] {
		errs = append(errs, ValidationError{
			Field:   "server.model_source",
			Message: fmt.Sprintf("invalid model source '%s', must be one of: api, apiManual, local", c.Server.ModelSource),
		})
	}

	if c.Server.SpeakersFolder == "" {
		errs = append(errs, ValidationError{
			Field:   "server.speakers_folder",
			Message: "speakers folder cannot be empty",
		})
	}
	if c.Server.ModelsFolder == "" {
		errs = append(errs, ValidationError{
			Field:   "server.models_folder",
			Message: "models folder cannot be empty",
		})
	}

	// Probe settings
	if c.Probe.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "probe.timeout_secs",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.Probe.TimeoutSecs),
		})
	}

	// Daemon settings
	if c.Daemon.LogMaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "daemon.log_max_size_mb",
			Message: fmt.Sprintf("log size must be at least 1 MB, got %d", c.Daemon.LogMaxSizeMB),
		})
	}
	if c.Daemon.RestartMaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "daemon.restart_max_retries",
			Message: "restart retries cannot be negative",
		})
	}

	// Bench settings
	if c.Bench.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "bench.timeout_secs",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.Bench.TimeoutSecs),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// MIGRATION
// =============================================================================

// Migrate normalizes values written by older voxrun versions or by hand.
func (c *Config) Migrate() error {
	// Early releases accepted "gpu" as a device name.
	if strings.EqualFold(c.Server.Device, "gpu") {
		c.Server.Device = "cuda"
	}
	c.Server.Device = strings.ToLower(c.Server.Device)
	c.Server.DeepSpeed = strings.ToLower(c.Server.DeepSpeed)

	// DeepSpeed was a boolean before the auto policy existed.
	switch c.Server.DeepSpeed {
	case "true", "1", "yes":
		c.Server.DeepSpeed = "on"
	case "false", "0", "no":
		c.Server.DeepSpeed = "off"
	}

	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies VOXRUN_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if python := os.Getenv("VOXRUN_PYTHON"); python != "" {
		c.Server.Python = python
	}
	if host := os.Getenv("VOXRUN_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("VOXRUN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if device := os.Getenv("VOXRUN_DEVICE"); device != "" {
		c.Server.Device = device
	}
	if deepspeed := os.Getenv("VOXRUN_DEEPSPEED"); deepspeed != "" {
		c.Server.DeepSpeed = deepspeed
	}
	if folder := os.Getenv("VOXRUN_SPEAKERS_FOLDER"); folder != "" {
		c.Server.SpeakersFolder = folder
	}
	if folder := os.Getenv("VOXRUN_MODELS_FOLDER"); folder != "" {
		c.Server.ModelsFolder = folder
	}
	if source := os.Getenv("VOXRUN_MODEL_SOURCE"); source != "" {
		c.Server.ModelSource = source
	}
	if restart := os.Getenv("VOXRUN_AUTO_RESTART"); restart != "" {
		c.Daemon.AutoRestart = restart == "1" || strings.ToLower(restart) == "true"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.port").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "server.port").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// Handle string input with type conversion
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.EqualFold(strVal, "true") || strings.EqualFold(strVal, "yes")
			field.SetBool(boolVal)
			return nil
		}
	}

	// Direct assignment for matching types
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	// Type conversion for compatible types
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.python",
		"server.module",
		"server.host",
		"server.port",
		"server.speakers_folder",
		"server.models_folder",
		"server.output_folder",
		"server.model_source",
		"server.model_version",
		"server.device",
		"server.deepspeed",
		"server.listen",
		"server.use_cache",
		"server.streaming_mode_improve",
		"server.lowvram",
		"probe.timeout_secs",
		"probe.warn_on_failure",
		"daemon.log_dir",
		"daemon.log_max_size_mb",
		"daemon.log_max_backups",
		"daemon.log_max_age_days",
		"daemon.log_compress",
		"daemon.auto_restart",
		"daemon.restart_max_retries",
		"daemon.restart_backoff_secs",
		"voices.watch_enabled",
		"voices.watch_debounce_ms",
		"bench.language",
		"bench.speaker",
		"bench.timeout_secs",
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.ExtraArgs != nil {
		clone.Server.ExtraArgs = make([]string, len(c.Server.ExtraArgs))
		copy(clone.Server.ExtraArgs, c.Server.ExtraArgs)
	}
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
