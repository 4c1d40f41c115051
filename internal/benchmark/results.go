// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark provides synthesis benchmarking for voxrun.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result contains the complete benchmark results for a speaker.
type Result struct {
	Speaker        string        `json:"speaker"`
	Language       string        `json:"language"`
	ServerURL      string        `json:"server_url"`
	Iterations     int           `json:"iterations"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	Tests          []TestResult  `json:"tests"`
	AvgLatency     time.Duration `json:"avg_latency"`
	AvgRTF         float64       `json:"avg_rtf"`
	AvgCharsPerSec float64       `json:"avg_chars_per_sec"`
	TotalAudio     time.Duration `json:"total_audio"`
	PassedTests    int           `json:"passed_tests"`
	FailedTests    int           `json:"failed_tests"`
}

// TestResult contains the result of a single phrase.
type TestResult struct {
	Name          string        `json:"name"`
	Type          PhraseType    `json:"type"`
	Status        TestStatus    `json:"status"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	Iterations    int           `json:"iterations"`
	Latency       time.Duration `json:"latency"`        // Mean synthesis wall time
	BestLatency   time.Duration `json:"best_latency"`   // Fastest iteration
	AudioDuration time.Duration `json:"audio_duration"` // Mean decoded audio length
	TotalAudio    time.Duration `json:"total_audio"`
	AudioBytes    int64         `json:"audio_bytes"`
	RTF           float64       `json:"rtf"`           // Synthesis time / audio time
	CharsPerSec   float64       `json:"chars_per_sec"` // Input throughput
	QualityScore  float64       `json:"quality_score"` // 0-100
	Error         string        `json:"error,omitempty"`
}

// TestStatus indicates the outcome of a phrase.
type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusRunning TestStatus = "running"
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
)

// Comparison holds results from comparing multiple speakers.
type Comparison struct {
	Speakers  []string           `json:"speakers"`
	Results   map[string]*Result `json:"results"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Duration  time.Duration      `json:"duration"`
}

// =============================================================================
// RESULT STORAGE
// =============================================================================

// Storage handles saving and loading benchmark results.
type Storage struct {
	dir string
}

// NewStorage creates a new storage instance.
// By default, results are stored in ~/.voxrun/benchmarks/
func NewStorage() (*Storage, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}

	benchmarkDir := filepath.Join(configDir, "benchmarks")
	if err := os.MkdirAll(benchmarkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create benchmark directory: %w", err)
	}

	return &Storage{dir: benchmarkDir}, nil
}

// NewStorageWithDir creates a storage instance with a custom directory.
func NewStorageWithDir(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save saves a benchmark result to disk.
func (s *Storage) Save(result *Result) error {
	// Generate filename with timestamp and speaker name
	timestamp := time.Now().Format("20060102-150405.000")
	filename := fmt.Sprintf("%s_%s.json", sanitizeFilename(result.Speaker), timestamp)
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}

// SaveComparison saves a speaker comparison to disk.
func (s *Storage) SaveComparison(comparison *Comparison) error {
	timestamp := time.Now().Format("20060102-150405.000")
	filename := fmt.Sprintf("comparison_%s.json", timestamp)
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(comparison, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparison: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}

	return nil
}

// Load loads a benchmark result from disk.
func (s *Storage) Load(filename string) (*Result, error) {
	path := filepath.Join(s.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// LoadComparison loads a comparison from disk.
func (s *Storage) LoadComparison(filename string) (*Comparison, error) {
	path := filepath.Join(s.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read comparison: %w", err)
	}

	var comparison Comparison
	if err := json.Unmarshal(data, &comparison); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comparison: %w", err)
	}

	return &comparison, nil
}

// List returns all benchmark result files.
func (s *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			files = append(files, entry.Name())
		}
	}

	// Sort by modification time (newest first)
	sort.Slice(files, func(i, j int) bool {
		infoI, errI := os.Stat(filepath.Join(s.dir, files[i]))
		infoJ, errJ := os.Stat(filepath.Join(s.dir, files[j]))
		if errI != nil || errJ != nil {
			return false // Keep original order if error
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return files, nil
}

// GetLatestForSpeaker returns the most recent result for a speaker.
func (s *Storage) GetLatestForSpeaker(speaker string) (*Result, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	// Find the first file that matches the speaker name
	sanitized := sanitizeFilename(speaker)
	for _, file := range files {
		if strings.HasPrefix(file, sanitized+"_") {
			return s.Load(file)
		}
	}

	return nil, fmt.Errorf("no results found for speaker: %s", speaker)
}

// sanitizeFilename removes characters that aren't safe for filenames.
func sanitizeFilename(name string) string {
	replacements := map[rune]rune{
		':':  '_',
		'/':  '_',
		'\\': '_',
		' ':  '_',
		'*':  '_',
		'?':  '_',
		'<':  '_',
		'>':  '_',
		'|':  '_',
		'"':  '_',
	}

	result := make([]rune, 0, len(name))
	for _, r := range name {
		if replacement, ok := replacements[r]; ok {
			result = append(result, replacement)
		} else {
			result = append(result, r)
		}
	}

	return string(result)
}

// =============================================================================
// RESULT ANALYSIS
// =============================================================================

// GetBestSpeaker returns the speaker with the best overall performance.
// Speed and latency dominate; the audio check breaks ties.
func (c *Comparison) GetBestSpeaker() (string, *Result) {
	var bestSpeaker string
	var bestResult *Result
	var bestScore float64

	for speaker, result := range c.Results {
		score := 0.0

		if result.AvgRTF > 0 {
			// Lower is better, so invert
			score += (1.0 / result.AvgRTF) * 0.4
		}

		if result.AvgLatency > 0 {
			score += (1000.0 / float64(result.AvgLatency.Milliseconds())) * 0.4
		}

		score += avgQuality(result) * 0.002 // 0-100 scaled to 0-0.2

		if score > bestScore {
			bestScore = score
			bestSpeaker = speaker
			bestResult = result
		}
	}

	return bestSpeaker, bestResult
}

// GetFastestSpeaker returns the speaker with the lowest real-time factor.
func (c *Comparison) GetFastestSpeaker() (string, *Result) {
	var fastest string
	var fastestResult *Result
	lowestRTF := -1.0

	for speaker, result := range c.Results {
		if result.AvgRTF > 0 && (lowestRTF < 0 || result.AvgRTF < lowestRTF) {
			lowestRTF = result.AvgRTF
			fastest = speaker
			fastestResult = result
		}
	}

	return fastest, fastestResult
}

// GetLowestLatencySpeaker returns the speaker with the lowest mean latency.
func (c *Comparison) GetLowestLatencySpeaker() (string, *Result) {
	var lowest string
	var lowestResult *Result
	var lowestLatency time.Duration = time.Hour * 24 // Start with a very high value

	for speaker, result := range c.Results {
		if result.AvgLatency > 0 && result.AvgLatency < lowestLatency {
			lowestLatency = result.AvgLatency
			lowest = speaker
			lowestResult = result
		}
	}

	return lowest, lowestResult
}

// avgQuality averages the audio check scores of passed tests.
func avgQuality(r *Result) float64 {
	var total float64
	var count int
	for _, test := range r.Tests {
		if test.Status == TestStatusPassed {
			total += test.QualityScore
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// =============================================================================
// SUMMARY GENERATION
// =============================================================================

// Summary returns a text summary of the benchmark result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Speaker: %s\n"+
			"Duration: %s\n"+
			"Phrases: %d passed, %d failed\n"+
			"Avg Latency: %s\n"+
			"Avg RTF: %s\n"+
			"Throughput: %s\n"+
			"Audio Generated: %s",
		r.Speaker,
		FormatDuration(r.Duration),
		r.PassedTests,
		r.FailedTests,
		FormatLatency(r.AvgLatency),
		FormatRTF(r.AvgRTF),
		FormatCharsPerSec(r.AvgCharsPerSec),
		FormatDuration(r.TotalAudio),
	)
}

// ComparisonSummary returns a text summary of the speaker comparison.
func (c *Comparison) ComparisonSummary() string {
	best, bestResult := c.GetBestSpeaker()
	fastest, fastestResult := c.GetFastestSpeaker()
	lowestLatency, lowestLatencyResult := c.GetLowestLatencySpeaker()

	summary := fmt.Sprintf("Benchmark Comparison Summary\n")
	summary += fmt.Sprintf("Speakers tested: %d\n", len(c.Speakers))
	summary += fmt.Sprintf("Total duration: %s\n\n", FormatDuration(c.Duration))

	if bestResult != nil {
		summary += fmt.Sprintf("Best Overall: %s (RTF: %s, Latency: %s)\n",
			best,
			FormatRTF(bestResult.AvgRTF),
			FormatLatency(bestResult.AvgLatency))
	}

	if fastestResult != nil {
		summary += fmt.Sprintf("Fastest: %s (%s)\n",
			fastest,
			FormatRTF(fastestResult.AvgRTF))
	}

	if lowestLatencyResult != nil {
		summary += fmt.Sprintf("Lowest Latency: %s (%s)\n",
			lowestLatency,
			FormatLatency(lowestLatencyResult.AvgLatency))
	}

	return summary
}
