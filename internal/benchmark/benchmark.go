// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark provides synthesis benchmarking for voxrun.
package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/voxrun/internal/voices"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// =============================================================================
// BENCHMARK RUNNER
// =============================================================================

// Runner executes the phrase suite against a running server.
// Note: Runner is not thread-safe and should not be used concurrently
// from multiple goroutines.
type Runner struct {
	client  *xtts.Client
	opts    Options
	limiter *rate.Limiter
}

// Options controls a benchmark run.
type Options struct {
	// Speaker is the reference voice, as the server knows it
	Speaker string

	// Language for synthesis (defaults to "en")
	Language string

	// Iterations per phrase (defaults to 3)
	Iterations int

	// Warmup runs one unrecorded synthesis first. The first request
	// after a model load pays the load cost and would skew latency.
	Warmup bool

	// Pace caps requests per second against the server. Zero means
	// no pacing.
	Pace float64
}

// DefaultOptions returns the standard benchmark options.
func DefaultOptions(speaker string) Options {
	return Options{
		Speaker:    speaker,
		Language:   "en",
		Iterations: 3,
		Warmup:     true,
		Pace:       2,
	}
}

// NewRunner creates a benchmark runner.
func NewRunner(client *xtts.Client, opts Options) *Runner {
	if opts.Iterations <= 0 {
		opts.Iterations = 3
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	r := &Runner{client: client, opts: opts}
	if opts.Pace > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.Pace), 1)
	}
	return r
}

// Run executes the full phrase suite. Failed phrases are recorded in
// the result; Run returns an error only when no phrase succeeded.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.RunSuite(ctx, GetStandardPhrases())
}

// RunSuite executes a specific phrase suite.
func (r *Runner) RunSuite(ctx context.Context, phrases []Phrase) (*Result, error) {
	result := &Result{
		Speaker:    r.opts.Speaker,
		Language:   r.opts.Language,
		ServerURL:  r.client.BaseURL(),
		Iterations: r.opts.Iterations,
		StartTime:  time.Now(),
		Tests:      make([]TestResult, 0, len(phrases)),
	}

	if r.opts.Warmup && len(phrases) > 0 {
		// Ignore the outcome; if the server is down every phrase
		// will record the failure anyway
		r.warmup(ctx, phrases[0])
	}

	for _, phrase := range phrases {
		testResult, err := r.runPhrase(ctx, phrase)
		if err != nil {
			// runPhrase returns a populated result carrying the
			// contextual error message; keep it and only fill gaps.
			if testResult.Name == "" {
				testResult.Name = phrase.Name
				testResult.Type = phrase.Type
			}
			testResult.Status = TestStatusFailed
			if testResult.Error == "" {
				testResult.Error = err.Error()
			}
		}
		result.Tests = append(result.Tests, testResult)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.computeAggregates()

	if result.PassedTests == 0 {
		return result, fmt.Errorf("no phrase synthesized successfully")
	}
	return result, nil
}

// warmup issues one throwaway synthesis so model load time stays out
// of the measurements.
func (r *Runner) warmup(ctx context.Context, phrase Phrase) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
	}
	req := xtts.TTSRequest{
		Text:       phrase.Text,
		SpeakerWav: r.opts.Speaker,
		Language:   r.phraseLanguage(phrase),
	}
	r.client.TTSToAudio(ctx, req)
}

// runPhrase synthesizes one phrase Iterations times and aggregates
// the timings.
func (r *Runner) runPhrase(ctx context.Context, phrase Phrase) (TestResult, error) {
	// Check for context cancellation before starting
	select {
	case <-ctx.Done():
		return TestResult{Name: phrase.Name, Status: TestStatusFailed, Error: "Context cancelled"}, ctx.Err()
	default:
	}

	if phrase.Text == "" {
		return TestResult{Name: phrase.Name, Status: TestStatusFailed, Error: "Empty phrase"}, fmt.Errorf("phrase text is empty")
	}

	testResult := TestResult{
		Name:       phrase.Name,
		Type:       phrase.Type,
		Status:     TestStatusRunning,
		Iterations: r.opts.Iterations,
		StartTime:  time.Now(),
	}

	req := xtts.TTSRequest{
		Text:       phrase.Text,
		SpeakerWav: r.opts.Speaker,
		Language:   r.phraseLanguage(phrase),
	}

	var totalSynth, totalAudio, best time.Duration
	var totalBytes int64
	var lastInfo voices.WavInfo

	for i := 0; i < r.opts.Iterations; i++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				testResult.Status = TestStatusFailed
				testResult.Error = err.Error()
				return testResult, err
			}
		}

		start := time.Now()
		audio, err := r.client.TTSToAudio(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			testResult.Status = TestStatusFailed
			testResult.Error = err.Error()
			return testResult, err
		}

		info, err := voices.ParseWav(bytes.NewReader(audio))
		if err != nil {
			testResult.Status = TestStatusFailed
			testResult.Error = fmt.Sprintf("server returned unparseable audio: %v", err)
			return testResult, err
		}

		totalSynth += elapsed
		totalAudio += info.Duration
		totalBytes += int64(len(audio))
		lastInfo = info
		if best == 0 || elapsed < best {
			best = elapsed
		}
	}

	testResult.EndTime = time.Now()
	testResult.Duration = testResult.EndTime.Sub(testResult.StartTime)
	testResult.Latency = totalSynth / time.Duration(r.opts.Iterations)
	testResult.BestLatency = best
	testResult.AudioDuration = totalAudio / time.Duration(r.opts.Iterations)
	testResult.TotalAudio = totalAudio
	testResult.AudioBytes = totalBytes

	// Real-time factor: synthesis seconds per second of audio.
	// Below 1.0 the server outruns playback.
	if totalAudio > 0 {
		testResult.RTF = totalSynth.Seconds() / totalAudio.Seconds()
	}
	if totalSynth > 0 {
		chars := len(phrase.Text) * r.opts.Iterations
		testResult.CharsPerSec = float64(chars) / totalSynth.Seconds()
	}

	if phrase.Check != nil {
		testResult.QualityScore = phrase.Check(lastInfo, phrase.Text)
	}

	testResult.Status = TestStatusPassed
	return testResult, nil
}

func (r *Runner) phraseLanguage(phrase Phrase) string {
	if phrase.Language != "" {
		return phrase.Language
	}
	return r.opts.Language
}

// RunComparison benchmarks several speakers and compares them.
// Returns a comparison even if individual speakers fail. Returns an
// error only if all speakers fail to run.
func (r *Runner) RunComparison(ctx context.Context, speakers []string) (*Comparison, error) {
	comparison := &Comparison{
		Speakers:  make([]string, len(speakers)),
		Results:   make(map[string]*Result),
		StartTime: time.Now(),
	}

	copy(comparison.Speakers, speakers)

	successCount := 0
	for _, speaker := range speakers {
		runner := NewRunner(r.client, Options{
			Speaker:    speaker,
			Language:   r.opts.Language,
			Iterations: r.opts.Iterations,
			Warmup:     r.opts.Warmup,
			Pace:       r.opts.Pace,
		})

		result, err := runner.Run(ctx)
		comparison.Results[speaker] = result
		if err == nil {
			successCount++
		}
	}

	comparison.EndTime = time.Now()
	comparison.Duration = comparison.EndTime.Sub(comparison.StartTime)

	if successCount == 0 {
		return comparison, fmt.Errorf("all speakers failed to run")
	}

	return comparison, nil
}

// =============================================================================
// RESULT COMPUTATION
// =============================================================================

// computeAggregates calculates aggregate metrics from individual tests.
func (r *Result) computeAggregates() {
	var totalLatency time.Duration
	var totalRTF, totalCps float64
	var latencyCount, rtfCount, cpsCount int

	for _, test := range r.Tests {
		if test.Status != TestStatusPassed {
			continue
		}

		if test.Latency > 0 {
			totalLatency += test.Latency
			latencyCount++
		}

		if test.RTF > 0 {
			totalRTF += test.RTF
			rtfCount++
		}

		if test.CharsPerSec > 0 {
			totalCps += test.CharsPerSec
			cpsCount++
		}

		r.TotalAudio += test.TotalAudio
	}

	if latencyCount > 0 {
		r.AvgLatency = totalLatency / time.Duration(latencyCount)
	}

	if rtfCount > 0 {
		r.AvgRTF = totalRTF / float64(rtfCount)
	}

	if cpsCount > 0 {
		r.AvgCharsPerSec = totalCps / float64(cpsCount)
	}

	// Count passed/failed tests
	for _, test := range r.Tests {
		if test.Status == TestStatusPassed {
			r.PassedTests++
		} else if test.Status == TestStatusFailed {
			r.FailedTests++
		}
	}
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// FormatRTF formats a real-time factor for display.
func FormatRTF(rtf float64) string {
	if rtf == 0 {
		return "N/A"
	}
	if rtf < 1 {
		return fmt.Sprintf("%.2fx (%.1fx faster than playback)", rtf, 1/rtf)
	}
	return fmt.Sprintf("%.2fx (slower than playback)", rtf)
}

// FormatLatency formats a synthesis latency for display.
func FormatLatency(d time.Duration) string {
	if d == 0 {
		return "N/A"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// FormatCharsPerSec formats synthesis throughput for display.
func FormatCharsPerSec(cps float64) string {
	if cps == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f chars/s", cps)
}

// FormatDuration formats duration for display.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "N/A"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
