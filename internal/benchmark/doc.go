// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark provides synthesis benchmarking for voxrun.
//
// This package runs a standardized phrase suite against a running XTTS
// server to measure performance characteristics like synthesis latency,
// real-time factor, and throughput.
//
// # Key Types
//
//   - Runner: Benchmark runner with configurable phrase suites
//   - Result: Complete benchmark result with timing and metrics
//   - Comparison: Aggregated results across multiple speakers
//   - Phrase: Individual phrase definition
//
// # Usage
//
// Run a benchmark:
//
//	runner := benchmark.NewRunner(client, benchmark.DefaultOptions("calm"))
//	result, err := runner.Run(ctx)
//	fmt.Println(result.Summary())
//
// Compare speakers:
//
//	comparison, err := runner.RunComparison(ctx, []string{"calm", "newsreader"})
//	fmt.Println(comparison.ComparisonSummary())
//
// # Phrase Categories
//
//   - Latency: Shortest utterance the server will synthesize
//   - Speed: Single-sentence throughput
//   - Sustained: Paragraph-length generation across sentence splits
//   - Stress: Numbers, dates, and abbreviations for the normalizer
//
// # Metrics
//
// The headline figure is the real-time factor (RTF): synthesis seconds
// per second of audio produced. An RTF below 1.0 means the server
// generates speech faster than it plays.
package benchmark
