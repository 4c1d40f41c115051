// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// =============================================================================
// CUDA PROBE
// =============================================================================

// ProbeScript is the Python one-liner executed to test CUDA availability.
// It prints "True" on stdout when torch can reach a CUDA device.
const ProbeScript = "import torch; print(torch.cuda.is_available())"

// DefaultProbeTimeout bounds one probe run. Importing torch on a cold
// filesystem cache can take tens of seconds, so this is generous.
const DefaultProbeTimeout = 60 * time.Second

// cudaMarker is the substring searched for in probe stdout.
// torch.cuda.is_available() prints the Python booleans True or False.
const cudaMarker = "True"

// ProbeResult is the outcome of one CUDA probe run.
//
// Available is the only field the launch decision consumes. The rest exists
// so status, doctor, and launch history can show the operator what the probe
// actually said instead of falling back to CPU without a trace.
type ProbeResult struct {
	// Available is true when the probe's stdout contains "True".
	Available bool
	// Output is the probe's captured stdout, trimmed.
	Output string
	// Stderr is the probe's captured stderr, trimmed. Import tracebacks
	// land here when torch is missing or broken.
	Stderr string
	// Duration is how long the probe subprocess ran.
	Duration time.Duration
	// Err is the execution error, nil when the probe ran and exited zero.
	Err error
}

// Failed reports whether the probe itself had trouble running, as opposed
// to running cleanly and answering False.
func (r ProbeResult) Failed() bool {
	return r.Err != nil
}

// runProbe executes the probe interpreter and returns captured stdout,
// stderr, and the run error. Package-level so tests can substitute it.
var runProbe = defaultRunProbe

func defaultRunProbe(ctx context.Context, python string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, python, "-c", ProbeScript)
	// Pass the full environment through: CUDA_VISIBLE_DEVICES, venv paths,
	// and LD_LIBRARY_PATH all change the probe's answer.
	cmd.Env = os.Environ()

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// ProbeCUDA runs the CUDA availability probe with the given Python
// interpreter. An empty interpreter name defaults to "python".
// CANCELLATION: Context enables timeout and cancellation
//
// The decision rule is deliberately blunt: stdout containing the literal
// substring "True" selects CUDA, everything else selects CPU. A probe that
// cannot run at all (interpreter missing, timeout) also selects CPU with
// Err recorded, so a broken probe environment degrades to a working CPU
// server rather than a refusal to start.
//
// A probe that ran but exited non-zero still has its stdout matched. Torch
// import errors exit non-zero with an empty stdout, so they land on CPU
// through the same rule.
func ProbeCUDA(ctx context.Context, python string) ProbeResult {
	if python == "" {
		python = "python"
	}

	// Apply a default timeout if the caller didn't set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultProbeTimeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, err := runProbe(ctx, python)
	res := ProbeResult{
		Output:   strings.TrimSpace(stdout),
		Stderr:   strings.TrimSpace(stderr),
		Duration: time.Since(start),
		Err:      err,
	}

	// Match stdout only. Driver noise on stderr must not flip the decision.
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		res.Available = strings.Contains(stdout, cudaMarker)
	}
	return res
}

// ProbeCommand returns the argv the probe executes, for display in doctor
// and verbose output. An empty interpreter name defaults to "python".
func ProbeCommand(python string) []string {
	if python == "" {
		python = "python"
	}
	return []string{python, "-c", ProbeScript}
}
