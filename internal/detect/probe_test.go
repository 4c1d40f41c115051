// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// stubProbe swaps the probe runner for the duration of one test.
func stubProbe(t *testing.T, fn func(ctx context.Context, python string) (string, string, error)) {
	t.Helper()
	orig := runProbe
	runProbe = fn
	t.Cleanup(func() { runProbe = orig })
}

// =============================================================================
// DECISION RULE TESTS
// =============================================================================

func TestProbeCUDA_Decision(t *testing.T) {
	tests := []struct {
		name          string
		stdout        string
		stderr        string
		err           error
		wantAvailable bool
	}{
		{
			name:          "true with trailing newline",
			stdout:        "True\n",
			wantAvailable: true,
		},
		{
			name:          "false with trailing newline",
			stdout:        "False\n",
			wantAvailable: false,
		},
		{
			name:          "empty output from crashed probe",
			stdout:        "",
			err:           errors.New("exec: \"python\": executable file not found in $PATH"),
			wantAvailable: false,
		},
		{
			name:          "true preceded by import warnings",
			stdout:        "UserWarning: pynvml deprecated\nTrue\n",
			wantAvailable: true,
		},
		{
			name:          "malformed output",
			stdout:        "Traceback (most recent call last):\n",
			wantAvailable: false,
		},
		{
			name:          "lowercase true does not match",
			stdout:        "true\n",
			wantAvailable: false,
		},
		{
			name:          "stderr true is ignored",
			stdout:        "False\n",
			stderr:        "driver says True but torch disagrees\n",
			wantAvailable: false,
		},
		{
			name:          "empty output without error",
			stdout:        "",
			wantAvailable: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
				return tc.stdout, tc.stderr, tc.err
			})

			res := ProbeCUDA(context.Background(), "python")
			if res.Available != tc.wantAvailable {
				t.Errorf("Available = %v, want %v (stdout %q)", res.Available, tc.wantAvailable, tc.stdout)
			}
		})
	}
}

func TestProbeCUDA_ErrorNeverSelectsGPU(t *testing.T) {
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		return "", "ModuleNotFoundError: No module named 'torch'", errors.New("exit status 1")
	})

	res := ProbeCUDA(context.Background(), "python")
	if res.Available {
		t.Error("probe error must fall back to CPU")
	}
	if !res.Failed() {
		t.Error("Failed() should report the probe error")
	}
	if res.Err == nil {
		t.Error("Err should be recorded for diagnostics")
	}
	if !strings.Contains(res.Stderr, "torch") {
		t.Errorf("Stderr not captured: %q", res.Stderr)
	}
}

func TestProbeCUDA_NonZeroExitStillMatchesStdout(t *testing.T) {
	// subprocess semantics: the decision reads captured stdout even when
	// the interpreter exits non-zero afterwards.
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		return "True\n", "", &exec.ExitError{ProcessState: &os.ProcessState{}}
	})

	res := ProbeCUDA(context.Background(), "python")
	if !res.Available {
		t.Error("stdout containing True should select GPU despite non-zero exit")
	}
	if !res.Failed() {
		t.Error("the non-zero exit should still be visible via Failed()")
	}
}

// =============================================================================
// INVOCATION TESTS
// =============================================================================

func TestProbeCUDA_DefaultsInterpreter(t *testing.T) {
	var gotPython string
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		gotPython = python
		return "False\n", "", nil
	})

	ProbeCUDA(context.Background(), "")
	if gotPython != "python" {
		t.Errorf("empty interpreter should default to python, got %q", gotPython)
	}

	ProbeCUDA(context.Background(), "python3")
	if gotPython != "python3" {
		t.Errorf("interpreter not passed through, got %q", gotPython)
	}
}

func TestProbeCUDA_AppliesDefaultTimeout(t *testing.T) {
	var hadDeadline bool
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		_, hadDeadline = ctx.Deadline()
		return "True\n", "", nil
	})

	ProbeCUDA(context.Background(), "python")
	if !hadDeadline {
		t.Error("probe should run under a deadline even when the caller sets none")
	}
}

func TestProbeCUDA_RecordsDurationAndOutput(t *testing.T) {
	stubProbe(t, func(ctx context.Context, python string) (string, string, error) {
		time.Sleep(5 * time.Millisecond)
		return "True\n", "", nil
	})

	res := ProbeCUDA(context.Background(), "python")
	if res.Duration <= 0 {
		t.Error("Duration should be measured")
	}
	if res.Output != "True" {
		t.Errorf("Output should be trimmed, got %q", res.Output)
	}
}

func TestProbeCUDA_MissingInterpreter(t *testing.T) {
	// Exercises the real runner: a nonexistent binary must degrade to CPU
	// with the error recorded, not panic or hang.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := ProbeCUDA(ctx, "voxrun-no-such-interpreter")
	if res.Available {
		t.Error("missing interpreter must select CPU")
	}
	if res.Err == nil {
		t.Error("missing interpreter should record an error")
	}
}

func TestProbeCommand(t *testing.T) {
	got := ProbeCommand("")
	want := []string{"python", "-c", ProbeScript}
	if len(got) != len(want) {
		t.Fatalf("ProbeCommand() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ProbeCommand()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := ProbeCommand("/opt/venv/bin/python"); got[0] != "/opt/venv/bin/python" {
		t.Errorf("interpreter not honored: %v", got)
	}
}

func TestProbeScript_PrintsCudaAvailability(t *testing.T) {
	// The script contract: import torch, print the boolean.
	if !strings.Contains(ProbeScript, "torch.cuda.is_available()") {
		t.Errorf("ProbeScript should query torch.cuda.is_available(), got %q", ProbeScript)
	}
	if !strings.Contains(ProbeScript, "print(") {
		t.Errorf("ProbeScript must print so stdout carries the answer, got %q", ProbeScript)
	}
}
