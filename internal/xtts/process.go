// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/jeranaias/voxrun/internal/config"
)

// =============================================================================
// EXIT STATUS
// =============================================================================

// ServerExitError reports that the server process ended with a non-zero
// status. The launcher mirrors the code as its own exit status, so
// supervisors watching voxrun see exactly what the server reported.
type ServerExitError struct {
	Code int
}

func (e *ServerExitError) Error() string {
	return fmt.Sprintf("server exited with status %d", e.Code)
}

// serverExitError converts a Wait result into the error the launcher
// reports. Deaths by signal map to the shell convention of 128 plus the
// signal number on platforms that have signals.
func serverExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ServerExitError{Code: exitStatus(exitErr.ProcessState)}
	}
	return fmt.Errorf("failed waiting for XTTS server: %w", err)
}

// =============================================================================
// SERVER PROCESS
// =============================================================================

// ServerProcess is a started XTTS server child. The wait result is
// collected by a single goroutine; read it through Wait or Err after
// Done closes.
type ServerProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// PID returns the server's process id.
func (p *ServerProcess) PID() int {
	return p.cmd.Process.Pid
}

// Done closes when the server process has exited.
func (p *ServerProcess) Done() <-chan struct{} {
	return p.done
}

// Err returns the mapped exit result. Only valid after Done has closed;
// a clean zero exit returns nil.
func (p *ServerProcess) Err() error {
	return p.err
}

// Wait blocks until the server exits and returns the mapped result.
func (p *ServerProcess) Wait() error {
	<-p.done
	return p.err
}

// Signal relays sig to the server's process group.
func (p *ServerProcess) Signal(sig os.Signal) error {
	return forwardSignal(p.cmd.Process, sig)
}

// Terminate asks the server to shut down and kills it after the grace
// period if it has not exited.
func (p *ServerProcess) Terminate(grace time.Duration) error {
	_ = gracefulStop(p.cmd.Process)
	select {
	case <-p.done:
		return p.err
	case <-time.After(grace):
	}
	_ = p.cmd.Process.Kill()
	<-p.done
	return p.err
}

// =============================================================================
// LAUNCHER
// =============================================================================

// Launcher starts the XTTS server as a child process. The zero writers
// default to the launcher's own stdio, which is the foreground case;
// the daemon supervisor points them at a rotated log instead.
type Launcher struct {
	Config config.ServerConfig
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// NewLauncher returns a launcher wired to the current process stdio.
func NewLauncher(cfg config.ServerConfig) *Launcher {
	return &Launcher{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
	}
}

// Start launches the server with the given profile and returns without
// waiting. The server lands in its own process group so signals can be
// relayed deliberately rather than delivered twice by the terminal.
func (l *Launcher) Start(profile Profile) (*ServerProcess, error) {
	args := BuildArgs(l.Config, profile)
	cmd := exec.Command(l.Config.Python, args...)

	// CRITICAL: Pass environment variables to the child process.
	// The server needs PATH, the active virtualenv, and any CUDA
	// variables to find torch and the model caches.
	cmd.Env = os.Environ()
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Stdin = l.Stdin
	setForegroundAttrs(cmd)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("python interpreter %q not found in PATH: %w", l.Config.Python, err)
		}
		return nil, fmt.Errorf("failed to start XTTS server: %w", err)
	}

	proc := &ServerProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = serverExitError(cmd.Wait())
		close(proc.done)
	}()
	return proc, nil
}

// Run launches the server and blocks until it exits. Interrupt and
// terminate signals received by voxrun are relayed to the server, which
// decides when to exit. A non-zero server exit comes back as
// *ServerExitError; context cancellation terminates the server and
// returns the context's error.
func (l *Launcher) Run(ctx context.Context, profile Profile) error {
	proc, err := l.Start(profile)
	if err != nil {
		return err
	}
	return WaitRelayed(ctx, proc)
}

// WaitRelayed blocks until the started server exits, relaying interrupt
// and terminate signals to it. Callers that need the PID between Start
// and the wait use this instead of Run.
func WaitRelayed(ctx context.Context, proc *ServerProcess) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, relayedSignals()...)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			_ = proc.Signal(sig)
		case <-ctx.Done():
			_ = proc.Terminate(10 * time.Second)
			return ctx.Err()
		case <-proc.Done():
			return proc.Err()
		}
	}
}
