// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package xtts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/util"
)

// =============================================================================
// DAEMON STATE
// =============================================================================

// DaemonCommand is the hidden argv[1] that invokes the supervisor entry
// point in a re-executed copy of voxrun.
const DaemonCommand = "__daemon"

// daemonStartTimeout bounds how long the parent waits for the
// supervisor to probe CUDA and record its state. A cold Python
// environment can take most of a minute to import torch.
const daemonStartTimeout = 90 * time.Second

// Sentinel errors for daemon lifecycle calls.
var (
	// ErrDaemonRunning indicates a live supervisor already holds the
	// state file.
	ErrDaemonRunning = errors.New("daemon already running")

	// ErrDaemonNotRunning indicates there is no live supervisor to act
	// on.
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// DaemonState is the record a running supervisor maintains in
// ~/.voxrun/daemon.json. It is the only channel between the detached
// supervisor and later voxrun invocations.
type DaemonState struct {
	SupervisorPID int       `json:"supervisor_pid"`
	ServerPID     int       `json:"server_pid"`
	Device        string    `json:"device"`
	DeepSpeed     bool      `json:"deepspeed"`
	StartedAt     time.Time `json:"started_at"`
	LogFile       string    `json:"log_file"`
	Restarts      int       `json:"restarts"`
}

// Alive reports whether the supervisor behind the state is still
// running. A state file whose supervisor died is stale.
func (s *DaemonState) Alive() bool {
	return s != nil && processAlive(s.SupervisorPID)
}

// Profile reconstructs the launch profile the supervisor recorded.
func (s *DaemonState) Profile() Profile {
	return Profile{Device: Device(s.Device), DeepSpeed: s.DeepSpeed}
}

// DaemonStatePath returns the location of the daemon state file.
func DaemonStatePath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.json"), nil
}

// LoadDaemonState reads the state file. A missing file is not an
// error; it returns (nil, nil).
func LoadDaemonState() (*DaemonState, error) {
	path, err := DaemonStatePath()
	if err != nil {
		return nil, err
	}
	return loadDaemonStateFrom(path)
}

func loadDaemonStateFrom(path string) (*DaemonState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read daemon state: %w", err)
	}
	var state DaemonState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse daemon state: %w", err)
	}
	return &state, nil
}

func saveDaemonStateTo(path string, state *DaemonState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode daemon state: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0644)
}

func removeDaemonStateAt(path string) {
	_ = os.Remove(path)
}

// =============================================================================
// PARENT SIDE
// =============================================================================

// StartDaemon re-executes voxrun as a detached supervisor and waits
// until it has probed CUDA, chosen a profile, and recorded the state
// file. The returned state carries the chosen profile so the caller
// can print it. Progress is written to out while the probe runs.
func StartDaemon(ctx context.Context, out io.Writer) (*DaemonState, error) {
	if st, err := LoadDaemonState(); err == nil && st.Alive() {
		return st, ErrDaemonRunning
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot locate voxrun executable: %w", err)
	}

	cmd := exec.Command(exe, DaemonCommand)
	cmd.Env = os.Environ()
	setDetachedAttrs(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}
	supervisorPID := cmd.Process.Pid
	// Let the supervisor outlive this process.
	_ = cmd.Process.Release()

	start := time.Now()
	deadline := start.Add(daemonStartTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}

		st, err := LoadDaemonState()
		if err == nil && st != nil && st.SupervisorPID == supervisorPID {
			if out != nil {
				fmt.Fprintf(out, "\r%60s\r", "")
			}
			return st, nil
		}
		if !processAlive(supervisorPID) {
			if out != nil {
				fmt.Fprintln(out)
			}
			return nil, errors.New("daemon exited before becoming ready, check the server log")
		}
		if out != nil {
			fmt.Fprintf(out, "\rStarting voxrun daemon... %.1fs elapsed", time.Since(start).Seconds())
		}
	}
	return nil, errors.New("timed out waiting for the daemon to start")
}

// =============================================================================
// SUPERVISOR SIDE
// =============================================================================

// openDaemonLog opens the rotated log file that receives everything
// the server writes plus the supervisor's own lines.
func openDaemonLog(dc config.DaemonConfig) (io.WriteCloser, string, error) {
	dir := dc.LogDir
	if dir == "" {
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return nil, "", err
		}
		dir = filepath.Join(cfgDir, "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "server.log")
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    dc.LogMaxSizeMB,
		MaxBackups: dc.LogMaxBackups,
		MaxAge:     dc.LogMaxAgeDays,
		Compress:   dc.LogCompress,
	}, path, nil
}

// RunSupervisor is the body of the hidden daemon command, executing in
// the detached child. It records the launch in the state file, pipes
// server output to a rotated log, restarts the server per the
// configured policy, and tears everything down on the first terminate
// signal. The return value becomes the supervisor's exit code.
func RunSupervisor(cfg *config.Config, dec Decision) int {
	statePath, err := DaemonStatePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxrun daemon: %v\n", err)
		return 1
	}
	logW, logPath, err := openDaemonLog(cfg.Daemon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxrun daemon: %v\n", err)
		return 1
	}
	defer logW.Close()

	logf := func(format string, args ...any) {
		fmt.Fprintf(logW, "[voxrun] %s %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	}

	logf("daemon starting, profile %s", dec.Profile)
	if dec.Probed && dec.Probe.Failed() {
		logf("cuda probe failed, running on CPU: %v", dec.Probe.Err)
	}

	launcher := &Launcher{Config: cfg.Server, Stdout: logW, Stderr: logW}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, relayedSignals()...)
	defer signal.Stop(sigCh)

	state := &DaemonState{
		SupervisorPID: os.Getpid(),
		Device:        string(dec.Profile.Device),
		DeepSpeed:     dec.Profile.DeepSpeed,
		StartedAt:     time.Now().UTC(),
		LogFile:       logPath,
	}

	backoff := time.Duration(cfg.Daemon.RestartBackoffSecs) * time.Second
	retries := 0
	exitCode := 0

	for {
		proc, err := launcher.Start(dec.Profile)
		if err != nil {
			logf("failed to start server: %v", err)
			exitCode = 1
			break
		}
		state.ServerPID = proc.PID()
		if err := saveDaemonStateTo(statePath, state); err != nil {
			logf("failed to write state file: %v", err)
		}
		logf("server started, pid %d", proc.PID())

		select {
		case <-sigCh:
			logf("shutdown requested, stopping server")
			err := proc.Terminate(15 * time.Second)
			var exitErr *ServerExitError
			if err != nil && !errors.As(err, &exitErr) {
				logf("server stop: %v", err)
			}
			removeDaemonStateAt(statePath)
			logf("daemon stopped")
			return 0
		case <-proc.Done():
		}

		err = proc.Err()
		if err == nil {
			logf("server exited cleanly")
			break
		}
		var exitErr *ServerExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.Code
			logf("server exited with status %d", exitErr.Code)
		} else {
			exitCode = 1
			logf("server wait failed: %v", err)
		}

		if !cfg.Daemon.AutoRestart || retries >= cfg.Daemon.RestartMaxRetries {
			break
		}
		retries++
		state.Restarts = retries
		logf("restarting server in %s (attempt %d of %d)", backoff, retries, cfg.Daemon.RestartMaxRetries)
		select {
		case <-sigCh:
			removeDaemonStateAt(statePath)
			logf("daemon stopped during restart wait")
			return 0
		case <-time.After(backoff):
		}
	}

	removeDaemonStateAt(statePath)
	return exitCode
}

// =============================================================================
// STOP AND STATUS
// =============================================================================

// StopDaemon signals a running supervisor and waits for it to clean up
// after itself. A stale state file left by a crashed daemon is removed
// and reported as not running.
func StopDaemon(timeout time.Duration) (*DaemonState, error) {
	path, err := DaemonStatePath()
	if err != nil {
		return nil, err
	}
	st, err := loadDaemonStateFrom(path)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrDaemonNotRunning
	}
	if !st.Alive() {
		removeDaemonStateAt(path)
		return st, ErrDaemonNotRunning
	}

	if err := terminatePID(st.SupervisorPID); err != nil {
		return st, fmt.Errorf("failed to signal daemon: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(st.SupervisorPID) {
			return st, nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	// The supervisor ignored the request. Take its server down with it
	// so nothing keeps the port.
	_ = killPID(st.SupervisorPID)
	if st.ServerPID > 0 && processAlive(st.ServerPID) {
		_ = killPID(st.ServerPID)
	}
	removeDaemonStateAt(path)
	return st, nil
}

// DaemonStatus loads the state file and reports whether the supervisor
// behind it is alive.
func DaemonStatus() (*DaemonState, bool, error) {
	st, err := LoadDaemonState()
	if err != nil {
		return nil, false, err
	}
	if st == nil {
		return nil, false, nil
	}
	return st, st.Alive(), nil
}
