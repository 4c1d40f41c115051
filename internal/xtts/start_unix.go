// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package xtts

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setForegroundAttrs puts the server in its own process group so a
// terminal Ctrl-C reaches voxrun first and is relayed once, not
// delivered to the server a second time by the terminal driver.
func setForegroundAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// setDetachedAttrs starts the child in a new session with no
// controlling terminal. Used for the daemon supervisor so it survives
// the launching shell.
func setDetachedAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// relayedSignals lists the signals the foreground launcher forwards to
// the server.
func relayedSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}

// forwardSignal delivers sig to the server's process group, falling
// back to the process itself when group delivery fails.
func forwardSignal(proc *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return proc.Signal(sig)
	}
	if err := syscall.Kill(-proc.Pid, s); err != nil {
		return proc.Signal(sig)
	}
	return nil
}

// gracefulStop asks the server to shut down cleanly.
func gracefulStop(proc *os.Process) error {
	return forwardSignal(proc, syscall.SIGTERM)
}

// exitStatus maps a finished process state to the launcher's exit code.
// Deaths by signal use the shell convention of 128 plus the signal
// number, so "killed by SIGKILL" surfaces as 137.
func exitStatus(ps *os.ProcessState) int {
	if ps == nil {
		return 1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	return 1
}

// processAlive reports whether pid refers to a live process. Signal 0
// probes existence without delivering anything; EPERM still means the
// process is there.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// terminatePID sends SIGTERM to an unrelated process, identified only
// by pid. Used to stop a daemon supervisor started by an earlier voxrun
// invocation.
func terminatePID(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// killPID forcibly ends an unrelated process.
func killPID(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
