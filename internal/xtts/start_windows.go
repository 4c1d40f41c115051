// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package xtts

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// setForegroundAttrs gives the server its own console process group so
// Ctrl-C events are relayed by voxrun instead of hitting both
// processes.
func setForegroundAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// setDetachedAttrs starts the child with no console window and detached
// from the launching console, for the daemon supervisor.
func setDetachedAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW | windows.DETACHED_PROCESS,
	}
}

// relayedSignals lists the signals the foreground launcher forwards to
// the server. Windows only delivers interrupt.
func relayedSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// forwardSignal has no graceful delivery path on Windows; an interrupt
// ends the server outright.
func forwardSignal(proc *os.Process, sig os.Signal) error {
	return proc.Kill()
}

func gracefulStop(proc *os.Process) error {
	return proc.Kill()
}

// exitStatus maps a finished process state to the launcher's exit code.
func exitStatus(ps *os.ProcessState) int {
	if ps == nil {
		return 1
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	return 1
}

// processAlive reports whether pid refers to a live process.
// FindProcess opens a real handle on Windows, so it fails for dead
// pids; a zero signal on a live handle reports "not supported" rather
// than ErrProcessDone.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return !errors.Is(err, os.ErrProcessDone)
}

// terminatePID ends an unrelated process identified only by pid. There
// is no polite termination for a detached process on Windows.
func terminatePID(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

func killPID(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
