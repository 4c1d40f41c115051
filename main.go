// voxrun - GPU-aware launcher for the XTTS API server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/voxrun/internal/cli"
	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/tui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdLaunch:
		// The core path: probe CUDA, pick a profile, start the server.
		// The server's exit status becomes ours.
		cli.HandleErrorAndExit("launch", cli.HandleLaunch(args), args.JSON)
	case cli.CmdDaemon:
		// Hidden supervisor entry, re-executed detached by --daemon.
		os.Exit(cli.HandleDaemon(args))
	case cli.CmdStop:
		cli.HandleErrorAndExit("stop", cli.HandleStop(args), args.JSON)
	case cli.CmdStatus:
		cli.HandleErrorAndExit("status", cli.HandleStatus(args), args.JSON)
	case cli.CmdMonitor:
		runMonitor(args)
	case cli.CmdDoctor:
		cli.HandleErrorAndExit("doctor", cli.HandleDoctor(args), args.JSON)
	case cli.CmdVoices:
		cli.HandleErrorAndExit("voices", cli.HandleVoices(args), args.JSON)
	case cli.CmdBench:
		cli.HandleErrorAndExit("bench", cli.HandleBench(args), args.JSON)
	case cli.CmdHistory:
		cli.HandleErrorAndExit("history", cli.HandleHistory(args), args.JSON)
	case cli.CmdConfig:
		cli.HandleErrorAndExit("config", cli.HandleConfig(args), args.JSON)
	case cli.CmdSetup:
		cli.HandleErrorAndExit("setup", cli.HandleSetup(args), args.JSON)
	case cli.CmdVersion:
		cli.HandleVersionWithJSON(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleUnknown(args)
	}
}

// runMonitor starts the full-screen dashboard.
func runMonitor(args cli.Args) {
	if !cli.IsStdoutTTY() {
		fmt.Fprintln(os.Stderr, "monitor needs a terminal; use 'voxrun status --json' for scripts")
		os.Exit(cli.ExitUsageError)
	}

	p := tea.NewProgram(
		tui.NewModel(config.Global()),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running monitor: %v\n", err)
		os.Exit(1)
	}
}
