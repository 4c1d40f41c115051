// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line interface for voxrun.
//
// Parses os.Args into a Command plus structured Args and provides the
// top-level help and version handlers. Running voxrun with no command
// probes the GPU and launches the XTTS API server; everything else is
// an explicit subcommand.
//
// Command routing:
//   voxrun                     Probe CUDA, launch the server (foreground)
//   voxrun launch --daemon     Launch in the background
//   voxrun stop                Stop the background daemon
//   voxrun status              GPU, probe, server, and daemon status
//   voxrun monitor             Live dashboard
//   voxrun doctor              Health checks
//   voxrun voices              Reference voice library
//   voxrun bench               Synthesis benchmarks
//   voxrun history             Launch history
//   voxrun config              Configuration
//   voxrun setup               First-run wizard
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/jeranaias/voxrun/internal/xtts"
)

// Version information (set at build time via -ldflags).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command represents a parsed CLI command.
type Command int

const (
	// CmdLaunch probes CUDA and starts the XTTS API server (default).
	CmdLaunch Command = iota
	// CmdStop stops the background daemon.
	CmdStop
	// CmdStatus shows GPU, probe, server, and daemon status.
	CmdStatus
	// CmdMonitor runs the live terminal dashboard.
	CmdMonitor
	// CmdDoctor runs health checks.
	CmdDoctor
	// CmdVoices manages the reference voice library.
	CmdVoices
	// CmdBench benchmarks synthesis against the running server.
	CmdBench
	// CmdHistory shows launch history and statistics.
	CmdHistory
	// CmdConfig shows or edits configuration.
	CmdConfig
	// CmdSetup runs the first-run wizard.
	CmdSetup
	// CmdVersion shows version information.
	CmdVersion
	// CmdHelp shows usage.
	CmdHelp
	// CmdDaemon is the hidden supervisor entrypoint re-exec'd by --daemon.
	CmdDaemon
	// CmdUnknown is an unrecognized command word.
	CmdUnknown
)

// String returns the primary command word.
func (c Command) String() string {
	switch c {
	case CmdLaunch:
		return "launch"
	case CmdStop:
		return "stop"
	case CmdStatus:
		return "status"
	case CmdMonitor:
		return "monitor"
	case CmdDoctor:
		return "doctor"
	case CmdVoices:
		return "voices"
	case CmdBench:
		return "bench"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdSetup:
		return "setup"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	case CmdDaemon:
		return "daemon"
	default:
		return "unknown"
	}
}

// =============================================================================
// ARGUMENTS
// =============================================================================

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Quiet   bool   // -q, --quiet: suppress non-essential output
	Verbose bool   // -v, --verbose: show probe output and server argv
	JSON    bool   // --json: machine-readable output
	Device  string // --device: pin cuda/cpu, or auto to probe

	// Launch flags
	Daemon    bool   // --daemon: run the server in the background
	DryRun    bool   // --dry-run: print the command without starting
	Port      int    // --port: server port override
	Host      string // --host: bind address override
	Speakers  string // --speakers: reference voices folder override
	Models    string // --models: models folder override
	DeepSpeed string // --deepspeed: on, off, or auto

	// Subcommand is the second-level word (e.g. "stats" in "history stats").
	Subcommand string

	// Raw holds unconsumed arguments for command-local parsing.
	Raw []string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `voxrun - GPU-aware launcher for the XTTS API server

Probes CUDA through the configured Python interpreter and starts the
server with the right device profile. GPU hosts get cuda + DeepSpeed,
everything else falls back to a working CPU server.

Usage:
  voxrun [command] [flags]

Commands:
  (default)          Probe CUDA and launch the server in the foreground
  launch             Same as default; accepts the launch flags below
  stop               Stop the background daemon
  status, s          Show GPU, probe, server, and daemon status
  monitor            Live terminal dashboard
  doctor [fix]       Run health checks; fix attempts safe repairs
  voices             List, search, or reindex reference voices
  bench              Benchmark synthesis against the running server
  history            Show launch history and statistics
  config             Show or edit configuration
  setup              Interactive first-run setup
  version            Show version information
  help               Show this help

Launch Flags:
  --device <dev>     Pin the device: cuda, cpu, or auto (default: auto)
  --deepspeed <v>    DeepSpeed: on, off, or auto (default: auto)
  --daemon, -d       Run the server in the background
  --dry-run          Print the server command without starting it
  --port <n>         Server port (default: 8020)
  --host <addr>      Bind address (default: 0.0.0.0)
  --speakers <dir>   Reference voices folder
  --models <dir>     Models folder

Global Flags:
  -q, --quiet        Suppress non-essential output
  -v, --verbose      Show probe output and the full server argv
  --json             Machine-readable JSON output

Examples:
  voxrun                            Probe the GPU and start the server
  voxrun --device cpu               Skip the probe, force the CPU profile
  voxrun launch --daemon            Start in the background
  voxrun launch --dry-run -v        Show what would run
  voxrun status --json              Status for scripts
  voxrun voices search calm         Find reference voices
  voxrun bench --speaker calm_female
  voxrun history stats              Launch statistics

Environment:
  VOXRUN_DEVICE, VOXRUN_PORT, VOXRUN_HOST, VOXRUN_PYTHON and friends
  override the config file. Run 'voxrun config' for the full list.

Version: %s
`

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	args := Args{DeepSpeed: ""}
	argv := os.Args[1:]

	remaining := parseGlobalFlags(argv, &args)

	// Bare invocation launches in the foreground.
	if len(remaining) == 0 {
		return CmdLaunch, args
	}

	// Leading flags without a command word also mean launch
	// (voxrun --daemon, voxrun --port 9000). Help and version flags are
	// the exception: they must never start a server.
	if strings.HasPrefix(remaining[0], "-") {
		switch remaining[0] {
		case "-h", "--help":
			args.Raw = remaining[1:]
			return CmdHelp, args
		case "-V", "--version":
			args.Raw = remaining[1:]
			return CmdVersion, args
		}
		return CmdLaunch, parseLaunchArgs(remaining, args)
	}

	cmd := strings.ToLower(remaining[0])
	rest := remaining[1:]

	switch cmd {
	case xtts.DaemonCommand:
		// Hidden re-exec target; never shown in help.
		args.Raw = rest
		return CmdDaemon, args
	case "launch", "start", "serve", "run":
		return CmdLaunch, parseLaunchArgs(rest, args)
	case "stop":
		args.Raw = rest
		return CmdStop, args
	case "status", "s":
		return CmdStatus, parseSubcommandArgs(rest, args)
	case "monitor", "mon", "watch":
		args.Raw = rest
		return CmdMonitor, args
	case "doctor":
		return CmdDoctor, parseSubcommandArgs(rest, args)
	case "voices", "speakers":
		return CmdVoices, parseSubcommandArgs(rest, args)
	case "bench", "benchmark":
		return CmdBench, parseSubcommandArgs(rest, args)
	case "history", "hist":
		return CmdHistory, parseSubcommandArgs(rest, args)
	case "config", "cfg":
		return CmdConfig, parseSubcommandArgs(rest, args)
	case "setup", "init":
		return CmdSetup, parseSubcommandArgs(rest, args)
	case "version":
		args.Raw = rest
		return CmdVersion, args
	case "help":
		args.Raw = rest
		return CmdHelp, args
	default:
		// An unknown bare word must not silently start a server.
		args.Subcommand = remaining[0]
		args.Raw = rest
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from anywhere in the argument
// list and returns the remaining arguments in order.
func parseGlobalFlags(argv []string, args *Args) []string {
	var remaining []string

	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
			i++
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
			i++
		case arg == "--json":
			args.JSON = true
			i++
		case arg == "--device" && i+1 < len(argv):
			args.Device = strings.ToLower(argv[i+1])
			i += 2
		case strings.HasPrefix(arg, "--device="):
			args.Device = strings.ToLower(strings.TrimPrefix(arg, "--device="))
			i++
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	return remaining
}

// parseLaunchArgs parses launch-specific flags into Args fields.
// Unrecognized arguments land in Raw so the handler can reject them.
func parseLaunchArgs(argv []string, args Args) Args {
	var rest []string

	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch {
		case arg == "--daemon" || arg == "-d" || arg == "--background":
			args.Daemon = true
			i++
		case arg == "--dry-run":
			args.DryRun = true
			i++
		case arg == "--port" && i+1 < len(argv):
			if n, err := strconv.Atoi(argv[i+1]); err == nil {
				args.Port = n
			}
			i += 2
		case strings.HasPrefix(arg, "--port="):
			if n, err := strconv.Atoi(strings.TrimPrefix(arg, "--port=")); err == nil {
				args.Port = n
			}
			i++
		case arg == "--host" && i+1 < len(argv):
			args.Host = argv[i+1]
			i += 2
		case strings.HasPrefix(arg, "--host="):
			args.Host = strings.TrimPrefix(arg, "--host=")
			i++
		case arg == "--speakers" && i+1 < len(argv):
			args.Speakers = argv[i+1]
			i += 2
		case strings.HasPrefix(arg, "--speakers="):
			args.Speakers = strings.TrimPrefix(arg, "--speakers=")
			i++
		case arg == "--models" && i+1 < len(argv):
			args.Models = argv[i+1]
			i += 2
		case strings.HasPrefix(arg, "--models="):
			args.Models = strings.TrimPrefix(arg, "--models=")
			i++
		case arg == "--deepspeed" && i+1 < len(argv):
			args.DeepSpeed = strings.ToLower(argv[i+1])
			i += 2
		case strings.HasPrefix(arg, "--deepspeed="):
			args.DeepSpeed = strings.ToLower(strings.TrimPrefix(arg, "--deepspeed="))
			i++
		default:
			rest = append(rest, arg)
			i++
		}
	}

	args.Raw = rest
	return args
}

// parseSubcommandArgs splits a subcommand word from the rest.
// "history stats --json" becomes Subcommand="stats", Raw=["--json"]
// (--json was already consumed globally).
func parseSubcommandArgs(argv []string, args Args) Args {
	if len(argv) > 0 && !strings.HasPrefix(argv[0], "-") {
		args.Subcommand = strings.ToLower(argv[0])
		args.Raw = argv[1:]
	} else {
		args.Raw = argv
	}
	return args
}

// =============================================================================
// HELP AND VERSION
// =============================================================================

// HandleHelp prints usage to stdout.
func HandleHelp() {
	fmt.Printf(usageText, Version)
}

// HandleVersionWithJSON prints version information, honoring --json.
func HandleVersionWithJSON(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		NewJSONResponse("version", data).Print()
		return
	}

	fmt.Printf("voxrun %s\n", Version)
	fmt.Printf("  commit: %s\n", GitCommit)
	fmt.Printf("  built:  %s\n", BuildDate)
	fmt.Printf("  go:     %s\n", runtime.Version())
}

// HandleUnknown reports an unrecognized command and exits with a usage
// error. Deliberately does not fall through to launch: a typo must not
// start a server.
func HandleUnknown(args Args) {
	fmt.Fprintf(os.Stderr, "Unknown command: %q\n", args.Subcommand)
	if suggestion := SuggestCommand(args.Subcommand); suggestion != "" {
		fmt.Fprintf(os.Stderr, "Did you mean 'voxrun %s'?\n", suggestion)
	}
	fmt.Fprintln(os.Stderr, "Run 'voxrun help' for usage.")
	os.Exit(ExitUsageError)
}
