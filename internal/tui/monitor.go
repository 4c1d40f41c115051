// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// monitor.go - The live dashboard model.
//
// One Snapshot per poll interval; collection runs inside a tea.Cmd so
// a slow server never blocks keystrokes. The CUDA probe is deliberately
// NOT part of the poll: it costs a torch import and its answer only
// changes when drivers change. The dashboard shows the cached hardware
// inventory and the live server state instead.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/voxrun/internal/config"
	"github.com/jeranaias/voxrun/internal/detect"
	"github.com/jeranaias/voxrun/internal/storage"
	"github.com/jeranaias/voxrun/internal/voices"
	"github.com/jeranaias/voxrun/internal/xtts"
)

// pollInterval is how often the dashboard refreshes itself.
const pollInterval = 2 * time.Second

// serverPollTimeout bounds the liveness check inside one poll.
const serverPollTimeout = 1500 * time.Millisecond

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(11)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is one poll of everything the dashboard renders.
type Snapshot struct {
	TakenAt time.Time

	// Server
	ServerRunning bool
	ServerURL     string

	// Daemon
	DaemonRunning bool
	ServerPID     int
	Restarts      int
	Profile       string
	DaemonUptime  time.Duration
	LogFile       string

	// Hardware (cached inventory, not a live probe)
	GPU string

	// Voices
	VoiceCount    int
	VoiceDuration time.Duration

	// Last launch
	LastDevice    string
	LastDeepSpeed bool
	LastOutcome   string
	LastStarted   time.Time
	LastFallback  bool
}

// collectSnapshot polls every data source. Individual failures leave
// their section zeroed; the dashboard renders absence, not errors.
func collectSnapshot(cfg *config.Config) Snapshot {
	snap := Snapshot{
		TakenAt:   time.Now(),
		ServerURL: cfg.Server.LocalURL(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverPollTimeout)
	defer cancel()
	client := xtts.NewClientForServer(cfg.Server)
	snap.ServerRunning = client.CheckRunning(ctx) == nil

	if st, running, err := xtts.DaemonStatus(); err == nil && st != nil && running {
		snap.DaemonRunning = true
		snap.ServerPID = st.ServerPID
		snap.Restarts = st.Restarts
		snap.Profile = st.Profile().String()
		snap.LogFile = st.LogFile
		if !st.StartedAt.IsZero() {
			snap.DaemonUptime = time.Since(st.StartedAt)
		}
	}

	if gpu, err := detect.DetectGPUCached(); err == nil && gpu != nil {
		snap.GPU = gpu.String()
	} else if cpu := detect.GetCPUInfo(); cpu != nil {
		snap.GPU = cpu.String()
	}

	if lib, err := voices.NewLibrary(voices.DefaultConfig(cfg.Server.SpeakersFolder)); err == nil {
		stats := lib.Stats()
		snap.VoiceCount = stats.VoiceCount
		snap.VoiceDuration = stats.TotalDuration
		lib.Close()
	}

	if store, err := storage.NewLaunchStore(); err == nil {
		if rec, err := store.Last(); err == nil {
			snap.LastDevice = rec.Device
			snap.LastDeepSpeed = rec.DeepSpeed
			snap.LastOutcome = rec.Outcome()
			snap.LastStarted = rec.StartedAt
			snap.LastFallback = rec.Fallback()
		}
	}

	return snap
}

// =============================================================================
// MESSAGES
// =============================================================================

type tickMsg time.Time

type snapshotMsg Snapshot

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the monitor dashboard.
type Model struct {
	cfg *config.Config

	spin       spinner.Model
	snap       Snapshot
	haveSnap   bool
	refreshing bool

	width  int
	height int
}

// NewModel builds the dashboard model for the given configuration.
func NewModel(cfg *config.Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = dimStyle

	return Model{cfg: cfg, spin: s, refreshing: true}
}

// Init starts the spinner, the first poll, and the poll ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refreshCmd(), tickCmd())
}

// refreshCmd collects a snapshot off the UI goroutine.
func (m Model) refreshCmd() tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		return snapshotMsg(collectSnapshot(cfg))
	}
}

// Update handles keys, poll ticks, and finished snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.refreshing {
				m.refreshing = true
				return m, m.refreshCmd()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.haveSnap = true
		m.refreshing = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteString("\n")

	if !m.haveSnap {
		b.WriteString(dimStyle.Render("  " + m.spin.View() + " collecting first snapshot..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.viewServerPanel())
		b.WriteString("\n")
		b.WriteString(m.viewSystemPanel())
		b.WriteString("\n")
		b.WriteString(m.viewLastLaunchPanel())
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  q quit - r refresh"))
	return b.String()
}

func (m Model) viewHeader() string {
	title := headerStyle.Render("voxrun monitor")
	right := ""
	if m.haveSnap {
		right = dimStyle.Render(m.snap.TakenAt.Format("15:04:05"))
	}
	if m.refreshing {
		right = dimStyle.Render(m.spin.View() + " ") + right
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + title + strings.Repeat(" ", gap) + right
}

func (m Model) viewServerPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Server"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("URL:"))
	b.WriteString(m.snap.ServerURL)
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Status:"))
	if m.snap.ServerRunning {
		b.WriteString(okStyle.Render("answering"))
	} else {
		b.WriteString(dimStyle.Render("not reachable"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Daemon:"))
	if m.snap.DaemonRunning {
		line := fmt.Sprintf("running, server pid %d", m.snap.ServerPID)
		if m.snap.Profile != "" {
			line += ", " + m.snap.Profile
		}
		if m.snap.DaemonUptime > 0 {
			line += fmt.Sprintf(", up %s", m.snap.DaemonUptime.Round(time.Second))
		}
		b.WriteString(line)
		if m.snap.Restarts > 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render(""))
			b.WriteString(warnStyle.Render(fmt.Sprintf("%d restart(s)", m.snap.Restarts)))
		}
	} else {
		b.WriteString(dimStyle.Render("not running"))
	}

	return panelStyle.Width(m.panelWidth()).Render(b.String())
}

func (m Model) viewSystemPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("System"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("GPU:"))
	if m.snap.GPU != "" {
		b.WriteString(m.snap.GPU)
	} else {
		b.WriteString(dimStyle.Render("unknown"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Voices:"))
	if m.snap.VoiceCount > 0 {
		line := fmt.Sprintf("%d indexed", m.snap.VoiceCount)
		if m.snap.VoiceDuration > 0 {
			line += fmt.Sprintf(", %s of audio", m.snap.VoiceDuration.Round(time.Second))
		}
		b.WriteString(line)
	} else {
		b.WriteString(dimStyle.Render("none indexed"))
	}

	return panelStyle.Width(m.panelWidth()).Render(b.String())
}

func (m Model) viewLastLaunchPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Last launch"))
	b.WriteString("\n")

	if m.snap.LastStarted.IsZero() {
		b.WriteString(dimStyle.Render("No launches recorded."))
		return panelStyle.Width(m.panelWidth()).Render(b.String())
	}

	profile := "CPU (cpu)"
	if m.snap.LastDevice == "cuda" {
		profile = "GPU (cuda)"
		if m.snap.LastDeepSpeed {
			profile = "GPU (cuda + DeepSpeed)"
		}
	}

	b.WriteString(labelStyle.Render("Profile:"))
	b.WriteString(profile)
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Started:"))
	b.WriteString(m.snap.LastStarted.Local().Format("2006-01-02 15:04"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Outcome:"))
	b.WriteString(m.snap.LastOutcome)
	if m.snap.LastFallback {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(""))
		b.WriteString(warnStyle.Render("probed for CUDA but ran on CPU"))
	}

	return panelStyle.Width(m.panelWidth()).Render(b.String())
}

// panelWidth sizes panels to the terminal, bounded for readability.
func (m Model) panelWidth() int {
	w := m.width - 2
	if w > 76 {
		w = 76
	}
	if w < 40 {
		w = 40
	}
	return w
}
