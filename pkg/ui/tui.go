package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/synth-indexer/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Modules starting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// fetchTimeout bounds one snapshot.
const fetchTimeout = 5 * time.Second

var stepOrder = []string{"config", "chains", "storage", "sources", "ingestion"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	prices    *components.PricesComponent
	positions *components.PositionsComponent
	status    *components.StatusComponent
	stats     *components.StatsComponent

	keys KeyMap
	help help.Model

	fetch        Fetcher
	refreshEvery time.Duration
	fetching     bool

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	quitting   bool
	paused     bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // last 3
	logs       []string     // last 5

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time
}

// New creates the dashboard. fetch is polled every refreshEvery once modules are up.
func New(fetch Fetcher, refreshEvery time.Duration, pricePlaces int32) Model {
	if refreshEvery <= 0 {
		refreshEvery = 2 * time.Second
	}
	now := time.Now()
	return Model{
		prices:       components.NewPricesComponent(pricePlaces),
		positions:    components.NewPositionsComponent(10),
		status:       components.NewStatusComponent(),
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		fetch:        fetch,
		refreshEvery: refreshEvery,
		phase:        PhaseWelcome,
		welcomeStart: now,
		errors:       make([]ErrorEntry, 0, 3),
		logs:         make([]string, 0, 5),
		startupSteps: map[string]*StartupStep{
			"config":    {Name: "Loading configuration", Status: "pending"},
			"chains":    {Name: "Preparing chain clients", Status: "pending"},
			"storage":   {Name: "Opening candle store", Status: "pending"},
			"sources":   {Name: "Building price sources", Status: "pending"},
			"ingestion": {Name: "Starting ingestion", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func refreshCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return RefreshMsg{}
	})
}

func fetchCmd(fetch Fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snap, err := fetch(ctx)
		if err != nil {
			return ErrorMsg{Error: err}
		}
		return snap
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.enterStartup()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Refresh):
			return m, m.startFetch()
		case key.Matches(msg, m.keys.Up):
			m.positions.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.positions.ScrollDown()
		case key.Matches(msg, m.keys.Clear):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.enterStartup()
		}
		return m, tickCmd()

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.addError(msg.Message)
		}
		if msg.Step == "ingestion" && msg.Status == "done" {
			m.phase = PhaseDashboard
			return m, m.startFetch()
		}

	case RefreshMsg:
		if m.paused {
			return m, refreshCmd(m.refreshEvery)
		}
		return m, m.startFetch()

	case SnapshotMsg:
		m.fetching = false
		m.apply(msg)
		return m, refreshCmd(m.refreshEvery)

	case ErrorMsg:
		m.addError(msg.Error.Error())
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		if m.fetching {
			m.fetching = false
			return m, refreshCmd(m.refreshEvery)
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) enterStartup() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// startFetch runs one fetch unless one is in flight or no fetcher is set.
func (m *Model) startFetch() tea.Cmd {
	if m.fetch == nil || m.fetching || m.phase != PhaseDashboard {
		return nil
	}
	m.fetching = true
	return fetchCmd(m.fetch)
}

func (m *Model) apply(s SnapshotMsg) {
	m.prices.Update(s.Interval, s.Prices)
	m.positions.Update(s.Positions, s.Undefined, s.Unpriced)
	m.status.Update(s.Checks)

	stats := m.stats.Stats()
	stats.Refreshes++
	stats.Symbols = len(s.Prices)
	stats.Positions = len(s.Positions)
	stats.LostCandles = s.LostCandles
	stats.Warning, stats.Liquidatable = 0, 0
	for _, p := range s.Positions {
		switch p.Risk {
		case "warning":
			stats.Warning++
		case "liquidatable":
			stats.Liquidatable++
		}
	}
	m.stats.Update(stats)

	m.lastUpdate = s.At
}

func (m *Model) addError(msg string) {
	m.errors = append(m.errors, ErrorEntry{Message: msg, Timestamp: time.Now()})
	if len(m.errors) > 3 {
		m.errors = m.errors[len(m.errors)-3:]
	}
	stats := m.stats.Stats()
	stats.Errors++
	m.stats.Update(stats)
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Synth Indexer "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.prices.View() + "\n\n" + m.status.View()
	rightCol := m.positions.View()

	if m.width > 120 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.logs) > 0 {
		b.WriteString(HeaderStyle.Render("RECENT"))
		b.WriteString("\n")
		for _, l := range m.logs {
			b.WriteString(MutedValue.Render("  " + l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(StatusPaused.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	logo := `
   ███████╗██╗   ██╗███╗   ██╗████████╗██╗  ██╗
   ██╔════╝╚██╗ ██╔╝████╗  ██║╚══██╔══╝██║  ██║
   ███████╗ ╚████╔╝ ██╔██╗ ██║   ██║   ███████║
   ╚════██║  ╚██╔╝  ██║╚██╗██║   ██║   ██╔══██║
   ███████║   ██║   ██║ ╚████║   ██║   ██║  ██║
   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝
`

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("           P R I C E   &   R I S K   I N D E X E R"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Synth Indexer"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range stepOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Working...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n")

	for _, e := range m.errors {
		sb.WriteString(failedStyle.Render("  " + e.Message))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.fetching {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, StatusHealthy.Render(spinners[idx]+" Refreshing"))
	}

	if m.status.Healthy() {
		parts = append(parts, StatusHealthy.Render("● healthy"))
	} else {
		parts = append(parts, StatusDegraded.Render("○ degraded"))
	}

	if lost := m.stats.Stats().LostCandles; lost > 0 {
		parts = append(parts, StatusDegraded.Render(fmt.Sprintf("%d candles lost", lost)))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
