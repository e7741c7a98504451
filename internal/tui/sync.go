package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trainload/internal/service"
)

// SyncModel is the sync screen model
type SyncModel struct {
	importService *service.ImportService
	spin          spinner.Model
	syncing       bool
	result        *service.SyncResult
	err           error
	done          bool
}

// NewSyncModel creates a new sync model
func NewSyncModel(is *service.ImportService) SyncModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return SyncModel{
		importService: is,
		spin:          sp,
	}
}

// Init initializes the sync screen
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// SyncDoneMsg is sent when sync finishes
type SyncDoneMsg struct {
	Result *service.SyncResult
	Err    error
}

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SyncDoneMsg:
		m.syncing = false
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, func() tea.Msg { return SyncCompleteMsg{} }

	case spinner.TickMsg:
		if m.syncing {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if !m.syncing {
			switch msg.String() {
			case "enter", "s":
				m.syncing = true
				m.done = false
				m.err = nil
				m.result = nil
				return m, tea.Batch(m.spin.Tick, m.runSync)
			}
		}
	}
	return m, nil
}

func (m SyncModel) runSync() tea.Msg {
	ctx := context.Background()

	// No progress channel: an unread channel would block the sync.
	result, syncErr := m.importService.SyncAll(ctx, nil)

	return SyncDoneMsg{Result: result, Err: syncErr}
}

// View renders the sync screen
func (m SyncModel) View() string {
	var sections []string

	title := cardTitleStyle.Render("Platform Sync")
	sections = append(sections, title)

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err)))
		sections = append(sections, "\n"+statusStyle.Render("  Press 's' or Enter to retry"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.done && !m.syncing {
		sections = append(sections, successStyle.Render("\n  Sync complete!"))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press '1' to go to dashboard"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.syncing {
		sections = append(sections, m.renderProgress())
	} else {
		sections = append(sections, m.renderStartPrompt())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m SyncModel) renderStartPrompt() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  This will sync workouts from your training platform:")
	lines = append(lines, "")
	lines = append(lines, "  1. Fetch new activities")
	lines = append(lines, "  2. Download power and pace streams")
	lines = append(lines, "  3. Score stress and rebuild the load series")
	lines = append(lines, "")

	short, daily := m.importService.RateLimitStatus()
	lines = append(lines, statusStyle.Render(fmt.Sprintf("  API limits: %d/100 (15min), %d/1000 (daily)", short, daily)))
	lines = append(lines, "")
	lines = append(lines, statusStyle.Render("  Press 's' or Enter to start sync"))

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderProgress() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  "+m.spin.View()+" Syncing...")
	lines = append(lines, "")
	lines = append(lines, "  1. Fetching new activities")
	lines = append(lines, "  2. Downloading streams")
	lines = append(lines, "  3. Rebuilding the load series")
	lines = append(lines, "")
	lines = append(lines, statusStyle.Render("  This may take a moment..."))

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderSummary() string {
	if m.result == nil {
		return ""
	}

	var lines []string
	r := m.result
	lines = append(lines, "")

	if r.WorkoutsStored > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d new workouts", r.WorkoutsStored)))
	} else {
		lines = append(lines, statusStyle.Render("  No new workouts"))
	}

	if r.WorkoutsMerged > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d merged with existing records", r.WorkoutsMerged)))
	}

	if r.StreamsFetched > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d streams downloaded", r.StreamsFetched)))
	}

	if r.DaysRecomputed > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d days of load recomputed", r.DaysRecomputed)))
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "")
		lines = append(lines, warningStyle.Render(fmt.Sprintf("  %d errors occurred", len(r.Errors))))
	}

	return strings.Join(lines, "\n")
}
