package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trainload/internal/service"
	"trainload/internal/store"
)

// WorkoutsModel is the workout list screen model
type WorkoutsModel struct {
	queryService *service.QueryService
	workouts     []store.Workout
	cursor       int
	offset       int
	total        int
	pageSize     int
	loading      bool
	err          error
}

// NewWorkoutsModel creates a new workouts model
func NewWorkoutsModel(qs *service.QueryService) WorkoutsModel {
	return WorkoutsModel{
		queryService: qs,
		pageSize:     15,
		loading:      true,
	}
}

// Init initializes the workouts screen
func (m WorkoutsModel) Init() tea.Cmd {
	return m.loadPage
}

type workoutsLoadedMsg struct {
	workouts []store.Workout
	total    int
	err      error
}

func (m WorkoutsModel) loadPage() tea.Msg {
	workouts, err := m.queryService.GetWorkoutsList(m.pageSize, m.offset)
	if err != nil {
		return workoutsLoadedMsg{err: err}
	}

	total, err := m.queryService.GetTotalWorkoutCount()
	if err != nil {
		return workoutsLoadedMsg{err: err}
	}

	return workoutsLoadedMsg{workouts: workouts, total: total}
}

// Update handles messages
func (m WorkoutsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case workoutsLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.workouts = msg.workouts
		m.total = msg.total

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			} else if m.offset > 0 {
				m.offset -= m.pageSize
				m.cursor = m.pageSize - 1
				m.loading = true
				return m, m.loadPage
			}
		case "down", "j":
			if m.cursor < len(m.workouts)-1 {
				m.cursor++
			} else if m.offset+len(m.workouts) < m.total {
				m.offset += m.pageSize
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "pgup":
			if m.offset > 0 {
				m.offset -= m.pageSize
				if m.offset < 0 {
					m.offset = 0
				}
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "pgdown":
			if m.offset+m.pageSize < m.total {
				m.offset += m.pageSize
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "r":
			m.loading = true
			return m, m.loadPage
		}
	}
	return m, nil
}

// View renders the workout list
func (m WorkoutsModel) View() string {
	if m.loading {
		return "\n  Loading workouts..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if len(m.workouts) == 0 {
		return "\n  No workouts found. Press 's' to sync or '4' to add one."
	}

	var sections []string

	startNum := m.offset + 1
	endNum := m.offset + len(m.workouts)
	title := cardTitleStyle.Render(fmt.Sprintf("Workouts (%d-%d of %d)", startNum, endNum, m.total))
	sections = append(sections, title)

	header := tableHeaderStyle.Render(fmt.Sprintf("   %-10s  %-22s  %-8s  %-9s  %8s  %6s  %5s  %-7s",
		"Date", "Name", "Sport", "Source", "Duration", "TSS", "IF", "Method"))
	sections = append(sections, header)

	for i, w := range m.workouts {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		ifStr := "-"
		if w.IntensityFactor > 0 {
			ifStr = fmt.Sprintf("%.2f", w.IntensityFactor)
		}

		tssStr := fmt.Sprintf("%.0f", w.TSS)
		if w.ScalingApplied {
			tssStr += "*"
		}

		row := fmt.Sprintf("%s%-10s  %-22s  %-8s  %-9s  %8s  %6s  %5s  %-7s",
			cursor,
			w.StartTime.Format("Jan 02"),
			truncateName(w.Name, 22),
			formatSport(w.Sport),
			w.Source,
			formatDuration(w.DurationSeconds),
			tssStr,
			ifStr,
			formatMethod(w.TSSMethod),
		)

		if i == m.cursor {
			sections = append(sections, tableSelectedStyle.Render(row))
		} else {
			sections = append(sections, tableRowStyle.Render(row))
		}
	}

	help := statusStyle.Render("\n  j/k: navigate  pgup/pgdn: page  r: refresh  (* = calibration-scaled)")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
