package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trainload/internal/calibration"
	"trainload/internal/service"
	"trainload/internal/stress"
)

// CalibrationModel is the calibration screen: the learned profile plus
// the point history, with soft-delete and a learning toggle.
type CalibrationModel struct {
	service *service.CalibrationService
	profile stress.Profile
	points  []calibration.Point
	cursor  int
	loading bool
	status  string
	err     error
}

// NewCalibrationModel creates a new calibration model
func NewCalibrationModel(cs *service.CalibrationService) CalibrationModel {
	return CalibrationModel{
		service: cs,
		loading: true,
	}
}

// Init initializes the calibration screen
func (m CalibrationModel) Init() tea.Cmd {
	return m.loadData
}

type calibrationLoadedMsg struct {
	profile stress.Profile
	points  []calibration.Point
	err     error
}

type calibrationChangedMsg struct {
	status string
	err    error
}

func (m CalibrationModel) loadData() tea.Msg {
	profile, err := m.service.Profile()
	if err != nil {
		return calibrationLoadedMsg{err: err}
	}
	points, err := m.service.Points()
	if err != nil {
		return calibrationLoadedMsg{err: err}
	}
	return calibrationLoadedMsg{profile: profile, points: points}
}

// Update handles messages
func (m CalibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case calibrationLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.profile = msg.profile
		m.points = msg.points
		if m.cursor >= len(m.points) {
			m.cursor = len(m.points) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}

	case calibrationChangedMsg:
		m.status = msg.status
		m.err = msg.err
		return m, m.loadData

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.points)-1 {
				m.cursor++
			}
		case "x":
			if len(m.points) > 0 && m.cursor < len(m.points) {
				point := m.points[m.cursor]
				if !point.Valid {
					m.status = "point already invalidated"
					return m, nil
				}
				return m, func() tea.Msg {
					if _, err := m.service.InvalidatePoint(point.ID); err != nil {
						return calibrationChangedMsg{err: err}
					}
					return calibrationChangedMsg{status: "point invalidated, factors recomputed"}
				}
			}
		case "l":
			enabled := !m.profile.LearningEnabled
			return m, func() tea.Msg {
				if err := m.service.SetLearningEnabled(enabled); err != nil {
					return calibrationChangedMsg{err: err}
				}
				if enabled {
					return calibrationChangedMsg{status: "learning enabled"}
				}
				return calibrationChangedMsg{status: "learning disabled"}
			}
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the calibration screen
func (m CalibrationModel) View() string {
	if m.loading {
		return "\n  Loading calibration data..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	var sections []string
	sections = append(sections, m.renderProfileCard())
	sections = append(sections, m.renderPoints())

	if m.status != "" {
		sections = append(sections, successStyle.Render("  "+m.status))
	}

	help := statusStyle.Render("\n  j/k: navigate  x: invalidate point  l: toggle learning  r: refresh")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m CalibrationModel) renderProfileCard() string {
	title := cardTitleStyle.Render("Scaling Profile")

	status := successStyle.Render("learning")
	if !m.profile.LearningEnabled {
		status = warningStyle.Render("disabled")
	}

	lines := []string{
		RenderMetric("Global factor", fmt.Sprintf("%.3f", m.profile.GlobalFactor)),
		RenderMetric("Confidence", fmt.Sprintf("%.0f%%", m.profile.GlobalConfidence*100)),
		RenderMetric("Samples", fmt.Sprintf("%d", m.profile.GlobalSampleCount)),
		RenderMetric("Status", status),
	}

	for _, sport := range []stress.Sport{stress.SportRun, stress.SportBike, stress.SportSwim, stress.SportStrength} {
		if f, ok := m.profile.SportFactors[sport]; ok {
			lines = append(lines, RenderMetric(formatSport(sport), fmt.Sprintf("%.3f", f)))
		}
	}
	for _, band := range []stress.Band{stress.BandLow, stress.BandModerate, stress.BandHigh} {
		if f, ok := m.profile.BandFactors[band]; ok {
			lines = append(lines, RenderMetric(string(band)+" intensity", fmt.Sprintf("%.3f", f)))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(44).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m CalibrationModel) renderPoints() string {
	title := cardTitleStyle.Render("Calibration Points")

	if len(m.points) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title,
			"No calibration points yet.\nIngest a PMC reading to start learning."))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("   %-10s  %9s  %10s  %6s  %5s  %-15s  %-7s",
		"Date", "Observed", "Calculated", "Ratio", "Conf", "Method", "Valid"))

	rows := []string{header}
	for i, p := range m.points {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		ratioStr := "-"
		if ratio, ok := p.Ratio(); ok {
			ratioStr = fmt.Sprintf("%.3f", ratio)
		}

		valid := "yes"
		if !p.Valid {
			valid = "no"
		}

		row := fmt.Sprintf("%s%-10s  %9.0f  %10.0f  %6s  %5.2f  %-15s  %-7s",
			cursor,
			p.EffectiveDate.Format("2006-01-02"),
			p.Extracted,
			p.Calculated,
			ratioStr,
			p.SourceConfidence,
			string(p.Method),
			valid,
		)

		switch {
		case i == m.cursor:
			rows = append(rows, tableSelectedStyle.Render(row))
		case !p.Valid:
			rows = append(rows, tableRowStyle.Foreground(mutedColor).Render(row))
		default:
			rows = append(rows, tableRowStyle.Render(row))
		}
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}
