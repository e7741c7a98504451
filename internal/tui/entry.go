package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trainload/internal/service"
	"trainload/internal/stress"
)

// Entry form field indexes
const (
	fieldName = iota
	fieldSport
	fieldDate
	fieldTime
	fieldDuration
	fieldDistance
	fieldPower
	fieldHeartRate
	fieldRPE
	fieldCount
)

// EntryModel is the manual workout entry form
type EntryModel struct {
	importService *service.ImportService
	inputs        []textinput.Model
	focused       int
	saving        bool
	result        *service.ImportResult
	err           error
}

// NewEntryModel creates a manual entry form with sensible defaults
func NewEntryModel(is *service.ImportService) EntryModel {
	labels := []struct {
		placeholder string
		value       string
		width       int
	}{
		{"Easy run", "", 30},
		{"run / bike / swim / strength", "run", 30},
		{"YYYY-MM-DD", time.Now().Format("2006-01-02"), 12},
		{"HH:MM (blank if unknown)", "", 12},
		{"minutes", "", 8},
		{"km (optional)", "", 8},
		{"watts (optional)", "", 8},
		{"bpm (optional)", "", 8},
		{"1-10 (optional)", "", 8},
	}

	inputs := make([]textinput.Model, fieldCount)
	for i, l := range labels {
		in := textinput.New()
		in.Placeholder = l.placeholder
		in.SetValue(l.value)
		in.CharLimit = 32
		in.Width = l.width
		inputs[i] = in
	}
	inputs[fieldName].Focus()

	return EntryModel{
		importService: is,
		inputs:        inputs,
	}
}

// Init initializes the entry form
func (m EntryModel) Init() tea.Cmd {
	return textinput.Blink
}

type entrySavedMsg struct {
	result service.ImportResult
	err    error
}

// Update handles messages
func (m EntryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case entrySavedMsg:
		m.saving = false
		m.err = msg.err
		if msg.err == nil {
			m.result = &msg.result
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return EntryDoneMsg{} }
		case "tab", "down":
			m.focused = (m.focused + 1) % fieldCount
			return m, m.focusCurrent()
		case "shift+tab", "up":
			m.focused = (m.focused + fieldCount - 1) % fieldCount
			return m, m.focusCurrent()
		case "enter":
			if m.result != nil {
				return m, func() tea.Msg { return EntryDoneMsg{} }
			}
			if m.focused < fieldCount-1 {
				m.focused++
				return m, m.focusCurrent()
			}
			if !m.saving {
				obs, err := m.buildObservation()
				if err != nil {
					m.err = err
					return m, nil
				}
				m.saving = true
				m.err = nil
				return m, func() tea.Msg {
					result, err := m.importService.AddManualWorkout(obs)
					return entrySavedMsg{result: result, err: err}
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m *EntryModel) focusCurrent() tea.Cmd {
	for i := range m.inputs {
		if i == m.focused {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return textinput.Blink
}

// buildObservation validates the form and converts it into an import
// observation. A blank time leaves the start at midnight, which the
// matcher treats as imprecise.
func (m EntryModel) buildObservation() (service.Observation, error) {
	var obs service.Observation

	obs.Name = strings.TrimSpace(m.inputs[fieldName].Value())
	if obs.Name == "" {
		obs.Name = "Manual workout"
	}

	switch strings.ToLower(strings.TrimSpace(m.inputs[fieldSport].Value())) {
	case "run":
		obs.Sport = stress.SportRun
	case "bike", "ride":
		obs.Sport = stress.SportBike
	case "swim":
		obs.Sport = stress.SportSwim
	case "strength", "gym":
		obs.Sport = stress.SportStrength
	default:
		obs.Sport = stress.SportOther
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(m.inputs[fieldDate].Value()))
	if err != nil {
		return obs, fmt.Errorf("date must be YYYY-MM-DD")
	}
	obs.StartTime = date
	if v := strings.TrimSpace(m.inputs[fieldTime].Value()); v != "" {
		tod, err := time.Parse("15:04", v)
		if err != nil {
			return obs, fmt.Errorf("time must be HH:MM")
		}
		obs.StartTime = date.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute)
	}

	minutes, err := strconv.ParseFloat(strings.TrimSpace(m.inputs[fieldDuration].Value()), 64)
	if err != nil || minutes <= 0 {
		return obs, fmt.Errorf("duration must be a positive number of minutes")
	}
	obs.DurationSeconds = minutes * 60

	if v, ok, err := optionalFloat(m.inputs[fieldDistance].Value()); err != nil {
		return obs, fmt.Errorf("distance must be a number of km")
	} else if ok {
		meters := v * 1000
		obs.DistanceMeters = &meters
	}
	if v, ok, err := optionalFloat(m.inputs[fieldPower].Value()); err != nil {
		return obs, fmt.Errorf("power must be a number of watts")
	} else if ok {
		obs.AvgPower = &v
	}
	if v, ok, err := optionalFloat(m.inputs[fieldHeartRate].Value()); err != nil {
		return obs, fmt.Errorf("heart rate must be a number of bpm")
	} else if ok {
		obs.AvgHeartRate = &v
	}
	if v, ok, err := optionalFloat(m.inputs[fieldRPE].Value()); err != nil {
		return obs, fmt.Errorf("effort must be 1-10")
	} else if ok {
		if v < 1 || v > 10 {
			return obs, fmt.Errorf("effort must be 1-10")
		}
		perceived := (v - 1) / 9
		obs.PerceivedIntensity = &perceived
	}

	return obs, nil
}

func optionalFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// View renders the entry form
func (m EntryModel) View() string {
	if m.result != nil {
		lines := []string{
			successStyle.Render("  Workout saved"),
			"",
			"  " + RenderMetric("TSS", fmt.Sprintf("%.0f", m.result.TSS)),
			"  " + RenderMetric("Method", formatMethod(string(m.result.Method))),
		}
		if m.result.Merged {
			lines = append(lines, "  "+statusStyle.Render("Merged into an existing workout from another source"))
		}
		lines = append(lines, "", statusStyle.Render("  Press enter to return to the dashboard"))
		return strings.Join(lines, "\n")
	}

	title := cardTitleStyle.Render("Add Workout")

	labels := []string{
		"Name", "Sport", "Date", "Start time", "Duration",
		"Distance", "Avg power", "Avg HR", "Effort",
	}

	var lines []string
	for i, in := range m.inputs {
		label := metricLabelStyle.Render(labels[i])
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left, label, in.View()))
	}

	form := lipgloss.JoinVertical(lipgloss.Left, lines...)

	var footer string
	switch {
	case m.saving:
		footer = statusStyle.Render("  Saving...")
	case m.err != nil:
		footer = errorStyle.Render(fmt.Sprintf("  %v", m.err))
	default:
		footer = statusStyle.Render("  tab: next field  enter: next/save  esc: cancel")
	}

	card := cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, form))
	return lipgloss.JoinVertical(lipgloss.Left, card, footer)
}
