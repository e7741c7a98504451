package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"trainload/internal/service"
)

// DashboardModel is the dashboard screen model
type DashboardModel struct {
	queryService *service.QueryService
	data         *service.DashboardData
	loading      bool
	err          error
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(qs *service.QueryService) DashboardModel {
	return DashboardModel{
		queryService: qs,
		loading:      true,
	}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return m.loadData
}

func (m DashboardModel) loadData() tea.Msg {
	data, err := m.queryService.GetDashboardData()
	if err != nil {
		return dashboardDataMsg{err: err}
	}
	return dashboardDataMsg{data: data}
}

type dashboardDataMsg struct {
	data *service.DashboardData
	err  error
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.data = msg.data
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.loading {
		return "\n  Loading dashboard..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if m.data == nil {
		return "\n  No data yet. Press 's' to sync or '4' to add a workout."
	}

	var sections []string

	loadCard := m.renderLoadCard()
	weekCard := m.renderWeekCard()
	calCard := m.renderCalibrationCard()
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, loadCard, "  ", weekCard, "  ", calCard)
	sections = append(sections, topRow)

	if len(m.data.LoadHistory) > 2 {
		sections = append(sections, m.renderChart())
	}

	sections = append(sections, m.renderRecentWorkouts())

	help := statusStyle.Render("Press 'r' to refresh, 's' to sync, '2' for the workout list")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderLoadCard() string {
	title := cardTitleStyle.Render("Training Load")

	lines := []string{
		RenderMetric("Fitness (CTL)", fmt.Sprintf("%.1f", m.data.CurrentFitness)),
		RenderMetric("Fatigue (ATL)", fmt.Sprintf("%.1f", m.data.CurrentFatigue)),
		RenderMetric("Form (TSB)", formStyle(m.data.CurrentForm).Render(fmt.Sprintf("%+.1f", m.data.CurrentForm))),
		RenderMetric("ACWR", fmt.Sprintf("%.2f", m.data.ACWR)),
		"",
		lipgloss.NewStyle().Foreground(mutedColor).Render(m.data.FormDescription),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderWeekCard() string {
	title := cardTitleStyle.Render("This Week")

	lines := []string{
		RenderMetric("Training days", fmt.Sprintf("%d", m.data.WeekWorkoutCount)),
		RenderMetric("Stress", fmt.Sprintf("%.0f TSS", m.data.WeekTSS)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(30).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderCalibrationCard() string {
	title := cardTitleStyle.Render("Calibration")

	p := m.data.Profile
	status := "learning"
	if !p.LearningEnabled {
		status = "disabled"
	}

	lines := []string{
		RenderMetric("Factor", fmt.Sprintf("%.3f", p.GlobalFactor)),
		RenderMetric("Confidence", fmt.Sprintf("%.0f%%", p.GlobalConfidence*100)),
		RenderMetric("Samples", fmt.Sprintf("%d", m.data.PointCount)),
		RenderMetric("Status", status),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(30).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// renderChart plots the CTL and ATL series for the history window.
func (m DashboardModel) renderChart() string {
	title := cardTitleStyle.Render(fmt.Sprintf("Load - last %d days  (blue CTL, red ATL)", len(m.data.LoadHistory)))

	ctl := make([]float64, len(m.data.LoadHistory))
	atl := make([]float64, len(m.data.LoadHistory))
	for i, d := range m.data.LoadHistory {
		ctl[i] = d.CTL
		atl[i] = d.ATL
	}

	graph := asciigraph.PlotMany([][]float64{ctl, atl},
		asciigraph.Height(8),
		asciigraph.Width(72),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m DashboardModel) renderRecentWorkouts() string {
	title := cardTitleStyle.Render("Recent Workouts")

	if len(m.data.RecentWorkouts) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No workouts yet"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s  %-22s  %-8s  %8s  %6s  %-7s",
		"Date", "Name", "Sport", "Duration", "TSS", "Method"))

	rows := []string{header}
	for i, w := range m.data.RecentWorkouts {
		if i >= 5 {
			break
		}
		row := tableRowStyle.Render(fmt.Sprintf("%-10s  %-22s  %-8s  %8s  %6.0f  %-7s",
			w.StartTime.Format("Jan 02"),
			truncateName(w.Name, 22),
			formatSport(w.Sport),
			formatDuration(w.DurationSeconds),
			w.TSS,
			formatMethod(w.TSSMethod),
		))
		rows = append(rows, row)
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}
