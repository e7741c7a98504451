package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trainload/internal/service"
)

// Screen identifiers
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenWorkouts
	ScreenCalibration
	ScreenEntry
	ScreenSync
	ScreenHelp
)

// App is the root Bubble Tea model
type App struct {
	screen     Screen
	prevScreen Screen

	// Screen models
	dashboard   DashboardModel
	workouts    WorkoutsModel
	calibration CalibrationModel
	entry       EntryModel
	syncScreen  SyncModel
	help        HelpModel

	// Services
	queryService       *service.QueryService
	importService      *service.ImportService
	calibrationService *service.CalibrationService

	// Window dimensions
	width  int
	height int
}

// NewApp creates a new App with all dependencies
func NewApp(qs *service.QueryService, is *service.ImportService, cs *service.CalibrationService) *App {
	return &App{
		screen:             ScreenDashboard,
		queryService:       qs,
		importService:      is,
		calibrationService: cs,
		dashboard:          NewDashboardModel(qs),
		workouts:           NewWorkoutsModel(qs),
		calibration:        NewCalibrationModel(cs),
		entry:              NewEntryModel(is),
		syncScreen:         NewSyncModel(is),
		help:               NewHelpModel(),
	}
}

// Init initializes the app
func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings. Disabled while syncing and inside the
		// entry form, where digits are data.
		formActive := a.screen == ScreenEntry ||
			(a.screen == ScreenSync && a.syncScreen.syncing)
		if !formActive {
			switch msg.String() {
			case "q", "ctrl+c":
				return a, tea.Quit
			case "1":
				a.screen = ScreenDashboard
				a.dashboard = NewDashboardModel(a.queryService)
				return a, a.dashboard.Init()
			case "2":
				a.screen = ScreenWorkouts
				return a, a.workouts.Init()
			case "3":
				a.screen = ScreenCalibration
				a.calibration = NewCalibrationModel(a.calibrationService)
				return a, a.calibration.Init()
			case "4", "a":
				a.screen = ScreenEntry
				a.entry = NewEntryModel(a.importService)
				return a, a.entry.Init()
			case "5", "s":
				if a.screen != ScreenSync {
					a.screen = ScreenSync
					return a, a.syncScreen.Init()
				}
			case "?":
				a.prevScreen = a.screen
				a.screen = ScreenHelp
				return a, nil
			case "esc":
				if a.screen == ScreenHelp {
					a.screen = a.prevScreen
					return a, nil
				}
			}
		}
		if a.screen == ScreenEntry && msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case SyncCompleteMsg:
		a.screen = ScreenDashboard
		a.dashboard = NewDashboardModel(a.queryService)
		return a, a.dashboard.Init()

	case EntryDoneMsg:
		a.screen = ScreenDashboard
		a.dashboard = NewDashboardModel(a.queryService)
		return a, a.dashboard.Init()
	}

	// Delegate to current screen
	var cmd tea.Cmd
	switch a.screen {
	case ScreenDashboard:
		var m tea.Model
		m, cmd = a.dashboard.Update(msg)
		a.dashboard = m.(DashboardModel)
	case ScreenWorkouts:
		var m tea.Model
		m, cmd = a.workouts.Update(msg)
		a.workouts = m.(WorkoutsModel)
	case ScreenCalibration:
		var m tea.Model
		m, cmd = a.calibration.Update(msg)
		a.calibration = m.(CalibrationModel)
	case ScreenEntry:
		var m tea.Model
		m, cmd = a.entry.Update(msg)
		a.entry = m.(EntryModel)
	case ScreenSync:
		var m tea.Model
		m, cmd = a.syncScreen.Update(msg)
		a.syncScreen = m.(SyncModel)
	case ScreenHelp:
		var m tea.Model
		m, cmd = a.help.Update(msg)
		a.help = m.(HelpModel)
	}

	return a, cmd
}

// View renders the app
func (a *App) View() string {
	header := headerStyle.Render("Training Load")
	nav := a.renderNav()

	var content string
	switch a.screen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenWorkouts:
		content = a.workouts.View()
	case ScreenCalibration:
		content = a.calibration.View()
	case ScreenEntry:
		content = a.entry.View()
	case ScreenSync:
		content = a.syncScreen.View()
	case ScreenHelp:
		content = a.help.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, nav, content)
}

func (a *App) renderNav() string {
	items := []struct {
		key    string
		label  string
		screen Screen
	}{
		{"1", "Dashboard", ScreenDashboard},
		{"2", "Workouts", ScreenWorkouts},
		{"3", "Calibration", ScreenCalibration},
		{"4", "Add", ScreenEntry},
		{"5", "Sync", ScreenSync},
		{"?", "Help", ScreenHelp},
	}

	var nav string
	for i, item := range items {
		if i > 0 {
			nav += "  "
		}

		label := "[" + item.key + "] " + item.label
		if a.screen == item.screen {
			nav += navActiveStyle.Render(label)
		} else {
			nav += navInactiveStyle.Render(label)
		}
	}

	nav += "  " + navInactiveStyle.Render("[q] Quit")

	return navStyle.Render(nav)
}

// SyncCompleteMsg is sent when sync finishes
type SyncCompleteMsg struct{}

// EntryDoneMsg is sent when a manual workout has been saved
type EntryDoneMsg struct{}
