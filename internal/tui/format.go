package tui

import (
	"fmt"

	"trainload/internal/stress"
)

func formatDuration(seconds float64) string {
	s := int(seconds)
	h := s / 3600
	m := (s % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func formatSport(s stress.Sport) string {
	switch s {
	case stress.SportRun:
		return "Run"
	case stress.SportBike:
		return "Bike"
	case stress.SportSwim:
		return "Swim"
	case stress.SportStrength:
		return "Strength"
	}
	return "Other"
}

func formatMethod(method string) string {
	switch stress.Method(method) {
	case stress.MethodPower:
		return "power"
	case stress.MethodRunningPower:
		return "r-power"
	case stress.MethodPace:
		return "pace"
	case stress.MethodHeartRate:
		return "HR"
	case stress.MethodEstimated:
		return "est"
	}
	return "-"
}

func truncateName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
