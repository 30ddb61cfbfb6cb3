package root

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	iconSparkle = "✨"
	iconQuest   = "🗺️"
	iconDone    = "✅"
	iconWallet  = "👛"
	iconScroll  = "📜"
	iconTrophy  = "🏆"
	iconError   = "🧨"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	h2Style    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	goldStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	mutedStyle = lipgloss.NewStyle().Foreground(cMuted)

	levelUpBadge = goldStyle.Render("LEVEL UP")
)

func heading(icon, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return titleStyle.Render(icon + title)
}

func labelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", keyStyle.Render(label+":"), value)
}

func statusText(status string) string {
	switch status {
	case "completed", "done":
		return goodStyle.Render(status)
	case "pending", "in flight":
		return warnStyle.Render(status)
	case "failed":
		return badStyle.Render(status)
	}
	return mutedStyle.Render(status)
}
