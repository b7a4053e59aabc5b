package tui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabSession Tab = iota
	TabLogging
	TabPlay
	TabDisplay
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabSession:
		return "Session"
	case TabLogging:
		return "Logging"
	case TabPlay:
		return "Play"
	case TabDisplay:
		return "Display"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := strconv.Itoa(int(i)+1) + ":" + i.String()
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	if len(tabs) > 1 {
		spaced := make([]string, 0, len(tabs)*2-1)
		for i, tab := range tabs {
			if i > 0 {
				spaced = append(spaced, tabGap.Render())
			}
			spaced = append(spaced, tab)
		}
		tabs = spaced
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return tabBarStyle.Width(width).Render(row)
}

// renderStatusBar shows which file is being edited and whether it has unsaved
// changes.
func renderStatusBar(path string, modified bool, width int) string {
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	state := "saved"
	if modified {
		dot = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("●")
		state = "modified"
	}
	status := dot + " " + path + "  " + state

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

func renderHelpBar(width int) string {
	help := "tab/shift-tab: switch tabs  1-4: jump to tab  e: edit  ctrl-s: save  q/ctrl-c: quit"
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}
