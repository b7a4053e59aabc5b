package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wlpresent/internal/config"
)

// model is the root bubbletea model.
type model struct {
	configPath string
	result     *config.LoadResult

	activeTab  Tab
	sessionTab SettingsTab
	loggingTab SettingsTab
	playTab    SettingsTab
	displayTab DisplayTab

	originalConfig *config.Config
	saveOverlay    SaveOverlay

	width  int
	height int
}

func newModel(configPath string) (model, error) {
	if configPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return model{}, err
		}
		configPath = path
	}
	res, err := config.LoadFromPath(configPath)
	if err != nil {
		return model{}, err
	}
	return newModelFromResult(configPath, res, nil), nil
}

func newModelFromResult(configPath string, res *config.LoadResult, connect connectFunc) model {
	cfg := res.Config
	m := model{
		configPath:     configPath,
		result:         res,
		activeTab:      TabSession,
		originalConfig: cloneConfig(cfg),
		sessionTab:     NewSettingsTab("Session", sessionFields(), cfg, res.Sources),
		loggingTab:     NewSettingsTab("Logging", loggingFields(), cfg, res.Sources),
		playTab:        NewSettingsTab("Play", playFields(), cfg, res.Sources),
		displayTab:     NewDisplayTab(cfg, connect),
	}
	m.playTab.preview = previewPlay
	return m
}

func (m model) contentHeight() int {
	return max(m.height-4, 1)
}

func (m model) modified() bool {
	return len(configDiff(m.originalConfig, m.result.Config)) > 0
}

// activeSettings returns the settings tab in front, or nil on the Display tab.
func (m *model) activeSettings() *SettingsTab {
	switch m.activeTab {
	case TabSession:
		return &m.sessionTab
	case TabLogging:
		return &m.loggingTab
	case TabPlay:
		return &m.playTab
	}
	return nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
		sub := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.sessionTab, _ = m.sessionTab.Update(sub)
		m.loggingTab, _ = m.loggingTab.Update(sub)
		m.playTab, _ = m.playTab.Update(sub)
		m.displayTab, _ = m.displayTab.Update(sub)
		return m, nil
	}
	// Probe results land on the Display tab whichever tab is in front.
	if _, ok := msg.(probeMsg); ok {
		var cmd tea.Cmd
		m.displayTab, cmd = m.displayTab.Update(msg)
		return m, cmd
	}

	if m.saveOverlay.Active() {
		if km, ok := msg.(tea.KeyMsg); ok {
			if km.String() == "ctrl+c" {
				return m, tea.Quit
			}
			prev := m.saveOverlay.phase
			m.saveOverlay = m.saveOverlay.Update(km, m.result.Config, m.configPath)
			if prev == savePreview && m.saveOverlay.SaveSucceeded() {
				m.originalConfig = cloneConfig(m.result.Config)
			}
		}
		return m, nil
	}

	km, isKey := msg.(tea.KeyMsg)

	// An open form consumes every key but ctrl+c.
	if tab := m.activeSettings(); tab != nil && tab.editing {
		if isKey && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		*tab, cmd = tab.Update(msg)
		return m, cmd
	}

	if isKey {
		switch km.String() {
		case "ctrl+s":
			m.saveOverlay.Show(m.originalConfig, m.result.Config)
			return m, nil
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			return m.switchTab((m.activeTab + 1) % tabCount)
		case "shift+tab":
			return m.switchTab((m.activeTab - 1 + tabCount) % tabCount)
		case "1", "2", "3", "4":
			return m.switchTab(Tab(km.String()[0] - '1'))
		}
	}

	var cmd tea.Cmd
	if tab := m.activeSettings(); tab != nil {
		*tab, cmd = tab.Update(msg)
	} else {
		m.displayTab, cmd = m.displayTab.Update(msg)
	}
	return m, cmd
}

// switchTab probes on the first visit to the Display tab.
func (m model) switchTab(t Tab) (tea.Model, tea.Cmd) {
	m.activeTab = t
	if t == TabDisplay && m.displayTab.result == nil && m.displayTab.err == nil {
		return m, m.displayTab.Probe()
	}
	return m, nil
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.configPath, m.modified(), m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)
	contentHeight := max(m.height-lipgloss.Height(statusBar)-lipgloss.Height(tabBar)-lipgloss.Height(helpBar), 1)

	var content string
	switch {
	case m.saveOverlay.Active():
		content = m.saveOverlay.View(m.width, contentHeight)
	case m.activeTab == TabDisplay:
		content = m.displayTab.View()
	default:
		content = m.activeSettings().View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, tabBar, content, helpBar)
}
