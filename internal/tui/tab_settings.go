package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wlpresent/internal/config"
)

// SettingsTab shows one config section and edits it through a huh form.
type SettingsTab struct {
	title   string
	fields  []field
	cfg     *config.Config
	sources map[string]config.Source

	width  int
	height int

	editing bool
	form    *huh.Form
	values  []string
	lastErr string

	// preview, when set, renders below the values.
	preview func(cfg *config.Config, width, height int) string
}

func NewSettingsTab(title string, fields []field, cfg *config.Config, sources map[string]config.Source) SettingsTab {
	return SettingsTab{title: title, fields: fields, cfg: cfg, sources: sources}
}

func (s SettingsTab) Update(msg tea.Msg) (SettingsTab, tea.Cmd) {
	if s.editing {
		return s.updateEditing(msg)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" && s.cfg != nil {
			s.startEditing()
			return s, s.form.Init()
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}
	return s, nil
}

func (s SettingsTab) updateEditing(msg tea.Msg) (SettingsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			s.editing = false
			s.form = nil
			return s, nil
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State == huh.StateCompleted {
		s.lastErr = ""
		if err := applyFields(s.cfg, s.fields, s.values); err != nil {
			s.lastErr = err.Error()
		}
		s.editing = false
		s.form = nil
		return s, nil
	}
	return s, cmd
}

func (s *SettingsTab) startEditing() {
	s.values = make([]string, len(s.fields))
	inputs := make([]huh.Field, 0, len(s.fields))
	for i, f := range s.fields {
		s.values[i] = f.get(s.cfg)
		if len(f.options) > 0 {
			inputs = append(inputs, huh.NewSelect[string]().
				Key(f.path).
				Title(f.title).
				Description(f.desc).
				Options(huh.NewOptions(f.options...)...).
				Value(&s.values[i]))
			continue
		}
		inputs = append(inputs, huh.NewInput().
			Key(f.path).
			Title(f.title).
			Description(f.desc).
			Value(&s.values[i]))
	}

	w := max(s.width-4, 40)
	s.form = huh.NewForm(huh.NewGroup(inputs...)).
		WithWidth(w).
		WithShowHelp(true).
		WithShowErrors(true)
	s.editing = true
}

func (s SettingsTab) View() string {
	style := lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Padding(1, 2)

	if s.editing && s.form != nil {
		header := lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).Render("Editing "+s.title) +
			dimStyle.Render("  (esc to cancel)")
		return style.Render(header + "\n\n" + s.form.View())
	}
	if s.cfg == nil {
		return style.Foreground(lipgloss.Color("241")).Render("No config loaded")
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(22).
		Align(lipgloss.Right).
		PaddingRight(2)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	lines := []string{""}
	for _, f := range s.fields {
		value := f.get(s.cfg)
		if value == "" {
			value = "(unset)"
		}
		line := labelStyle.Render(f.title) + valueStyle.Render(value)
		if src, ok := s.sources[f.path]; ok && src.Kind == config.SourceFile {
			line += dimStyle.Render("  " + src.String())
		}
		lines = append(lines, line)
	}
	lines = append(lines, "")
	if s.lastErr != "" {
		lines = append(lines, errStyle.Render("  "+s.lastErr), "")
	}
	lines = append(lines, dimStyle.Render("  Press 'e' to edit "+strings.ToLower(s.title)+" settings"))

	content := strings.Join(lines, "\n")
	if s.preview != nil {
		previewH := s.height - len(lines) - 4
		if previewH >= 5 {
			content += "\n\n" + s.preview(s.cfg, s.width-6, previewH)
		}
	}
	return style.Render(content)
}
