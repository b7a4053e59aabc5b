package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/present"
)

const probeTimeout = 5 * time.Second

type probeItem struct {
	title string
	desc  string
}

func (i probeItem) Title() string       { return i.title }
func (i probeItem) Description() string { return i.desc }
func (i probeItem) FilterValue() string { return i.title }

// probeResult is what a probe learned before its session was torn down.
type probeResult struct {
	missing    []string
	viewporter bool
	globals    []present.Global
	formats    []present.Format
	overflow   error
}

type probeMsg struct {
	result probeResult
	err    error
}

type connectFunc func(ctx context.Context, opts present.Options) (*present.Session, error)

// DisplayTab probes the compositor named by the current config and lists
// what it offers.
type DisplayTab struct {
	list    list.Model
	cfg     *config.Config
	connect connectFunc

	probing bool
	result  *probeResult
	err     error

	width  int
	height int
}

func NewDisplayTab(cfg *config.Config, connect connectFunc) DisplayTab {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Compositor"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	if connect == nil {
		connect = present.NewSession
	}
	return DisplayTab{list: l, cfg: cfg, connect: connect}
}

// Probe starts a probe in the background.
func (d *DisplayTab) Probe() tea.Cmd {
	if d.cfg == nil || d.probing {
		return nil
	}
	d.probing = true
	opts := d.cfg.SessionOptions()
	connect := d.connect
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		res, err := runProbe(ctx, connect, opts)
		return probeMsg{result: res, err: err}
	}
}

func runProbe(ctx context.Context, connect connectFunc, opts present.Options) (probeResult, error) {
	session, err := connect(ctx, opts)
	if err != nil {
		var capErr *present.CapabilityError
		if errors.As(err, &capErr) {
			return probeResult{missing: capErr.Missing}, nil
		}
		return probeResult{}, err
	}
	defer session.Destroy()
	return probeResult{
		viewporter: session.HasViewporter(),
		globals:    session.Globals(),
		formats:    session.Formats(),
		overflow:   session.FormatOverflow(),
	}, nil
}

func (d DisplayTab) Update(msg tea.Msg) (DisplayTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.list.SetSize(max(d.width-4, 10), max(d.height-4, 3))
		return d, nil
	case probeMsg:
		d.probing = false
		d.err = msg.err
		if msg.err == nil {
			res := msg.result
			d.result = &res
			d.list.SetItems(probeItems(res))
		}
		return d, nil
	case tea.KeyMsg:
		if msg.String() == "r" {
			return d, d.Probe()
		}
	}
	var cmd tea.Cmd
	d.list, cmd = d.list.Update(msg)
	return d, cmd
}

func probeItems(res probeResult) []list.Item {
	var items []list.Item
	if len(res.missing) > 0 {
		items = append(items, probeItem{
			title: "not ready",
			desc:  "missing " + strings.Join(res.missing, ", "),
		})
		return items
	}
	formats := make([]string, 0, len(res.formats))
	for _, f := range res.formats {
		formats = append(formats, f.String())
	}
	desc := strings.Join(formats, " ")
	if res.overflow != nil {
		desc += "  (truncated)"
	}
	items = append(items, probeItem{
		title: fmt.Sprintf("%d dmabuf formats", len(res.formats)),
		desc:  desc,
	})
	for _, g := range res.globals {
		items = append(items, probeItem{
			title: g.Interface,
			desc:  fmt.Sprintf("name %d, version %d", g.Name, g.Version),
		})
	}
	return items
}

func (d DisplayTab) View() string {
	style := lipgloss.NewStyle().Width(d.width).Height(d.height).Padding(1, 2)
	switch {
	case d.probing && d.result == nil:
		return style.Render(dimStyle.Render("Probing compositor..."))
	case d.err != nil:
		return style.Render(errStyle.Render("Probe failed: "+d.err.Error()) + "\n\n" + dimStyle.Render("Press 'r' to retry"))
	case d.result == nil:
		return style.Render(dimStyle.Render("Press 'r' to probe the compositor"))
	}

	header := okStyle.Render("ready")
	if len(d.result.missing) > 0 {
		header = errStyle.Render("not ready")
	} else if !d.result.viewporter {
		header += dimStyle.Render("  (no wp_viewporter: buffers shown unscaled)")
	}
	return style.Render(header + "\n" + d.list.View())
}
