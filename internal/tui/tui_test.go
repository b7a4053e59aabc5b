package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/present"
	"github.com/1broseidon/wlpresent/internal/wltest"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testConnect(t *testing.T, copts wltest.Options) connectFunc {
	return func(ctx context.Context, opts present.Options) (*present.Session, error) {
		_, conn := wltest.New(t, copts)
		opts.RoundtripTimeout = time.Second
		return present.NewSessionConn(ctx, conn, opts)
	}
}

func testModel(t *testing.T, connect connectFunc) model {
	t.Helper()
	res := &config.LoadResult{Config: config.DefaultConfig(), Sources: map[string]config.Source{}}
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := newModelFromResult(path, res, connect)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func TestApplyFields(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		wantErr string
		want    int
	}{
		{"valid", []string{"640", "480", "XRGB8888", "4", "10", "30", "gradient"}, "", 640},
		{"not a number", []string{"wide", "480", "XRGB8888", "4", "10", "30", "bars"}, "play.width", config.DefaultPlayWidth},
		{"fails validation", []string{"640", "480", "XRGB8888", "1", "10", "30", "bars"}, "play.buffers", config.DefaultPlayWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			err := applyFields(cfg, playFields(), tt.values)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("applyFields() error = %v", err)
				}
			} else if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("applyFields() error = %v, want mention of %q", err, tt.wantErr)
			}
			if cfg.Play.Width != tt.want {
				t.Errorf("Play.Width = %d, want %d", cfg.Play.Width, tt.want)
			}
		})
	}
}

func TestFieldsRoundTripDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, fields := range [][]field{sessionFields(), loggingFields(), playFields()} {
		values := make([]string, len(fields))
		for i, f := range fields {
			values[i] = f.get(cfg)
		}
		if err := applyFields(cfg, fields, values); err != nil {
			t.Fatalf("applyFields(defaults) error = %v", err)
		}
	}
	if len(configDiff(config.DefaultConfig(), cfg)) != 0 {
		t.Error("re-applying the current values changed the config")
	}
}

func TestRenderLetterbox(t *testing.T) {
	tests := []struct {
		name           string
		winW, winH     int32
		vw, vh         int32
		width, height  int
		wantRows       int
		wantShadedRows int
	}{
		{"full", 1920, 1080, 1920, 1080, 40, 20, 11, 9},
		{"pillarbox", 1920, 1080, 1080, 1080, 40, 20, 11, 9},
		{"letterbox", 1080, 1920, 1080, 608, 20, 20, 17, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := renderLetterbox(tt.winW, tt.winH, tt.vw, tt.vh, tt.width, tt.height)
			if len(lines) != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(lines), tt.wantRows)
			}
			width := len([]rune(lines[0]))
			shaded := 0
			for _, l := range lines {
				if len([]rune(l)) != width {
					t.Fatalf("ragged row %q", l)
				}
				if strings.ContainsRune(l, '░') {
					shaded++
				}
			}
			if shaded != tt.wantShadedRows {
				t.Errorf("shaded rows = %d, want %d", shaded, tt.wantShadedRows)
			}
			if !strings.HasPrefix(lines[0], "┌") || !strings.HasSuffix(lines[len(lines)-1], "┘") {
				t.Errorf("missing border:\n%s", strings.Join(lines, "\n"))
			}
		})
	}
}

func TestRenderLetterboxTooSmall(t *testing.T) {
	if got := renderLetterbox(1920, 1080, 1920, 1080, 3, 2); got != nil {
		t.Errorf("renderLetterbox() = %v, want nil", got)
	}
}

func TestConfigDiff(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	if got := configDiff(a, b); got != nil {
		t.Fatalf("configDiff(equal) = %v, want nil", got)
	}

	b.Play.FPS = 30
	lines := configDiff(a, b)
	var removed, added []string
	for _, l := range lines {
		switch l.kind {
		case diffRemoved:
			removed = append(removed, strings.TrimSpace(l.text))
		case diffAdded:
			added = append(added, strings.TrimSpace(l.text))
		}
	}
	if len(removed) != 1 || removed[0] != "fps: 60" {
		t.Errorf("removed = %v, want [fps: 60]", removed)
	}
	if len(added) != 1 || added[0] != "fps: 30" {
		t.Errorf("added = %v, want [fps: 30]", added)
	}
	if len(lines) > 7 {
		t.Errorf("len(lines) = %d, want the change plus two lines of context", len(lines))
	}
}

func TestCloneConfigIsIndependent(t *testing.T) {
	cfg := config.DefaultConfig()
	clone := cloneConfig(cfg)
	clone.Play.Pattern = "solid"
	if cfg.Play.Pattern != config.DefaultPlayPattern {
		t.Errorf("Play.Pattern = %q after editing the clone", cfg.Play.Pattern)
	}
	if time.Duration(clone.RoundtripTimeout) != config.DefaultRoundtripTimeout {
		t.Errorf("RoundtripTimeout = %v, want %v", time.Duration(clone.RoundtripTimeout), config.DefaultRoundtripTimeout)
	}
}

func TestDisplayTabProbe(t *testing.T) {
	cfg := config.DefaultConfig()
	d := NewDisplayTab(cfg, testConnect(t, wltest.Options{
		Formats: []uint32{uint32(present.FormatXRGB8888)},
	}))
	cmd := d.Probe()
	if cmd == nil {
		t.Fatal("Probe() = nil")
	}
	if d.Probe() != nil {
		t.Error("second Probe() while probing should be nil")
	}

	msg := cmd()
	d, _ = d.Update(msg)
	if d.err != nil {
		t.Fatalf("probe error = %v", d.err)
	}
	if d.result == nil || !d.result.viewporter {
		t.Fatalf("result = %+v, want a viewporter-capable display", d.result)
	}
	items := d.list.Items()
	if len(items) != 1+len(wltest.DefaultGlobals()) {
		t.Fatalf("len(items) = %d, want %d", len(items), 1+len(wltest.DefaultGlobals()))
	}
	if got := items[0].(probeItem).desc; got != "XR24" {
		t.Errorf("formats item = %q, want XR24", got)
	}
}

func TestDisplayTabProbeMissingGlobals(t *testing.T) {
	d := NewDisplayTab(config.DefaultConfig(), testConnect(t, wltest.Options{
		Globals: []wltest.Global{{Interface: "wl_compositor", Version: 4}, {Interface: "zxdg_shell_v6", Version: 1}},
	}))
	msg := d.Probe()()
	d, _ = d.Update(msg)
	if d.err != nil {
		t.Fatalf("probe error = %v", d.err)
	}
	if d.result == nil || len(d.result.missing) == 0 {
		t.Fatalf("result = %+v, want missing globals", d.result)
	}
	if !strings.Contains(d.list.Items()[0].(probeItem).desc, "zwp_linux_dmabuf_v1") {
		t.Errorf("items = %v, want dmabuf listed as missing", d.list.Items())
	}
}

func TestModelTabSwitching(t *testing.T) {
	m := testModel(t, testConnect(t, wltest.Options{}))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	if m.activeTab != TabLogging {
		t.Fatalf("activeTab = %v, want Logging", m.activeTab)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(model)
	if m.activeTab != TabSession {
		t.Fatalf("activeTab = %v, want Session", m.activeTab)
	}

	next, cmd := m.Update(keyRunes("4"))
	m = next.(model)
	if m.activeTab != TabDisplay {
		t.Fatalf("activeTab = %v, want Display", m.activeTab)
	}
	if cmd == nil {
		t.Fatal("first visit to Display should start a probe")
	}
	next, _ = m.Update(cmd())
	m = next.(model)
	if m.displayTab.result == nil {
		t.Fatal("probe result not delivered to the Display tab")
	}
	if !strings.Contains(m.View(), "ready") {
		t.Error("View() does not report the display as ready")
	}

	_, cmd = m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}

func TestModelSaveFlow(t *testing.T) {
	m := testModel(t, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	if m.saveOverlay.phase != saveResult || m.saveOverlay.err == nil {
		t.Fatalf("save with no changes: phase = %v, err = %v", m.saveOverlay.phase, m.saveOverlay.err)
	}
	next, _ = m.Update(keyRunes("x"))
	m = next.(model)
	if m.saveOverlay.Active() {
		t.Fatal("overlay still active after dismiss")
	}

	m.result.Config.Play.Pattern = "gradient"
	if !m.modified() {
		t.Fatal("modified() = false after an edit")
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	if m.saveOverlay.phase != savePreview {
		t.Fatalf("phase = %v, want preview", m.saveOverlay.phase)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if !m.saveOverlay.SaveSucceeded() {
		t.Fatalf("save failed: %v", m.saveOverlay.err)
	}
	if m.modified() {
		t.Error("modified() = true after saving")
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "pattern: gradient") {
		t.Errorf("saved config missing the edit:\n%s", data)
	}
}
