package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallsBackToRunUser(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	runUser := fmt.Sprintf("/run/user/%d", os.Getuid())
	got, err := Dir()
	if info, statErr := os.Stat(runUser); statErr == nil && info.IsDir() {
		if err != nil || got != runUser {
			t.Fatalf("Dir() = %q, %v, want %q", got, err, runUser)
		}
		return
	}
	if err == nil {
		t.Fatalf("Dir() = %q, want error when no runtime dir exists", got)
	}
}

func TestWaylandSocket(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	tests := []struct {
		name    string
		env     string
		display string
		want    string
	}{
		{"default socket", "", "", filepath.Join(td, DefaultDisplay)},
		{"env socket", "wayland-1", "", filepath.Join(td, "wayland-1")},
		{"explicit name wins over env", "wayland-1", "wayland-7", filepath.Join(td, "wayland-7")},
		{"absolute path", "wayland-1", "/tmp/compositor.sock", "/tmp/compositor.sock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WAYLAND_DISPLAY", tt.env)
			got, err := WaylandSocket(tt.display)
			if err != nil {
				t.Fatalf("WaylandSocket(%q) error: %v", tt.display, err)
			}
			if got != tt.want {
				t.Fatalf("WaylandSocket(%q) = %q, want %q", tt.display, got, tt.want)
			}
		})
	}
}
