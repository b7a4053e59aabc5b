package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDisplay is the socket name compositors use when WAYLAND_DISPLAY is unset.
const DefaultDisplay = "wayland-0"

// Dir returns the runtime directory holding compositor sockets. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	runUserDir := fmt.Sprintf("/run/user/%d", os.Getuid())
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}
	return "", fmt.Errorf("XDG_RUNTIME_DIR is not set and %s does not exist", runUserDir)
}

// WaylandSocket resolves the compositor socket path. display may be a socket
// name, an absolute path, or empty to use WAYLAND_DISPLAY and then wayland-0.
func WaylandSocket(display string) (string, error) {
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		display = DefaultDisplay
	}
	if filepath.IsAbs(display) {
		return display, nil
	}

	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, display), nil
}
