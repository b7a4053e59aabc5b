package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/1broseidon/wlpresent/internal/tui"
)

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/wlpresent/config.yaml)")

	if isHelpArg(args) {
		fmt.Fprintln(os.Stderr, "Usage: wlpresent tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive editor for the session, logging and play settings, with a")
		fmt.Fprintln(os.Stderr, "live probe of the compositor.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab/shift-tab  Switch tabs")
		fmt.Fprintln(os.Stderr, "  1-4            Jump to tab")
		fmt.Fprintln(os.Stderr, "  e              Edit the settings on the current tab")
		fmt.Fprintln(os.Stderr, "  r              Re-run the probe (Display tab)")
		fmt.Fprintln(os.Stderr, "  ctrl+s         Review and save changes")
		fmt.Fprintln(os.Stderr, "  q, ctrl+c      Quit")
		return 0
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := tui.Run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
