package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/wlpresent/internal/present"
)

type probeReport struct {
	Ready          bool             `json:"ready"`
	Missing        []string         `json:"missing,omitempty"`
	Viewporter     bool             `json:"viewporter"`
	Globals        []present.Global `json:"globals,omitempty"`
	Formats        []string         `json:"formats,omitempty"`
	FormatOverflow string           `json:"format_overflow,omitempty"`
}

func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/wlpresent/config.yaml)")
	display := fs.String("display", "", "Wayland display (default: config, then $WAYLAND_DISPLAY)")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlpresent probe [--path PATH] [--display NAME] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Connect to the compositor and report whether dmabuf presentation is")
		fmt.Fprintln(os.Stderr, "possible. Exits 1 when a required global is missing.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "probe takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := res.Config
	logger := newLogger(cfg.Log, os.Stderr)

	opts := cfg.SessionOptions()
	if *display != "" {
		opts.Display = *display
	}
	opts.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report probeReport
	session, err := present.NewSession(ctx, opts)
	if err != nil {
		var capErr *present.CapabilityError
		if !errors.As(err, &capErr) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		report.Missing = capErr.Missing
	} else {
		report.Ready = true
		report.Viewporter = session.HasViewporter()
		report.Globals = session.Globals()
		for _, f := range session.Formats() {
			report.Formats = append(report.Formats, f.String())
		}
		if err := session.FormatOverflow(); err != nil {
			report.FormatOverflow = err.Error()
		}
		session.Destroy()
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	} else {
		printProbeReport(os.Stdout, report)
	}
	if !report.Ready {
		return 1
	}
	return 0
}

func printProbeReport(w io.Writer, r probeReport) {
	if !r.Ready {
		fmt.Fprintf(w, "ready:      false (missing %v)\n", r.Missing)
		return
	}
	fmt.Fprintln(w, "ready:      true")
	fmt.Fprintf(w, "viewporter: %v\n", r.Viewporter)
	fmt.Fprintln(w, "globals:")
	for _, g := range r.Globals {
		fmt.Fprintf(w, "  %-4d %-28s v%d\n", g.Name, g.Interface, g.Version)
	}
	fmt.Fprintf(w, "formats (%d):", len(r.Formats))
	for _, f := range r.Formats {
		fmt.Fprintf(w, " %s", f)
	}
	fmt.Fprintln(w)
	if r.FormatOverflow != "" {
		fmt.Fprintf(w, "warning:    %s\n", r.FormatOverflow)
	}
}
