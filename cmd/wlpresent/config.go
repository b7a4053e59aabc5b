package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/runtimepath"
)

func runConfig(args []string) int {
	if len(args) == 0 || isHelpArg(args) {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  wlpresent config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  wlpresent config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  wlpresent config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	case "print":
		return runConfigPrint(args[1:])
	case "explain":
		return runConfigExplain(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func configFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/wlpresent/config.yaml)")
	return fs, path
}

// runConfigValidate loads the config and reports what a session and a play
// run would resolve it to.
func runConfigValidate(args []string) int {
	fs, path := configFlagSet("validate")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if len(res.Files) == 0 {
		fmt.Println("config: ok (no file, using defaults)")
	} else {
		fmt.Printf("config: ok (%d file(s))\n", len(res.Files))
	}
	socket, err := runtimepath.WaylandSocket(res.Config.Display)
	if err != nil {
		socket = "unresolved: " + err.Error()
	}
	fmt.Printf("socket: %s\n", socket)
	if format, err := res.Config.PlayFormat(); err == nil {
		fmt.Printf("play:   %dx%d %s (0x%08x), %d buffers\n",
			res.Config.Play.Width, res.Config.Play.Height, format, uint32(format), res.Config.Play.Buffers)
	}
	return 0
}

func runConfigPrint(args []string) int {
	fs, path := configFlagSet("print")
	defaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.DefaultConfig()
	if !*defaults {
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = res.Config
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	os.Stdout.Write(data)
	return 0
}

func runConfigExplain(args []string) int {
	fs, path := configFlagSet("explain")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "explain requires exactly one <yaml.path>")
		return 2
	}
	key := fs.Arg(0)

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	value, src, err := config.Explain(res, key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	out, err := yaml.Marshal(value)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("path: %s\nsource: %s\nvalue: %s", key, formatSource(src), out)
	return 0
}

func formatSource(src config.Source) string {
	if src.Kind == config.SourceFile && src.File != "" && src.Line > 0 {
		return fmt.Sprintf("%s line %d, column %d", src.File, src.Line, src.Column)
	}
	return string(src.Kind)
}
