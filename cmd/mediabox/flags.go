package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values as validated by parseFlags; the
// commands read it directly, with no translation into a separate Config type.
type cliConfig struct {
	command string // "mux", "demux", or "convert"

	input  string
	output string
	format string // output container for mux/convert: "isobmff" | "matroska"
	webm   bool   // matroska output uses the WebM doctype/profile

	jobPath  string
	jobWatch bool

	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	if len(args) == 0 {
		return nil, errors.New("expected a subcommand: mux, demux, or convert")
	}

	cfg := &cliConfig{}
	if args[0] == "-version" || args[0] == "--version" {
		cfg.showVersion = true
		return cfg, nil
	}

	cfg.command = args[0]
	switch cfg.command {
	case "mux", "demux", "convert":
	default:
		return nil, fmt.Errorf("unknown subcommand %q: expected mux, demux, or convert", cfg.command)
	}

	fs := flag.NewFlagSet("mediabox "+cfg.command, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	fs.StringVar(&cfg.input, "in", "", "input file path")
	fs.StringVar(&cfg.output, "out", "", "output file path")
	fs.StringVar(&cfg.format, "format", "", "output container: isobmff|matroska (mux/convert only)")
	fs.BoolVar(&cfg.webm, "webm", false, "write a WebM-profile Matroska document (matroska output only)")
	fs.StringVar(&cfg.jobPath, "job", "", "JSON job file describing a conversion (convert only)")
	fs.BoolVar(&cfg.jobWatch, "job-watch", false, "watch -job for changes and re-run on replacement (convert only)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if err := validateCommandFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateCommandFlags(cfg *cliConfig) error {
	if cfg.command == "convert" {
		if cfg.jobPath == "" {
			return errors.New("convert requires -job")
		}
		if cfg.jobWatch && cfg.input != "" {
			return errors.New("-job-watch and -in are mutually exclusive: per-job input comes from the job file")
		}
		return nil
	}

	if cfg.input == "" {
		return fmt.Errorf("%s requires -in", cfg.command)
	}
	if cfg.output == "" {
		return fmt.Errorf("%s requires -out", cfg.command)
	}
	if cfg.command == "mux" {
		switch cfg.format {
		case "isobmff", "matroska":
		default:
			return fmt.Errorf("mux requires -format of isobmff or matroska, got %q", cfg.format)
		}
	}
	return nil
}
