package main

import "testing"

func TestParseFlagsRequiresSubcommand(t *testing.T) {
	if _, err := parseFlags(nil); err == nil {
		t.Fatalf("expected error for missing subcommand")
	}
}

func TestParseFlagsRejectsUnknownSubcommand(t *testing.T) {
	if _, err := parseFlags([]string{"frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown subcommand")
	}
}

func TestParseFlagsVersionShortCircuits(t *testing.T) {
	cfg, err := parseFlags([]string{"-version"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !cfg.showVersion {
		t.Fatalf("expected showVersion to be set")
	}
}

func TestParseFlagsMuxRequiresInOutFormat(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"missing -in", []string{"mux", "-out", "o.mp4", "-format", "isobmff"}},
		{"missing -out", []string{"mux", "-in", "i.mkv", "-format", "isobmff"}},
		{"missing -format", []string{"mux", "-in", "i.mkv", "-out", "o.mp4"}},
		{"bad -format", []string{"mux", "-in", "i.mkv", "-out", "o.mp4", "-format", "ogg"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := parseFlags(c.args); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseFlagsMuxValid(t *testing.T) {
	cfg, err := parseFlags([]string{"mux", "-in", "i.mkv", "-out", "o.mp4", "-format", "isobmff"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.command != "mux" || cfg.input != "i.mkv" || cfg.output != "o.mp4" || cfg.format != "isobmff" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestParseFlagsDemuxRequiresInOut(t *testing.T) {
	if _, err := parseFlags([]string{"demux", "-in", "i.mp4"}); err == nil {
		t.Fatalf("expected error for missing -out")
	}
	cfg, err := parseFlags([]string{"demux", "-in", "i.mp4", "-out", "o.txt"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.command != "demux" {
		t.Fatalf("unexpected command %q", cfg.command)
	}
}

func TestParseFlagsConvertRequiresJob(t *testing.T) {
	if _, err := parseFlags([]string{"convert"}); err == nil {
		t.Fatalf("expected error for missing -job")
	}
	cfg, err := parseFlags([]string{"convert", "-job", "job.json"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.jobPath != "job.json" {
		t.Fatalf("unexpected jobPath %q", cfg.jobPath)
	}
}

func TestParseFlagsConvertRejectsWatchWithInput(t *testing.T) {
	_, err := parseFlags([]string{"convert", "-job", "job.json", "-job-watch", "-in", "i.mp4"})
	if err == nil {
		t.Fatalf("expected error combining -job-watch with -in")
	}
}

func TestParseFlagsRejectsBadLogLevel(t *testing.T) {
	_, err := parseFlags([]string{"demux", "-in", "i.mp4", "-out", "o.txt", "-log-level", "verbose"})
	if err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}
