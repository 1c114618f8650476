package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJobFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "job.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing job file: %v", err)
	}
	return path
}

func TestLoadJobParsesTrackOverrides(t *testing.T) {
	path := writeJobFile(t, t.TempDir(), `{
		"input": "in.mkv",
		"output": "out.mp4",
		"format": "isobmff",
		"tracks": [
			{"track_id": 2, "discard": true},
			{"track_id": 3, "force_codec": "aac", "rotate": 90}
		],
		"resample": {"sample_rate": 48000, "channels": 2}
	}`)

	job, err := loadJob(path)
	if err != nil {
		t.Fatalf("loadJob: %v", err)
	}
	if job.Input != "in.mkv" || job.Output != "out.mp4" || job.Format != "isobmff" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(job.Tracks) != 2 || !job.Tracks[0].Discard || job.Tracks[1].ForceCodec != "aac" {
		t.Fatalf("unexpected track overrides: %+v", job.Tracks)
	}
	if job.Resample == nil || job.Resample.SampleRate != 48000 || job.Resample.Channels != 2 {
		t.Fatalf("unexpected resample target: %+v", job.Resample)
	}
}

func TestLoadJobRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	cases := []string{
		`{"output": "out.mp4", "format": "isobmff"}`,
		`{"input": "in.mkv", "format": "isobmff"}`,
		`{"input": "in.mkv", "output": "out.mp4"}`,
		`{"input": "in.mkv", "output": "out.mp4", "format": "ogg"}`,
	}
	for i, c := range cases {
		path := writeJobFile(t, dir, c)
		if _, err := loadJob(path); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
		os.Remove(path)
	}
}

func TestLoadJobRejectsMalformedJSON(t *testing.T) {
	path := writeJobFile(t, t.TempDir(), `{not json`)
	if _, err := loadJob(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
