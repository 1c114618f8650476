package main

import (
	"context"
	"fmt"
	"log/slog"
)

// runDemux opens cfg.input and prints a one-line summary per track: kind,
// codec, and packet count, the same "probe" shape the teacher exposes
// through its connection/stream logging rather than a dedicated tool.
func runDemux(ctx context.Context, logger *slog.Logger, cfg *cliConfig) error {
	d, f, err := openDemuxer(ctx, cfg.input)
	if err != nil {
		return err
	}
	defer f.Close()

	tracks := d.Tracks()
	logger.Info("opened container", "path", cfg.input, "tracks", len(tracks))

	for _, t := range tracks {
		count := 0
		p, err := d.GetFirstPacket(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("track %d: %w", t.ID, err)
		}
		for p != nil {
			count++
			p, err = d.GetNextPacket(ctx, t.ID, p)
			if err != nil {
				return fmt.Errorf("track %d: %w", t.ID, err)
			}
		}
		fmt.Printf("track %d: kind=%s codec=%s packets=%d\n", t.ID, t.Kind, t.Codec, count)
	}
	return nil
}
