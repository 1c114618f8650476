package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alxayo/mediabox/internal/media/sink"
)

// runMux remuxes every track of cfg.input into a fresh container at
// cfg.output in cfg.format, writing packets as-is with no transcode
// decision-making — a bare container copy, unlike convert's Plan-driven
// fast/slow routing.
func runMux(ctx context.Context, logger *slog.Logger, cfg *cliConfig) error {
	d, in, err := openDemuxer(ctx, cfg.input)
	if err != nil {
		return err
	}
	defer in.Close()

	m, out, err := openMuxer(cfg.output, cfg.format, cfg.webm)
	if err != nil {
		return err
	}
	defer out.Close()

	tracks := d.Tracks()
	if len(tracks) == 0 {
		return fmt.Errorf("%q has no tracks to mux", cfg.input)
	}
	for _, t := range tracks {
		if err := m.AddTrack(t); err != nil {
			return fmt.Errorf("adding track %d: %w", t.ID, err)
		}
	}
	if err := m.Start(); err != nil {
		return fmt.Errorf("starting muxer: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(tracks))
	for i, t := range tracks {
		i, t := i, t
		src := sink.NewPacketSink(d, t.ID)
		src.Packets(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer src.Return()
			errs[i] = copyTrack(ctx, src, m, t.ID)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if err := m.Finalize(); err != nil {
		return err
	}
	logger.Info("remuxed", "in", cfg.input, "out", cfg.output, "tracks", len(tracks))
	return nil
}

func copyTrack(ctx context.Context, src *sink.PacketSink, dst muxer, trackID int) error {
	for {
		pkt, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if pkt == nil {
			return nil
		}
		if err := dst.WritePacket(trackID, pkt); err != nil {
			return err
		}
	}
}
