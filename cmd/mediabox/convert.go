package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alxayo/mediabox/internal/media/codec"
	"github.com/alxayo/mediabox/internal/media/convert"
	"github.com/alxayo/mediabox/internal/media/sink"
)

// runConvert drives one conversion job end to end: Plan routes every input
// track to the fast path or to discard, a Job paces each fast track through
// a PacketSink into the output muxer, gated by a shared TrackSynchronizer
// (spec.md §4.11). This process registers no codec engines of its own, so
// any track Plan would otherwise route to the slow path ends up discarded
// with no_encodable_target_codec instead — there is nothing installed in
// the registry to transcode it with.
func runConvert(ctx context.Context, logger *slog.Logger, job *jobSpec) error {
	d, f, err := openDemuxer(ctx, job.Input)
	if err != nil {
		return err
	}
	defer f.Close()

	m, out, err := openMuxer(job.Output, job.Format, job.WebM)
	if err != nil {
		return err
	}
	defer out.Close()

	discarded := map[int]bool{}
	forcedCodec := map[int]string{}
	forceTranscode := map[int]bool{}
	needsRerender := map[int]bool{}
	trimBelowZero := map[int]bool{}
	for _, ov := range job.Tracks {
		if ov.Discard {
			discarded[ov.TrackID] = true
		}
		if ov.ForceCodec != "" {
			forcedCodec[ov.TrackID] = ov.ForceCodec
		}
		if ov.ForceRerender || ov.Width != 0 || ov.Height != 0 || ov.Rotate != 0 {
			needsRerender[ov.TrackID] = true
		}
		if ov.TrimBelowZero {
			trimBelowZero[ov.TrackID] = true
		}
	}

	tracks := d.Tracks()
	capability := capabilityFor(job.Format, job.WebM)
	registry := codec.NewRegistry()

	plans := convert.Plan(tracks, capability, registry, discarded, nil, forcedCodec, forceTranscode, needsRerender, trimBelowZero)

	cj := convert.NewJob(logger, 0, func(jobID string, progress float64) {
		logger.Debug("conversion progress", "job_id", jobID, "progress", progress)
	})

	var toRun []convert.TrackPlan
	for _, p := range plans {
		if p.Discard != convert.DiscardNone {
			logger.Info("track discarded", "track_id", p.Track.ID, "reason", p.Discard)
			continue
		}
		if !p.FastPath {
			logger.Info("track requires transcode but no encoder is registered; discarding",
				"track_id", p.Track.ID, "target_codec", p.TargetCodec)
			continue
		}
		if err := m.AddTrack(p.Track); err != nil {
			return fmt.Errorf("adding track %d: %w", p.Track.ID, err)
		}
		toRun = append(toRun, p)
	}
	if len(toRun) == 0 {
		return fmt.Errorf("no track from %q could be carried into %q", job.Input, job.Output)
	}
	if err := m.Start(); err != nil {
		return fmt.Errorf("starting muxer: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(toRun))
	for i, p := range toRun {
		i, p := i, p
		src := sink.NewPacketSink(d, p.Track.ID)
		src.Packets(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer src.Return()
			errs[i] = cj.RunFastPath(ctx, p, src, m)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return m.Finalize()
}
