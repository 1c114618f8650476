// Package convert implements the conversion pipeline orchestrator: routing
// each input track through a fast "copy packets" path or a slow
// "decode/transform/re-encode" path, synchronizing multiple tracks,
// reporting progress, and handling cancellation (spec §4.11).
package convert

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// DiscardReason records why a track was not carried into the output.
type DiscardReason string

const (
	DiscardNone                  DiscardReason = ""
	DiscardUserRequested         DiscardReason = "user_discarded"
	DiscardFormatCapReached      DiscardReason = "format_cap_reached"
	DiscardNoEncodableTargetCodec DiscardReason = "no_encodable_target_codec"
)

// Muxer is the subset of isobmff.Muxer / matroska.Muxer the orchestrator
// drives; both satisfy it with the same method set.
type Muxer interface {
	AddTrack(t *packet.Track) error
	Start() error
	WritePacket(trackID int, pkt *packet.Packet) error
	Finalize() error
}

// PacketIterator is the subset of a PacketSink/demuxer the fast path pulls
// encoded packets from.
type PacketIterator interface {
	Next(ctx context.Context) (*packet.Packet, error)
}

// TrackPlan describes how one input track will be carried into the output,
// decided once up front by Plan.
type TrackPlan struct {
	Track         *packet.Track
	Discard       DiscardReason
	FastPath      bool
	TargetCodec   string
	TargetChannels int // slow path only, after fallback resolution
	TargetRate     int // slow path only, after fallback resolution
	NeedsResample bool
}

// FormatCapability reports, for a given output container, which codecs it
// can carry (accepts) and an ordered preference list an encoder can target
// when a transcode is required.
type FormatCapability interface {
	Accepts(codec string) bool
	PreferredCodecs(kind packet.Kind) []string
}

// EncoderAvailability reports whether codecID can be encoded at the given
// sample rate/channel count (audio) — used to decide the 2ch/48kHz
// fallback spec.md §4.11 describes.
type EncoderAvailability interface {
	CanEncodeAudio(codecID string, sampleRate, channels int) bool
	CanEncodeVideo(codecID string) bool
}

const (
	fallbackSampleRate = 48000
	fallbackChannels   = 2
)

// Plan decides, for each input track, whether it takes the fast or slow
// path, per spec.md §4.11's bullet list. forcedCodec/forceTranscode/
// needsRerender (a resize or rotate)/trimBelowZero are the per-track
// override knobs; there is no bitrate override knob. discardedTracks is the
// caller's explicit discard set and formatCapReached marks tracks discarded
// because the output format's track cap is reached.
func Plan(tracks []*packet.Track, out FormatCapability, enc EncoderAvailability, discardedTracks map[int]bool,
	formatCapReached map[int]bool,
	forcedCodec map[int]string, forceTranscode map[int]bool, needsRerender map[int]bool, trimBelowZero map[int]bool) []TrackPlan {

	plans := make([]TrackPlan, 0, len(tracks))
	for _, t := range tracks {
		p := TrackPlan{Track: t}

		if discardedTracks[t.ID] {
			p.Discard = DiscardUserRequested
			plans = append(plans, p)
			continue
		}
		if formatCapReached[t.ID] {
			p.Discard = DiscardFormatCapReached
			plans = append(plans, p)
			continue
		}
		fc := forcedCodec[t.ID]
		fastPossible := !forceTranscode[t.ID] &&
			fc == "" &&
			!needsRerender[t.ID] &&
			out.Accepts(t.Codec) &&
			!trimBelowZero[t.ID]

		if fastPossible {
			p.FastPath = true
			p.TargetCodec = t.Codec
			plans = append(plans, p)
			continue
		}

		target := fc
		if target == "" {
			for _, cand := range out.PreferredCodecs(t.Kind) {
				if target == "" {
					target = cand
				}
				if (t.Kind == packet.Video && enc.CanEncodeVideo(cand)) ||
					(t.Kind == packet.Audio && (enc.CanEncodeAudio(cand, t.Audio.SampleRate, t.Audio.NumberOfChannels) ||
						enc.CanEncodeAudio(cand, fallbackSampleRate, fallbackChannels))) {
					target = cand
					break
				}
			}
		}
		if target == "" {
			p.Discard = DiscardNoEncodableTargetCodec
			plans = append(plans, p)
			continue
		}

		switch t.Kind {
		case packet.Audio:
			if enc.CanEncodeAudio(target, t.Audio.SampleRate, t.Audio.NumberOfChannels) {
				p.TargetCodec = target
				p.TargetRate = t.Audio.SampleRate
				p.TargetChannels = t.Audio.NumberOfChannels
			} else if enc.CanEncodeAudio(target, fallbackSampleRate, fallbackChannels) {
				p.TargetCodec = target
				p.TargetRate = fallbackSampleRate
				p.TargetChannels = fallbackChannels
				p.NeedsResample = true
			} else {
				p.Discard = DiscardNoEncodableTargetCodec
				plans = append(plans, p)
				continue
			}
		case packet.Video:
			if !enc.CanEncodeVideo(target) {
				p.Discard = DiscardNoEncodableTargetCodec
				plans = append(plans, p)
				continue
			}
			p.TargetCodec = target
		}
		plans = append(plans, p)
	}
	return plans
}

// ProgressFunc receives the job ID and the average normalized progress
// (0..1, averaged across active tracks' max-emitted-timestamp) each time it
// advances, per spec.md §4.11's "averaging across active tracks".
type ProgressFunc func(jobID string, progress float64)

// Job coordinates one end-to-end conversion: track routing decided by
// Plan, a TrackSynchronizer gating multi-track timestamp skew, progress
// reporting, and cooperative cancellation.
type Job struct {
	ID     string
	logger *slog.Logger

	sync     *TrackSynchronizer
	progress ProgressFunc

	mu         sync.Mutex
	cancelled  bool
	totalDur   float64
}

// NewJob creates a conversion job with a fresh UUID identifier.
func NewJob(logger *slog.Logger, totalDuration float64, progress ProgressFunc) *Job {
	id := uuid.NewString()
	return &Job{
		ID:       id,
		logger:   logger.With("component", "convert_job", "job_id", id),
		sync:     NewTrackSynchronizer(),
		progress: progress,
		totalDur: totalDuration,
	}
}

// Cancel sets the job's terminal cancellation flag; every active track
// coroutine checks it at its next await point (spec.md §5).
func (j *Job) Cancel() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	j.logger.Info("conversion cancelled")
	j.sync.Broadcast()
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// RunFastPath streams encoded packets directly from src to dst for one
// track, checking cancellation and synchronizer gating at every packet.
func (j *Job) RunFastPath(ctx context.Context, plan TrackPlan, src PacketIterator, dst Muxer) error {
	for {
		if j.isCancelled() {
			return mediaerrors.NewCanceled("convert.fast_path", nil)
		}
		if err := j.sync.AwaitTurn(ctx, plan.Track.ID); err != nil {
			return err
		}
		pkt, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if pkt == nil {
			return nil
		}
		if err := dst.WritePacket(plan.Track.ID, pkt); err != nil {
			return err
		}
		j.sync.Advance(plan.Track.ID, pkt.Timestamp)
		j.reportProgress()
	}
}

// SlowPathDecoder is the subset of a codec decoder wrapper RunSlowPath
// drives; the caller wires its OnOutput to whatever resample/render/encode
// composition this track's kind and plan require before calling Decode.
type SlowPathDecoder interface {
	Decode(pkt *packet.Packet) error
	Flush() error
}

// RunSlowPath pulls packets from src and feeds them to dec in order,
// letting dec's own OnOutput callback drive the decode -> transform ->
// encode composition for this track. It owns only packet pacing,
// synchronizer gating, cancellation, and progress.
func (j *Job) RunSlowPath(ctx context.Context, plan TrackPlan, src PacketIterator, dec SlowPathDecoder) error {
	for {
		if j.isCancelled() {
			return mediaerrors.NewCanceled("convert.slow_path", nil)
		}
		if err := j.sync.AwaitTurn(ctx, plan.Track.ID); err != nil {
			return err
		}
		pkt, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if pkt == nil {
			return dec.Flush()
		}
		if err := dec.Decode(pkt); err != nil {
			return err
		}
		j.sync.Advance(plan.Track.ID, pkt.Timestamp)
		j.reportProgress()
	}
}

func (j *Job) reportProgress() {
	if j.progress == nil {
		return
	}
	avg := j.sync.AverageTimestamp()
	progress := 1.0
	if j.totalDur > 0 {
		progress = avg / j.totalDur
		if progress > 1 {
			progress = 1
		}
	}
	j.progress(j.ID, progress)
}
