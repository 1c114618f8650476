package convert

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alxayo/mediabox/internal/media/packet"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeFormat struct {
	accepted  map[string]bool
	preferred map[packet.Kind][]string
}

func (f *fakeFormat) Accepts(codec string) bool { return f.accepted[codec] }
func (f *fakeFormat) PreferredCodecs(kind packet.Kind) []string {
	return f.preferred[kind]
}

type fakeEncoders struct {
	audioOK map[string]bool
	videoOK map[string]bool
}

func (f *fakeEncoders) CanEncodeAudio(codecID string, sampleRate, channels int) bool {
	return f.audioOK[codecID] && sampleRate == 48000 && channels == 2
}
func (f *fakeEncoders) CanEncodeVideo(codecID string) bool { return f.videoOK[codecID] }

func TestPlanFastPathWhenFormatAcceptsCodec(t *testing.T) {
	tracks := []*packet.Track{{ID: 1, Kind: packet.Video, Codec: "avc"}}
	out := &fakeFormat{accepted: map[string]bool{"avc": true}}
	enc := &fakeEncoders{}

	plans := Plan(tracks, out, enc, nil, nil, nil, nil, nil, nil)
	if len(plans) != 1 || !plans[0].FastPath {
		t.Fatalf("expected fast path, got %+v", plans)
	}
}

func TestPlanDiscardsUserRequestedTrack(t *testing.T) {
	tracks := []*packet.Track{{ID: 1, Kind: packet.Video, Codec: "avc"}}
	out := &fakeFormat{accepted: map[string]bool{"avc": true}}
	enc := &fakeEncoders{}

	plans := Plan(tracks, out, enc, map[int]bool{1: true}, nil, nil, nil, nil, nil)
	if plans[0].Discard != DiscardUserRequested {
		t.Fatalf("expected user-discard reason, got %v", plans[0].Discard)
	}
}

func TestPlanFallsBackToResampleWhenNativeRateUnencodable(t *testing.T) {
	tracks := []*packet.Track{{
		ID: 1, Kind: packet.Audio, Codec: "pcm-s16",
		Audio: packet.AudioInfo{SampleRate: 44100, NumberOfChannels: 1},
	}}
	out := &fakeFormat{
		accepted:  map[string]bool{},
		preferred: map[packet.Kind][]string{packet.Audio: {"aac"}},
	}
	enc := &fakeEncoders{audioOK: map[string]bool{"aac": true}}

	plans := Plan(tracks, out, enc, nil, nil, nil, nil, nil, nil)
	if plans[0].Discard != DiscardNone {
		t.Fatalf("expected no discard, got %v", plans[0].Discard)
	}
	if !plans[0].NeedsResample || plans[0].TargetRate != 48000 || plans[0].TargetChannels != 2 {
		t.Fatalf("expected fallback to 48kHz/2ch with resample flagged, got %+v", plans[0])
	}
}

func TestPlanRecordsNoEncodableTargetCodec(t *testing.T) {
	tracks := []*packet.Track{{ID: 1, Kind: packet.Video, Codec: "vp9"}}
	out := &fakeFormat{accepted: map[string]bool{}, preferred: map[packet.Kind][]string{packet.Video: {"hevc"}}}
	enc := &fakeEncoders{videoOK: map[string]bool{}}

	plans := Plan(tracks, out, enc, nil, nil, nil, nil, nil, nil)
	if plans[0].Discard != DiscardNoEncodableTargetCodec {
		t.Fatalf("expected no_encodable_target_codec, got %v", plans[0].Discard)
	}
}

type fakePacketSource struct {
	packets []*packet.Packet
	i       int
}

func (f *fakePacketSource) Next(ctx context.Context) (*packet.Packet, error) {
	if f.i >= len(f.packets) {
		return nil, nil
	}
	p := f.packets[f.i]
	f.i++
	return p, nil
}

type fakeMuxer struct{ written []*packet.Packet }

func (m *fakeMuxer) AddTrack(t *packet.Track) error                        { return nil }
func (m *fakeMuxer) Start() error                                          { return nil }
func (m *fakeMuxer) WritePacket(trackID int, pkt *packet.Packet) error {
	m.written = append(m.written, pkt)
	return nil
}
func (m *fakeMuxer) Finalize() error { return nil }

func TestRunFastPathCopiesAllPackets(t *testing.T) {
	job := NewJob(testLogger(), 10, nil)
	plan := TrackPlan{Track: &packet.Track{ID: 1}}
	src := &fakePacketSource{packets: []*packet.Packet{
		{Timestamp: 0}, {Timestamp: 1}, {Timestamp: 2},
	}}
	dst := &fakeMuxer{}

	if err := job.RunFastPath(context.Background(), plan, src, dst); err != nil {
		t.Fatalf("RunFastPath: %v", err)
	}
	if len(dst.written) != 3 {
		t.Fatalf("expected 3 packets written, got %d", len(dst.written))
	}
}

func TestRunFastPathStopsOnCancellation(t *testing.T) {
	job := NewJob(testLogger(), 10, nil)
	job.Cancel()
	plan := TrackPlan{Track: &packet.Track{ID: 1}}
	src := &fakePacketSource{packets: []*packet.Packet{{Timestamp: 0}}}
	dst := &fakeMuxer{}

	if err := job.RunFastPath(context.Background(), plan, src, dst); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestTrackSynchronizerGatesFastTrack(t *testing.T) {
	s := NewTrackSynchronizer()
	s.Advance(1, 0)
	s.Advance(2, 0)

	s.Advance(1, 6) // track 1 now 6s ahead of track 2, exceeding the 5s max lead

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = s.AwaitTurn(ctx, 1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("expected track 1 to block while 6s ahead of track 2")
	case <-time.After(20 * time.Millisecond):
	}

	s.Advance(2, 2) // track 2 catches up enough (lead now 4s, within bounds)
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected track 1 to unblock once lead narrowed")
	}
}

func TestTrackSynchronizerAverageTimestamp(t *testing.T) {
	s := NewTrackSynchronizer()
	s.Advance(1, 2)
	s.Advance(2, 4)
	if avg := s.AverageTimestamp(); avg != 3 {
		t.Fatalf("expected average 3, got %v", avg)
	}
}
