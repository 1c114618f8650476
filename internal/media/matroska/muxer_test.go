package matroska

import (
	"context"
	"testing"

	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

func videoTrackFixture() *packet.Track {
	return &packet.Track{ID: 1, Kind: packet.Video, Codec: "vp9", TimeResolution: 30,
		Video: packet.VideoInfo{CodedWidth: 640, CodedHeight: 480}}
}

func audioTrackFixture() *packet.Track {
	return &packet.Track{ID: 2, Kind: packet.Audio, Codec: "opus", TimeResolution: 48000,
		Audio: packet.AudioInfo{SampleRate: 48000, NumberOfChannels: 2}}
}

func TestMuxerDemuxerRoundTripSingleTrack(t *testing.T) {
	w := mio.NewMemoryWriter()
	m := NewMuxer(w, Options{})
	track := videoTrackFixture()
	if err := m.AddTrack(track); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		typ := packet.Delta
		if i == 0 {
			typ = packet.Key
		}
		pkt := &packet.Packet{
			Data:      []byte{0x82, 0x49, 0x83, 0x42, 0x00, byte(i)},
			Type:      typ,
			Timestamp: float64(i) * 0.5,
			Duration:  0.5,
		}
		if err := m.WritePacket(1, pkt); err != nil {
			t.Fatalf("WritePacket %d: %v", i, err)
		}
	}
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	out := w.Bytes()
	if len(out) == 0 {
		t.Fatalf("expected non-empty output")
	}

	src := &mio.MemorySource{Data: out}
	r := mio.NewReader(src, 0)
	d := NewDemuxer(r, int64(len(out)))
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	tracks := d.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Codec != "vp9" {
		t.Fatalf("unexpected codec: %s", tracks[0].Codec)
	}

	first, err := d.GetFirstPacket(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetFirstPacket: %v", err)
	}
	if first.Type != packet.Key {
		t.Fatalf("expected first packet to be key")
	}
}

func TestWebMRejectsDisallowedCodec(t *testing.T) {
	w := mio.NewMemoryWriter()
	m := NewMuxer(w, Options{WebM: true})
	track := &packet.Track{ID: 1, Kind: packet.Video, Codec: "avc", TimeResolution: 30,
		Video: packet.VideoInfo{CodedWidth: 2, CodedHeight: 2}}
	if err := m.AddTrack(track); err == nil {
		t.Fatalf("expected UnsupportedFeature for AVC in WebM")
	}
}

func TestClusterTooLongRejectsExcessiveGap(t *testing.T) {
	w := mio.NewMemoryWriter()
	m := NewMuxer(w, Options{})
	track := videoTrackFixture()
	if err := m.AddTrack(track); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.WritePacket(1, &packet.Packet{Type: packet.Key, Timestamp: 0, Duration: 0.1}); err != nil {
		t.Fatalf("WritePacket 0: %v", err)
	}
	// Single track, so every cluster flushes as soon as it is opened
	// (allTracksQueuedWithKeys is trivially true once one key is queued).
	// 30s is still within the 2^15ms relative-timestamp bound.
	if err := m.WritePacket(1, &packet.Packet{Type: packet.Key, Timestamp: 30, Duration: 0.1}); err != nil {
		t.Fatalf("WritePacket 1: %v", err)
	}
	// 40s past the new cluster's start (30s) exceeds the 32767ms bound.
	if err := m.WritePacket(1, &packet.Packet{Type: packet.Delta, Timestamp: 70, Duration: 0.1}); err == nil {
		t.Fatalf("expected ClusterTooLong")
	}
}

func TestTwoTrackCueTrackPositionsCoverBothTracks(t *testing.T) {
	w := mio.NewMemoryWriter()
	m := NewMuxer(w, Options{})
	v := videoTrackFixture()
	a := audioTrackFixture()
	if err := m.AddTrack(v); err != nil {
		t.Fatalf("AddTrack video: %v", err)
	}
	if err := m.AddTrack(a); err != nil {
		t.Fatalf("AddTrack audio: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.WritePacket(1, &packet.Packet{Type: packet.Key, Timestamp: 0, Duration: 0.5}); err != nil {
		t.Fatalf("video packet: %v", err)
	}
	if err := m.WritePacket(2, &packet.Packet{Type: packet.Key, Timestamp: 0, Duration: 0.02}); err != nil {
		t.Fatalf("audio packet: %v", err)
	}
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(m.cues) != 1 || len(m.cues[0].trackNumbers) != 2 {
		t.Fatalf("expected one cue covering both tracks, got %+v", m.cues)
	}
}
