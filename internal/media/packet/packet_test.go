package packet

import "testing"

func TestPacketCloneIsIndependent(t *testing.T) {
	p := &Packet{Data: []byte{1, 2, 3}, Type: Key, Timestamp: 1.5, ByteLength: 3}
	c := p.Clone()
	c.Data[0] = 99
	if p.Data[0] == 99 {
		t.Fatalf("clone shares backing array with original")
	}
	if c.Timestamp != p.Timestamp || c.Type != p.Type {
		t.Fatalf("clone lost scalar fields")
	}
}

func TestIsMetadataOnly(t *testing.T) {
	full := &Packet{Data: []byte{1}, ByteLength: 1}
	if full.IsMetadataOnly() {
		t.Fatalf("packet with data should not be metadata-only")
	}
	meta := &Packet{ByteLength: 10}
	if !meta.IsMetadataOnly() {
		t.Fatalf("packet with no data but nonzero byte length should be metadata-only")
	}
	empty := &Packet{}
	if empty.IsMetadataOnly() {
		t.Fatalf("zero-byte-length packet should not be considered metadata-only")
	}
}

func TestTrackValidate(t *testing.T) {
	video := &Track{ID: 1, Kind: Video, Codec: "avc", TimeResolution: 90000, Video: VideoInfo{CodedWidth: 1920, CodedHeight: 1080}}
	if err := video.Validate(); err != nil {
		t.Fatalf("expected valid video track, got %v", err)
	}

	audio := &Track{ID: 2, Kind: Audio, Codec: "opus", TimeResolution: 48000, Audio: AudioInfo{SampleRate: 48000, NumberOfChannels: 2}}
	if err := audio.Validate(); err != nil {
		t.Fatalf("expected valid audio track, got %v", err)
	}

	bad := &Track{ID: 0, Kind: Video, Codec: "avc", TimeResolution: 90000, Video: VideoInfo{CodedWidth: 1, CodedHeight: 1}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for non-positive track id")
	}
}

func TestTicksSecondsRoundTrip(t *testing.T) {
	tr := &Track{TimeResolution: 30000}
	ticks := tr.SecondsToTicks(1.0 / 30.0)
	if ticks != 1000 {
		t.Fatalf("expected 1000 ticks, got %d", ticks)
	}
	back := tr.TicksToSeconds(ticks)
	if back < 0.0333 || back > 0.0334 {
		t.Fatalf("unexpected round-trip seconds: %v", back)
	}
}
