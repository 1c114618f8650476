package isobmff

import (
	"testing"

	"github.com/alxayo/mediabox/internal/media/packet"
)

func trackFixture() *packet.Track {
	return &packet.Track{ID: 1, Kind: packet.Video, Codec: "avc", TimeResolution: 1, Video: packet.VideoInfo{CodedWidth: 2, CodedHeight: 2}}
}

func TestSamplesPerChunkFor(t *testing.T) {
	stsc := []StscEntry{
		{FirstChunk: 1, SamplesPerChunk: 4, SampleDescriptionIndex: 1},
		{FirstChunk: 3, SamplesPerChunk: 2, SampleDescriptionIndex: 1},
	}
	if got := samplesPerChunkFor(stsc, 1); got != 4 {
		t.Fatalf("chunk 1: expected 4, got %d", got)
	}
	if got := samplesPerChunkFor(stsc, 2); got != 4 {
		t.Fatalf("chunk 2: expected 4, got %d", got)
	}
	if got := samplesPerChunkFor(stsc, 3); got != 2 {
		t.Fatalf("chunk 3: expected 2, got %d", got)
	}
	if got := samplesPerChunkFor(stsc, 10); got != 2 {
		t.Fatalf("chunk 10: expected 2, got %d", got)
	}
}

func TestBuildSampleIndexOffsetsAndTimestamps(t *testing.T) {
	track := trackFixture()
	stts := []SttsEntry{{SampleCount: 4, SampleDelta: 1}}
	stsc := []StscEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescriptionIndex: 1}}
	stsz := []uint32{10, 20, 30, 40}
	stco := []uint64{1000}

	entries, pts, dts, dur := buildSampleIndex(track, stts, nil, nil, stsc, stsz, stco)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Offset != 1000 || entries[1].Offset != 1010 || entries[2].Offset != 1030 || entries[3].Offset != 1060 {
		t.Fatalf("unexpected offsets: %+v", entries)
	}
	for i := range entries {
		if entries[i].Type.String() != "key" {
			t.Fatalf("expected all-key when stss is empty, sample %d is %s", i, entries[i].Type)
		}
	}
	if pts[0] != dts[0] || dts[1] != 1.0 {
		t.Fatalf("unexpected timestamps: pts=%v dts=%v", pts, dts)
	}
	if dur[0] != 1.0 {
		t.Fatalf("unexpected duration: %v", dur[0])
	}
}
