package riff

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// buildChunk writes a plain chunk: 4-byte ID + LE size + payload + pad byte
// if the payload is odd-length.
func buildChunk(id string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(id)
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(payload)))
	buf.Write(sz[:])
	buf.Write(payload)
	if len(payload)%2 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// buildList writes a LIST chunk with the given 4-byte type tag.
func buildList(listType string, children ...[]byte) []byte {
	var body bytes.Buffer
	body.WriteString(listType)
	for _, c := range children {
		body.Write(c)
	}
	return buildChunk("LIST", body.Bytes())
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
func le16(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}

// buildAVIH constructs a minimal 56-byte AVIMAINHEADER.
func buildAVIH(width, height uint32) []byte {
	var b bytes.Buffer
	b.Write(le32(33333))   // micro_sec_per_frame
	b.Write(le32(0))       // max_bytes_per_sec
	b.Write(le32(0))       // padding_granularity
	b.Write(le32(0x10))    // flags: has_index
	b.Write(le32(3))       // total_frames
	b.Write(le32(0))       // initial_frames
	b.Write(le32(1))       // streams
	b.Write(le32(0))       // suggested_buffer_size
	b.Write(le32(width))
	b.Write(le32(height))
	b.Write(make([]byte, 16)) // reserved
	return b.Bytes()
}

// buildVideoSTRH constructs a minimal 56-byte AVISTREAMHEADER for a video stream.
func buildVideoSTRH(scale, rate uint32) []byte {
	var b bytes.Buffer
	b.WriteString("vids")
	b.WriteString("H264")
	b.Write(le32(0)) // flags
	b.Write(le16(0)) // priority
	b.Write(le16(0)) // language
	b.Write(le32(0)) // initial_frames
	b.Write(le32(scale))
	b.Write(le32(rate))
	b.Write(le32(0)) // start
	b.Write(le32(3)) // length
	b.Write(le32(0)) // suggested_buffer_size
	b.Write(le32(0)) // quality
	b.Write(le32(0)) // sample_size
	b.Write(le16(0)) // left
	b.Write(le16(0)) // top
	b.Write(le16(640))
	b.Write(le16(480))
	return b.Bytes()
}

func buildAudioSTRH(sampleSize uint32) []byte {
	var b bytes.Buffer
	b.WriteString("auds")
	b.WriteString("\x00\x00\x00\x00")
	b.Write(le32(0))
	b.Write(le16(0))
	b.Write(le16(0))
	b.Write(le32(0))
	b.Write(le32(1))
	b.Write(le32(44100))
	b.Write(le32(0))
	b.Write(le32(100))
	b.Write(le32(0))
	b.Write(le32(0))
	b.Write(le32(sampleSize))
	b.Write(le16(0))
	b.Write(le16(0))
	b.Write(le16(0))
	b.Write(le16(0))
	return b.Bytes()
}

func buildVideoSTRF(w, h uint32) []byte {
	var b bytes.Buffer
	b.Write(le32(40)) // bi_size
	b.Write(le32(w))
	b.Write(le32(h))
	b.Write(le16(1))  // planes
	b.Write(le16(24)) // bit_count
	b.WriteString("H264")
	b.Write(le32(0))
	b.Write(le32(0))
	b.Write(le32(0))
	b.Write(le32(0))
	b.Write(le32(0))
	return b.Bytes()
}

func buildAudioSTRF(samplesPerSec uint32) []byte {
	var b bytes.Buffer
	b.Write(le16(wavTagMP3))
	b.Write(le16(2))
	b.Write(le32(samplesPerSec))
	b.Write(le32(0))
	b.Write(le16(0))
	b.Write(le16(0))
	return b.Bytes()
}

// buildAVI assembles a minimal single-video-stream AVI file with 3 frames
// (one key, two delta) indexed by idx1.
func buildAVI() []byte {
	frames := [][]byte{
		{0xAA, 0xAA, 0xAA},
		{0xBB, 0xBB},
		{0xCC, 0xCC, 0xCC, 0xCC},
	}

	strl := buildList("strl", buildChunk("strh", buildVideoSTRH(1, 30)), buildChunk("strf", buildVideoSTRF(640, 480)))
	hdrl := buildList("hdrl", buildChunk("avih", buildAVIH(640, 480)), strl)

	var moviBody bytes.Buffer
	moviBody.WriteString("movi")
	offsets := make([]uint32, len(frames))
	for i, f := range frames {
		offsets[i] = uint32(moviBody.Len()) - 4 // relative to first byte after "movi"
		moviBody.Write(buildChunk("00dc", f))
	}
	movi := buildChunk("LIST", moviBody.Bytes())

	var idx1 bytes.Buffer
	for i, off := range offsets {
		idx1.WriteString("00dc")
		flags := uint32(0)
		if i == 0 {
			flags = aviifKeyframe
		}
		idx1.Write(le32(flags))
		idx1.Write(le32(off))
		idx1.Write(le32(uint32(len(frames[i]))))
	}
	idx1Chunk := buildChunk("idx1", idx1.Bytes())

	var riffBody bytes.Buffer
	riffBody.WriteString("AVI ")
	riffBody.Write(hdrl)
	riffBody.Write(movi)
	riffBody.Write(idx1Chunk)

	return buildChunk("RIFF", riffBody.Bytes())
}

func TestDemuxerParsesVideoStreamAndIndex(t *testing.T) {
	data := buildAVI()
	src := &mio.MemorySource{Data: data}
	r := mio.NewReader(src, 0)
	d := NewDemuxer(r, int64(len(data)))
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	tracks := d.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Codec != "avc" {
		t.Fatalf("unexpected codec: %s", tracks[0].Codec)
	}
	if tracks[0].Video.CodedWidth != 640 || tracks[0].Video.CodedHeight != 480 {
		t.Fatalf("unexpected dims: %+v", tracks[0].Video)
	}

	first, err := d.GetFirstPacket(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetFirstPacket: %v", err)
	}
	if first.Type != packet.Key {
		t.Fatalf("expected first packet to be key")
	}
	if !bytes.Equal(first.Data, []byte{0xAA, 0xAA, 0xAA}) {
		t.Fatalf("unexpected payload: %x", first.Data)
	}

	second, err := d.GetNextPacket(context.Background(), 1, first)
	if err != nil {
		t.Fatalf("GetNextPacket: %v", err)
	}
	if second.Type != packet.Delta || !bytes.Equal(second.Data, []byte{0xBB, 0xBB}) {
		t.Fatalf("unexpected second packet: %+v", second)
	}
	if second.Timestamp <= first.Timestamp {
		t.Fatalf("expected increasing timestamps: %f -> %f", first.Timestamp, second.Timestamp)
	}
}

func TestCompressedAudioHeuristicUsesFixedFrameSize(t *testing.T) {
	strl := buildList("strl", buildChunk("strh", buildAudioSTRH(0)), buildChunk("strf", buildAudioSTRF(44100)))
	hdrl := buildList("hdrl", buildChunk("avih", buildAVIH(0, 0)), strl)

	const n = 100
	var moviBody bytes.Buffer
	moviBody.WriteString("movi")
	offsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		offsets[i] = uint32(moviBody.Len()) - 4
		moviBody.Write(buildChunk("00wb", []byte{byte(i)}))
	}
	movi := buildChunk("LIST", moviBody.Bytes())

	var idx1 bytes.Buffer
	for _, off := range offsets {
		idx1.WriteString("00wb")
		idx1.Write(le32(aviifKeyframe))
		idx1.Write(le32(off))
		idx1.Write(le32(1))
	}
	idx1Chunk := buildChunk("idx1", idx1.Bytes())

	var riffBody bytes.Buffer
	riffBody.WriteString("AVI ")
	riffBody.Write(hdrl)
	riffBody.Write(movi)
	riffBody.Write(idx1Chunk)
	data := buildChunk("RIFF", riffBody.Bytes())

	src := &mio.MemorySource{Data: data}
	r := mio.NewReader(src, 0)
	d := NewDemuxer(r, int64(len(data)))
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	tracks := d.Tracks()
	if len(tracks) != 1 || tracks[0].Codec != "mp3" {
		t.Fatalf("unexpected tracks: %+v", tracks)
	}

	dt := d.tracks[1]
	if len(dt.Samples) != n {
		t.Fatalf("expected %d packets, got %d", n, len(dt.Samples))
	}
	for i, s := range dt.Samples {
		if s.Type != packet.Key {
			t.Fatalf("packet %d: expected key", i)
		}
	}
	wantStep := 1152.0 / 44100.0
	for i := 0; i < 5; i++ {
		got := dt.PTS[i]
		want := float64(i) * wantStep
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("packet %d: timestamp=%f want=%f", i, got, want)
		}
	}
}
