package riff

import (
	"context"
	"encoding/binary"

	"github.com/alxayo/mediabox/internal/media/packet"
)

// idx1Entry is one raw AVIOLDINDEX record: a 4-byte chunk ID, a flags word
// (AVIIF_KEYFRAME among others), and the chunk's offset/size within movi.
type idx1Entry struct {
	ckid   string
	flags  uint32
	offset uint32
	size   uint32
}

// parseIdx1 reads the flat 16-byte-per-entry idx1 chunk.
func (d *Demuxer) parseIdx1(ctx context.Context, start, end int64) ([]idx1Entry, error) {
	b, err := d.read(ctx, start, end)
	if err != nil {
		return nil, err
	}
	n := len(b) / 16
	out := make([]idx1Entry, 0, n)
	for i := 0; i < n; i++ {
		off := i * 16
		out = append(out, idx1Entry{
			ckid:   string(b[off : off+4]),
			flags:  binary.LittleEndian.Uint32(b[off+4 : off+8]),
			offset: binary.LittleEndian.Uint32(b[off+8 : off+12]),
			size:   binary.LittleEndian.Uint32(b[off+12 : off+16]),
		})
	}
	return out, nil
}

// buildStreamIndex partitions idx1 entries by stream, in file order, and
// derives each packet's timestamp/duration per spec §4.7's formula:
// (packetIndex * scale) / rate for video, and for audio either the same
// formula or (packetIndex * 1152) / samplesPerSec when sampleSize is 0 or 1
// (the compressed-audio heuristic).
func buildStreamIndex(si *streamInfo, entries []idx1Entry, moviStart int64) ([]packet.IndexEntry, []float64, []float64) {
	n := len(entries)
	samples := make([]packet.IndexEntry, 0, n)
	pts := make([]float64, 0, n)
	dur := make([]float64, 0, n)

	var step float64
	compressedAudio := si.kind == packet.Audio && (si.sampleSize == 0 || si.sampleSize == 1)
	switch {
	case compressedAudio:
		if si.samplesPerSec > 0 {
			step = 1152.0 / float64(si.samplesPerSec)
		}
	case si.rate > 0:
		step = float64(si.scale) / float64(si.rate)
	}

	for i, e := range entries {
		typ := packet.Delta
		if e.flags&aviifKeyframe != 0 {
			typ = packet.Key
		}
		samples = append(samples, packet.IndexEntry{
			Offset: moviStart + int64(e.offset) + 8,
			Size:   int64(e.size),
			Type:   typ,
			CKID:   e.ckid,
		})
		pts = append(pts, step*float64(i))
		dur = append(dur, step)
	}
	return samples, pts, dur
}
