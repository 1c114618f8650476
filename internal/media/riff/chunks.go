package riff

import (
	"context"
	"encoding/binary"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
)

// chunkHeader is a parsed RIFF/LIST/plain chunk header: a 4-byte ID and a
// 4-byte little-endian size, followed (for RIFF and LIST) by a 4-byte form
// or list type.
type chunkHeader struct {
	ID       string
	Size     int64 // payload size, excluding the 8-byte header
	BodyPos  int64 // absolute offset of the first payload byte
	ListType string // set for "RIFF"/"LIST" chunks
}

// readChunkHeader reads the 8-byte ID+size pair at pos, and for RIFF/LIST
// chunks the following 4-byte type tag.
func (d *Demuxer) readChunkHeader(ctx context.Context, pos int64) (chunkHeader, error) {
	if err := d.r.LoadRange(ctx, pos, pos+12); err != nil {
		return chunkHeader{}, err
	}
	end := pos + 12
	if end > d.size {
		end = d.size
	}
	b, _, err := d.r.View(pos, end)
	if err != nil {
		return chunkHeader{}, err
	}
	if len(b) < 8 {
		return chunkHeader{}, mediaerrors.NewInvalidInput("riff.readChunkHeader", nil)
	}
	id := string(b[0:4])
	size := int64(binary.LittleEndian.Uint32(b[4:8]))
	h := chunkHeader{ID: id, Size: size, BodyPos: pos + 8}
	if (id == "RIFF" || id == "RIFX" || id == "LIST") && len(b) >= 12 {
		h.ListType = string(b[8:12])
	}
	return h, nil
}

// paddedSize rounds a chunk payload size up to the next even byte count, per
// RIFF's word-alignment padding rule.
func paddedSize(size int64) int64 {
	if size%2 != 0 {
		return size + 1
	}
	return size
}

func (d *Demuxer) read(ctx context.Context, start, end int64) ([]byte, error) {
	if end > d.size {
		end = d.size
	}
	if err := d.r.LoadRange(ctx, start, end); err != nil {
		return nil, err
	}
	data, _, err := d.r.View(start, end)
	return data, err
}
