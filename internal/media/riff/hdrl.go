package riff

import (
	"context"
	"encoding/binary"

	"github.com/alxayo/mediabox/internal/media/packet"
)

// AVIIF_KEYFRAME, per the classic AVIOLDINDEX flags field (spec §6).
const aviifKeyframe = 0x10

// streamInfo is one strl's parsed strh+strf fields, kept around only long
// enough to build the stream's Track and timestamp formula.
type streamInfo struct {
	index int
	kind  packet.Kind

	fccHandler string // video compression FourCC
	formatTag  uint16 // audio WAVEFORMATEX tag

	scale, rate uint32
	sampleSize  uint32 // strh sample_size; 0 or 1 marks variable/compressed audio

	width, height int
	samplesPerSec int
	channels      int
	bitsPerSample int
}

// parseHdrl walks the hdrl list's direct children (avih, and one strl LIST
// per stream) and returns the parsed streams in declaration order.
func (d *Demuxer) parseHdrl(ctx context.Context, start, end int64) ([]*streamInfo, error) {
	var streams []*streamInfo
	pos := start
	for pos < end {
		h, err := d.readChunkHeader(ctx, pos)
		if err != nil {
			return nil, err
		}
		if h.ID == "LIST" && h.ListType == "strl" {
			si, err := d.parseStrl(ctx, len(streams), h.BodyPos+4, h.BodyPos+h.Size)
			if err != nil {
				return nil, err
			}
			streams = append(streams, si)
		}
		pos = h.BodyPos + paddedSize(h.Size)
	}
	return streams, nil
}

// parseStrl walks one strl list's strh/strf children.
func (d *Demuxer) parseStrl(ctx context.Context, index int, start, end int64) (*streamInfo, error) {
	si := &streamInfo{index: index}
	pos := start
	for pos < end {
		h, err := d.readChunkHeader(ctx, pos)
		if err != nil {
			return nil, err
		}
		switch h.ID {
		case "strh":
			if err := d.parseStrh(ctx, si, h.BodyPos, h.BodyPos+h.Size); err != nil {
				return nil, err
			}
		case "strf":
			if err := d.parseStrf(ctx, si, h.BodyPos, h.BodyPos+h.Size); err != nil {
				return nil, err
			}
		}
		pos = h.BodyPos + paddedSize(h.Size)
	}
	return si, nil
}

// parseStrh reads an AVISTREAMHEADER (56 bytes): fccType, fccHandler, flags,
// priority, language, initialFrames, scale, rate, start, length,
// suggestedBufferSize, quality, sampleSize, and a 4xint16 frame rect.
func (d *Demuxer) parseStrh(ctx context.Context, si *streamInfo, start, end int64) error {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 56 {
		return err
	}
	fccType := string(b[0:4])
	switch fccType {
	case "vids":
		si.kind = packet.Video
	case "auds":
		si.kind = packet.Audio
	}
	si.fccHandler = string(b[4:8])
	si.scale = binary.LittleEndian.Uint32(b[20:24])
	si.rate = binary.LittleEndian.Uint32(b[24:28])
	si.sampleSize = binary.LittleEndian.Uint32(b[44:48])
	left := int(int16(binary.LittleEndian.Uint16(b[48:50])))
	top := int(int16(binary.LittleEndian.Uint16(b[50:52])))
	right := int(int16(binary.LittleEndian.Uint16(b[52:54])))
	bottom := int(int16(binary.LittleEndian.Uint16(b[54:56])))
	if right > left && bottom > top {
		si.width = right - left
		si.height = bottom - top
	}
	return nil
}

// parseStrf reads a BITMAPINFOHEADER (video) or WAVEFORMATEX (audio),
// depending on the kind strh already recorded.
func (d *Demuxer) parseStrf(ctx context.Context, si *streamInfo, start, end int64) error {
	b, err := d.read(ctx, start, end)
	if err != nil {
		return err
	}
	switch si.kind {
	case packet.Video:
		if len(b) < 24 {
			return nil
		}
		w := int(int32(binary.LittleEndian.Uint32(b[4:8])))
		h := int(int32(binary.LittleEndian.Uint32(b[8:12])))
		if w > 0 {
			si.width = w
		}
		if h > 0 {
			si.height = abs32(h)
		}
		si.fccHandler = string(b[16:20])
	case packet.Audio:
		if len(b) < 16 {
			return nil
		}
		si.formatTag = binary.LittleEndian.Uint16(b[0:2])
		si.channels = int(binary.LittleEndian.Uint16(b[2:4]))
		si.samplesPerSec = int(binary.LittleEndian.Uint32(b[4:8]))
		si.bitsPerSample = int(binary.LittleEndian.Uint16(b[14:16]))
	}
	return nil
}

func abs32(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
