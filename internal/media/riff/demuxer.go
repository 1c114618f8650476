// Package riff implements a demuxer for RIFF/AVI containers (spec §4.7):
// header + idx1 parsing, and a per-stream packet index compatible with the
// same getFirstPacket/getPacket/getNextPacket/getKeyPacket/getNextKeyPacket
// retrieval contract as the isobmff and matroska demuxers.
package riff

import (
	"context"
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// DemuxTrack is a demuxed stream's parsed sample index plus track metadata.
type DemuxTrack struct {
	Track   *packet.Track
	Samples []packet.IndexEntry
	PTS     []float64
	Dur     []float64
}

// Demuxer parses a RIFF/AVI file through a cached mio.Reader.
type Demuxer struct {
	r    *mio.Reader
	size int64

	tracks map[int]*DemuxTrack
	order  []int
}

// NewDemuxer creates a Demuxer over r, whose total size is size.
func NewDemuxer(r *mio.Reader, size int64) *Demuxer {
	return &Demuxer{r: r, size: size, tracks: make(map[int]*DemuxTrack)}
}

// Open walks the RIFF chunk tree: hdrl (avih + per-stream strl), movi
// (payload location), and idx1 (flat index), then builds each stream's
// packet index.
func (d *Demuxer) Open(ctx context.Context) error {
	top, err := d.readChunkHeader(ctx, 0)
	if err != nil {
		return err
	}
	if top.ID != "RIFF" && top.ID != "RIFX" {
		return mediaerrors.NewInvalidInput("riff.open", errNotRIFF)
	}
	if top.ListType != "AVI " {
		return mediaerrors.NewInvalidInput("riff.open", errNotAVI)
	}

	var streams []*streamInfo
	var idxEntries []idx1Entry
	var moviStart int64
	haveMovi := false

	pos := top.BodyPos + 4 // past the "AVI " form tag
	end := top.BodyPos + top.Size
	for pos < end {
		h, err := d.readChunkHeader(ctx, pos)
		if err != nil {
			return err
		}
		switch {
		case h.ID == "LIST" && h.ListType == "hdrl":
			streams, err = d.parseHdrl(ctx, h.BodyPos+4, h.BodyPos+h.Size)
			if err != nil {
				return err
			}
		case h.ID == "LIST" && h.ListType == "movi":
			moviStart = h.BodyPos + 4
			haveMovi = true
		case h.ID == "idx1":
			idxEntries, err = d.parseIdx1(ctx, h.BodyPos, h.BodyPos+h.Size)
			if err != nil {
				return err
			}
		}
		pos = h.BodyPos + paddedSize(h.Size)
	}

	if !haveMovi {
		return mediaerrors.NewInvalidInput("riff.open", errNoMovi)
	}

	byStream := make(map[int][]idx1Entry)
	for _, e := range idxEntries {
		typ, idx, ok := parseStreamChunkID(e.ckid)
		if !ok || !isMediaChunkType(typ) {
			continue
		}
		byStream[idx] = append(byStream[idx], e)
	}

	for _, si := range streams {
		track := &packet.Track{ID: si.index + 1, Kind: si.kind}
		switch si.kind {
		case packet.Video:
			track.Codec = videoCodecFromFourCC(si.fccHandler)
			track.Video = packet.VideoInfo{CodedWidth: si.width, CodedHeight: si.height}
			track.TimeResolution = int(si.rate)
		case packet.Audio:
			track.Codec = audioCodecFromFormatTag(si.formatTag, si.bitsPerSample)
			track.Audio = packet.AudioInfo{SampleRate: si.samplesPerSec, NumberOfChannels: si.channels}
			track.TimeResolution = si.samplesPerSec
		}
		if track.TimeResolution <= 0 {
			track.TimeResolution = 1
		}

		entries := byStream[si.index]
		samples, pts, dur := buildStreamIndex(si, entries, moviStart)

		d.tracks[track.ID] = &DemuxTrack{Track: track, Samples: samples, PTS: pts, Dur: dur}
		d.order = append(d.order, track.ID)
	}

	return nil
}

// parseStreamChunkID splits a movi/idx1 chunk ID into its two-digit stream
// index and two-letter type code ("00dc", "01wb", ...).
func parseStreamChunkID(id string) (typ string, index int, ok bool) {
	if len(id) != 4 {
		return "", 0, false
	}
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	if !isDigit(id[0]) || !isDigit(id[1]) {
		return "", 0, false
	}
	index = int(id[0]-'0')*10 + int(id[1]-'0')
	return id[2:4], index, true
}

func isMediaChunkType(typ string) bool {
	switch typ {
	case "db", "dc", "wb":
		return true
	default:
		return false
	}
}

// Tracks returns every parsed stream in strl declaration order.
func (d *Demuxer) Tracks() []*packet.Track {
	out := make([]*packet.Track, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.tracks[id].Track)
	}
	return out
}

// GetFirstPacket returns the sample of smallest index on trackID.
func (d *Demuxer) GetFirstPacket(ctx context.Context, trackID int) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok || len(dt.Samples) == 0 {
		return nil, mediaerrors.NewInvalidInput("riff.getFirstPacket", errUnknownTrack)
	}
	return d.loadSample(ctx, dt, 0)
}

// GetPacket returns the sample with the largest timestamp <= t, or nil if t
// precedes the track.
func (d *Demuxer) GetPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("riff.getPacket", errUnknownTrack)
	}
	idx := sort.Search(len(dt.PTS), func(i int) bool { return dt.PTS[i] > t }) - 1
	if idx < 0 {
		return nil, nil
	}
	return d.loadSample(ctx, dt, idx)
}

// GetNextPacket returns the successor of p in index order.
func (d *Demuxer) GetNextPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("riff.getNextPacket", errUnknownTrack)
	}
	next := int(p.SequenceNumber) + 1
	if next >= len(dt.Samples) {
		return nil, nil
	}
	return d.loadSample(ctx, dt, next)
}

// GetKeyPacket returns the last key sample with timestamp <= t.
func (d *Demuxer) GetKeyPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("riff.getKeyPacket", errUnknownTrack)
	}
	for i := len(dt.Samples) - 1; i >= 0; i-- {
		if dt.Samples[i].Type == packet.Key && dt.PTS[i] <= t {
			return d.loadSample(ctx, dt, i)
		}
	}
	if len(dt.Samples) > 0 {
		return d.loadSample(ctx, dt, 0)
	}
	return nil, nil
}

// GetNextKeyPacket returns the next key sample after p.
func (d *Demuxer) GetNextKeyPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("riff.getNextKeyPacket", errUnknownTrack)
	}
	for i := int(p.SequenceNumber) + 1; i < len(dt.Samples); i++ {
		if dt.Samples[i].Type == packet.Key {
			return d.loadSample(ctx, dt, i)
		}
	}
	return nil, nil
}

func (d *Demuxer) loadSample(ctx context.Context, dt *DemuxTrack, idx int) (*packet.Packet, error) {
	e := dt.Samples[idx]
	if err := d.r.LoadRange(ctx, e.Offset, e.Offset+e.Size); err != nil {
		return nil, err
	}
	data, _, err := d.r.View(e.Offset, e.Offset+e.Size)
	if err != nil {
		return nil, err
	}
	return &packet.Packet{
		Data:           append([]byte(nil), data...),
		Type:           e.Type,
		Timestamp:      dt.PTS[idx],
		Duration:       dt.Dur[idx],
		SequenceNumber: int64(idx),
		ByteLength:     int(e.Size),
	}, nil
}

// GetMetadata returns a sample's size/type/timestamp without loading its
// payload bytes.
func (d *Demuxer) GetMetadata(trackID int, idx int) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok || idx < 0 || idx >= len(dt.Samples) {
		return nil, mediaerrors.NewInvalidInput("riff.getMetadata", errUnknownTrack)
	}
	e := dt.Samples[idx]
	return &packet.Packet{
		Type:           e.Type,
		Timestamp:      dt.PTS[idx],
		Duration:       dt.Dur[idx],
		SequenceNumber: int64(idx),
		ByteLength:     int(e.Size),
	}, nil
}
