package matroska

import (
	"context"
	"math"
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// DemuxTrack is one track's reconstructed sample index (spec §4.6).
type DemuxTrack struct {
	Track   *packet.Track
	Samples []packet.IndexEntry
	PTS     []float64
	DTS     []float64
	Dur     []float64
}

// Demuxer incrementally walks a Matroska/WebM Segment, building a
// per-track sample index from its Clusters (spec §4.6). The whole file is
// indexed eagerly at Open time rather than lazily per-Cluster; this
// subsumes both the Cues-indexed and linear-scan seek paths the spec
// describes, since every sample is already located up front.
type Demuxer struct {
	r    *mio.Reader
	size int64

	timestampScaleNS uint64
	tracks           map[int]*DemuxTrack
	order            []int
}

// NewDemuxer creates a Demuxer over r, a cached view of a file of the
// given total size.
func NewDemuxer(r *mio.Reader, size int64) *Demuxer {
	return &Demuxer{r: r, size: size, timestampScaleNS: defaultScaleNS, tracks: make(map[int]*DemuxTrack)}
}

func (d *Demuxer) read(ctx context.Context, start, end int64) ([]byte, error) {
	if end > d.size {
		end = d.size
	}
	if start >= end {
		return nil, nil
	}
	if err := d.r.LoadRange(ctx, start, end); err != nil {
		return nil, err
	}
	b, _, err := d.r.View(start, end)
	return b, err
}

// Open parses the EBML header, Segment Info, Tracks, and every Cluster.
func (d *Demuxer) Open(ctx context.Context) error {
	pos := int64(0)

	hdr, err := d.readHeaderAt(ctx, pos)
	if err != nil {
		return err
	}
	pos += hdr.HeaderLen + int64(hdr.Size)

	seg, err := d.readHeaderAt(ctx, pos)
	if err != nil {
		return err
	}
	if seg.ID != idSegment {
		return mediaerrors.NewInvalidInput("matroska.Open", errNoSegment)
	}
	segStart := pos + seg.HeaderLen
	segEnd := d.size
	if !seg.Unknown {
		segEnd = segStart + int64(seg.Size)
	}

	cur := segStart
	for cur < segEnd {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return err
		}
		childStart := cur + eh.HeaderLen
		childEnd := segEnd
		if !eh.Unknown {
			childEnd = childStart + int64(eh.Size)
		}

		switch eh.ID {
		case idInfo:
			if err := d.parseInfo(ctx, childStart, childEnd); err != nil {
				return err
			}
		case idTracks:
			entries, err := d.parseTracks(ctx, childStart, childEnd)
			if err != nil {
				return err
			}
			d.registerTracks(entries)
		case idCluster:
			clusterEnd := childEnd
			if eh.Unknown {
				clusterEnd = d.findUnknownSizeEnd(ctx, childStart, segEnd, clusterChildIDs)
			}
			if err := d.parseCluster(ctx, childStart, clusterEnd); err != nil {
				return err
			}
			childEnd = clusterEnd
		}

		cur = childEnd
	}

	for _, t := range d.tracks {
		sortTrackIndex(t)
	}
	return nil
}

var errNoSegment = stdErr("expected Segment element at file start")

type stdErr string

func (e stdErr) Error() string { return string(e) }

// clusterChildIDs bounds an unknown-size Cluster scan: any other ID is
// treated as the start of the next sibling.
var clusterChildIDs = map[uint32]bool{
	idTimestamp:   true,
	idSimpleBlock: true,
	idBlockGroup:  true,
}

// findUnknownSizeEnd scans forward from start, reading element headers
// until one with an ID outside allowedChildren is found (or limit is
// reached), returning that position as the unknown-size element's end.
func (d *Demuxer) findUnknownSizeEnd(ctx context.Context, start, limit int64, allowedChildren map[uint32]bool) int64 {
	cur := start
	for cur < limit {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil || !allowedChildren[eh.ID] {
			return cur
		}
		childEnd := limit
		if !eh.Unknown {
			childEnd = cur + eh.HeaderLen + int64(eh.Size)
		} else {
			childEnd = d.findUnknownSizeEnd(ctx, cur+eh.HeaderLen, limit, allowedChildren)
		}
		cur = childEnd
	}
	return limit
}

// readHeaderAt reads an element header at an absolute file offset. A
// 16-byte window is enough for any valid EBML ID+size pair.
func (d *Demuxer) readHeaderAt(ctx context.Context, pos int64) (elementHeader, error) {
	window := pos + 16
	b, err := d.read(ctx, pos, window)
	if err != nil {
		return elementHeader{}, err
	}
	return readElementHeader(b)
}

func (d *Demuxer) parseInfo(ctx context.Context, start, end int64) error {
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return err
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		if eh.ID == idTimestampScale {
			b, err := d.read(ctx, dataStart, dataEnd)
			if err != nil {
				return err
			}
			d.timestampScaleNS = decodeUint(b)
		}
		cur = dataEnd
	}
	return nil
}

type trackEntryRaw struct {
	number  uint64
	uid     uint64
	kind    packet.Kind
	codecID string
	priv    []byte
	width   int
	height  int
	rate    int
	channels int
}

func (d *Demuxer) parseTracks(ctx context.Context, start, end int64) ([]trackEntryRaw, error) {
	var out []trackEntryRaw
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return nil, err
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		if eh.ID == idTrackEntry {
			te, err := d.parseTrackEntry(ctx, dataStart, dataEnd)
			if err != nil {
				return nil, err
			}
			out = append(out, te)
		}
		cur = dataEnd
	}
	return out, nil
}

func (d *Demuxer) parseTrackEntry(ctx context.Context, start, end int64) (trackEntryRaw, error) {
	var te trackEntryRaw
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return te, err
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		b, err := d.read(ctx, dataStart, dataEnd)
		if err != nil {
			return te, err
		}
		switch eh.ID {
		case idTrackNum:
			te.number = decodeUint(b)
		case idTrackUID:
			te.uid = decodeUint(b)
		case idTrackType:
			if decodeUint(b) == trackTypeAudio {
				te.kind = packet.Audio
			} else {
				te.kind = packet.Video
			}
		case idCodecID:
			te.codecID = decodeString(b)
		case idCodecPriv:
			te.priv = append([]byte(nil), b...)
		case idVideo:
			w, h := parseVideoDims(ctx, d, dataStart, dataEnd)
			te.width, te.height = w, h
		case idAudio:
			rate, ch := parseAudioParams(ctx, d, dataStart, dataEnd)
			te.rate, te.channels = rate, ch
		}
		cur = dataEnd
	}
	return te, nil
}

func parseVideoDims(ctx context.Context, d *Demuxer, start, end int64) (int, int) {
	var w, h int
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			break
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		b, err := d.read(ctx, dataStart, dataEnd)
		if err == nil {
			switch eh.ID {
			case idPixelWidth:
				w = int(decodeUint(b))
			case idPixelHeight:
				h = int(decodeUint(b))
			}
		}
		cur = dataEnd
	}
	return w, h
}

func parseAudioParams(ctx context.Context, d *Demuxer, start, end int64) (int, int) {
	var rate, channels int
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			break
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		b, err := d.read(ctx, dataStart, dataEnd)
		if err == nil {
			switch eh.ID {
			case idSamplingFrequency:
				rate = int(decodeFloat(b))
			case idChannels:
				channels = int(decodeUint(b))
			}
		}
		cur = dataEnd
	}
	return rate, channels
}

func decodeFloat(b []byte) float64 {
	switch len(b) {
	case 4:
		var u uint32
		for _, x := range b {
			u = (u << 8) | uint32(x)
		}
		return float64(math.Float32frombits(u))
	case 8:
		return math.Float64frombits(decodeUint(b))
	default:
		return 0
	}
}

func (d *Demuxer) registerTracks(entries []trackEntryRaw) {
	for _, te := range entries {
		id := int(te.number)
		t := &packet.Track{
			ID:             id,
			Kind:           te.kind,
			Codec:          codecFromID(te.codecID),
			TimeResolution: 1_000_000_000 / intOrOne(int64(d.timestampScaleNS)),
			DecoderConfig:  te.priv,
		}
		if te.kind == packet.Video {
			t.Video = packet.VideoInfo{CodedWidth: te.width, CodedHeight: te.height}
		} else {
			t.Audio = packet.AudioInfo{SampleRate: te.rate, NumberOfChannels: te.channels}
		}
		d.tracks[id] = &DemuxTrack{Track: t}
		d.order = append(d.order, id)
	}
}

func intOrOne(n int64) int {
	if n <= 0 {
		return 1
	}
	return int(n)
}

func (d *Demuxer) parseCluster(ctx context.Context, start, end int64) error {
	clusterTS := int64(0)
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return err
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)

		switch eh.ID {
		case idTimestamp:
			b, err := d.read(ctx, dataStart, dataEnd)
			if err != nil {
				return err
			}
			clusterTS = int64(decodeUint(b))
		case idSimpleBlock:
			b, err := d.read(ctx, dataStart, dataEnd)
			if err != nil {
				return err
			}
			d.appendBlock(b, dataStart, clusterTS, 0, false)
		case idBlockGroup:
			if err := d.parseBlockGroup(ctx, dataStart, dataEnd, clusterTS); err != nil {
				return err
			}
		}
		cur = dataEnd
	}
	return nil
}

func (d *Demuxer) parseBlockGroup(ctx context.Context, start, end, clusterTS int64) error {
	var blockOff int64 = -1
	var blockLen int64
	var durationMS int64
	isDelta := false
	cur := start
	for cur < end {
		eh, err := d.readHeaderAt(ctx, cur)
		if err != nil {
			return err
		}
		dataStart := cur + eh.HeaderLen
		dataEnd := dataStart + int64(eh.Size)
		switch eh.ID {
		case idBlock:
			blockOff = dataStart
			blockLen = int64(eh.Size)
		case idBlockDuration:
			b, err := d.read(ctx, dataStart, dataEnd)
			if err != nil {
				return err
			}
			durationMS = int64(decodeUint(b))
		case idReferenceBlock:
			isDelta = true
		}
		cur = dataEnd
	}
	if blockOff < 0 {
		return nil
	}
	b, err := d.read(ctx, blockOff, blockOff+blockLen)
	if err != nil {
		return err
	}
	d.appendBlock(b, blockOff, clusterTS, durationMS, isDelta)
	return nil
}

// appendBlock decodes a Block/SimpleBlock's 4+ byte prelude
// (trackNumber vint | s16be relative timestamp | flags) and records the
// sample. raw and rawOffset describe where the full block (prelude +
// payload) lives in the file.
func (d *Demuxer) appendBlock(raw []byte, rawOffset, clusterTS, durationMS int64, isDelta bool) {
	trackNumber, n, err := decodeVInt(raw, false)
	if err != nil || len(raw) < n+3 {
		return
	}
	rel := int16(uint16(raw[n])<<8 | uint16(raw[n+1]))
	flags := raw[n+2]
	payloadOffset := rawOffset + int64(n+3)
	payloadSize := int64(len(raw) - n - 3)

	t, ok := d.tracks[int(trackNumber)]
	if !ok {
		return
	}
	tsSeconds := float64(clusterTS+int64(rel)) * float64(d.timestampScaleNS) / 1e9
	typ := packet.Delta
	if flags&0x80 != 0 {
		typ = packet.Key
	}
	t.Samples = append(t.Samples, packet.IndexEntry{Offset: payloadOffset, Size: payloadSize, Type: typ})
	t.PTS = append(t.PTS, tsSeconds)
	t.DTS = append(t.DTS, tsSeconds)
	if durationMS > 0 {
		t.Dur = append(t.Dur, float64(durationMS)/1000)
	} else {
		t.Dur = append(t.Dur, 0)
	}
}

func sortTrackIndex(t *DemuxTrack) {
	idx := make([]int, len(t.Samples))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return t.DTS[idx[i]] < t.DTS[idx[j]] })

	samples := make([]packet.IndexEntry, len(idx))
	pts := make([]float64, len(idx))
	dts := make([]float64, len(idx))
	dur := make([]float64, len(idx))
	for newPos, oldPos := range idx {
		samples[newPos] = t.Samples[oldPos]
		pts[newPos] = t.PTS[oldPos]
		dts[newPos] = t.DTS[oldPos]
		dur[newPos] = t.Dur[oldPos]
	}
	t.Samples, t.PTS, t.DTS, t.Dur = samples, pts, dts, dur
}

// Tracks returns all parsed tracks in TrackEntry declaration order.
func (d *Demuxer) Tracks() []*packet.Track {
	out := make([]*packet.Track, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.tracks[id].Track)
	}
	return out
}

func (d *Demuxer) GetFirstPacket(ctx context.Context, trackID int) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok || len(t.Samples) == 0 {
		return nil, mediaerrors.NewInvalidInput("matroska.GetFirstPacket", errUnknownTrack)
	}
	return d.loadSample(ctx, t, 0)
}

func (d *Demuxer) GetPacket(ctx context.Context, trackID int, at float64) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("matroska.GetPacket", errUnknownTrack)
	}
	i := sort.Search(len(t.PTS), func(i int) bool { return t.PTS[i] > at }) - 1
	if i < 0 {
		return nil, nil
	}
	return d.loadSample(ctx, t, i)
}

func (d *Demuxer) GetNextPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("matroska.GetNextPacket", errUnknownTrack)
	}
	next := int(p.SequenceNumber) + 1
	if next >= len(t.Samples) {
		return nil, nil
	}
	return d.loadSample(ctx, t, next)
}

func (d *Demuxer) GetKeyPacket(ctx context.Context, trackID int, at float64) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("matroska.GetKeyPacket", errUnknownTrack)
	}
	for i := len(t.Samples) - 1; i >= 0; i-- {
		if t.PTS[i] <= at && t.Samples[i].Type == packet.Key {
			return d.loadSample(ctx, t, i)
		}
	}
	if len(t.Samples) > 0 {
		return d.loadSample(ctx, t, 0)
	}
	return nil, nil
}

func (d *Demuxer) GetNextKeyPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("matroska.GetNextKeyPacket", errUnknownTrack)
	}
	for i := int(p.SequenceNumber) + 1; i < len(t.Samples); i++ {
		if t.Samples[i].Type == packet.Key {
			return d.loadSample(ctx, t, i)
		}
	}
	return nil, nil
}

func (d *Demuxer) loadSample(ctx context.Context, t *DemuxTrack, idx int) (*packet.Packet, error) {
	e := t.Samples[idx]
	b, err := d.read(ctx, e.Offset, e.Offset+e.Size)
	if err != nil {
		return nil, err
	}
	return &packet.Packet{
		Data:           append([]byte(nil), b...),
		Type:           e.Type,
		Timestamp:      t.PTS[idx],
		Duration:       t.Dur[idx],
		SequenceNumber: int64(idx),
		ByteLength:     int(e.Size),
	}, nil
}

// GetMetadata returns a packet carrying size information but no payload
// bytes, per the metadata-only retrieval contract.
func (d *Demuxer) GetMetadata(trackID, idx int) (*packet.Packet, error) {
	t, ok := d.tracks[trackID]
	if !ok || idx < 0 || idx >= len(t.Samples) {
		return nil, mediaerrors.NewInvalidInput("matroska.GetMetadata", errUnknownTrack)
	}
	e := t.Samples[idx]
	return &packet.Packet{Type: e.Type, Timestamp: t.PTS[idx], Duration: t.Dur[idx], SequenceNumber: int64(idx), ByteLength: int(e.Size)}, nil
}
