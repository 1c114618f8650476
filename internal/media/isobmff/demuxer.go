package isobmff

import (
	"context"
	"encoding/binary"
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// DemuxTrack is a demuxed track's parsed sample index plus track metadata.
type DemuxTrack struct {
	Track   *packet.Track
	Samples []packet.IndexEntry
	PTS     []float64
	DTS     []float64
	Dur     []float64
}

// Demuxer parses an ISO-BMFF file through a cached mio.Reader and answers
// the packet-retrieval contract of spec §4.5.
type Demuxer struct {
	r          *mio.Reader
	size       int64
	tracks     map[int]*DemuxTrack
	order      []int
	fragmented bool

	// fragScanned is never set: moof/traf/trun fragments are not parsed
	fragScanned bool
}

// NewDemuxer creates a Demuxer over r, whose total size is size.
func NewDemuxer(r *mio.Reader, size int64) *Demuxer {
	return &Demuxer{r: r, size: size, tracks: make(map[int]*DemuxTrack)}
}

// Open parses the box tree: moov's sample tables for progressive/faststart
// files, or the initial moov+mvex for fragmented files. A moof box only
// marks the file as fragmented; moof/traf/trun fragments are not parsed, so
// samples carried in fragments are not part of the track index.
func (d *Demuxer) Open(ctx context.Context) error {
	pos := int64(0)
	for pos < d.size {
		boxSize, boxType, headerLen, err := d.readBoxHeader(ctx, pos)
		if err != nil {
			return err
		}
		switch boxType {
		case "moov":
			if err := d.parseMoov(ctx, pos+headerLen, boxSize-headerLen); err != nil {
				return err
			}
		case "moof":
			d.fragmented = true
		}
		if boxSize <= 0 {
			return mediaerrors.NewInvalidInput("demuxer.open", nil)
		}
		pos += boxSize
	}
	return nil
}

// readBoxHeader reads a box's size/type at pos, returning the total box
// size (including header) and the header's own length (8 or 16 bytes).
func (d *Demuxer) readBoxHeader(ctx context.Context, pos int64) (int64, string, int64, error) {
	if err := d.r.LoadRange(ctx, pos, pos+16); err != nil {
		return 0, "", 0, err
	}
	hdr, _, err := d.r.View(pos, min64(pos+16, d.size))
	if err != nil {
		return 0, "", 0, err
	}
	if len(hdr) < 8 {
		return 0, "", 0, mediaerrors.NewInvalidInput("demuxer.readBoxHeader", nil)
	}
	size32 := binary.BigEndian.Uint32(hdr[0:4])
	boxType := string(hdr[4:8])
	if size32 == 1 {
		if len(hdr) < 16 {
			return 0, "", 0, mediaerrors.NewInvalidInput("demuxer.readBoxHeader", nil)
		}
		size64 := binary.BigEndian.Uint64(hdr[8:16])
		return int64(size64), boxType, 16, nil
	}
	return int64(size32), boxType, 8, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (d *Demuxer) parseMoov(ctx context.Context, start, length int64) error {
	pos := start
	end := start + length
	for pos < end {
		size, typ, hdr, err := d.readBoxHeader(ctx, pos)
		if err != nil {
			return err
		}
		if typ == "trak" {
			if err := d.parseTrak(ctx, pos+hdr, size-hdr); err != nil {
				return err
			}
		}
		pos += size
	}
	return nil
}

func (d *Demuxer) parseTrak(ctx context.Context, start, length int64) error {
	track := &packet.Track{TimeResolution: 1}
	dt := &DemuxTrack{Track: track}

	pos, end := start, start+length
	var sttsEntries []SttsEntry
	var cttsEntries []CttsEntry
	var stssSamples []uint32
	var stscEntries []StscEntry
	var stsz []uint32
	var chunkOffsets []uint64

	var walk func(p, e int64) error
	walk = func(p, e int64) error {
		for p < e {
			size, typ, hdr, err := d.readBoxHeader(ctx, p)
			if err != nil {
				return err
			}
			body := p + hdr
			bodyEnd := p + size
			switch typ {
			case "mdia", "minf", "stbl", "trak":
				if err := walk(body, bodyEnd); err != nil {
					return err
				}
			case "tkhd":
				if b, err := d.read(ctx, body, bodyEnd); err == nil && len(b) >= 24 {
					version := b[0]
					off := 4
					if version == 1 {
						off += 16
					} else {
						off += 8
					}
					if len(b) >= off+4 {
						track.ID = int(binary.BigEndian.Uint32(b[off : off+4]))
					}
				}
			case "mdhd":
				if b, err := d.read(ctx, body, bodyEnd); err == nil && len(b) >= 4 {
					version := b[0]
					if version == 1 && len(b) >= 28 {
						track.TimeResolution = int(binary.BigEndian.Uint32(b[20:24]))
					} else if len(b) >= 20 {
						track.TimeResolution = int(binary.BigEndian.Uint32(b[12:16]))
					}
				}
			case "hdlr":
				if b, err := d.read(ctx, body, bodyEnd); err == nil && len(b) >= 12 {
					switch string(b[8:12]) {
					case "vide":
						track.Kind = packet.Video
					case "soun":
						track.Kind = packet.Audio
					}
				}
			case "stsd":
				d.parseStsd(ctx, body, bodyEnd, track)
			case "stts":
				sttsEntries = d.parseStts(ctx, body, bodyEnd)
			case "ctts":
				cttsEntries = d.parseCtts(ctx, body, bodyEnd)
			case "stss":
				stssSamples = d.parseStss(ctx, body, bodyEnd)
			case "stsc":
				stscEntries = d.parseStsc(ctx, body, bodyEnd)
			case "stsz":
				stsz = d.parseStsz(ctx, body, bodyEnd)
			case "stco":
				chunkOffsets = d.parseStco(ctx, body, bodyEnd)
			case "co64":
				chunkOffsets = d.parseCo64(ctx, body, bodyEnd)
			}
			p += size
		}
		return nil
	}
	if err := walk(pos, end); err != nil {
		return err
	}

	samples, pts, dts, dur := buildSampleIndex(track, sttsEntries, cttsEntries, stssSamples, stscEntries, stsz, chunkOffsets)
	dt.Samples, dt.PTS, dt.DTS, dt.Dur = samples, pts, dts, dur

	d.tracks[track.ID] = dt
	d.order = append(d.order, track.ID)
	return nil
}

func (d *Demuxer) parseStsd(ctx context.Context, start, end int64, track *packet.Track) {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return
	}
	entryStart := start + 8
	size, typ, hdr, err := d.readBoxHeader(ctx, entryStart)
	if err != nil {
		return
	}
	switch typ {
	case "avc1":
		track.Kind = packet.Video
		track.Codec = "avc"
	case "hvc1", "hev1":
		track.Kind = packet.Video
		track.Codec = "hevc"
	case "vp08":
		track.Kind = packet.Video
		track.Codec = "vp8"
	case "vp09":
		track.Kind = packet.Video
		track.Codec = "vp9"
	case "av01":
		track.Kind = packet.Video
		track.Codec = "av1"
	case "mp4a":
		track.Kind = packet.Audio
		track.Codec = "aac"
	case "Opus":
		track.Kind = packet.Audio
		track.Codec = "opus"
	}
	entryBody, _ := d.read(ctx, entryStart+hdr, entryStart+size)
	if track.Kind == packet.Video && len(entryBody) >= 32 {
		track.Video.CodedWidth = int(binary.BigEndian.Uint16(entryBody[24:26]))
		track.Video.CodedHeight = int(binary.BigEndian.Uint16(entryBody[26:28]))
	}
	if track.Kind == packet.Audio && len(entryBody) >= 28 {
		track.Audio.NumberOfChannels = int(binary.BigEndian.Uint16(entryBody[16:18]))
		track.Audio.SampleRate = int(binary.BigEndian.Uint32(entryBody[24:28]) >> 16)
	}
}

func (d *Demuxer) parseStts(ctx context.Context, start, end int64) []SttsEntry {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]SttsEntry, 0, count)
	off := 8
	for i := uint32(0); i < count && off+8 <= len(b); i++ {
		out = append(out, SttsEntry{
			SampleCount: binary.BigEndian.Uint32(b[off : off+4]),
			SampleDelta: binary.BigEndian.Uint32(b[off+4 : off+8]),
		})
		off += 8
	}
	return out
}

func (d *Demuxer) parseCtts(ctx context.Context, start, end int64) []CttsEntry {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]CttsEntry, 0, count)
	off := 8
	for i := uint32(0); i < count && off+8 <= len(b); i++ {
		out = append(out, CttsEntry{
			SampleCount:  binary.BigEndian.Uint32(b[off : off+4]),
			SampleOffset: int32(binary.BigEndian.Uint32(b[off+4 : off+8])),
		})
		off += 8
	}
	return out
}

func (d *Demuxer) parseStss(ctx context.Context, start, end int64) []uint32 {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]uint32, 0, count)
	off := 8
	for i := uint32(0); i < count && off+4 <= len(b); i++ {
		out = append(out, binary.BigEndian.Uint32(b[off:off+4]))
		off += 4
	}
	return out
}

func (d *Demuxer) parseStsc(ctx context.Context, start, end int64) []StscEntry {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]StscEntry, 0, count)
	off := 8
	for i := uint32(0); i < count && off+12 <= len(b); i++ {
		out = append(out, StscEntry{
			FirstChunk:             binary.BigEndian.Uint32(b[off : off+4]),
			SamplesPerChunk:        binary.BigEndian.Uint32(b[off+4 : off+8]),
			SampleDescriptionIndex: binary.BigEndian.Uint32(b[off+8 : off+12]),
		})
		off += 12
	}
	return out
}

func (d *Demuxer) parseStsz(ctx context.Context, start, end int64) []uint32 {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 12 {
		return nil
	}
	sampleSize := binary.BigEndian.Uint32(b[4:8])
	count := binary.BigEndian.Uint32(b[8:12])
	out := make([]uint32, count)
	if sampleSize != 0 {
		for i := range out {
			out[i] = sampleSize
		}
		return out
	}
	off := 12
	for i := uint32(0); i < count && off+4 <= len(b); i++ {
		out[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}
	return out
}

func (d *Demuxer) parseStco(ctx context.Context, start, end int64) []uint64 {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]uint64, 0, count)
	off := 8
	for i := uint32(0); i < count && off+4 <= len(b); i++ {
		out = append(out, uint64(binary.BigEndian.Uint32(b[off:off+4])))
		off += 4
	}
	return out
}

func (d *Demuxer) parseCo64(ctx context.Context, start, end int64) []uint64 {
	b, err := d.read(ctx, start, end)
	if err != nil || len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	out := make([]uint64, 0, count)
	off := 8
	for i := uint32(0); i < count && off+8 <= len(b); i++ {
		out = append(out, binary.BigEndian.Uint64(b[off:off+8]))
		off += 8
	}
	return out
}

func (d *Demuxer) read(ctx context.Context, start, end int64) ([]byte, error) {
	if err := d.r.LoadRange(ctx, start, end); err != nil {
		return nil, err
	}
	data, _, err := d.r.View(start, end)
	return data, err
}

// buildSampleIndex reconstructs per-sample offset/size/timestamp/duration
// from the compact stts/ctts/stsc/stco tables (spec §4.5).
func buildSampleIndex(track *packet.Track, stts []SttsEntry, ctts []CttsEntry, stss []uint32, stsc []StscEntry, stsz []uint32, chunkOffsets []uint64) ([]packet.IndexEntry, []float64, []float64, []float64) {
	n := len(stsz)
	entries := make([]packet.IndexEntry, n)
	pts := make([]float64, n)
	dts := make([]float64, n)
	dur := make([]float64, n)

	keySet := make(map[uint32]bool, len(stss))
	for _, k := range stss {
		keySet[k] = true
	}
	allKey := len(stss) == 0

	// decode timestamps from stts run-length table
	idx := 0
	var accumTicks int64
	for _, run := range stts {
		for i := uint32(0); i < run.SampleCount && idx < n; i++ {
			dts[idx] = track.TicksToSeconds(accumTicks)
			dur[idx] = track.TicksToSeconds(int64(run.SampleDelta))
			accumTicks += int64(run.SampleDelta)
			idx++
		}
	}

	// composition offsets
	if len(ctts) > 0 {
		idx = 0
		for _, run := range ctts {
			for i := uint32(0); i < run.SampleCount && idx < n; i++ {
				pts[idx] = dts[idx] + track.TicksToSeconds(int64(run.SampleOffset))
				idx++
			}
		}
	} else {
		copy(pts, dts)
	}

	// per-sample file offsets from stsc + chunk offsets
	chunkOfSample := make([]int, n) // which chunk index (0-based) each sample belongs to
	sampleInChunk := make([]int, n)
	si := 0
	for ci := range chunkOffsets {
		chunkNum := uint32(ci + 1)
		spc := samplesPerChunkFor(stsc, chunkNum)
		for j := 0; j < spc && si < n; j++ {
			chunkOfSample[si] = ci
			sampleInChunk[si] = j
			si++
		}
		if si >= n {
			break
		}
	}

	for i := 0; i < n; i++ {
		ci := chunkOfSample[i]
		offset := int64(0)
		if ci < len(chunkOffsets) {
			offset = int64(chunkOffsets[ci])
		}
		within := sampleInChunk[i]
		for j := i - within; j < i; j++ {
			offset += int64(stsz[j])
		}
		typ := packet.Delta
		if allKey || keySet[uint32(i+1)] {
			typ = packet.Key
		}
		entries[i] = packet.IndexEntry{Offset: offset, Size: int64(stsz[i]), Type: typ}
	}

	return entries, pts, dts, dur
}

func samplesPerChunkFor(stsc []StscEntry, chunkNum uint32) int {
	spc := 1
	for _, e := range stsc {
		if e.FirstChunk <= chunkNum {
			spc = int(e.SamplesPerChunk)
		} else {
			break
		}
	}
	return spc
}

// GetFirstPacket returns the sample of smallest decode sequence on trackID.
func (d *Demuxer) GetFirstPacket(ctx context.Context, trackID int) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok || len(dt.Samples) == 0 {
		return nil, mediaerrors.NewInvalidInput("demuxer.getFirstPacket", nil)
	}
	return d.loadSample(ctx, dt, 0)
}

// GetPacket returns the sample with the largest presentation timestamp <=
// t, or nil if t precedes the track.
func (d *Demuxer) GetPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("demuxer.getPacket", nil)
	}
	idx := sort.Search(len(dt.PTS), func(i int) bool { return dt.PTS[i] > t }) - 1
	if idx < 0 {
		return nil, nil
	}
	return d.loadSample(ctx, dt, idx)
}

// GetNextPacket returns the decode-order successor of p.
func (d *Demuxer) GetNextPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("demuxer.getNextPacket", nil)
	}
	next := int(p.SequenceNumber) + 1
	if next >= len(dt.Samples) {
		return nil, nil
	}
	return d.loadSample(ctx, dt, next)
}

// GetKeyPacket returns the last key sample with presentation timestamp <=
// t.
func (d *Demuxer) GetKeyPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("demuxer.getKeyPacket", nil)
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

// GetNextKeyPacket returns the next key sample in decode order after p.
func (d *Demuxer) GetNextKeyPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok {
		return nil, mediaerrors.NewInvalidInput("demuxer.getNextKeyPacket", nil)
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
// payload bytes (spec §4.5's metadata-only retrieval contract).
func (d *Demuxer) GetMetadata(trackID int, idx int) (*packet.Packet, error) {
	dt, ok := d.tracks[trackID]
	if !ok || idx < 0 || idx >= len(dt.Samples) {
		return nil, mediaerrors.NewInvalidInput("demuxer.getMetadata", nil)
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

// Tracks returns every parsed track in trak declaration order.
func (d *Demuxer) Tracks() []*packet.Track {
	out := make([]*packet.Track, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.tracks[id].Track)
	}
	return out
}
