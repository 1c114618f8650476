package isobmff

import (
	"bytes"
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// LayoutMode selects the muxer's output shape (spec §4.3).
type LayoutMode int

const (
	// Progressive emits ftyp, a single growing mdat, then moov last.
	Progressive LayoutMode = iota
	// FaststartInMemory buffers every sample and writes ftyp/moov/mdat in
	// that order once the whole input has been seen.
	FaststartInMemory
	// FaststartReservedHole reserves an upper-bound hole for moov right
	// after ftyp, writes mdat inline, then backpatches moov into the hole
	// and pads the remainder with a free box.
	FaststartReservedHole
	// Fragmented emits an initial moov+mvex, then repeated moof+mdat
	// fragments, finalizing with mfra.
	Fragmented
)

const (
	progressiveChunkThreshold = 0.5 // seconds
	fragmentedChunkThreshold  = 1.0 // seconds
	globalTimescale           = 1000
)

// ExpectedChunkCounts bounds the reserved moov hole size for
// FaststartReservedHole mode.
type ExpectedChunkCounts struct {
	ExpectedVideoChunks int
	ExpectedAudioChunks int
}

// Options configures a Muxer.
type Options struct {
	Mode           LayoutMode
	ExpectedChunks ExpectedChunkCounts // only consulted in FaststartReservedHole
	MajorBrand     string
	CompatBrands   []string
	CreationTime   uint32 // seconds since 1970; converted to the 1904 epoch internally; 0 uses no timestamp
}

type sampleRecord struct {
	pts, dts float64
	size     int
	typ      packet.Type
	data     []byte // released once the owning chunk is flushed
}

type chunkBuilder struct {
	startTimestamp float64
	samples        []sampleRecord
	offset         int64
}

type trackState struct {
	track *packet.Track

	haveFirstDTS bool
	firstDTS     float64
	lastDTS      float64
	sampleCount  int

	stts []SttsEntry
	ctts []CttsEntry
	stss []uint32
	stsc []StscEntry
	stsz []uint32
	co   []uint64 // chunk offsets, promoted to co64 at write time if needed

	current      *chunkBuilder
	finalized    []*chunkBuilder
	prevWasThis  bool // true if the immediately preceding admitted chunk belonged to this track

	pendingKey bool // a key sample has been queued for the fragment/cluster in progress

	trex Trex
}

// Muxer is a stateful ISO-BMFF writer implementing spec §4.3.
type Muxer struct {
	opts   Options
	w      mio.Writer
	tracks []*trackState
	byID   map[int]*trackState

	started   bool
	finalized bool

	pos        int64
	mdatStart  int64 // absolute offset of mdat's first content byte
	moovHoleAt int64
	moovHoleSz int64

	// fragmented-mode state
	fragSeq       uint32
	fragQueues    map[int][]queuedSample
	fraEntries    map[int][]TfraEntry
}

type queuedSample struct {
	pkt *packet.Packet
	pts, dts float64
}

// NewMuxer creates a Muxer writing through w per opts.
func NewMuxer(w mio.Writer, opts Options) *Muxer {
	if opts.MajorBrand == "" {
		opts.MajorBrand = "isom"
	}
	return &Muxer{
		w:          w,
		opts:       opts,
		byID:       make(map[int]*trackState),
		fragQueues: make(map[int][]queuedSample),
		fraEntries: make(map[int][]TfraEntry),
	}
}

// AddTrack registers a track. Must be called before Start.
func (m *Muxer) AddTrack(t *packet.Track) error {
	if m.started {
		return mediaerrors.NewStateViolation("muxer.addTrack", nil)
	}
	if err := t.Validate(); err != nil {
		return mediaerrors.NewInvalidInput("muxer.addTrack", err)
	}
	if _, exists := m.byID[t.ID]; exists {
		return mediaerrors.NewInvalidInput("muxer.addTrack", nil)
	}
	ts := &trackState{track: t, trex: Trex{TrackID: uint32(t.ID), DefaultSampleDescriptionIndex: 1}}
	m.tracks = append(m.tracks, ts)
	m.byID[t.ID] = ts
	return nil
}

// Start writes the leading boxes (ftyp, and for fragmented mode the
// initial moov+mvex) and transitions the muxer into sample-admission mode.
func (m *Muxer) Start() error {
	if m.started {
		return mediaerrors.NewStateViolation("muxer.start", nil)
	}
	m.started = true

	if m.opts.Mode != FaststartInMemory {
		ftyp := Node{Box: Ftyp{MajorBrand: m.opts.MajorBrand, MinorVersion: 0, CompatibleBrands: m.opts.CompatBrands}}
		if err := m.writeNode(ftyp); err != nil {
			return err
		}
	}

	switch m.opts.Mode {
	case Progressive:
		m.mdatStart = m.pos + 16
		if err := m.write([]byte{0, 0, 0, 1}); err != nil { // placeholder size=1 -> largesize form, backpatched at finalize
			return err
		}
		if err := m.write([]byte("mdat")); err != nil {
			return err
		}
		if err := m.write(make([]byte, 8)); err != nil { // largesize placeholder
			return err
		}
	case FaststartReservedHole:
		holeSize := m.estimateMoovHoleSize()
		m.moovHoleAt = m.pos
		m.moovHoleSz = holeSize
		if err := m.write(make([]byte, holeSize)); err != nil {
			return err
		}
		m.mdatStart = m.pos + 16
		if err := m.write([]byte{0, 0, 0, 1}); err != nil {
			return err
		}
		if err := m.write([]byte("mdat")); err != nil {
			return err
		}
		if err := m.write(make([]byte, 8)); err != nil {
			return err
		}
	case Fragmented:
		moov, err := m.buildInitMoov()
		if err != nil {
			return err
		}
		if err := m.writeNode(moov); err != nil {
			return err
		}
	case FaststartInMemory:
		// Nothing written yet; ftyp is emitted at Finalize once moov is
		// known, per the in-memory faststart contract.
	}
	return nil
}

func (m *Muxer) estimateMoovHoleSize() int64 {
	// Rough upper bound: 2048 bytes of fixed overhead per track plus 16
	// bytes per expected chunk entry (stco/stsc/stsz growth), tripled for
	// safety, plus 4096.
	perChunk := int64(m.opts.ExpectedChunks.ExpectedVideoChunks+m.opts.ExpectedChunks.ExpectedAudioChunks) * 16
	return 2048*int64(len(m.tracks)) + perChunk*3 + 4096
}

// WritePacket admits one encoded packet on the named track.
func (m *Muxer) WritePacket(trackID int, pkt *packet.Packet) error {
	if !m.started || m.finalized {
		return mediaerrors.NewStateViolation("muxer.writePacket", nil)
	}
	ts, ok := m.byID[trackID]
	if !ok {
		return mediaerrors.NewInvalidInput("muxer.writePacket", nil)
	}

	if m.opts.Mode == Fragmented {
		return m.admitFragmented(ts, pkt)
	}
	return m.admitChunked(ts, pkt)
}

func (m *Muxer) admitChunked(ts *trackState, pkt *packet.Packet) error {
	dts := pkt.Timestamp - pkt.Duration*0 // dts tracked via sequence; presentation==decode absent B-frame info from Packet alone
	dts = pkt.Timestamp
	if !ts.haveFirstDTS {
		ts.firstDTS = dts
		ts.haveFirstDTS = true
	} else if dts < ts.lastDTS {
		return mediaerrors.NewUnorderedTimestamp(ts.track.ID, ts.lastDTS, dts)
	}

	relDTS := dts - ts.firstDTS
	relPTS := relDTS // no separate composition offset source at this layer; callers supplying B-frame offsets set pkt.Timestamp to PTS and track DTS via sequence order

	if ts.sampleCount > 0 {
		delta := ts.track.SecondsToTicks(relDTS) - ts.track.SecondsToTicks(ts.lastDTS-ts.firstDTS)
		appendRun(&ts.stts, uint32(delta))
	}
	ts.lastDTS = dts
	ts.sampleCount++

	ctsOffset := int32(ts.track.SecondsToTicks(relPTS) - ts.track.SecondsToTicks(relDTS))
	appendCtts(&ts.ctts, ctsOffset)

	if pkt.Type == packet.Key {
		ts.stss = append(ts.stss, uint32(ts.sampleCount))
	}

	if ts.current == nil || relDTS-ts.current.startTimestamp >= progressiveChunkThreshold {
		if err := m.flushChunkIfAny(ts); err != nil {
			return err
		}
		ts.current = &chunkBuilder{startTimestamp: relDTS}
	}

	rec := sampleRecord{pts: relPTS, dts: relDTS, size: len(pkt.Data), typ: pkt.Type, data: pkt.Data}
	ts.current.samples = append(ts.current.samples, rec)
	ts.stsz = append(ts.stsz, uint32(rec.size))

	if m.opts.Mode != FaststartInMemory {
		if len(ts.current.samples) == 1 {
			ts.current.offset = m.pos
			m.recordChunkStart(ts)
		}
		if err := m.write(pkt.Data); err != nil {
			return err
		}
		ts.current.samples[len(ts.current.samples)-1].data = nil
	} else if len(ts.current.samples) == 1 {
		m.recordChunkStart(ts)
	}

	return nil
}

func (m *Muxer) recordChunkStart(ts *trackState) {
	ts.co = append(ts.co, uint64(m.pos))
	for _, other := range m.tracks {
		other.prevWasThis = other == ts
	}
}

func (m *Muxer) flushChunkIfAny(ts *trackState) error {
	if ts.current == nil || len(ts.current.samples) == 0 {
		return nil
	}
	if n := len(ts.stsc); n == 0 || ts.stsc[n-1].SamplesPerChunk != uint32(len(ts.current.samples)) {
		// samples-per-chunk changed since the compact run began; this chunk
		// starts a fresh run.
		ts.stsc = append(ts.stsc, StscEntry{FirstChunk: uint32(len(ts.finalized) + 1), SamplesPerChunk: uint32(len(ts.current.samples)), SampleDescriptionIndex: 1})
	}
	ts.finalized = append(ts.finalized, ts.current)
	ts.current = nil
	return nil
}

func appendRun(stts *[]SttsEntry, delta uint32) {
	if n := len(*stts); n > 0 && (*stts)[n-1].SampleDelta == delta {
		(*stts)[n-1].SampleCount++
		return
	}
	*stts = append(*stts, SttsEntry{SampleCount: 1, SampleDelta: delta})
}

func appendCtts(ctts *[]CttsEntry, offset int32) {
	if n := len(*ctts); n > 0 && (*ctts)[n-1].SampleOffset == offset {
		(*ctts)[n-1].SampleCount++
		return
	}
	*ctts = append(*ctts, CttsEntry{SampleCount: 1, SampleOffset: offset})
}

// admitFragmented queues samples and emits a fragment once every track has
// a key sample queued and some track's queue spans at least 1s of decode
// time.
func (m *Muxer) admitFragmented(ts *trackState, pkt *packet.Packet) error {
	if !ts.haveFirstDTS {
		ts.firstDTS = pkt.Timestamp
		ts.haveFirstDTS = true
	} else if pkt.Timestamp < ts.lastDTS {
		return mediaerrors.NewUnorderedTimestamp(ts.track.ID, ts.lastDTS, pkt.Timestamp)
	}
	ts.lastDTS = pkt.Timestamp
	if pkt.Type == packet.Key {
		ts.pendingKey = true
	}
	m.fragQueues[ts.track.ID] = append(m.fragQueues[ts.track.ID], queuedSample{pkt: pkt, pts: pkt.Timestamp, dts: pkt.Timestamp})

	if !m.allTracksHavePending() {
		return nil
	}
	if !m.fragmentThresholdMet() {
		return nil
	}
	return m.emitFragment()
}

func (m *Muxer) allTracksHavePending() bool {
	for _, t := range m.tracks {
		if len(m.fragQueues[t.track.ID]) == 0 {
			return false
		}
	}
	return true
}

func (m *Muxer) fragmentThresholdMet() bool {
	for _, t := range m.tracks {
		q := m.fragQueues[t.track.ID]
		if len(q) == 0 {
			return false
		}
		if !t.pendingKey {
			return false
		}
		span := q[len(q)-1].dts - q[0].dts
		if span >= fragmentedChunkThreshold {
			return true
		}
	}
	return false
}

// emitFragment drains every track's queue completely, writing one moof+mdat
// fragment with one traf per track; samples are sorted by decode timestamp
// within each track and are not interleaved across tracks.
func (m *Muxer) emitFragment() error {
	m.fragSeq++
	type drained struct {
		trackID int
		samples []queuedSample
	}
	var perTrack []drained
	for _, t := range m.tracks {
		q := m.fragQueues[t.track.ID]
		if len(q) == 0 {
			continue
		}
		sort.SliceStable(q, func(i, j int) bool { return q[i].dts < q[j].dts })
		perTrack = append(perTrack, drained{trackID: t.track.ID, samples: q})
		m.fragQueues[t.track.ID] = nil
		t.pendingKey = false
	}

	moofOffset := m.pos
	trafs := make([]Node, 0, len(perTrack))
	sampleBytes := make([][]byte, len(perTrack))
	truns := make([]*Trun, len(perTrack))

	for i, d := range perTrack {
		ts := m.byID[d.trackID]
		samples := make([]TrunSample, len(d.samples))
		var buf bytes.Buffer
		for j, s := range d.samples {
			dur := ts.track.SecondsToTicks(0.0)
			if j+1 < len(d.samples) {
				dur = ts.track.SecondsToTicks(d.samples[j+1].dts - s.dts)
			}
			flags := uint32(0x00010000) // sample_depends_on unknown by default
			if s.pkt.Type == packet.Key {
				flags = 0x02000000 // sample_is_non_sync_sample = 0
			} else {
				flags = 0x00010001 // non-key: depends on others, is-non-sync-sample
			}
			samples[j] = TrunSample{
				Duration:              uint32(dur),
				Size:                  uint32(len(s.pkt.Data)),
				Flags:                 flags,
				CompositionTimeOffset: int32(ts.track.SecondsToTicks(s.pts - s.dts)),
			}
			buf.Write(s.pkt.Data)
			m.recordTfraEntry(ts, d.samples[0].dts, moofOffset)
		}
		sampleBytes[i] = buf.Bytes()

		tfhd := Tfhd{
			FullBox: FullBox{Flags: uint32ToFlags(0x020000)},
			TrackID: uint32(d.trackID),
		}
		tfdt := Tfdt{FullBox: FullBox{Version: 1}, BaseMediaDecodeTime: uint64(ts.track.SecondsToTicks(d.samples[0].dts - ts.firstDTS))}
		trun := &Trun{
			FullBox: FullBox{Flags: uint32ToFlags(0x000001 | 0x000100 | 0x000200 | 0x000400 | 0x000800)},
			Samples: samples,
		}
		truns[i] = trun

		trafs = append(trafs, Node{Box: Traf(), Children: []Node{
			{Box: tfhd},
			{Box: tfdt},
			{Box: trun},
		}})
	}

	moof := Node{Box: Moof(), Children: append([]Node{{Box: Mfhd{SequenceNumber: m.fragSeq}}}, trafs...)}
	moofSize := moof.Size()

	// Backpatch each trun's data_offset now that moof's size (and thus
	// mdat's start) is known.
	dataOffset := int32(moofSize + 8) // +8 for mdat's own header
	for _, trun := range truns {
		trun.DataOffset = dataOffset
		for _, s := range trafSampleSizes(trun) {
			dataOffset += int32(s)
		}
	}

	if err := m.writeNode(moof); err != nil {
		return err
	}

	var mdatAll bytes.Buffer
	for _, b := range sampleBytes {
		mdatAll.Write(b)
	}
	mdat := Node{Box: Mdat{Data: mdatAll.Bytes()}}
	return m.writeNode(mdat)
}

func trafSampleSizes(t *Trun) []uint32 {
	sizes := make([]uint32, len(t.Samples))
	for i, s := range t.Samples {
		sizes[i] = s.Size
	}
	return sizes
}

func (m *Muxer) recordTfraEntry(ts *trackState, dts float64, moofOffset int64) {
	entries := m.fraEntries[ts.track.ID]
	m.fraEntries[ts.track.ID] = append(entries, TfraEntry{
		Time:         uint64(ts.track.SecondsToTicks(dts - ts.firstDTS)),
		MoofOffset:   uint64(moofOffset),
		TrafNumber:   1,
		TrunNumber:   1,
		SampleNumber: 1,
	})
}

func (m *Muxer) buildInitMoov() (Node, error) {
	var traks []Node
	for _, ts := range m.tracks {
		traks = append(traks, m.buildTrak(ts, true))
	}
	mvex := Node{Box: Mvex()}
	for _, ts := range m.tracks {
		mvex.Children = append(mvex.Children, Node{Box: ts.trex})
	}
	children := append([]Node{{Box: m.buildMvhd()}}, traks...)
	children = append(children, mvex)
	return Node{Box: Moov(), Children: children}, nil
}

func (m *Muxer) buildMvhd() Mvhd {
	nextID := uint32(1)
	for _, t := range m.tracks {
		if uint32(t.track.ID)+1 > nextID {
			nextID = uint32(t.track.ID) + 1
		}
	}
	return Mvhd{Timescale: globalTimescale, NextTrackID: nextID, CreationTime: m.mp4Time()}
}

func (m *Muxer) mp4Time() uint32 {
	if m.opts.CreationTime == 0 {
		return 0
	}
	return m.opts.CreationTime + mp4Epoch1904Offset
}

func (m *Muxer) buildTrak(ts *trackState, fragmented bool) Node {
	durationTicks := ts.track.SecondsToTicks(ts.lastDTS - ts.firstDTS)
	handlerType, handlerName := [4]byte{'v', 'i', 'd', 'e'}, "VideoHandler"
	if ts.track.Kind == packet.Audio {
		handlerType, handlerName = [4]byte{'s', 'o', 'u', 'n'}, "SoundHandler"
	}

	mdia := Node{Box: Mdia(), Children: []Node{
		{Box: Mdhd{Timescale: uint32(ts.track.TimeResolution), Duration: uint32(durationTicks), Language: [3]byte{'u', 'n', 'd'}}},
		{Box: Hdlr{HandlerType: handlerType, Name: handlerName}},
		m.buildMinf(ts, fragmented),
	}}

	width, height := 0.0, 0.0
	if ts.track.Kind == packet.Video {
		width, height = float64(ts.track.Video.CodedWidth), float64(ts.track.Video.CodedHeight)
	}

	trak := Node{Box: Trak(), Children: []Node{
		{Box: Tkhd{FullBox: FullBox{Flags: [3]byte{0, 0, 3}}, TrackID: uint32(ts.track.ID), Duration: uint32(durationTicks), Width: width, Height: height, Volume: audioVolume(ts.track)}},
		mdia,
	}}
	return trak
}

func audioVolume(t *packet.Track) float64 {
	if t.Kind == packet.Audio {
		return 1.0
	}
	return 0.0
}

func (m *Muxer) buildMinf(ts *trackState, fragmented bool) Node {
	var mediaHeader Node
	if ts.track.Kind == packet.Video {
		mediaHeader = Node{Box: Vmhd{}}
	} else {
		mediaHeader = Node{Box: Smhd{}}
	}
	dinf := Node{Box: Dinf(), Children: []Node{{Box: Dref{}, Children: []Node{{Box: URLBox{}}}}}}

	stbl := Node{Box: Stbl(), Children: []Node{m.buildStsd(ts)}}
	if !fragmented {
		stbl.Children = append(stbl.Children, Node{Box: Stts{Entries: ts.stts}})
		if len(ts.stss) > 0 && len(ts.stss) != ts.sampleCount {
			stbl.Children = append(stbl.Children, Node{Box: Stss{SampleNumbers: ts.stss}})
		}
		if needsCtts(ts.ctts) {
			stbl.Children = append(stbl.Children, Node{Box: Ctts{Entries: ts.ctts}})
		}
		stbl.Children = append(stbl.Children, Node{Box: Stsc{Entries: ts.stsc}})
		stbl.Children = append(stbl.Children, Node{Box: Stsz{Sizes: ts.stsz}})
		stbl.Children = append(stbl.Children, m.buildChunkOffsetBox(ts))
	} else {
		stbl.Children = append(stbl.Children,
			Node{Box: Stts{}}, Node{Box: Stsc{}}, Node{Box: Stsz{}}, Node{Box: Stco{}})
	}

	return Node{Box: Minf(), Children: []Node{mediaHeader, dinf, stbl}}
}

func needsCtts(entries []CttsEntry) bool {
	if len(entries) > 1 {
		return true
	}
	return len(entries) == 1 && entries[0].SampleOffset != 0
}

func (m *Muxer) buildChunkOffsetBox(ts *trackState) Node {
	last := uint64(0)
	if len(ts.co) > 0 {
		last = ts.co[len(ts.co)-1]
	}
	if last >= 1<<32 {
		return Node{Box: Co64{Offsets: ts.co}}
	}
	offsets32 := make([]uint32, len(ts.co))
	for i, o := range ts.co {
		offsets32[i] = uint32(o)
	}
	return Node{Box: Stco{Offsets: offsets32}}
}

func (m *Muxer) buildStsd(ts *trackState) Node {
	stsd := Node{Box: Stsd{}}
	switch ts.track.Kind {
	case packet.Video:
		switch ts.track.Codec {
		case "hevc":
			entry := VisualSampleEntry{Code: "hvc1", Width: uint16(ts.track.Video.CodedWidth), Height: uint16(ts.track.Video.CodedHeight)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: HvcC{NALUnits: [][]byte{ts.track.DecoderConfig}}}}}}
		case "vp8":
			entry := VisualSampleEntry{Code: "vp08", Width: uint16(ts.track.Video.CodedWidth), Height: uint16(ts.track.Video.CodedHeight)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: VpcC{Profile: 0, Level: 10, BitDepth: 8}}}}}
		case "vp9":
			entry := VisualSampleEntry{Code: "vp09", Width: uint16(ts.track.Video.CodedWidth), Height: uint16(ts.track.Video.CodedHeight)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: VpcC{Profile: 0, Level: 10, BitDepth: 8}}}}}
		case "av1":
			entry := VisualSampleEntry{Code: "av01", Width: uint16(ts.track.Video.CodedWidth), Height: uint16(ts.track.Video.CodedHeight)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: Av1C{ConfigOBUs: ts.track.DecoderConfig}}}}}
		default: // "avc"
			entry := VisualSampleEntry{Code: "avc1", Width: uint16(ts.track.Video.CodedWidth), Height: uint16(ts.track.Video.CodedHeight)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: AvcC{SPS: [][]byte{ts.track.DecoderConfig}}}}}}
		}
	case packet.Audio:
		switch ts.track.Codec {
		case "opus":
			entry := AudioSampleEntry{Code: "Opus", ChannelCount: uint16(ts.track.Audio.NumberOfChannels), SampleSize: 16, SampleRate: uint32(ts.track.Audio.SampleRate)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: DOps{OutputChannelCount: byte(ts.track.Audio.NumberOfChannels), InputSampleRate: uint32(ts.track.Audio.SampleRate)}}}}}
		default: // "aac"
			entry := AudioSampleEntry{Code: "mp4a", ChannelCount: uint16(ts.track.Audio.NumberOfChannels), SampleSize: 16, SampleRate: uint32(ts.track.Audio.SampleRate)}
			stsd.Children = []Node{{Box: entry, Children: []Node{{Box: Esds{TrackID: uint16(ts.track.ID), DecoderConfig: ts.track.DecoderConfig}}}}}
		}
	}
	return stsd
}

// Finalize writes trailing structures and truncates/backpatches as needed
// per layout mode.
func (m *Muxer) Finalize() error {
	if !m.started {
		return mediaerrors.NewStateViolation("muxer.finalize", nil)
	}
	if m.finalized {
		return mediaerrors.NewStateViolation("muxer.finalize", nil)
	}
	m.finalized = true

	for _, ts := range m.tracks {
		if err := m.flushChunkIfAny(ts); err != nil {
			return err
		}
	}

	switch m.opts.Mode {
	case Progressive:
		if err := m.finalizeMdatSize(); err != nil {
			return err
		}
		moov, err := m.buildInitMoov()
		if err != nil {
			return err
		}
		moovNoMvex := Node{Box: Moov()}
		for _, ts := range m.tracks {
			moovNoMvex.Children = append(moovNoMvex.Children, m.buildTrak(ts, false))
		}
		moovNoMvex.Children = append([]Node{{Box: m.buildMvhd()}}, moovNoMvex.Children...)
		_ = moov
		if err := m.writeNode(moovNoMvex); err != nil {
			return err
		}
	case FaststartInMemory:
		if err := m.writeInMemoryBody(); err != nil {
			return err
		}
	case FaststartReservedHole:
		if err := m.finalizeMdatSize(); err != nil {
			return err
		}
		moov := Node{Box: Moov()}
		for _, ts := range m.tracks {
			moov.Children = append(moov.Children, m.buildTrak(ts, false))
		}
		moov.Children = append([]Node{{Box: m.buildMvhd()}}, moov.Children...)
		moovSize := moov.Size()
		if moovSize > m.moovHoleSz {
			return mediaerrors.NewStateViolation("muxer.finalize", nil)
		}
		if err := m.w.Seek(m.moovHoleAt); err != nil {
			return mediaerrors.NewIOError("muxer.finalize", err)
		}
		var buf bytes.Buffer
		if err := moov.Marshal(&buf); err != nil {
			return mediaerrors.NewIOError("muxer.finalize", err)
		}
		if _, err := m.w.Write(buf.Bytes()); err != nil {
			return mediaerrors.NewIOError("muxer.finalize", err)
		}
		pad := m.moovHoleSz - moovSize
		if pad > 0 {
			freeNode := Node{Box: Free{Size: int(pad - 8)}}
			if err := m.writeNodeAt(freeNode); err != nil {
				return err
			}
		}
	case Fragmented:
		for _, t := range m.tracks {
			if len(m.fragQueues[t.track.ID]) > 0 {
				if err := m.emitFragment(); err != nil {
					return err
				}
				break
			}
		}
		if err := m.writeMfra(); err != nil {
			return err
		}
	}

	return m.w.Finalize()
}

func (m *Muxer) writeMfra() error {
	var children []Node
	for _, ts := range m.tracks {
		children = append(children, Node{Box: Tfra{TrackID: uint32(ts.track.ID), Entries: m.fraEntries[ts.track.ID]}})
	}
	mfra := Node{Box: Mfra(), Children: children}
	mfraSize := mfra.Size()
	children = append(children, Node{Box: Mfro{Size: uint32(mfraSize + 16)}})
	mfra.Children = children
	return m.writeNode(mfra)
}

func (m *Muxer) writeInMemoryBody() error {
	ftyp := Node{Box: Ftyp{MajorBrand: m.opts.MajorBrand, MinorVersion: 0, CompatibleBrands: m.opts.CompatBrands}}
	ftypSize := ftyp.Size()

	var mdatBuf bytes.Buffer
	for _, s := range m.drainInMemoryInOffsetOrder() {
		mdatBuf.Write(s)
	}
	mdatHeaderSize := int64(8)
	large := mdatBuf.Len()+8 >= 1<<32
	if large {
		mdatHeaderSize = 16
	}

	// ts.co currently holds offsets relative to mdat's content start
	// (assigned by drainInMemoryInOffsetOrder). Build moov once to size
	// it, rebase every chunk offset to the true absolute file position
	// that will follow ftyp+moov+the mdat header, then rebuild moov so
	// its stco/co64 entries carry real offsets a demuxer can seek to.
	moovSize := m.buildFullMoov().Size()
	base := uint64(ftypSize + moovSize + mdatHeaderSize)
	for _, ts := range m.tracks {
		for i := range ts.co {
			ts.co[i] += base
		}
	}
	moov := m.buildFullMoov()
	mdat := Node{Box: Mdat{Data: mdatBuf.Bytes()}, Large: large}

	if err := m.writeNode(ftyp); err != nil {
		return err
	}
	if err := m.writeNode(moov); err != nil {
		return err
	}
	return m.writeNode(mdat)
}

func (m *Muxer) buildFullMoov() Node {
	moov := Node{Box: Moov()}
	for _, ts := range m.tracks {
		moov.Children = append(moov.Children, m.buildTrak(ts, false))
	}
	moov.Children = append([]Node{{Box: m.buildMvhd()}}, moov.Children...)
	return moov
}

// drainInMemoryInOffsetOrder assigns each chunk a provisional offset
// relative to mdat's content start (stamped into ts.co for the caller to
// rebase once the true mdat start is known) and returns every chunk's
// bytes in ascending offset order.
func (m *Muxer) drainInMemoryInOffsetOrder() [][]byte {
	type placed struct {
		offset int64
		data   []byte
	}
	var all []placed

	cursor := int64(0)
	for _, ts := range m.tracks {
		for _, ch := range ts.finalized {
			var buf bytes.Buffer
			for _, s := range ch.samples {
				buf.Write(s.data)
			}
			if idx := indexOfChunk(ts, ch); idx >= 0 && idx < len(ts.co) {
				ts.co[idx] = uint64(cursor)
			}
			all = append(all, placed{offset: cursor, data: buf.Bytes()})
			cursor += int64(buf.Len())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].offset < all[j].offset })
	out := make([][]byte, len(all))
	for i, p := range all {
		out[i] = p.data
	}
	return out
}

func indexOfChunk(ts *trackState, ch *chunkBuilder) int {
	for i, c := range ts.finalized {
		if c == ch {
			return i
		}
	}
	return -1
}

func (m *Muxer) finalizeMdatSize() error {
	mdatTotalSize := m.pos - (m.mdatStart - 16)
	if err := m.w.Seek(m.mdatStart - 8); err != nil {
		return mediaerrors.NewIOError("muxer.finalizeMdat", err)
	}
	var tmp bytes.Buffer
	tmp.Write([]byte{0, 0, 0, 1})
	tmp.Write([]byte("mdat"))
	sizeBytes := make([]byte, 8)
	putUint64(sizeBytes, uint64(mdatTotalSize))
	tmp.Write(sizeBytes)
	if _, err := m.w.Write(tmp.Bytes()[8:]); err != nil { // header was already written; only the largesize field needs updating
		return mediaerrors.NewIOError("muxer.finalizeMdat", err)
	}
	if err := m.w.Seek(m.pos); err != nil {
		return mediaerrors.NewIOError("muxer.finalizeMdat", err)
	}
	return nil
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func (m *Muxer) write(p []byte) error {
	n, err := m.w.Write(p)
	m.pos += int64(n)
	if err != nil {
		return mediaerrors.NewIOError("muxer.write", err)
	}
	return nil
}

func (m *Muxer) writeNode(n Node) error {
	var buf bytes.Buffer
	if err := n.Marshal(&buf); err != nil {
		return mediaerrors.NewIOError("muxer.writeNode", err)
	}
	return m.write(buf.Bytes())
}

func (m *Muxer) writeNodeAt(n Node) error {
	return m.writeNode(n)
}
