package matroska

import (
	"bytes"
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
)

const (
	clusterGapMS    = 1000
	maxClusterSpan  = 32767 // signed 16-bit relative timestamp ceiling
	defaultScaleNS  = 1_000_000
	seekHeadEntries = 3 // Info, Tracks, Cues
)

// Options configures a Muxer (spec §4.4).
type Options struct {
	WebM bool
	// Streaming, when true, writes Segment/Cluster with EBML unknown size
	// and omits SeekHead, Duration, and Cues.
	Streaming bool
	MuxingApp, WritingApp string
}

type queuedBlock struct {
	timestampMS int64
	key         bool
	durationMS  int64
	data        []byte
}

type cueEntry struct {
	timestampMS  int64
	byteOffset   int64
	trackNumbers []uint64
}

type trackState struct {
	track        *packet.Track
	trackNumber  uint64
	haveLast     bool
	lastMS       int64
	vp9ColorSet  bool
	vp9ColorSpace byte
}

// Muxer writes a Matroska or WebM document to a mio.Writer (spec §4.4).
type Muxer struct {
	opts Options
	w    mio.Writer

	tracks []*trackState
	byID   map[int]*trackState

	started, finalized bool
	pos                int64

	segmentHeaderPos int64
	segmentDataStart int64
	seekHeadPos      int64
	seekHeadLen      int64
	infoPos          int64
	durationValuePos int64
	tracksPos        int64

	queues         map[uint64][]queuedBlock
	clusterOpen    bool
	clusterStartMS int64
	cues           []cueEntry
}

// NewMuxer creates a Muxer over w.
func NewMuxer(w mio.Writer, opts Options) *Muxer {
	return &Muxer{
		opts:   opts,
		w:      w,
		byID:   make(map[int]*trackState),
		queues: make(map[uint64][]queuedBlock),
	}
}

// AddTrack registers a track before Start. WebM muxers reject codecs
// outside the VP8/VP9/AV1 + Opus/Vorbis set.
func (m *Muxer) AddTrack(t *packet.Track) error {
	if m.started {
		return mediaerrors.NewStateViolation("matroska.AddTrack", errAlreadyStarted)
	}
	if err := t.Validate(); err != nil {
		return mediaerrors.NewInvalidInput("matroska.AddTrack", err)
	}
	if _, exists := m.byID[t.ID]; exists {
		return mediaerrors.NewInvalidInput("matroska.AddTrack", errDuplicateTrack)
	}
	codecID, ok := codecIDFor(t.Codec)
	if !ok {
		return mediaerrors.NewUnsupportedFeature("matroska.AddTrack", errUnknownCodec)
	}
	if m.opts.WebM && !webMAllowedCodecs[t.Codec] {
		return mediaerrors.NewUnsupportedFeature("matroska.AddTrack", errWebMCodec)
	}
	_ = codecID
	ts := &trackState{track: t, trackNumber: uint64(len(m.tracks) + 1)}
	m.tracks = append(m.tracks, ts)
	m.byID[t.ID] = ts
	m.queues[ts.trackNumber] = nil
	return nil
}

// SetVP9ColorSpace records a color_space value (0-7, per the VP9 bitstream
// spec's color_config table) to patch into every key frame on trackID that
// is missing one, per the decoder configuration's declared colorimetry.
func (m *Muxer) SetVP9ColorSpace(trackID int, colorSpace byte) {
	if ts, ok := m.byID[trackID]; ok {
		ts.vp9ColorSet = true
		ts.vp9ColorSpace = colorSpace
	}
}

// Start writes the EBML header, Segment header, and header-level metadata
// (SeekHead placeholder, Info, Tracks).
func (m *Muxer) Start() error {
	if m.started {
		return mediaerrors.NewStateViolation("matroska.Start", errAlreadyStarted)
	}
	m.started = true

	if err := m.write(m.buildEBMLHeader()); err != nil {
		return err
	}

	m.segmentHeaderPos = m.pos
	var seg bytes.Buffer
	writeMasterHeader(&seg, idSegment, 0, true) // always written with the 8-byte unknown-size form; backpatched below if finite
	if err := m.write(seg.Bytes()); err != nil {
		return err
	}
	m.segmentDataStart = m.pos

	if !m.opts.Streaming {
		m.seekHeadPos = m.pos
		hole := makeSeekHeadHole()
		m.seekHeadLen = int64(len(hole))
		if err := m.write(hole); err != nil {
			return err
		}
	}

	m.infoPos = m.pos
	if err := m.writeInfo(); err != nil {
		return err
	}

	m.tracksPos = m.pos
	if err := m.writeTracks(); err != nil {
		return err
	}

	return nil
}

func (m *Muxer) buildEBMLHeader() []byte {
	var body bytes.Buffer
	writeElement(&body, idEBMLVersion, encodeUint(1))
	writeElement(&body, idEBMLReadVersion, encodeUint(1))
	writeElement(&body, idEBMLMaxIDLength, encodeUint(4))
	writeElement(&body, idEBMLMaxSizeLength, encodeUint(8))
	docType := "matroska"
	if m.opts.WebM {
		docType = "webm"
	}
	writeElement(&body, idEBMLDocType, []byte(docType))
	writeElement(&body, idEBMLDocTypeVersion, encodeUint(2))
	writeElement(&body, idEBMLDocTypeReadVersion, encodeUint(2))

	var out bytes.Buffer
	writeElement(&out, idEBMLHeader, body.Bytes())
	return out.Bytes()
}

func (m *Muxer) writeInfo() error {
	var body bytes.Buffer
	writeElement(&body, idTimestampScale, encodeUint(defaultScaleNS))
	if m.opts.MuxingApp != "" {
		writeElement(&body, idMuxingApp, []byte(m.opts.MuxingApp))
	}
	if m.opts.WritingApp != "" {
		writeElement(&body, idWritingApp, []byte(m.opts.WritingApp))
	}
	durationOffsetInBody := -1
	if !m.opts.Streaming {
		// Reserve a fixed-width 8-byte float Duration, patched at Finalize.
		durationOffsetInBody = body.Len()
		writeElement(&body, idDuration, make([]byte, 8))
	}
	var out bytes.Buffer
	writeElement(&out, idInfo, body.Bytes())
	if durationOffsetInBody >= 0 {
		infoHeaderLen := out.Len() - body.Len()
		valueOffsetInBody := durationOffsetInBody + len(encodeElementID(idDuration)) + len(encodeVInt(8))
		m.durationValuePos = m.infoPos + int64(infoHeaderLen) + int64(valueOffsetInBody)
	}
	return m.write(out.Bytes())
}

func (m *Muxer) writeTracks() error {
	var tracks bytes.Buffer
	for _, ts := range m.tracks {
		tracks.Write(m.buildTrackEntry(ts))
	}
	var out bytes.Buffer
	writeElement(&out, idTracks, tracks.Bytes())
	return m.write(out.Bytes())
}

func (m *Muxer) buildTrackEntry(ts *trackState) []byte {
	var entry bytes.Buffer
	writeElement(&entry, idTrackNum, encodeUint(ts.trackNumber))
	writeElement(&entry, idTrackUID, encodeUint(ts.trackNumber))
	codecID, _ := codecIDFor(ts.track.Codec)
	writeElement(&entry, idCodecID, []byte(codecID))
	if len(ts.track.DecoderConfig) > 0 {
		writeElement(&entry, idCodecPriv, ts.track.DecoderConfig)
	}
	switch ts.track.Kind {
	case packet.Video:
		writeElement(&entry, idTrackType, []byte{byte(trackTypeVideo)})
		var video bytes.Buffer
		writeElement(&video, idPixelWidth, encodeUint(uint64(ts.track.Video.CodedWidth)))
		writeElement(&video, idPixelHeight, encodeUint(uint64(ts.track.Video.CodedHeight)))
		writeElement(&entry, idVideo, video.Bytes())
	case packet.Audio:
		writeElement(&entry, idTrackType, []byte{byte(trackTypeAudio)})
		var audio bytes.Buffer
		writeElement(&audio, idSamplingFrequency, encodeFloat64(float64(ts.track.Audio.SampleRate)))
		writeElement(&audio, idChannels, encodeUint(uint64(ts.track.Audio.NumberOfChannels)))
		writeElement(&entry, idAudio, audio.Bytes())
	}
	var out bytes.Buffer
	writeElement(&out, idTrackEntry, entry.Bytes())
	return out.Bytes()
}

// WritePacket admits one packet on trackID (spec §4.4's cluster boundary
// and block-encoding policy).
func (m *Muxer) WritePacket(trackID int, pkt *packet.Packet) error {
	if !m.started || m.finalized {
		return mediaerrors.NewStateViolation("matroska.WritePacket", errNotWritable)
	}
	ts, ok := m.byID[trackID]
	if !ok {
		return mediaerrors.NewInvalidInput("matroska.WritePacket", errUnknownTrack)
	}
	tsMS := int64(pkt.Timestamp*1000 + 0.5)
	if ts.haveLast && tsMS < ts.lastMS {
		return mediaerrors.NewUnorderedTimestamp(trackID, float64(ts.lastMS)/1000, pkt.Timestamp)
	}
	ts.haveLast = true
	ts.lastMS = tsMS

	if m.clusterOpen {
		rel := tsMS - m.clusterStartMS
		if rel > maxClusterSpan {
			return mediaerrors.NewClusterTooLong(trackID, rel, maxClusterSpan)
		}
	}

	data := pkt.Data
	if ts.track.Kind == packet.Video && ts.track.Codec == "vp9" && pkt.Type == packet.Key && ts.vp9ColorSet {
		data = patchVP9ColorSpace(data, ts.vp9ColorSpace)
	}

	m.queues[ts.trackNumber] = append(m.queues[ts.trackNumber], queuedBlock{
		timestampMS: tsMS,
		key:         pkt.Type == packet.Key,
		durationMS:  int64(pkt.Duration*1000 + 0.5),
		data:        data,
	})

	return m.maybeEmitCluster(tsMS)
}

func (m *Muxer) allTracksQueuedWithKeys() bool {
	for _, ts := range m.tracks {
		q := m.queues[ts.trackNumber]
		if len(q) == 0 {
			return false
		}
		if !q[0].key {
			return false
		}
	}
	return true
}

func (m *Muxer) maybeEmitCluster(candidateMS int64) error {
	if !m.allTracksQueuedWithKeys() {
		return nil
	}
	if m.clusterOpen && candidateMS-m.clusterStartMS < clusterGapMS {
		return nil
	}
	return m.flushCluster()
}

func (m *Muxer) flushCluster() error {
	clusterTS := int64(-1)
	for _, ts := range m.tracks {
		q := m.queues[ts.trackNumber]
		if len(q) == 0 {
			continue
		}
		if clusterTS < 0 || q[0].timestampMS < clusterTS {
			clusterTS = q[0].timestampMS
		}
	}
	if clusterTS < 0 {
		return nil
	}

	for _, ts := range m.tracks {
		for _, b := range m.queues[ts.trackNumber] {
			if rel := b.timestampMS - clusterTS; rel > maxClusterSpan {
				return mediaerrors.NewClusterTooLong(ts.track.ID, rel, maxClusterSpan)
			}
		}
	}

	var body bytes.Buffer
	writeElement(&body, idTimestamp, encodeUint(uint64(clusterTS)))

	var contributing []uint64
	for _, ts := range m.tracks {
		q := m.queues[ts.trackNumber]
		if len(q) == 0 {
			continue
		}
		contributing = append(contributing, ts.trackNumber)
		for _, b := range q {
			rel := b.timestampMS - clusterTS
			m.writeBlock(&body, ts.trackNumber, rel, b)
		}
		m.queues[ts.trackNumber] = nil
	}

	clusterOffset := m.pos - m.segmentDataStart
	var out bytes.Buffer
	writeMasterHeader(&out, idCluster, int64(body.Len()), m.opts.Streaming)
	out.Write(body.Bytes())
	if err := m.write(out.Bytes()); err != nil {
		return err
	}

	m.clusterOpen = true
	m.clusterStartMS = clusterTS
	if !m.opts.Streaming {
		m.cues = append(m.cues, cueEntry{timestampMS: clusterTS, byteOffset: clusterOffset, trackNumbers: contributing})
	}
	return nil
}

func (m *Muxer) writeBlock(body *bytes.Buffer, trackNumber uint64, rel int64, b queuedBlock) {
	var prelude bytes.Buffer
	prelude.Write(encodeVInt(trackNumber))
	prelude.WriteByte(byte(int16(rel) >> 8))
	prelude.WriteByte(byte(int16(rel)))
	flags := byte(0)
	if b.key {
		flags |= 0x80
	}
	prelude.WriteByte(flags)

	if b.durationMS == 0 {
		blockData := append(append([]byte(nil), prelude.Bytes()...), b.data...)
		writeElement(body, idSimpleBlock, blockData)
		return
	}

	blockData := append(append([]byte(nil), prelude.Bytes()...), b.data...)
	var group bytes.Buffer
	writeElement(&group, idBlock, blockData)
	writeElement(&group, idBlockDuration, encodeUint(uint64(b.durationMS)))
	if !b.key {
		writeElement(&group, idReferenceBlock, encodeInt(-rel))
	}
	writeElement(body, idBlockGroup, group.Bytes())
}

// Finalize flushes any remaining queued samples, writes Cues (unless
// streaming), and backpatches SeekHead/Duration/Segment size.
func (m *Muxer) Finalize() error {
	if m.finalized {
		return mediaerrors.NewStateViolation("matroska.Finalize", errAlreadyFinalized)
	}
	if !m.started {
		return mediaerrors.NewStateViolation("matroska.Finalize", errNotStarted)
	}
	m.finalized = true

	if m.hasQueuedSamples() {
		if err := m.flushCluster(); err != nil {
			return err
		}
	}

	var cuesPos int64
	if !m.opts.Streaming {
		cuesPos = m.pos
		if err := m.write(m.buildCues()); err != nil {
			return err
		}

		if err := m.backpatchSeekHead(cuesPos); err != nil {
			return err
		}
		if err := m.backpatchDuration(); err != nil {
			return err
		}
		if err := m.backpatchSegmentSize(); err != nil {
			return err
		}
	}

	return m.w.Finalize()
}

func (m *Muxer) hasQueuedSamples() bool {
	for _, q := range m.queues {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

func (m *Muxer) buildCues() []byte {
	sort.Slice(m.cues, func(i, j int) bool { return m.cues[i].timestampMS < m.cues[j].timestampMS })
	var body bytes.Buffer
	for _, c := range m.cues {
		var point bytes.Buffer
		writeElement(&point, idCueTime, encodeUint(uint64(c.timestampMS)))
		for _, tn := range c.trackNumbers {
			var pos bytes.Buffer
			writeElement(&pos, idCueTrack, encodeUint(tn))
			writeElement(&pos, idCueClusterPosition, encodeUint(uint64(c.byteOffset)))
			writeElement(&point, idCueTrackPositions, pos.Bytes())
		}
		writeElement(&body, idCuePoint, point.Bytes())
	}
	var out bytes.Buffer
	writeElement(&out, idCues, body.Bytes())
	return out.Bytes()
}

func (m *Muxer) backpatchSeekHead(cuesPos int64) error {
	real := makeSeekHeadReal(m.infoPos-m.segmentDataStart, m.tracksPos-m.segmentDataStart, cuesPos-m.segmentDataStart)
	if int64(len(real)) != m.seekHeadLen {
		return mediaerrors.NewStateViolation("matroska.backpatchSeekHead", errSeekHeadSize)
	}
	if err := m.w.Seek(m.seekHeadPos); err != nil {
		return mediaerrors.NewIOError("matroska.backpatchSeekHead", err)
	}
	_, err := m.w.Write(real)
	if err != nil {
		return mediaerrors.NewIOError("matroska.backpatchSeekHead", err)
	}
	return nil
}

func (m *Muxer) backpatchDuration() error {
	if m.durationValuePos == 0 {
		return nil
	}
	var maxMS int64
	for _, ts := range m.tracks {
		if ts.haveLast && ts.lastMS > maxMS {
			maxMS = ts.lastMS
		}
	}
	if err := m.w.Seek(m.durationValuePos); err != nil {
		return mediaerrors.NewIOError("matroska.backpatchDuration", err)
	}
	_, err := m.w.Write(encodeFloat64(float64(maxMS)))
	if err != nil {
		return mediaerrors.NewIOError("matroska.backpatchDuration", err)
	}
	return nil
}

func (m *Muxer) backpatchSegmentSize() error {
	size := m.pos - m.segmentDataStart
	if err := m.w.Seek(m.segmentHeaderPos + int64(len(encodeElementID(idSegment)))); err != nil {
		return mediaerrors.NewIOError("matroska.backpatchSegmentSize", err)
	}
	_, err := m.w.Write(encodeVIntWidth(uint64(size), 8))
	if err != nil {
		return mediaerrors.NewIOError("matroska.backpatchSegmentSize", err)
	}
	return nil
}

func (m *Muxer) write(p []byte) error {
	n, err := m.w.Write(p)
	m.pos += int64(n)
	if err != nil {
		return mediaerrors.NewIOError("matroska.write", err)
	}
	return nil
}
