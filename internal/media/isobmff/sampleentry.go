package isobmff

// VisualSampleEntry is the common header shared by avc1/hvc1/vp09/av01
// sample entries; its codec-specific configuration (avcC, hvcC, vpcC,
// av1C) is carried as a child node.
type VisualSampleEntry struct {
	Code          string // four-character codec box type, e.g. "avc1"
	Width, Height uint16
}

func (v VisualSampleEntry) BoxType() BoxType { return bt(pad4(v.Code)) }
func (v VisualSampleEntry) Payload() []byte {
	w := newBufBuilder()
	w.bytes(make([]byte, 6)) // reserved
	w.u16(1)                 // data_reference_index
	w.u16(0)                 // pre_defined
	w.u16(0)                 // reserved
	w.bytes(make([]byte, 12)) // pre_defined
	w.u16(v.Width)
	w.u16(v.Height)
	w.u32(fixed32(72)) // horizresolution
	w.u32(fixed32(72)) // vertresolution
	w.u32(0)           // reserved
	w.u16(1)           // frame_count
	w.bytes(make([]byte, 32)) // compressorname
	w.u16(24)          // depth
	w.u16(0xFFFF)      // pre_defined
	return w.bytes16()
}

// AudioSampleEntry is the common header shared by mp4a/Opus sample
// entries; codec-specific configuration (esds, dOps) is a child node.
type AudioSampleEntry struct {
	Code             string
	ChannelCount     uint16
	SampleSize       uint16
	SampleRate       uint32 // Hz, encoded as 16.16 fixed point in the high word
}

func (a AudioSampleEntry) BoxType() BoxType { return bt(pad4(a.Code)) }
func (a AudioSampleEntry) Payload() []byte {
	w := newBufBuilder()
	w.bytes(make([]byte, 6))
	w.u16(1) // data_reference_index
	w.u32(0) // reserved
	w.u32(0) // reserved
	w.u16(a.ChannelCount)
	w.u16(a.SampleSize)
	w.u16(0) // pre_defined
	w.u16(0) // reserved
	w.u32(a.SampleRate << 16)
	return w.bytes16()
}

// AvcC is the AVCDecoderConfigurationRecord.
type AvcC struct {
	ProfileIdc, ProfileCompat, LevelIdc byte
	SPS, PPS                            [][]byte
}

func (AvcC) BoxType() BoxType { return bt("avcC") }
func (a AvcC) Payload() []byte {
	w := newBufBuilder()
	w.u8(1) // configurationVersion
	w.u8(a.ProfileIdc)
	w.u8(a.ProfileCompat)
	w.u8(a.LevelIdc)
	w.u8(0xFC | 3) // reserved(6) + lengthSizeMinusOne(2) = 3 (4-byte lengths)
	w.u8(0xE0 | byte(len(a.SPS)))
	for _, sps := range a.SPS {
		w.u16(uint16(len(sps)))
		w.bytes(sps)
	}
	w.u8(byte(len(a.PPS)))
	for _, pps := range a.PPS {
		w.u16(uint16(len(pps)))
		w.bytes(pps)
	}
	return w.bytes16()
}

// HvcC is a minimal HEVCDecoderConfigurationRecord carrying the raw VPS/
// SPS/PPS NAL units as a single opaque array (sufficient for playback;
// full per-array NAL unit typing is not required by any SPEC_FULL.md
// consumer of this record).
type HvcC struct {
	GeneralProfileIdc byte
	NALUnits          [][]byte
}

func (HvcC) BoxType() BoxType { return bt("hvcC") }
func (h HvcC) Payload() []byte {
	w := newBufBuilder()
	w.u8(1) // configurationVersion
	w.u8(h.GeneralProfileIdc)
	w.u32(0) // general_profile_compatibility_flags
	w.bytes(make([]byte, 6)) // general_constraint_indicator_flags
	w.u8(0)                  // general_level_idc placeholder
	w.u16(0xF000)            // min_spatial_segmentation_idc (reserved bits set)
	w.u8(0xFC)                // parallelismType reserved bits
	w.u8(0xFC)                // chromaFormat reserved bits
	w.u8(0xF8)                // bitDepthLuma reserved bits
	w.u8(0xF8)                // bitDepthChroma reserved bits
	w.u16(0)                  // avgFrameRate
	w.u8(0x0F)                // constantFrameRate/numTemporalLayers/temporalIdNested/lengthSizeMinusOne
	w.u8(1)                   // numOfArrays
	w.u8(0x20)                // array_completeness + NAL_unit_type (VPS=32)
	w.u16(uint16(len(h.NALUnits)))
	for _, nal := range h.NALUnits {
		w.u16(uint16(len(nal)))
		w.bytes(nal)
	}
	return w.bytes16()
}

// VpcC is the VPCodecConfigurationRecord (VP8/VP9).
type VpcC struct {
	Profile, Level, BitDepth, ChromaSubsampling byte
	ColorSpace                                  byte
}

func (VpcC) BoxType() BoxType { return bt("vpcC") }
func (v VpcC) Payload() []byte {
	w := newBufBuilder()
	FullBox{Version: 1}.marshal(w)
	w.u8(v.Profile)
	w.u8(v.Level)
	w.u8((v.BitDepth << 4) | (v.ChromaSubsampling << 1))
	w.u8(v.ColorSpace)
	w.u16(0) // transfer/matrix/range bits folded into colorSpace here, codec-detail left minimal
	w.u16(0) // codecIntializationDataSize = 0
	return w.bytes16()
}

// Av1C is the AV1CodecConfigurationRecord.
type Av1C struct {
	SeqProfile, SeqLevelIdx0 byte
	ConfigOBUs               []byte
}

func (Av1C) BoxType() BoxType { return bt("av1C") }
func (a Av1C) Payload() []byte {
	w := newBufBuilder()
	w.u8(0x80 | 1) // marker(1) + version(7)=1
	w.u8((a.SeqProfile << 5) | (a.SeqLevelIdx0 & 0x1F))
	w.u8(0) // tier/bitdepth/monochrome/subsampling/reserved, defaulted
	w.bytes(a.ConfigOBUs)
	return w.bytes16()
}

// Esds is a minimal ISO/IEC 14496-1 elementary stream descriptor carrying
// the AudioSpecificConfig bytes for AAC.
type Esds struct {
	TrackID        uint16
	DecoderConfig  []byte
	AvgBitrate     uint32
}

func (Esds) BoxType() BoxType { return bt("esds") }
func (e Esds) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)

	const (
		esDescrTag          = 0x03
		decoderConfigDescrTag = 0x04
		decSpecificInfoTag  = 0x05
		slConfigDescrTag    = 0x06
	)
	infoSize := byte(len(e.DecoderConfig))

	w.u8(esDescrTag)
	w.bytes([]byte{0x80, 0x80, 0x80, 3 + 5 + 13 + 5 + infoSize + 3 - 3})
	w.u16(e.TrackID)
	w.u8(0) // flags

	w.u8(decoderConfigDescrTag)
	w.bytes([]byte{0x80, 0x80, 0x80, 13 + 5 + infoSize})
	w.u8(0x40) // objectTypeIndication: MPEG-4 Audio
	w.u8(0x15) // streamType + upStream + reserved
	w.bytes([]byte{0, 0, 0}) // bufferSizeDB
	w.u32(e.AvgBitrate)
	w.u32(e.AvgBitrate)

	w.u8(decSpecificInfoTag)
	w.bytes([]byte{0x80, 0x80, 0x80, infoSize})
	w.bytes(e.DecoderConfig)

	w.u8(slConfigDescrTag)
	w.bytes([]byte{0x80, 0x80, 0x80, 1, 2})
	return w.bytes16()
}

// DOps is the Opus identification header wrapper box (dOps).
type DOps struct {
	OutputChannelCount byte
	PreSkip            uint16
	InputSampleRate    uint32
}

func (DOps) BoxType() BoxType { return bt("dOps") }
func (d DOps) Payload() []byte {
	w := newBufBuilder()
	w.u8(0) // version
	w.u8(d.OutputChannelCount)
	w.u16(d.PreSkip)
	w.u32(d.InputSampleRate)
	w.u16(0) // outputGain
	w.u8(0)  // channelMappingFamily
	return w.bytes16()
}
