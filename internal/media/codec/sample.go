// Package codec defines the abstract encoder/decoder interfaces consumed by
// muxers and sample sinks (spec §6), and three adapter wrappers that smooth
// over common decoder quirks (presentation reordering, zero-frame skip,
// PCM re-packing — spec §4.9). The interfaces are satisfied by whatever
// concrete codec engine a caller registers; this package ships no codec
// implementations of its own.
package codec

import (
	"github.com/alxayo/mediabox/internal/media/packet"
)

// DecodedSample is a reference-typed handle returned by a decoder: raw
// pixel data for video, interleaved PCM for audio. Per spec §5's resource
// policy, the consumer that receives a DecodedSample from a sink owns it
// and must Close it once done; Close is idempotent.
type DecodedSample struct {
	Timestamp float64
	Duration  float64
	Kind      packet.Kind
	Data      []byte
	Format    string // e.g. "u8"/"s16"/"s32"/"f32" (audio), a pixel format tag (video)

	Width, Height int // video only

	SampleRate int // audio only
	Channels   int // audio only

	closed bool
}

// Close releases the sample's backing buffer. Safe to call more than once.
func (s *DecodedSample) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.Data = nil
	return nil
}

// Clone returns an independent copy that owns its own Data slice.
func (s *DecodedSample) Clone() *DecodedSample {
	if s == nil {
		return nil
	}
	c := *s
	c.closed = false
	if s.Data != nil {
		c.Data = append([]byte(nil), s.Data...)
	}
	return &c
}

// EncoderParams configures a VideoEncoder/AudioEncoder at Configure time.
type EncoderParams struct {
	Width, Height int
	Framerate     float64

	SampleRate int
	Channels   int

	Bitrate int
}

// DecoderConfig configures a VideoDecoder/AudioDecoder at Configure time.
type DecoderConfig struct {
	Codec string
	Extra []byte // out-of-band decoder config, e.g. an avcC record

	Width, Height int

	SampleRate int
	Channels   int
}

// EncodedMetadata accompanies an encoder's output callback with whatever
// side information the muxer needs (e.g. whether this packet is a key
// frame, in case the encoder doesn't already set packet.Type).
type EncodedMetadata struct {
	KeyFrame bool
}
