package codec

import "github.com/alxayo/mediabox/internal/media/packet"

// VideoEncoder is the abstract interface a muxer's source drives to turn
// decoded video samples into encoded packets (spec §6).
type VideoEncoder interface {
	Configure(codecID string, params EncoderParams) error
	Encode(sample *DecodedSample, keyFrame bool) error
	Flush() error
	OnOutput(cb func(pkt *packet.Packet, meta EncodedMetadata))
	OnError(cb func(err error))
}

// AudioEncoder mirrors VideoEncoder for audio samples.
type AudioEncoder interface {
	Configure(codecID string, params EncoderParams) error
	Encode(sample *DecodedSample, keyFrame bool) error
	Flush() error
	OnOutput(cb func(pkt *packet.Packet, meta EncodedMetadata))
	OnError(cb func(err error))
}

// VideoDecoder is the abstract interface a sample sink drives to turn
// encoded video packets into decoded samples (spec §6).
type VideoDecoder interface {
	Configure(config DecoderConfig) error
	Decode(pkt *packet.Packet) error
	Flush() error
	Close() error
	OnOutput(cb func(sample *DecodedSample))
	OnError(cb func(err error))
}

// AudioDecoder mirrors VideoDecoder for audio packets.
type AudioDecoder interface {
	Configure(config DecoderConfig) error
	Decode(pkt *packet.Packet) error
	Flush() error
	Close() error
	OnOutput(cb func(sample *DecodedSample))
	OnError(cb func(err error))
}

// VideoDecoderSupport is a codec-by-codec dispatch predicate (spec §6's
// supports(codec, config) -> bool), paired with a constructor for the
// decoder it describes.
type VideoDecoderSupport struct {
	Supports func(codecID string, config DecoderConfig) bool
	New      func(config DecoderConfig) (VideoDecoder, error)
}

// AudioDecoderSupport mirrors VideoDecoderSupport for audio.
type AudioDecoderSupport struct {
	Supports func(codecID string, config DecoderConfig) bool
	New      func(config DecoderConfig) (AudioDecoder, error)
}

// VideoEncoderSupport is a codec-by-codec dispatch predicate for encoders.
type VideoEncoderSupport struct {
	Supports func(codecID string, params EncoderParams) bool
	New      func(params EncoderParams) (VideoEncoder, error)
}

// AudioEncoderSupport mirrors VideoEncoderSupport for audio.
type AudioEncoderSupport struct {
	Supports func(codecID string, params EncoderParams) bool
	New      func(params EncoderParams) (AudioEncoder, error)
}
