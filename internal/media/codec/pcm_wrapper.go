package codec

import (
	"encoding/binary"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// PCM source formats this wrapper converts from. Anything already linear
// (u8/s16/s32/f32) passes through untouched; mu-law and A-law are expanded
// to 16-bit linear PCM.
const (
	PCMSourceU8    = "pcm-u8"
	PCMSourceS16LE = "pcm-s16"
	PCMSourceS32LE = "pcm-s32"
	PCMSourceF32LE = "pcm-f32"
	PCMSourceMuLaw = "pcm-mulaw"
	PCMSourceALaw  = "pcm-alaw"
)

// PCMDecoder synchronously converts packet bytes to a canonical output
// format without any real decode step (spec §4.9): u8/s16/s32/f32 pass
// through, and mu-law/A-law (1 byte/sample, logarithmically companded) are
// expanded to s16. It maintains its own precise running timestamp derived
// from sample count rather than trusting each packet's recorded timestamp,
// so drift between the two never produces gaps or overlaps in the output.
type PCMDecoder struct {
	sourceFormat string
	sampleRate   int
	channels     int

	runningTS float64

	onOutput func(*DecodedSample)
	onError  func(error)
}

// NewPCMDecoder creates a PCMDecoder for the given source format.
func NewPCMDecoder(sourceFormat string) *PCMDecoder {
	return &PCMDecoder{sourceFormat: sourceFormat}
}

func (w *PCMDecoder) Configure(config DecoderConfig) error {
	if config.Codec != "" {
		w.sourceFormat = config.Codec
	}
	w.sampleRate = config.SampleRate
	w.channels = config.Channels
	if w.channels <= 0 {
		w.channels = 1
	}
	return nil
}

func (w *PCMDecoder) Decode(pkt *packet.Packet) error {
	out, bytesPerSample, outFormat, err := convertPCM(w.sourceFormat, pkt.Data)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return err
	}
	if w.channels <= 0 {
		w.channels = 1
	}
	frameSize := bytesPerSample * w.channels
	nSamples := 0
	if frameSize > 0 {
		nSamples = len(out) / frameSize
	}
	duration := 0.0
	if w.sampleRate > 0 {
		duration = float64(nSamples) / float64(w.sampleRate)
	}

	sample := &DecodedSample{
		Timestamp:  w.runningTS,
		Duration:   duration,
		Kind:       packet.Audio,
		Data:       out,
		Format:     outFormat,
		SampleRate: w.sampleRate,
		Channels:   w.channels,
	}
	w.runningTS += duration

	if w.onOutput != nil {
		w.onOutput(sample)
	}
	return nil
}

func (w *PCMDecoder) Flush() error { return nil }
func (w *PCMDecoder) Close() error { return nil }

func (w *PCMDecoder) OnOutput(cb func(*DecodedSample)) { w.onOutput = cb }
func (w *PCMDecoder) OnError(cb func(error))           { w.onError = cb }

// convertPCM converts raw packet bytes from sourceFormat to a canonical
// output format, returning the converted bytes, the output's per-channel
// sample width, and the output format tag.
func convertPCM(sourceFormat string, data []byte) ([]byte, int, string, error) {
	switch sourceFormat {
	case PCMSourceU8:
		return data, 1, "u8", nil
	case PCMSourceS16LE:
		return data, 2, "s16", nil
	case PCMSourceS32LE:
		return data, 4, "s32", nil
	case PCMSourceF32LE:
		return data, 4, "f32", nil
	case PCMSourceMuLaw:
		return expandCompanded(data, decodeMuLawSample), 2, "s16", nil
	case PCMSourceALaw:
		return expandCompanded(data, decodeALawSample), 2, "s16", nil
	default:
		return nil, 0, "", mediaerrors.NewUnsupportedFeature("pcm.convert", nil)
	}
}

func expandCompanded(data []byte, decode func(byte) int16) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(decode(b)))
	}
	return out
}

// decodeMuLawSample implements the ITU-T G.711 mu-law decompression
// algorithm: the byte's bit pattern is inverted, then the exponent/mantissa
// fields reconstruct the 14-bit linear magnitude.
func decodeMuLawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := (int32(mantissa)<<3 + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// decodeALawSample implements the ITU-T G.711 A-law decompression
// algorithm.
func decodeALawSample(b byte) int16 {
	b ^= 0x55
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	var magnitude int32
	if exponent == 0 {
		magnitude = int32(mantissa)<<4 + 8
	} else {
		magnitude = (int32(mantissa)<<4 + 0x108) << (exponent - 1)
	}
	if sign == 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
