package codec

import (
	"math"

	"github.com/alxayo/mediabox/internal/media/packet"
)

// AudioDecoderWrapper wraps an underlying AudioDecoder: decode order already
// matches presentation order for audio, so no reordering is needed. It
// drops zero-frame samples (some codecs emit empty pre-roll) and snaps each
// sample's timestamp to the nearest integer multiple of 1/sampleRate so
// accumulated float drift never produces a fractional-sample timestamp
// (spec §4.9).
type AudioDecoderWrapper struct {
	engine     AudioDecoder
	sampleRate int

	onOutput func(*DecodedSample)
	onError  func(error)
}

// NewAudioDecoderWrapper wraps engine; sampleRate is the track's declared
// sample rate used for timestamp rounding.
func NewAudioDecoderWrapper(engine AudioDecoder, sampleRate int) *AudioDecoderWrapper {
	w := &AudioDecoderWrapper{engine: engine, sampleRate: sampleRate}
	engine.OnOutput(w.handleSample)
	engine.OnError(w.handleError)
	return w
}

func (w *AudioDecoderWrapper) Configure(config DecoderConfig) error {
	if config.SampleRate > 0 {
		w.sampleRate = config.SampleRate
	}
	return w.engine.Configure(config)
}

func (w *AudioDecoderWrapper) Decode(pkt *packet.Packet) error { return w.engine.Decode(pkt) }
func (w *AudioDecoderWrapper) Flush() error                    { return w.engine.Flush() }
func (w *AudioDecoderWrapper) Close() error                    { return w.engine.Close() }

func (w *AudioDecoderWrapper) OnOutput(cb func(*DecodedSample)) { w.onOutput = cb }
func (w *AudioDecoderWrapper) OnError(cb func(error))           { w.onError = cb }

func (w *AudioDecoderWrapper) handleError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *AudioDecoderWrapper) handleSample(s *DecodedSample) {
	if len(s.Data) == 0 {
		return
	}
	if w.sampleRate > 0 {
		s.Timestamp = roundToStep(s.Timestamp, 1.0/float64(w.sampleRate))
	}
	if w.onOutput != nil {
		w.onOutput(s)
	}
}

// roundToStep snaps t to the nearest multiple of step.
func roundToStep(t, step float64) float64 {
	if step <= 0 {
		return t
	}
	return math.Round(t/step) * step
}
