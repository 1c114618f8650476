// Package resample implements the conversion pipeline's audio resampling
// stage: converting decoded samples between sample rates and channel
// layouts via linear interpolation and a fixed channel-mix matrix table
// (spec §4.10).
package resample

import (
	"math"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/codec"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// bufferSeconds is the sliding output buffer's window, per spec §4.10.
const bufferSeconds = 5

// AudioResampler converts samples at (sourceRate, sourceChannels) to
// (targetRate, targetChannels). It accumulates output additively into a
// sliding window buffer so overlapping input samples sum correctly at
// boundaries, finalizing and sliding the window forward whenever the next
// write would run past it.
type AudioResampler struct {
	sourceRate, sourceChannels int
	targetRate, targetChannels int

	mix [][]float64 // mix[outCh][inCh]

	// buf holds targetChannels interleaved float64 accumulator frames for
	// the current 5s window, starting at windowStartFrame (in output-frame
	// units at targetRate).
	buf             []float64
	windowStartFrame int64
	bufFrames        int
	filled           int // frames of the current window written so far

	onOutput func(*codec.DecodedSample)
}

// NewAudioResampler creates a resampler converting from (sourceRate,
// sourceChannels) to (targetRate, targetChannels).
func NewAudioResampler(sourceRate, sourceChannels, targetRate, targetChannels int) *AudioResampler {
	r := &AudioResampler{
		sourceRate: sourceRate, sourceChannels: sourceChannels,
		targetRate: targetRate, targetChannels: targetChannels,
		mix: channelMixMatrix(sourceChannels, targetChannels),
	}
	r.bufFrames = bufferSeconds * targetRate
	r.buf = make([]float64, r.bufFrames*targetChannels)
	return r
}

// OnOutput registers the callback invoked with each finalized output
// sample.
func (r *AudioResampler) OnOutput(cb func(*codec.DecodedSample)) { r.onOutput = cb }

// Push accumulates one source sample's frames into the output buffer,
// linearly interpolating between bracketing source frames for each output
// frame position and channel-mixing per r.mix.
func (r *AudioResampler) Push(sample *codec.DecodedSample) error {
	frames, err := decodeFloatFrames(sample, r.sourceChannels)
	if err != nil {
		return err
	}
	nSrcFrames := len(frames) / r.sourceChannels
	if nSrcFrames == 0 {
		return nil
	}

	startOutputFrame := int64(sample.Timestamp*float64(r.targetRate) + 0.5)
	ratio := float64(r.sourceRate) / float64(r.targetRate)

	// last output frame (exclusive) this sample contributes to.
	endOutputFrame := startOutputFrame + int64(float64(nSrcFrames)/ratio+0.5)

	for outF := startOutputFrame; outF < endOutputFrame; outF++ {
		if outF-r.windowStartFrame >= int64(r.bufFrames) {
			r.finalizeAndSlide(outF)
		}
		rel := outF - r.windowStartFrame
		if rel < 0 {
			continue
		}
		if int(rel)+1 > r.filled {
			r.filled = int(rel) + 1
		}

		srcPos := float64(outF-startOutputFrame) * ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		i1 := i0 + 1
		if i1 >= nSrcFrames {
			i1 = nSrcFrames - 1
		}
		if i0 >= nSrcFrames {
			i0 = nSrcFrames - 1
		}

		for outCh := 0; outCh < r.targetChannels; outCh++ {
			var v float64
			for inCh := 0; inCh < r.sourceChannels; inCh++ {
				w := r.mix[outCh][inCh]
				if w == 0 {
					continue
				}
				s0 := frames[i0*r.sourceChannels+inCh]
				s1 := frames[i1*r.sourceChannels+inCh]
				v += w * (s0 + (s1-s0)*frac)
			}
			r.buf[int(rel)*r.targetChannels+outCh] += v
		}
	}
	return nil
}

// Finalize flushes any partially-filled buffer as a final output sample.
func (r *AudioResampler) Finalize() {
	r.emit(r.filled)
}

// finalizeAndSlide emits the current window and resets the accumulator so
// writes can continue at upToFrame.
func (r *AudioResampler) finalizeAndSlide(upToFrame int64) {
	r.emit(r.bufFrames)
	r.windowStartFrame = upToFrame
}

func (r *AudioResampler) emit(nFrames int) {
	r.filled = 0
	if nFrames > r.bufFrames {
		nFrames = r.bufFrames
	}
	if nFrames <= 0 || r.onOutput == nil {
		r.buf = make([]float64, r.bufFrames*r.targetChannels)
		return
	}
	out := make([]byte, nFrames*r.targetChannels*4)
	for i := 0; i < nFrames*r.targetChannels; i++ {
		putFloat32(out[i*4:i*4+4], float32(r.buf[i]))
	}
	sample := &codec.DecodedSample{
		Timestamp:  float64(r.windowStartFrame) / float64(r.targetRate),
		Duration:   float64(nFrames) / float64(r.targetRate),
		Kind:       packet.Audio,
		Data:       out,
		Format:     "f32",
		SampleRate: r.targetRate,
		Channels:   r.targetChannels,
	}
	r.onOutput(sample)
	r.buf = make([]float64, r.bufFrames*r.targetChannels)
}

func putFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// decodeFloatFrames reinterprets sample.Data (format f32, interleaved) as
// float64 frames. Other input formats are expected to have already been
// normalized to f32 by a PCM or codec decoder upstream.
func decodeFloatFrames(sample *codec.DecodedSample, channels int) ([]float64, error) {
	if sample.Format != "f32" {
		return nil, mediaerrors.NewUnsupportedFeature("resample.push", nil)
	}
	if len(sample.Data)%4 != 0 {
		return nil, mediaerrors.NewInvalidInput("resample.push", nil)
	}
	n := len(sample.Data) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := uint32(sample.Data[i*4]) |
			uint32(sample.Data[i*4+1])<<8 |
			uint32(sample.Data[i*4+2])<<16 |
			uint32(sample.Data[i*4+3])<<24
		out[i] = float64(math.Float32frombits(bits))
	}
	return out, nil
}
