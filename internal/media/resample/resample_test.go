package resample

import (
	"math"
	"testing"

	"github.com/alxayo/mediabox/internal/media/codec"
)

func f32Sample(ts float64, frames []float32) *codec.DecodedSample {
	data := make([]byte, len(frames)*4)
	for i, v := range frames {
		bits := math.Float32bits(v)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return &codec.DecodedSample{Timestamp: ts, Data: data, Format: "f32"}
}

func readF32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func TestMonoToStereoDuplicatesChannel(t *testing.T) {
	r := NewAudioResampler(8000, 1, 8000, 2)
	var out *codec.DecodedSample
	r.OnOutput(func(s *codec.DecodedSample) { out = s })

	if err := r.Push(f32Sample(0, []float32{1, 0.5})); err != nil {
		t.Fatalf("Push: %v", err)
	}
	r.Finalize()
	if out == nil {
		t.Fatalf("expected output")
	}
	frames := readF32(out.Data)
	if len(frames) < 4 {
		t.Fatalf("expected at least 2 stereo frames, got %d values", len(frames))
	}
	if frames[0] != frames[1] {
		t.Fatalf("expected mono duplicated to both channels, got L=%v R=%v", frames[0], frames[1])
	}
}

func TestUpsampleDoublesFrameCount(t *testing.T) {
	r := NewAudioResampler(8000, 1, 16000, 1)
	var out *codec.DecodedSample
	r.OnOutput(func(s *codec.DecodedSample) { out = s })

	frames := make([]float32, 100)
	for i := range frames {
		frames[i] = float32(i)
	}
	if err := r.Push(f32Sample(0, frames)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	r.Finalize()

	got := readF32(out.Data)
	if len(got) < 190 || len(got) > 210 {
		t.Fatalf("expected roughly double the frame count after 2x upsample, got %d", len(got))
	}
}

func TestStereoToMonoAverages(t *testing.T) {
	r := NewAudioResampler(8000, 2, 8000, 1)
	var out *codec.DecodedSample
	r.OnOutput(func(s *codec.DecodedSample) { out = s })

	if err := r.Push(f32Sample(0, []float32{1, 0, 1, 0})); err != nil {
		t.Fatalf("Push: %v", err)
	}
	r.Finalize()

	got := readF32(out.Data)
	if len(got) == 0 {
		t.Fatalf("expected output frames")
	}
	for _, v := range got {
		if v < 0.4 || v > 0.6 {
			t.Fatalf("expected averaged L/R near 0.5, got %v", v)
		}
	}
}

func TestRejectsNonFloat32Input(t *testing.T) {
	r := NewAudioResampler(8000, 1, 8000, 1)
	s := &codec.DecodedSample{Timestamp: 0, Data: []byte{1, 2}, Format: "s16"}
	if err := r.Push(s); err == nil {
		t.Fatalf("expected error for non-f32 input")
	}
}

func TestChannelMixMatrixFallsBackPositionally(t *testing.T) {
	m := channelMixMatrix(3, 2)
	if len(m) != 2 || len(m[0]) != 3 {
		t.Fatalf("expected a 2x3 positional matrix, got %dx%d", len(m), len(m[0]))
	}
	if m[0][0] != 1 || m[1][1] != 1 {
		t.Fatalf("expected identity-like positional copy on the diagonal, got %v", m)
	}
}
