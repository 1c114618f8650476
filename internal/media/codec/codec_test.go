package codec

import (
	"encoding/binary"
	"testing"

	"github.com/alxayo/mediabox/internal/media/packet"
)

// fakeVideoDecoder emits DecodedSamples handed to it via push, regardless of
// the packet it was asked to decode, simulating an engine whose internal
// decode order differs from presentation order.
type fakeVideoDecoder struct {
	onOutput func(*DecodedSample)
	onError  func(error)
}

func (f *fakeVideoDecoder) Configure(DecoderConfig) error       { return nil }
func (f *fakeVideoDecoder) Decode(pkt *packet.Packet) error     { return nil }
func (f *fakeVideoDecoder) Flush() error                        { return nil }
func (f *fakeVideoDecoder) Close() error                         { return nil }
func (f *fakeVideoDecoder) OnOutput(cb func(*DecodedSample))    { f.onOutput = cb }
func (f *fakeVideoDecoder) OnError(cb func(error))              { f.onError = cb }
func (f *fakeVideoDecoder) push(ts float64)                     { f.onOutput(&DecodedSample{Timestamp: ts, Data: []byte{1}}) }

func TestVideoReorderDecoderEmitsPresentationOrder(t *testing.T) {
	engine := &fakeVideoDecoder{}
	var out []float64
	w := NewVideoReorderDecoder(engine)
	w.OnOutput(func(s *DecodedSample) { out = append(out, s.Timestamp) })

	// Decode order: 0, 3, 1, 2, 4 (B-frame style reordering around a GOP of 3).
	engine.push(0)
	engine.push(3)
	engine.push(1)
	engine.push(2)
	engine.push(4)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []float64{0, 1, 2, 3, 4}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestVideoReorderDecoderFlushesOnNewMax(t *testing.T) {
	engine := &fakeVideoDecoder{}
	var out []float64
	w := NewVideoReorderDecoder(engine)
	w.OnOutput(func(s *DecodedSample) { out = append(out, s.Timestamp) })

	engine.push(0)
	if len(out) != 0 {
		t.Fatalf("expected nothing flushed yet, got %v", out)
	}
	engine.push(1) // new max -> flushes everything strictly < 1, i.e. just 0
	if len(out) != 1 || out[0] != 0 {
		t.Fatalf("expected [0] flushed, got %v", out)
	}
	engine.push(1) // tie with running max: not strictly less, stays buffered
	if len(out) != 1 {
		t.Fatalf("expected still just [0] flushed, got %v", out)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected final flush to emit remaining buffered samples, got %v", out)
	}
}

// fakeAudioDecoder is a pass-through AudioDecoder stand-in driven directly by
// pushing DecodedSamples.
type fakeAudioDecoder struct {
	onOutput func(*DecodedSample)
	onError  func(error)
}

func (f *fakeAudioDecoder) Configure(DecoderConfig) error    { return nil }
func (f *fakeAudioDecoder) Decode(pkt *packet.Packet) error  { return nil }
func (f *fakeAudioDecoder) Flush() error                      { return nil }
func (f *fakeAudioDecoder) Close() error                       { return nil }
func (f *fakeAudioDecoder) OnOutput(cb func(*DecodedSample)) { f.onOutput = cb }
func (f *fakeAudioDecoder) OnError(cb func(error))           { f.onError = cb }
func (f *fakeAudioDecoder) push(ts float64, data []byte)     { f.onOutput(&DecodedSample{Timestamp: ts, Data: data}) }

func TestAudioDecoderWrapperSkipsZeroFrameSamples(t *testing.T) {
	engine := &fakeAudioDecoder{}
	var out []*DecodedSample
	w := NewAudioDecoderWrapper(engine, 48000)
	w.OnOutput(func(s *DecodedSample) { out = append(out, s) })

	engine.push(0.1, nil)
	engine.push(0.2, []byte{1, 2})

	if len(out) != 1 {
		t.Fatalf("expected zero-frame sample dropped, got %d outputs", len(out))
	}
}

func TestAudioDecoderWrapperRoundsTimestampToSampleStep(t *testing.T) {
	engine := &fakeAudioDecoder{}
	var out float64
	w := NewAudioDecoderWrapper(engine, 48000)
	w.OnOutput(func(s *DecodedSample) { out = s.Timestamp })

	step := 1.0 / 48000.0
	drifted := 10*step + step*0.2 // drifted slightly off the nearest sample boundary
	engine.push(drifted, []byte{1, 2})

	want := roundToStep(drifted, step)
	if out != want {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestPCMDecoderPassesThroughLinearFormats(t *testing.T) {
	d := NewPCMDecoder(PCMSourceS16LE)
	if err := d.Configure(DecoderConfig{SampleRate: 8000, Channels: 1}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	var got *DecodedSample
	d.OnOutput(func(s *DecodedSample) { got = s })

	data := make([]byte, 4) // 2 samples of s16
	binary.LittleEndian.PutUint16(data[0:2], 100)
	binary.LittleEndian.PutUint16(data[2:4], 200)

	if err := d.Decode(&packet.Packet{Data: data}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got == nil || got.Format != "s16" {
		t.Fatalf("expected s16 passthrough, got %+v", got)
	}
	if len(got.Data) != len(data) {
		t.Fatalf("expected passthrough data of length %d, got %d", len(data), len(got.Data))
	}
}

func TestPCMDecoderExpandsMuLaw(t *testing.T) {
	d := NewPCMDecoder(PCMSourceMuLaw)
	if err := d.Configure(DecoderConfig{SampleRate: 8000, Channels: 1}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	var got *DecodedSample
	d.OnOutput(func(s *DecodedSample) { got = s })

	// 0xFF is mu-law silence (maps to 0 after decode, by convention near zero).
	if err := d.Decode(&packet.Packet{Data: []byte{0xFF, 0x00}}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got == nil || got.Format != "s16" {
		t.Fatalf("expected expansion to s16, got %+v", got)
	}
	if len(got.Data) != 4 {
		t.Fatalf("expected 2 input bytes to expand to 4 output bytes, got %d", len(got.Data))
	}
}

func TestPCMDecoderMaintainsRunningTimestampIndependentOfPacket(t *testing.T) {
	d := NewPCMDecoder(PCMSourceS16LE)
	if err := d.Configure(DecoderConfig{SampleRate: 1000, Channels: 1}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	var timestamps []float64
	d.OnOutput(func(s *DecodedSample) { timestamps = append(timestamps, s.Timestamp) })

	frame := make([]byte, 2000) // 1000 samples at s16 mono -> exactly 1s at 1000Hz
	// Packet timestamps deliberately drift/disagree with the decoder's own clock.
	if err := d.Decode(&packet.Packet{Data: frame, Timestamp: 5.0}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := d.Decode(&packet.Packet{Data: frame, Timestamp: 99.0}); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(timestamps) != 2 || timestamps[0] != 0 || timestamps[1] != 1.0 {
		t.Fatalf("expected contiguous running timestamps [0 1], got %v", timestamps)
	}
}

func TestMuLawALawRoundTripNearZero(t *testing.T) {
	if v := decodeMuLawSample(0xFF); v < -10 || v > 10 {
		t.Fatalf("expected mu-law silence byte to decode near zero, got %d", v)
	}
	if v := decodeALawSample(0xD5); v < -10 || v > 10 {
		t.Fatalf("expected A-law silence byte to decode near zero, got %d", v)
	}
}
