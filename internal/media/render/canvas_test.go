package render

import (
	"image/color"
	"testing"

	"github.com/alxayo/mediabox/internal/media/codec"
)

func solidSample(w, h int, c color.RGBA) *codec.DecodedSample {
	data := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		data[i*4+0] = c.R
		data[i*4+1] = c.G
		data[i*4+2] = c.B
		data[i*4+3] = c.A
	}
	return &codec.DecodedSample{Width: w, Height: h, Data: data}
}

func TestPoolAcquireCyclesRoundRobin(t *testing.T) {
	p := NewPool(2, 4, 4)
	a := p.Acquire(4, 4)
	b := p.Acquire(4, 4)
	c := p.Acquire(4, 4)
	if a != c {
		t.Fatalf("expected ring to cycle back to the first slot after 2 acquires")
	}
	if a == b {
		t.Fatalf("expected distinct slots for consecutive acquires within one cycle")
	}
}

func TestPoolAcquireResizesSlotOnDimensionChange(t *testing.T) {
	p := NewPool(1, 4, 4)
	c := p.Acquire(8, 6)
	b := c.Image.Bounds()
	if b.Dx() != 8 || b.Dy() != 6 {
		t.Fatalf("expected resized canvas 8x6, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderStretchProducesRequestedDimensions(t *testing.T) {
	pool := NewPool(1, 4, 4)
	sample := solidSample(2, 2, color.RGBA{R: 200, G: 0, B: 0, A: 255})
	out, err := Render(pool, sample, Options{Width: 8, Height: 4, Fit: FitStretch})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("expected 8x4 output, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderRotate90SwapsDimensions(t *testing.T) {
	pool := NewPool(1, 4, 4)
	sample := solidSample(4, 2, color.RGBA{G: 200, A: 255})
	out, err := Render(pool, sample, Options{Width: 4, Height: 2, Fit: FitStretch, Rotation: Rotate90})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("expected rotated output 2x4, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderRotate180PreservesDimensionsAndFlipsCorners(t *testing.T) {
	pool := NewPool(1, 2, 2)
	sample := solidSample(2, 2, color.RGBA{})
	sample.Data[0*4+0] = 255 // top-left pixel marked red

	out, err := Render(pool, sample, Options{Width: 2, Height: 2, Fit: FitStretch, Rotation: Rotate180})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r, _, _, _ := out.Image.At(1, 1).RGBA()
	if r>>8 == 0 {
		t.Fatalf("expected top-left marker to move to bottom-right after 180 rotation")
	}
}

func TestRenderRejectsEmptySample(t *testing.T) {
	pool := NewPool(1, 4, 4)
	if _, err := Render(pool, &codec.DecodedSample{Width: 0, Height: 0}, Options{Width: 4, Height: 4}); err == nil {
		t.Fatalf("expected error for zero-dimension sample")
	}
}
