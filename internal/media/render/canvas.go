// Package render implements the conversion pipeline's slow-path pixel
// transform: rendering a decoded video sample onto a canvas sized and
// rotated to the output track's requirements (spec §4.9, §4.11). A fixed
// size ring of reusable canvases bounds memory footprint the same way the
// rest of this codebase bounds its byte buffers (internal/bufpool).
package render

import (
	"image"

	"golang.org/x/image/draw"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/codec"
)

// Fit describes how a source frame is mapped onto a differently-sized
// destination canvas.
type Fit int

const (
	// FitStretch scales both axes independently to exactly fill the canvas.
	FitStretch Fit = iota
	// FitContain scales uniformly so the whole source frame fits inside the
	// canvas, letterboxing the remainder.
	FitContain
	// FitCover scales uniformly so the canvas is fully covered, cropping
	// whatever overflows.
	FitCover
)

// Rotation is one of the four natural-rotation values a track can declare.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Options configures a single render pass.
type Options struct {
	Width, Height int
	Fit           Fit
	Rotation      Rotation
}

// Canvas is a reusable RGBA backing for one rendered frame. Pool hands these
// out round-robin; callers must not retain a Canvas past the pool's next
// Acquire for the same slot.
type Canvas struct {
	Image *image.RGBA
}

// Pool is a fixed-size ring of Canvases reused round-robin to bound the
// memory footprint of the rendering sink (spec §5's resource policy).
type Pool struct {
	slots []*Canvas
	next  int
	w, h  int
}

// NewPool creates a ring of n canvases, each sized w×h. Acquire resizes a
// slot's backing image lazily if the requested dimensions grow.
func NewPool(n, w, h int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{slots: make([]*Canvas, n), w: w, h: h}
	for i := range p.slots {
		p.slots[i] = &Canvas{Image: image.NewRGBA(image.Rect(0, 0, w, h))}
	}
	return p
}

// Acquire returns the next canvas in the ring, resizing its backing image if
// w/h differ from what it currently holds.
func (p *Pool) Acquire(w, h int) *Canvas {
	c := p.slots[p.next]
	p.next = (p.next + 1) % len(p.slots)
	b := c.Image.Bounds()
	if b.Dx() != w || b.Dy() != h {
		c.Image = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return c
}

// Render draws sample onto a canvas acquired from pool, applying opts.Fit
// scaling (via ApproxBiLinear, the only CPU-side scaler available to this
// module) followed by opts.Rotation as a transposed blit. sample must carry
// RGBA-interleaved pixel data matching sample.Width × sample.Height.
func Render(pool *Pool, sample *codec.DecodedSample, opts Options) (*Canvas, error) {
	if sample == nil || sample.Width <= 0 || sample.Height <= 0 {
		return nil, mediaerrors.NewInvalidInput("render.sample", nil)
	}
	src := &image.RGBA{
		Pix:    sample.Data,
		Stride: sample.Width * 4,
		Rect:   image.Rect(0, 0, sample.Width, sample.Height),
	}

	scaled := pool.Acquire(opts.Width, opts.Height)
	scaleInto(scaled.Image, src, opts.Fit)

	if opts.Rotation == Rotate0 {
		return scaled, nil
	}
	rotated := rotate(scaled.Image, opts.Rotation)
	return &Canvas{Image: rotated}, nil
}

// scaleInto draws src onto dst according to fit, using bilinear
// interpolation for any resampling.
func scaleInto(dst *image.RGBA, src *image.RGBA, fit Fit) {
	db := dst.Bounds()
	sb := src.Bounds()

	switch fit {
	case FitStretch:
		draw.ApproxBiLinear.Scale(dst, db, src, sb, draw.Over, nil)
	case FitContain, FitCover:
		sw, sh := float64(sb.Dx()), float64(sb.Dy())
		dw, dh := float64(db.Dx()), float64(db.Dy())
		scaleX, scaleY := dw/sw, dh/sh
		scale := scaleX
		if (fit == FitContain && scaleY < scaleX) || (fit == FitCover && scaleY > scaleX) {
			scale = scaleY
		}
		targetW := int(sw * scale)
		targetH := int(sh * scale)
		offX := (db.Dx() - targetW) / 2
		offY := (db.Dy() - targetH) / 2
		target := image.Rect(db.Min.X+offX, db.Min.Y+offY, db.Min.X+offX+targetW, db.Min.Y+offY+targetH)
		draw.ApproxBiLinear.Scale(dst, target, src, sb, draw.Src, nil)
	}
}

// rotate returns a new image with src rotated clockwise by deg degrees
// (one of 90/180/270) via a transposed pixel blit.
func rotate(src *image.RGBA, deg Rotation) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch deg {
	case Rotate180:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case Rotate90:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case Rotate270:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	default:
		return src
	}
}
