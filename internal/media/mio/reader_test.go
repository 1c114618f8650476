package mio

import (
	"context"
	"testing"
)

func TestReaderLoadAndView(t *testing.T) {
	src := &MemorySource{Data: []byte("0123456789")}
	r := NewReader(src, 0)

	if r.RangeIsLoaded(0, 5) {
		t.Fatalf("range should not be loaded yet")
	}
	if err := r.LoadRange(context.Background(), 0, 5); err != nil {
		t.Fatalf("LoadRange: %v", err)
	}
	if !r.RangeIsLoaded(0, 5) {
		t.Fatalf("range should be loaded")
	}
	data, offset, err := r.View(1, 4)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if offset != 1 || string(data) != "123" {
		t.Fatalf("unexpected view: offset=%d data=%q", offset, data)
	}
}

func TestReaderViewNotLoaded(t *testing.T) {
	src := &MemorySource{Data: []byte("0123456789")}
	r := NewReader(src, 0)
	if _, _, err := r.View(0, 5); err != ErrNotLoaded {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestReaderEvictionKeepsWholeSegments(t *testing.T) {
	src := &MemorySource{Data: []byte("0123456789")}
	r := NewReader(src, 6) // budget only fits one 5-byte segment plus a little

	ctx := context.Background()
	if err := r.LoadRange(ctx, 0, 5); err != nil {
		t.Fatalf("LoadRange 1: %v", err)
	}
	if err := r.LoadRange(ctx, 5, 10); err != nil {
		t.Fatalf("LoadRange 2: %v", err)
	}
	// Second load should have evicted the first whole segment, not split it.
	if r.RangeIsLoaded(0, 5) {
		t.Fatalf("expected first segment to be evicted under budget pressure")
	}
	if !r.RangeIsLoaded(5, 10) {
		t.Fatalf("expected most recent segment to remain loaded")
	}
}

func TestReaderForgetRange(t *testing.T) {
	src := &MemorySource{Data: []byte("0123456789")}
	r := NewReader(src, 0)
	ctx := context.Background()
	if err := r.LoadRange(ctx, 0, 5); err != nil {
		t.Fatalf("LoadRange: %v", err)
	}
	r.ForgetRange(0, 5)
	if r.RangeIsLoaded(0, 5) {
		t.Fatalf("expected range to be forgotten")
	}
}

func TestReaderLoadRangeCoalescesConcurrentCallers(t *testing.T) {
	src := &MemorySource{Data: []byte("0123456789")}
	r := NewReader(src, 0)
	ctx := context.Background()

	errCh := make(chan error, 2)
	go func() { errCh <- r.LoadRange(ctx, 0, 10) }()
	go func() { errCh <- r.LoadRange(ctx, 2, 8) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("LoadRange: %v", err)
		}
	}
	if !r.RangeIsLoaded(0, 10) {
		t.Fatalf("expected full range loaded")
	}
}
