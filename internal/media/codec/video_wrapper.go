package codec

import (
	"sort"

	"github.com/alxayo/mediabox/internal/media/packet"
)

// VideoReorderDecoder wraps an underlying VideoDecoder that may emit
// samples in decode order rather than presentation order (spec §4.9). It
// buffers emitted samples in a timestamp-sorted list and releases the
// prefix that can no longer be reordered: whenever a newly emitted sample's
// timestamp reaches or ties the running maximum, every buffered sample
// strictly older than it is final and is flushed to the caller.
type VideoReorderDecoder struct {
	engine VideoDecoder

	buf        []*DecodedSample // sorted ascending by Timestamp
	haveMax    bool
	runningMax float64

	onOutput func(*DecodedSample)
	onError  func(error)
}

// NewVideoReorderDecoder wraps engine.
func NewVideoReorderDecoder(engine VideoDecoder) *VideoReorderDecoder {
	w := &VideoReorderDecoder{engine: engine}
	engine.OnOutput(w.handleSample)
	engine.OnError(w.handleError)
	return w
}

func (w *VideoReorderDecoder) Configure(config DecoderConfig) error {
	return w.engine.Configure(config)
}

func (w *VideoReorderDecoder) Decode(pkt *packet.Packet) error {
	return w.engine.Decode(pkt)
}

// Flush drains the underlying engine, then emits every remaining buffered
// sample in presentation order.
func (w *VideoReorderDecoder) Flush() error {
	if err := w.engine.Flush(); err != nil {
		return err
	}
	w.emitAll()
	return nil
}

func (w *VideoReorderDecoder) Close() error {
	return w.engine.Close()
}

func (w *VideoReorderDecoder) OnOutput(cb func(*DecodedSample)) { w.onOutput = cb }
func (w *VideoReorderDecoder) OnError(cb func(error))           { w.onError = cb }

func (w *VideoReorderDecoder) handleError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *VideoReorderDecoder) handleSample(s *DecodedSample) {
	becomesNewMax := !w.haveMax || s.Timestamp >= w.runningMax
	if !w.haveMax || s.Timestamp > w.runningMax {
		w.runningMax = s.Timestamp
	}
	w.haveMax = true

	i := sort.Search(len(w.buf), func(i int) bool { return w.buf[i].Timestamp >= s.Timestamp })
	w.buf = append(w.buf, nil)
	copy(w.buf[i+1:], w.buf[i:])
	w.buf[i] = s

	if becomesNewMax {
		w.flushBefore(s.Timestamp)
	}
}

// flushBefore emits and removes every buffered sample with Timestamp < t;
// a sample can reorder ahead of anything still younger than the furthest
// timestamp decoded so far, but never ahead of something strictly older.
func (w *VideoReorderDecoder) flushBefore(t float64) {
	i := 0
	for ; i < len(w.buf); i++ {
		if w.buf[i].Timestamp >= t {
			break
		}
	}
	if i == 0 {
		return
	}
	ready := w.buf[:i]
	w.buf = append([]*DecodedSample(nil), w.buf[i:]...)
	for _, s := range ready {
		if w.onOutput != nil {
			w.onOutput(s)
		}
	}
}

func (w *VideoReorderDecoder) emitAll() {
	ready := w.buf
	w.buf = nil
	for _, s := range ready {
		if w.onOutput != nil {
			w.onOutput(s)
		}
	}
}
