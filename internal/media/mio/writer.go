package mio

import (
	"sort"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/bufpool"
)

// Writer is the contract all three mux-output variants implement (spec
// §4.2). Writes go to the current position; Seek repositions for
// backpatching already-written headers.
type Writer interface {
	Write(p []byte) (int, error)
	Seek(pos int64) error
	Pos() int64
	Flush() error
	Finalize() error
}

// MemoryWriter is a grow-on-demand in-memory Writer. Finalize truncates the
// backing buffer to the high-water mark.
type MemoryWriter struct {
	buf       []byte
	pos       int64
	highWater int64
	finalized bool
}

// NewMemoryWriter creates an empty in-memory writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, mediaerrors.NewStateViolation("memoryWriter.write", nil)
	}
	end := w.pos + int64(len(p))
	if end > int64(len(w.buf)) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[w.pos:end], p)
	w.pos = end
	if w.pos > w.highWater {
		w.highWater = w.pos
	}
	return len(p), nil
}

func (w *MemoryWriter) Seek(pos int64) error {
	if pos < 0 {
		return mediaerrors.NewInvalidInput("memoryWriter.seek", nil)
	}
	w.pos = pos
	return nil
}

func (w *MemoryWriter) Pos() int64 { return w.pos }
func (w *MemoryWriter) Flush() error { return nil }

func (w *MemoryWriter) Finalize() error {
	if w.finalized {
		return mediaerrors.NewStateViolation("memoryWriter.finalize", nil)
	}
	w.buf = w.buf[:w.highWater]
	w.finalized = true
	return nil
}

// Bytes returns the finalized buffer. Only valid after Finalize.
func (w *MemoryWriter) Bytes() []byte { return w.buf }

// section is one pending write awaiting flush in a StreamingWriter.
type section struct {
	offset int64
	data   []byte
}

// StreamingWriter accumulates writes as (offset, bytes) sections and emits
// them, coalesced and sorted, to onFlush. Used for a forward-only
// non-seekable consumer (e.g. an HTTP response body) where Seek is only
// ever used to backpatch bytes already handed to a prior Flush — those
// backpatches are re-emitted as small overlapping sections.
type StreamingWriter struct {
	pos       int64
	pending   []section
	onFlush   func(data []byte, offset int64) error
	finalized bool
}

// NewStreamingWriter creates a StreamingWriter that calls onFlush with each
// coalesced, sorted section on Flush/Finalize.
func NewStreamingWriter(onFlush func(data []byte, offset int64) error) *StreamingWriter {
	return &StreamingWriter{onFlush: onFlush}
}

func (w *StreamingWriter) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, mediaerrors.NewStateViolation("streamingWriter.write", nil)
	}
	buf := append([]byte(nil), p...)
	w.pending = append(w.pending, section{offset: w.pos, data: buf})
	w.pos += int64(len(p))
	return len(p), nil
}

func (w *StreamingWriter) Seek(pos int64) error {
	if pos < 0 {
		return mediaerrors.NewInvalidInput("streamingWriter.seek", nil)
	}
	w.pos = pos
	return nil
}

func (w *StreamingWriter) Pos() int64 { return w.pos }

// Flush coalesces overlapping/contiguous pending sections and emits them in
// offset order.
func (w *StreamingWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	sort.Slice(w.pending, func(i, j int) bool { return w.pending[i].offset < w.pending[j].offset })

	merged := make([]section, 0, len(w.pending))
	cur := w.pending[0]
	for _, s := range w.pending[1:] {
		curEnd := cur.offset + int64(len(cur.data))
		if s.offset <= curEnd {
			// overlapping or contiguous: merge, later writes win on overlap
			needed := s.offset + int64(len(s.data)) - cur.offset
			if needed > int64(len(cur.data)) {
				grown := make([]byte, needed)
				copy(grown, cur.data)
				cur.data = grown
			}
			copy(cur.data[s.offset-cur.offset:], s.data)
		} else {
			merged = append(merged, cur)
			cur = s
		}
	}
	merged = append(merged, cur)
	w.pending = nil

	for _, s := range merged {
		if err := w.onFlush(s.data, s.offset); err != nil {
			return mediaerrors.NewIOError("streamingWriter.flush", err)
		}
	}
	return nil
}

func (w *StreamingWriter) Finalize() error {
	if w.finalized {
		return mediaerrors.NewStateViolation("streamingWriter.finalize", nil)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.finalized = true
	return nil
}

// ChunkedWriter partitions writes into fixed-size chunks and emits a chunk
// once every byte in it has been written at least once, or on Finalize. At
// most maxInFlight chunks are held open; the oldest is force-flushed when
// that limit would be exceeded.
type ChunkedWriter struct {
	chunkSize   int64
	maxInFlight int
	pos         int64
	onChunk     func(data []byte, offset int64) error

	chunks     map[int64]*pendingChunk
	order      []int64 // chunk indices in first-touched order, oldest first
	finalized  bool
}

type pendingChunk struct {
	data    []byte
	written []bool
	count   int
}

// NewChunkedWriter creates a ChunkedWriter splitting output into chunkSize
// byte chunks, holding at most maxInFlight partially-written chunks open.
func NewChunkedWriter(chunkSize int64, maxInFlight int, onChunk func(data []byte, offset int64) error) *ChunkedWriter {
	return &ChunkedWriter{
		chunkSize:   chunkSize,
		maxInFlight: maxInFlight,
		onChunk:     onChunk,
		chunks:      make(map[int64]*pendingChunk),
	}
}

func (w *ChunkedWriter) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, mediaerrors.NewStateViolation("chunkedWriter.write", nil)
	}
	total := len(p)
	for len(p) > 0 {
		idx := w.pos / w.chunkSize
		within := w.pos % w.chunkSize
		c := w.chunkForIndex(idx)

		n := int64(len(p))
		if room := w.chunkSize - within; n > room {
			n = room
		}
		copy(c.data[within:within+n], p[:n])
		for i := within; i < within+n; i++ {
			if !c.written[i] {
				c.written[i] = true
				c.count++
			}
		}
		if c.count == int(w.chunkSize) {
			if err := w.flushChunk(idx); err != nil {
				return total - len(p), err
			}
		}
		p = p[n:]
		w.pos += n
	}
	return total, nil
}

func (w *ChunkedWriter) chunkForIndex(idx int64) *pendingChunk {
	c, ok := w.chunks[idx]
	if !ok {
		c = &pendingChunk{data: bufpool.Get(int(w.chunkSize)), written: make([]bool, w.chunkSize)}
		w.chunks[idx] = c
		w.order = append(w.order, idx)
		w.enforceInFlightLimit()
	}
	return c
}

func (w *ChunkedWriter) enforceInFlightLimit() {
	for w.maxInFlight > 0 && len(w.order) > w.maxInFlight {
		oldest := w.order[0]
		w.order = w.order[1:]
		_ = w.flushChunk(oldest)
	}
}

func (w *ChunkedWriter) flushChunk(idx int64) error {
	c, ok := w.chunks[idx]
	if !ok {
		return nil
	}
	delete(w.chunks, idx)
	for i, o := range w.order {
		if o == idx {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	err := w.onChunk(c.data, idx*w.chunkSize)
	bufpool.Put(c.data)
	if err != nil {
		return mediaerrors.NewIOError("chunkedWriter.flush", err)
	}
	return nil
}

func (w *ChunkedWriter) Seek(pos int64) error {
	if pos < 0 {
		return mediaerrors.NewInvalidInput("chunkedWriter.seek", nil)
	}
	w.pos = pos
	return nil
}

func (w *ChunkedWriter) Pos() int64 { return w.pos }

// Flush force-emits every in-flight chunk regardless of completeness.
func (w *ChunkedWriter) Flush() error {
	indices := append([]int64(nil), w.order...)
	for _, idx := range indices {
		if err := w.flushChunk(idx); err != nil {
			return err
		}
	}
	return nil
}

func (w *ChunkedWriter) Finalize() error {
	if w.finalized {
		return mediaerrors.NewStateViolation("chunkedWriter.finalize", nil)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.finalized = true
	return nil
}
