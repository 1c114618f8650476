package mio

import (
	"context"
	"sort"
	"sync"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
)

// segment is one contiguous loaded byte range, ordered by Start.
type segment struct {
	start, end int64 // [start, end)
	data       []byte
	lastUsed   uint64
}

func (s *segment) contains(start, end int64) bool {
	return start >= s.start && end <= s.end
}

// pendingLoad represents an in-flight loadRange call other goroutines can
// coalesce onto instead of issuing a duplicate source read.
type pendingLoad struct {
	start, end int64
	done       chan struct{}
	err        error
}

// Reader is a cached, range-addressable view over a Source (spec §4.1). It
// is safe for concurrent use: overlapping loadRange calls for a
// fully-contained range await the in-flight load rather than re-reading.
type Reader struct {
	src    Source
	budget int64

	mu       sync.Mutex
	segments []*segment
	used     int64
	clock    uint64
	pending  []*pendingLoad
}

// NewReader creates a Reader over src with a maximum cached-byte budget.
// A budget <= 0 means unbounded (no eviction).
func NewReader(src Source, budget int64) *Reader {
	return &Reader{src: src, budget: budget}
}

// RangeIsLoaded reports whether [start, end) is already fully covered by a
// single loaded segment.
func (r *Reader) RangeIsLoaded(start, end int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findSegmentLocked(start, end) != nil
}

func (r *Reader) findSegmentLocked(start, end int64) *segment {
	i := sort.Search(len(r.segments), func(i int) bool { return r.segments[i].end >= start })
	for ; i < len(r.segments); i++ {
		s := r.segments[i]
		if s.start > start {
			break
		}
		if s.contains(start, end) {
			return s
		}
	}
	return nil
}

// LoadRange ensures [start, end) is cached, reading from the source if
// necessary. Concurrent calls whose range is fully contained in an
// in-flight load await that load instead of issuing a new read.
func (r *Reader) LoadRange(ctx context.Context, start, end int64) error {
	if start >= end {
		return nil
	}

	r.mu.Lock()
	if r.findSegmentLocked(start, end) != nil {
		r.mu.Unlock()
		return nil
	}
	for _, p := range r.pending {
		if start >= p.start && end <= p.end {
			done := p.done
			r.mu.Unlock()
			select {
			case <-done:
				return p.err
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	p := &pendingLoad{start: start, end: end, done: make(chan struct{})}
	r.pending = append(r.pending, p)
	r.mu.Unlock()

	data, err := r.src.Read(ctx, start, end)
	if err != nil {
		err = mediaerrors.NewIOError("reader.loadRange", err)
	} else {
		r.insert(start, start+int64(len(data)), data)
	}

	r.mu.Lock()
	p.err = err
	for i, q := range r.pending {
		if q == p {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	close(p.done)
	return err
}

func (r *Reader) insert(start, end int64, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	seg := &segment{start: start, end: end, data: data, lastUsed: r.clock}
	r.segments = append(r.segments, seg)
	sort.Slice(r.segments, func(i, j int) bool { return r.segments[i].start < r.segments[j].start })
	r.used += int64(len(data))
	r.evictLocked()
}

// evictLocked drops whole least-recently-used segments until usage is
// within budget. Segments are never split.
func (r *Reader) evictLocked() {
	if r.budget <= 0 {
		return
	}
	for r.used > r.budget && len(r.segments) > 1 {
		lruIdx := 0
		for i, s := range r.segments {
			if s.lastUsed < r.segments[lruIdx].lastUsed {
				lruIdx = i
			}
		}
		victim := r.segments[lruIdx]
		r.segments = append(r.segments[:lruIdx], r.segments[lruIdx+1:]...)
		r.used -= int64(len(victim.data))
	}
}

// View returns a slice over [start, end) and the absolute offset it starts
// at (always == start for this implementation), failing with InvalidInput
// classified as NotLoaded semantics if the range isn't cached.
func (r *Reader) View(start, end int64) ([]byte, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seg := r.findSegmentLocked(start, end)
	if seg == nil {
		return nil, 0, ErrNotLoaded
	}
	r.clock++
	seg.lastUsed = r.clock
	lo := start - seg.start
	hi := end - seg.start
	return seg.data[lo:hi], start, nil
}

// ForgetRange evicts any loaded segment that is fully contained within
// [start, end); partially overlapping segments are left untouched, since
// segments are never split.
func (r *Reader) ForgetRange(start, end int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.segments[:0]
	for _, s := range r.segments {
		if s.start >= start && s.end <= end {
			r.used -= int64(len(s.data))
			continue
		}
		kept = append(kept, s)
	}
	r.segments = kept
}

// ErrNotLoaded is returned by View when the requested range has not been
// loaded (spec §4.1).
var ErrNotLoaded = mediaerrors.NewInvalidInput("reader.view", errNotLoadedSentinel)

var errNotLoadedSentinel = stdError("range not loaded")

type stdError string

func (e stdError) Error() string { return string(e) }
