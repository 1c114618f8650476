// Package sink implements the back-pressured packet/sample iterators that
// sit between a demuxer and a conversion pipeline's decode stage (spec
// §4.8). A pump coroutine preloads packets ahead of the consumer into an
// adaptively-sized queue, suspending on a dequeue signal when full, mirroring
// the subscriber backpressure shape of the teacher's media relay but
// replacing its broadcast-and-drop policy with a single-consumer
// pull/suspend one (packets here must never be silently dropped).
package sink

import (
	"context"
	"sync"
	"time"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// PacketSource is the subset of a demuxer's retrieval API a PacketSink
// drives to pull packets for one track in decode order.
type PacketSource interface {
	GetFirstPacket(ctx context.Context, trackID int) (*packet.Packet, error)
	GetNextPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error)
}

const minQueueSize = 2

// PacketSink wraps a PacketSource for one track, running a pump coroutine
// that preloads packets ahead of Next's consumer.
type PacketSink struct {
	src     PacketSource
	trackID int

	mu      sync.Mutex
	queue   []*packet.Packet
	dequeue chan struct{} // signaled whenever the consumer pulls one packet
	enqueued chan struct{} // signaled whenever the pump appends one packet

	queueCap int // adaptive: grows to recent-consumption-rate over a 1s window

	consumedInWindow int
	windowStart       time.Time

	pumpDone chan struct{}
	pumpErr  error
	eof      bool

	cancel context.CancelFunc
}

// NewPacketSink creates a sink over src for trackID.
func NewPacketSink(src PacketSource, trackID int) *PacketSink {
	return &PacketSink{
		src:      src,
		trackID:  trackID,
		queueCap: minQueueSize,
		dequeue:  make(chan struct{}, 1),
		enqueued: make(chan struct{}, 1),
	}
}

// Packets starts the pump; Next then pulls the preloaded packets. Call
// Return to stop the pump early; Next returns (nil, nil) at end of stream.
func (s *PacketSink) Packets(ctx context.Context) {
	pumpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pumpDone = make(chan struct{})
	s.windowStart = timeNow()
	go s.pump(pumpCtx)
}

// Next blocks until a packet is available, the stream ends (returns nil,
// nil), or an error occurs (including one raised by the pump).
func (s *PacketSink) Next(ctx context.Context) (*packet.Packet, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			p := s.queue[0]
			s.queue = s.queue[1:]
			s.recordConsumption()
			s.mu.Unlock()
			s.signalDequeue()
			return p, nil
		}
		if s.eof {
			err := s.pumpErr
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, mediaerrors.NewCanceled("sink.next", ctx.Err())
		case <-s.enqueued:
		case <-s.pumpDone:
		}
	}
}

// Return drains and stops the pump; safe to call more than once.
func (s *PacketSink) Return() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.pumpDone != nil {
		<-s.pumpDone
	}
}

func (s *PacketSink) dequeueOrDone() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		select {
		case <-s.dequeue:
		case <-s.pumpDone:
		}
		close(ch)
	}()
	return ch
}

func (s *PacketSink) signalDequeue() {
	select {
	case s.dequeue <- struct{}{}:
	default:
	}
}

// recordConsumption tracks consumption rate over a trailing 1s window and
// grows queueCap to match it (never below minQueueSize).
func (s *PacketSink) recordConsumption() {
	s.consumedInWindow++
	if elapsed := timeNow().Sub(s.windowStart); elapsed >= time.Second {
		if s.consumedInWindow > s.queueCap {
			s.queueCap = s.consumedInWindow
		}
		s.consumedInWindow = 0
		s.windowStart = timeNow()
	}
}

func (s *PacketSink) pump(ctx context.Context) {
	defer close(s.pumpDone)

	p, err := s.src.GetFirstPacket(ctx, s.trackID)
	for {
		if err != nil {
			s.finish(err)
			return
		}
		if p == nil {
			s.finish(nil)
			return
		}
		if !s.enqueue(ctx, p) {
			return
		}
		p, err = s.src.GetNextPacket(ctx, s.trackID, p)
	}
}

// enqueue appends p to the queue, suspending on the dequeue signal whenever
// the queue is at capacity. Returns false if the context was canceled first.
func (s *PacketSink) enqueue(ctx context.Context, p *packet.Packet) bool {
	for {
		s.mu.Lock()
		if len(s.queue) < s.queueCap || s.queueCap < minQueueSize {
			s.queue = append(s.queue, p)
			s.mu.Unlock()
			select {
			case s.enqueued <- struct{}{}:
			default:
			}
			return true
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-s.dequeue:
		}
	}
}

func (s *PacketSink) finish(err error) {
	s.mu.Lock()
	s.eof = true
	s.pumpErr = err
	s.mu.Unlock()
}

// timeNow is a seam so tests can't be flaky against wall-clock jitter; kept
// as a var (not a field) since PacketSink has no constructor parameter for
// it and the default is what production code always wants.
var timeNow = time.Now
