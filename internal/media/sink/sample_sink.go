package sink

import (
	"context"

	"github.com/alxayo/mediabox/internal/media/codec"
	"github.com/alxayo/mediabox/internal/media/packet"
)

// KeyPacketSource is the subset of a demuxer's retrieval API
// BaseMediaSampleSink needs to locate key-packet range boundaries (spec
// §4.8 step 1/2).
type KeyPacketSource interface {
	PacketSource
	GetKeyPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error)
	GetNextKeyPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error)
	GetPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error)
}

// Decoder is the subset of codec.VideoDecoder/AudioDecoder a sample sink
// drives; both satisfy it.
type Decoder interface {
	Decode(pkt *packet.Packet) error
	Flush() error
	OnOutput(cb func(*codec.DecodedSample))
	OnError(cb func(error))
}

// BaseMediaSampleSink drives a decoder wrapper over a KeyPacketSource,
// producing samples in presentation order within a requested time range or
// at a requested sequence of timestamps (spec §4.8).
type BaseMediaSampleSink struct {
	src     KeyPacketSource
	dec     Decoder
	trackID int

	buffered []*codec.DecodedSample
	lastOut  *codec.DecodedSample
	decErr   error

	// mediaSamplesAtTimestamps state.
	seenKeyBatchEnd int64          // sequence number of the key packet the current batch was decoded from
	lastFed         *packet.Packet // last packet fed to the decoder in the current batch
}

// NewBaseMediaSampleSink wraps dec, which must already be Configure()d, over
// src for trackID.
func NewBaseMediaSampleSink(src KeyPacketSource, dec Decoder, trackID int) *BaseMediaSampleSink {
	s := &BaseMediaSampleSink{src: src, dec: dec, trackID: trackID, seenKeyBatchEnd: -1}
	dec.OnOutput(func(sample *codec.DecodedSample) { s.buffered = append(s.buffered, sample) })
	dec.OnError(func(err error) { s.decErr = err })
	return s
}

// MediaSamplesInRange decodes and returns, in presentation order, every
// sample whose timestamp falls in [startT, endT), per spec §4.8 steps 1-5.
// The first returned sample may have Timestamp < startT: it is the most
// recent sample covering startT so the consumer always has a frame to show
// at the start of the range.
func (s *BaseMediaSampleSink) MediaSamplesInRange(ctx context.Context, startT, endT float64) ([]*codec.DecodedSample, error) {
	startKey, err := s.src.GetKeyPacket(ctx, s.trackID, startT)
	if err != nil {
		return nil, err
	}
	if startKey == nil {
		startKey, err = s.src.GetFirstPacket(ctx, s.trackID)
		if err != nil {
			return nil, err
		}
	}
	if startKey == nil {
		return nil, nil
	}

	endKey, err := s.src.GetKeyPacket(ctx, s.trackID, endT)
	if err != nil {
		return nil, err
	}
	var endBoundary *packet.Packet
	if endKey != nil {
		endBoundary, err = s.src.GetNextKeyPacket(ctx, s.trackID, endKey)
		if err != nil {
			return nil, err
		}
	}

	s.buffered = s.buffered[:0]
	p := startKey
	for p != nil {
		if endBoundary != nil && p.SequenceNumber >= endBoundary.SequenceNumber {
			break
		}
		if err := s.dec.Decode(p); err != nil {
			return nil, err
		}
		if s.decErr != nil {
			return nil, s.decErr
		}
		p, err = s.src.GetNextPacket(ctx, s.trackID, p)
		if err != nil {
			return nil, err
		}
	}
	if err := s.dec.Flush(); err != nil {
		return nil, err
	}
	if s.decErr != nil {
		return nil, s.decErr
	}

	return selectRange(s.buffered, startT, endT), nil
}

// selectRange filters buffered samples to those within [startT, endT),
// holding back earlier samples except for the single latest one preceding
// startT, which is emitted first so the consumer has a covering frame.
func selectRange(buffered []*codec.DecodedSample, startT, endT float64) []*codec.DecodedSample {
	var before *codec.DecodedSample
	var out []*codec.DecodedSample
	for _, smp := range buffered {
		switch {
		case smp.Timestamp < startT:
			before = smp
		case smp.Timestamp < endT:
			out = append(out, smp)
		}
	}
	if before != nil {
		out = append([]*codec.DecodedSample{before}, out...)
	}
	return out
}

// MediaSamplesAtTimestamps decodes the sample nearest each requested
// timestamp, in request order, reusing in-flight decode work when
// consecutive timestamps land on the same key-packet batch and cloning the
// previous output when a timestamp repeats one already emitted (spec §4.8).
func (s *BaseMediaSampleSink) MediaSamplesAtTimestamps(ctx context.Context, timestamps []float64) ([]*codec.DecodedSample, error) {
	out := make([]*codec.DecodedSample, 0, len(timestamps))
	for _, ts := range timestamps {
		if s.lastOut != nil && s.lastOut.Timestamp == ts {
			out = append(out, s.lastOut.Clone())
			continue
		}

		keyPkt, err := s.src.GetKeyPacket(ctx, s.trackID, ts)
		if err != nil {
			return nil, err
		}
		if keyPkt == nil {
			keyPkt, err = s.src.GetFirstPacket(ctx, s.trackID)
			if err != nil {
				return nil, err
			}
		}
		if keyPkt == nil {
			out = append(out, nil)
			continue
		}

		if keyPkt.SequenceNumber != s.seenKeyBatchEnd {
			if err := s.dec.Flush(); err != nil {
				return nil, err
			}
			s.buffered = s.buffered[:0]
			s.seenKeyBatchEnd = keyPkt.SequenceNumber
			s.lastFed = nil
		}

		target, err := s.src.GetPacket(ctx, s.trackID, ts)
		if err != nil {
			return nil, err
		}

		sample, err := s.decodeThrough(ctx, keyPkt, target, ts)
		if err != nil {
			return nil, err
		}
		s.lastOut = sample
		out = append(out, sample)
	}
	return out, nil
}

// decodeThrough feeds packets up to and including target into the decoder,
// starting at keyPkt or, within a batch already being decoded, right after
// the last packet fed, and returns the decoded sample with the timestamp
// nearest ts.
func (s *BaseMediaSampleSink) decodeThrough(ctx context.Context, keyPkt, target *packet.Packet, ts float64) (*codec.DecodedSample, error) {
	p := keyPkt
	if s.lastFed != nil {
		p = nil
		if target == nil || s.lastFed.SequenceNumber < target.SequenceNumber {
			next, err := s.src.GetNextPacket(ctx, s.trackID, s.lastFed)
			if err != nil {
				return nil, err
			}
			p = next
		}
	}
	for p != nil {
		if err := s.dec.Decode(p); err != nil {
			return nil, err
		}
		s.lastFed = p
		if s.decErr != nil {
			return nil, s.decErr
		}
		if target != nil && p.SequenceNumber >= target.SequenceNumber {
			break
		}
		next, err := s.src.GetNextPacket(ctx, s.trackID, p)
		if err != nil {
			return nil, err
		}
		p = next
	}

	var best *codec.DecodedSample
	for _, smp := range s.buffered {
		if best == nil || absF(smp.Timestamp-ts) < absF(best.Timestamp-ts) {
			best = smp
		}
	}
	return best, nil
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
