package isobmff

// SttsEntry is one time-to-sample run: SampleCount samples each spaced
// SampleDelta timescale ticks apart.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the decode-time-to-sample table.
type Stts struct{ Entries []SttsEntry }

func (Stts) BoxType() BoxType { return bt("stts") }
func (s Stts) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.u32(e.SampleCount)
		w.u32(e.SampleDelta)
	}
	return w.bytes16()
}

// Stss lists the 1-based sample numbers of key (sync) samples. Omitted
// entirely (by the caller not emitting this box) when every sample is key.
type Stss struct{ SampleNumbers []uint32 }

func (Stss) BoxType() BoxType { return bt("stss") }
func (s Stss) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(uint32(len(s.SampleNumbers)))
	for _, n := range s.SampleNumbers {
		w.u32(n)
	}
	return w.bytes16()
}

// CttsEntry is one composition-time-offset run.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// Ctts is the composition-time-to-sample table, present only when B-frames
// introduce a presentation/decode timestamp divergence (spec §8).
type Ctts struct{ Entries []CttsEntry }

func (Ctts) BoxType() BoxType { return bt("ctts") }
func (c Ctts) Payload() []byte {
	w := newBufBuilder()
	FullBox{Version: 1}.marshal(w)
	w.u32(uint32(len(c.Entries)))
	for _, e := range c.Entries {
		w.u32(e.SampleCount)
		w.i32(e.SampleOffset)
	}
	return w.bytes16()
}

// StscEntry marks the start of a run of chunks that each carry
// SamplesPerChunk samples described by sample description index
// SampleDescriptionIndex.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the sample-to-chunk compact table.
type Stsc struct{ Entries []StscEntry }

func (Stsc) BoxType() BoxType { return bt("stsc") }
func (s Stsc) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.u32(e.FirstChunk)
		w.u32(e.SamplesPerChunk)
		w.u32(e.SampleDescriptionIndex)
	}
	return w.bytes16()
}

// Stsz is the per-sample size table.
type Stsz struct{ Sizes []uint32 }

func (Stsz) BoxType() BoxType { return bt("stsz") }
func (s Stsz) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(0) // sample_size (0 means sizes are explicit, below)
	w.u32(uint32(len(s.Sizes)))
	for _, sz := range s.Sizes {
		w.u32(sz)
	}
	return w.bytes16()
}

// Stco is the 32-bit chunk-offset table.
type Stco struct{ Offsets []uint32 }

func (Stco) BoxType() BoxType { return bt("stco") }
func (s Stco) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(uint32(len(s.Offsets)))
	for _, o := range s.Offsets {
		w.u32(o)
	}
	return w.bytes16()
}

// Co64 is the 64-bit chunk-offset table, used once any chunk offset would
// overflow 32 bits (spec §4.3).
type Co64 struct{ Offsets []uint64 }

func (Co64) BoxType() BoxType { return bt("co64") }
func (c Co64) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(uint32(len(c.Offsets)))
	for _, o := range c.Offsets {
		w.u64(o)
	}
	return w.bytes16()
}

// Stsd wraps the sample description table; its one entry is carried as a
// child node (an Avc1/Hvc1/Vp09/Av01/Mp4a/Opus box with its own config
// children), so Stsd's own payload is just the entry count.
type Stsd struct{}

func (Stsd) BoxType() BoxType { return bt("stsd") }
func (Stsd) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(1)
	return w.bytes16()
}

// Mvex is emitted as an empty container (see boxes.go); Trex is its one
// per-track child, declaring fragment defaults.
type Trex struct {
	TrackID                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

func (Trex) BoxType() BoxType { return bt("trex") }
func (t Trex) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(t.TrackID)
	w.u32(t.DefaultSampleDescriptionIndex)
	w.u32(t.DefaultSampleDuration)
	w.u32(t.DefaultSampleSize)
	w.u32(t.DefaultSampleFlags)
	return w.bytes16()
}
