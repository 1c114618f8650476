package isobmff

// Mfhd is the movie-fragment header: the fragment's sequence number.
type Mfhd struct{ SequenceNumber uint32 }

func (Mfhd) BoxType() BoxType { return bt("mfhd") }
func (m Mfhd) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(m.SequenceNumber)
	return w.bytes16()
}

// Tfhd declares a fragment's per-track defaults and flags.
//
// Flag bits (spec §6):
//   0x000001 base-data-offset-present
//   0x000008 default-sample-duration-present
//   0x000010 default-sample-size-present
//   0x000020 default-sample-flags-present
//   0x020000 default-base-is-moof
type Tfhd struct {
	FullBox
	TrackID               uint32
	DefaultSampleDuration uint32
	DefaultSampleSize     uint32
	DefaultSampleFlags    uint32
}

func (Tfhd) BoxType() BoxType { return bt("tfhd") }
func (t Tfhd) Payload() []byte {
	w := newBufBuilder()
	t.FullBox.marshal(w)
	w.u32(t.TrackID)
	flags := flagsToUint32(t.FullBox.Flags)
	if flags&0x000008 != 0 {
		w.u32(t.DefaultSampleDuration)
	}
	if flags&0x000010 != 0 {
		w.u32(t.DefaultSampleSize)
	}
	if flags&0x000020 != 0 {
		w.u32(t.DefaultSampleFlags)
	}
	return w.bytes16()
}

func flagsToUint32(f [3]byte) uint32 {
	return uint32(f[0])<<16 | uint32(f[1])<<8 | uint32(f[2])
}

func uint32ToFlags(v uint32) [3]byte {
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

// Tfdt carries the fragment's base media decode time for this track.
type Tfdt struct {
	FullBox // Version 1 selects the 64-bit BaseMediaDecodeTime form
	BaseMediaDecodeTime uint64
}

func (Tfdt) BoxType() BoxType { return bt("tfdt") }
func (t Tfdt) Payload() []byte {
	w := newBufBuilder()
	t.FullBox.marshal(w)
	if t.FullBox.Version == 1 {
		w.u64(t.BaseMediaDecodeTime)
	} else {
		w.u32(uint32(t.BaseMediaDecodeTime))
	}
	return w.bytes16()
}

// TrunSample is one sample's per-sample overrides in a track run.
type TrunSample struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int32
}

// Trun is the track fragment run box: data offset plus per-sample
// overrides.
//
// Flag bits:
//   0x000001 data-offset-present
//   0x000100 sample-duration-present
//   0x000200 sample-size-present
//   0x000400 sample-flags-present
//   0x000800 sample-composition-time-offsets-present (version 1 -> signed)
type Trun struct {
	FullBox
	DataOffset int32
	Samples    []TrunSample

	// dataOffsetPos records where DataOffset was written within Payload()
	// so the muxer can backpatch it in-place once moof's size is known.
	dataOffsetPos int
}

func (Trun) BoxType() BoxType { return bt("trun") }
func (t *Trun) Payload() []byte {
	w := newBufBuilder()
	t.FullBox.marshal(w)
	flags := flagsToUint32(t.FullBox.Flags)
	w.u32(uint32(len(t.Samples)))
	if flags&0x000001 != 0 {
		t.dataOffsetPos = len(w.b)
		w.i32(t.DataOffset)
	}
	for _, s := range t.Samples {
		if flags&0x000100 != 0 {
			w.u32(s.Duration)
		}
		if flags&0x000200 != 0 {
			w.u32(s.Size)
		}
		if flags&0x000400 != 0 {
			w.u32(s.Flags)
		}
		if flags&0x000800 != 0 {
			w.i32(s.CompositionTimeOffset)
		}
	}
	return w.bytes16()
}

// DataOffsetFieldOffset returns the byte offset within the box's full
// serialized form (including the 8-byte header) of the data_offset field,
// for in-place backpatching once moof's total size is known.
func (t *Trun) DataOffsetFieldOffset() int {
	return 8 + t.dataOffsetPos
}

// TfraEntry is one random-access point recorded in a track fragment random
// access box.
type TfraEntry struct {
	Time          uint64
	MoofOffset    uint64
	TrafNumber    uint32
	TrunNumber    uint32
	SampleNumber  uint32
}

// Tfra is the per-track random-access index, written inside mfra at EOF.
type Tfra struct {
	FullBox
	TrackID uint32
	Entries []TfraEntry
}

func (Tfra) BoxType() BoxType { return bt("tfra") }
func (t Tfra) Payload() []byte {
	w := newBufBuilder()
	t.FullBox.marshal(w)
	w.u32(t.TrackID)
	w.u32(0x3F) // length_size_of_traf/trun/sample_num = 4 bytes each
	w.u32(uint32(len(t.Entries)))
	for _, e := range t.Entries {
		if t.FullBox.Version == 1 {
			w.u64(e.Time)
			w.u64(e.MoofOffset)
		} else {
			w.u32(uint32(e.Time))
			w.u32(uint32(e.MoofOffset))
		}
		w.u32(e.TrafNumber)
		w.u32(e.TrunNumber)
		w.u32(e.SampleNumber)
	}
	return w.bytes16()
}

// Mfro is the movie-fragment random-access offset box, written last so a
// backward-reading player can find mfra's start from the file's final
// bytes.
type Mfro struct{ Size uint32 }

func (Mfro) BoxType() BoxType { return bt("mfro") }
func (m Mfro) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(m.Size)
	return w.bytes16()
}
