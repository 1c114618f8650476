package isobmff

// Ftyp is the file-type box: major/minor brand plus compatible brands.
type Ftyp struct {
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

func (Ftyp) BoxType() BoxType { return bt("ftyp") }
func (f Ftyp) Payload() []byte {
	w := newBufBuilder()
	w.bytes([]byte(pad4(f.MajorBrand)))
	w.u32(f.MinorVersion)
	for _, b := range f.CompatibleBrands {
		w.bytes([]byte(pad4(b)))
	}
	return w.bytes16()
}

func pad4(s string) string {
	for len(s) < 4 {
		s += " "
	}
	return s[:4]
}

// Moov, Trak, Mdia, Minf, Stbl, Mvex, Dinf, Moof, Traf, Mfra are pure
// container boxes: no payload of their own, only children.
type emptyContainer struct{ t string }

func (e emptyContainer) BoxType() BoxType { return bt(e.t) }
func (emptyContainer) Payload() []byte    { return nil }

func Moov() Box { return emptyContainer{"moov"} }
func Trak() Box { return emptyContainer{"trak"} }
func Mdia() Box { return emptyContainer{"mdia"} }
func Minf() Box { return emptyContainer{"minf"} }
func Stbl() Box { return emptyContainer{"stbl"} }
func Mvex() Box { return emptyContainer{"mvex"} }
func Dinf() Box { return emptyContainer{"dinf"} }
func Moof() Box { return emptyContainer{"moof"} }
func Traf() Box { return emptyContainer{"traf"} }
func Mfra() Box { return emptyContainer{"mfra"} }

// Free is padding with no meaningful content, sized to fill a reserved hole.
type Free struct {
	Size int
}

func (Free) BoxType() BoxType { return bt("free") }
func (f Free) Payload() []byte {
	return make([]byte, f.Size)
}

// Mvhd is the movie header: overall timescale and duration.
type Mvhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	Timescale        uint32
	Duration         uint32
	NextTrackID      uint32
}

func (Mvhd) BoxType() BoxType { return bt("mvhd") }
func (m Mvhd) Payload() []byte {
	w := newBufBuilder()
	m.FullBox.marshal(w)
	w.u32(m.CreationTime)
	w.u32(m.ModificationTime)
	w.u32(m.Timescale)
	w.u32(m.Duration)
	w.u32(fixed32(1.0))  // rate
	w.u16(fixed16(1.0))  // volume
	w.u16(0)             // reserved
	w.u32(0)             // reserved
	w.u32(0)             // reserved
	for _, v := range unityMatrix {
		w.i32(v)
	}
	for i := 0; i < 6; i++ {
		w.u32(0) // pre_defined
	}
	w.u32(m.NextTrackID)
	return w.bytes16()
}

// Tkhd is the track header: track id, duration, video dimensions.
type Tkhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	TrackID          uint32
	Duration         uint32
	Width, Height    float64 // in pixels; encoded as 16.16 fixed point
	Volume           float64
}

func (Tkhd) BoxType() BoxType { return bt("tkhd") }
func (t Tkhd) Payload() []byte {
	w := newBufBuilder()
	t.FullBox.marshal(w)
	w.u32(t.CreationTime)
	w.u32(t.ModificationTime)
	w.u32(t.TrackID)
	w.u32(0) // reserved
	w.u32(t.Duration)
	w.u32(0) // reserved
	w.u32(0) // reserved
	w.u16(0) // layer
	w.u16(0) // alternate_group
	w.u16(fixed16(t.Volume))
	w.u16(0) // reserved
	for _, v := range unityMatrix {
		w.i32(v)
	}
	w.u32(fixed32(t.Width))
	w.u32(fixed32(t.Height))
	return w.bytes16()
}

// Mdhd is the media header: per-track timescale and duration.
type Mdhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	Timescale        uint32
	Duration         uint32
	Language         [3]byte
}

func (Mdhd) BoxType() BoxType { return bt("mdhd") }
func (m Mdhd) Payload() []byte {
	w := newBufBuilder()
	m.FullBox.marshal(w)
	w.u32(m.CreationTime)
	w.u32(m.ModificationTime)
	w.u32(m.Timescale)
	w.u32(m.Duration)
	lang := packLanguage(m.Language)
	w.u16(lang)
	w.u16(0) // pre_defined
	return w.bytes16()
}

func packLanguage(l [3]byte) uint16 {
	var v uint16
	for _, c := range l {
		v = (v << 5) | uint16(c-0x60)
	}
	return v
}

// Hdlr declares the track's handler type ("vide"/"soun").
type Hdlr struct {
	HandlerType [4]byte
	Name        string
}

func (Hdlr) BoxType() BoxType { return bt("hdlr") }
func (h Hdlr) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(0) // pre_defined
	w.bytes(h.HandlerType[:])
	w.u32(0)
	w.u32(0)
	w.u32(0)
	w.string0(h.Name)
	return w.bytes16()
}

// Vmhd is the video media header.
type Vmhd struct{}

func (Vmhd) BoxType() BoxType { return bt("vmhd") }
func (Vmhd) Payload() []byte {
	w := newBufBuilder()
	FullBox{Flags: [3]byte{0, 0, 1}}.marshal(w)
	w.u16(0) // graphicsmode
	w.u16(0)
	w.u16(0)
	w.u16(0) // opcolor
	return w.bytes16()
}

// Smhd is the sound media header.
type Smhd struct{}

func (Smhd) BoxType() BoxType { return bt("smhd") }
func (Smhd) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u16(0) // balance
	w.u16(0) // reserved
	return w.bytes16()
}

// Dref is the data-reference box; we emit a single self-contained "url "
// child, so it carries only the entry count.
type Dref struct{}

func (Dref) BoxType() BoxType { return bt("dref") }
func (Dref) Payload() []byte {
	w := newBufBuilder()
	FullBox{}.marshal(w)
	w.u32(1)
	return w.bytes16()
}

// URLBox is a self-contained data-reference entry (flag bit 0 set means
// "same file", so no location string is required).
type URLBox struct{}

func (URLBox) BoxType() BoxType { return bt("url ") }
func (URLBox) Payload() []byte {
	w := newBufBuilder()
	FullBox{Flags: [3]byte{0, 0, 1}}.marshal(w)
	return w.bytes16()
}

// Mdat carries sample bytes directly; its payload is the raw concatenated
// sample data (or empty, when the muxer streams sample bytes directly to
// the writer and only needs the header emitted up front).
type Mdat struct {
	Data []byte
}

func (Mdat) BoxType() BoxType { return bt("mdat") }
func (m Mdat) Payload() []byte { return m.Data }
