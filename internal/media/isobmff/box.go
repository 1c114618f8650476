// Package isobmff implements ISO/IEC 14496-12 box-tree primitives plus the
// ISO-BMFF muxer and demuxer (spec §4.3, §4.5, §6).
package isobmff

import (
	"encoding/binary"
	"io"
)

// BoxType is a four-character box code, e.g. "ftyp", "moov".
type BoxType [4]byte

func bt(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Box is anything that can serialize its own type-specific fields. Children
// (if any) are carried by the enclosing Node, not the Box itself.
type Box interface {
	BoxType() BoxType
	Payload() []byte
}

// Node is one box plus its children, forming the box tree written or read
// for a container file. Large forces the 64-bit largesize header form,
// chosen by the muxer when size or offset fields would overflow 32 bits.
type Node struct {
	Box      Box
	Children []Node
	Large    bool
}

// Size returns the total encoded size of this node, including header and
// all descendants.
func (n Node) Size() int64 {
	headerSize := int64(8)
	if n.Large {
		headerSize = 16
	}
	size := headerSize + int64(len(n.Box.Payload()))
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// Marshal writes the node and its children to w.
func (n Node) Marshal(w io.Writer) error {
	size := n.Size()
	var hdr []byte
	if n.Large {
		hdr = make([]byte, 16)
		binary.BigEndian.PutUint32(hdr[0:4], 1)
		typ := n.Box.BoxType()
		copy(hdr[4:8], typ[:])
		binary.BigEndian.PutUint64(hdr[8:16], uint64(size))
	} else {
		hdr = make([]byte, 8)
		binary.BigEndian.PutUint32(hdr[0:4], uint32(size))
		typ := n.Box.BoxType()
		copy(hdr[4:8], typ[:])
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if payload := n.Box.Payload(); len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := c.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// FullBox carries the version/flags prefix shared by ISO-BMFF "full boxes".
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

func (f FullBox) marshal(buf *bufBuilder) {
	buf.u8(f.Version)
	buf.bytes(f.Flags[:])
}

// bufBuilder accumulates a box's payload bytes with typed helpers, mirroring
// the write-as-you-go style of a bit/byte writer over a growing buffer.
type bufBuilder struct {
	b []byte
}

func newBufBuilder() *bufBuilder { return &bufBuilder{} }

func (w *bufBuilder) u8(v uint8)   { w.b = append(w.b, v) }
func (w *bufBuilder) bytes(p []byte) { w.b = append(w.b, p...) }

func (w *bufBuilder) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *bufBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *bufBuilder) i32(v int32) { w.u32(uint32(v)) }

func (w *bufBuilder) u64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *bufBuilder) string0(s string) {
	w.b = append(w.b, s...)
	w.b = append(w.b, 0)
}

func (w *bufBuilder) bytes16() []byte { return w.b }

// fixed16 encodes a value as 8.8 fixed point, used by mvhd / tkhd
// volume.
func fixed16(v float64) uint16 {
	return uint16(v * 256)
}

// fixed32 encodes a value as 16.16 fixed point, used by mvhd rate / tkhd
// width/height.
func fixed32(v float64) uint32 {
	return uint32(v * 65536)
}

// unityMatrix is the identity transformation matrix used by tkhd/mvhd.
var unityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

// mp4Epoch1904Offset is the number of seconds between the 1904 ISO-BMFF
// epoch and the 1970 Unix epoch (spec §6).
const mp4Epoch1904Offset = 2082844800
