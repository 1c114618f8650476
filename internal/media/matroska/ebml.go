// Package matroska implements EBML-based muxing and demuxing for Matroska
// and WebM containers.
package matroska

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
)

// unknownSizeMarker is the 8-octet EBML "unknown size" value (all value
// bits set), used for Segment/Cluster headers in streaming mode.
var unknownSizeMarker = []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// decodeVInt reads one variable-length integer from the front of buf. When
// keepMarker is true the length-marker bit is preserved in the returned
// value (used for element IDs); otherwise it is masked off (used for
// sizes). Returns the decoded value and the number of bytes consumed.
func decodeVInt(buf []byte, keepMarker bool) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, mediaerrors.NewInvalidInput("matroska.decodeVInt", fmt.Errorf("empty buffer"))
	}
	first := buf[0]
	if first == 0 {
		return 0, 0, mediaerrors.NewInvalidInput("matroska.decodeVInt", fmt.Errorf("invalid vint: leading byte is 0"))
	}

	var length int
	var mask byte
	for i := 0; i < 8; i++ {
		if first&(0x80>>uint(i)) != 0 {
			length = i + 1
			mask = 0x80 >> uint(i)
			break
		}
	}
	if length == 0 {
		return 0, 0, mediaerrors.NewInvalidInput("matroska.decodeVInt", fmt.Errorf("invalid vint: no marker bit"))
	}
	if len(buf) < length {
		return 0, 0, mediaerrors.NewInvalidInput("matroska.decodeVInt", fmt.Errorf("vint truncated: need %d bytes, have %d", length, len(buf)))
	}

	var result uint64
	if keepMarker {
		result = uint64(first)
	} else {
		result = uint64(first &^ mask)
	}
	for i := 1; i < length; i++ {
		result = (result << 8) | uint64(buf[i])
	}
	return result, length, nil
}

// elementHeader is a decoded element ID + payload size plus where the
// payload starts relative to the header's own start.
type elementHeader struct {
	ID         uint32
	Size       uint64
	Unknown    bool
	HeaderLen  int64
}

// readElementHeader decodes an element ID and size vint from buf, which
// must contain at least the header bytes (callers over-read a small
// fixed window and trim).
func readElementHeader(buf []byte) (elementHeader, error) {
	id, idLen, err := decodeVInt(buf, true)
	if err != nil {
		return elementHeader{}, err
	}
	if idLen > 4 {
		return elementHeader{}, mediaerrors.NewUnsupportedFeature("matroska.readElementHeader", fmt.Errorf("element ID wider than 4 bytes"))
	}
	sizeBuf := buf[idLen:]
	size, sizeLen, err := decodeVInt(sizeBuf, false)
	if err != nil {
		return elementHeader{}, err
	}
	unknown := isAllOnes(sizeBuf[:sizeLen])
	return elementHeader{
		ID:        uint32(id),
		Size:      size,
		Unknown:   unknown,
		HeaderLen: int64(idLen + sizeLen),
	}, nil
}

func isAllOnes(vint []byte) bool {
	first := vint[0]
	var mask byte
	for i := 0; i < 8; i++ {
		if first&(0x80>>uint(i)) != 0 {
			mask = (0x80 >> uint(i)) - 1
			break
		}
	}
	if first&mask != mask {
		return false
	}
	for _, b := range vint[1:] {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// encodeVInt encodes n as a minimal-width EBML vint (size form, no ID
// marker preserved in the input value).
func encodeVInt(n uint64) []byte {
	for length := 1; length <= 8; length++ {
		bits := uint(7 * length)
		if length == 8 {
			bits = 56 // 8-byte vints reserve the marker bit differently; cap payload at 56 bits
		}
		if n < (uint64(1) << bits) {
			buf := make([]byte, length)
			marker := byte(0x80) >> uint(length-1)
			v := n
			for i := length - 1; i >= 0; i-- {
				buf[i] = byte(v)
				v >>= 8
			}
			buf[0] |= marker
			return buf
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	buf[0] = 0x01
	return buf
}

// encodeElementID encodes a raw (marker-included) element ID as its
// natural-width byte sequence.
func encodeElementID(id uint32) []byte {
	switch {
	case id <= 0xFF:
		return []byte{byte(id)}
	case id <= 0xFFFF:
		return []byte{byte(id >> 8), byte(id)}
	case id <= 0xFFFFFF:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	}
}

// writeElement appends a complete ID+size+data element to buf.
func writeElement(buf *bytes.Buffer, id uint32, data []byte) {
	buf.Write(encodeElementID(id))
	buf.Write(encodeVInt(uint64(len(data))))
	buf.Write(data)
}

// writeMasterHeader writes an element ID followed by either a fixed size
// (known length) or the EBML unknown-size pattern (streaming mode). Only
// the header is written; the caller streams the body directly afterward.
func writeMasterHeader(buf *bytes.Buffer, id uint32, size int64, unknownSize bool) {
	buf.Write(encodeElementID(id))
	if unknownSize {
		buf.Write(unknownSizeMarker)
		return
	}
	buf.Write(encodeVInt(uint64(size)))
}

func encodeUint(n uint64) []byte {
	if n == 0 {
		return []byte{0}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func encodeFloat64(f float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

// encodeVIntWidth encodes n as an EBML vint forced to exactly width bytes,
// used for values that must be backpatched in place later.
func encodeVIntWidth(n uint64, width int) []byte {
	buf := make([]byte, width)
	v := n
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	buf[0] |= byte(0x80) >> uint(width-1)
	return buf
}

// encodeInt encodes n as a minimal-width two's-complement signed integer
// element body (used for ReferenceBlock).
func encodeInt(n int64) []byte {
	if n == 0 {
		return []byte{0}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	i := 0
	if n < 0 {
		for i < 7 && buf[i] == 0xFF && buf[i+1]&0x80 != 0 {
			i++
		}
	} else {
		for i < 7 && buf[i] == 0x00 && buf[i+1]&0x80 == 0 {
			i++
		}
	}
	return buf[i:]
}

func decodeUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = (v << 8) | uint64(x)
	}
	return v
}

func decodeString(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}
