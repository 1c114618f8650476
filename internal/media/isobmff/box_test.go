package isobmff

import (
	"bytes"
	"testing"
)

func TestNodeMarshalHeaderSize(t *testing.T) {
	n := Node{Box: Free{Size: 4}}
	var buf bytes.Buffer
	if err := n.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != 12 { // 8-byte header + 4 bytes of padding
		t.Fatalf("expected 12 bytes, got %d", buf.Len())
	}
	if string(buf.Bytes()[4:8]) != "free" {
		t.Fatalf("unexpected box type: %q", buf.Bytes()[4:8])
	}
}

func TestNodeMarshalWithChildren(t *testing.T) {
	n := Node{Box: Moov(), Children: []Node{{Box: Free{Size: 2}}}}
	if n.Size() != 8+10 {
		t.Fatalf("unexpected size: %d", n.Size())
	}
	var buf bytes.Buffer
	if err := n.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != int(n.Size()) {
		t.Fatalf("marshaled length mismatch: got %d want %d", buf.Len(), n.Size())
	}
}

func TestLargeSizeForm(t *testing.T) {
	n := Node{Box: Free{Size: 4}, Large: true}
	var buf bytes.Buffer
	if err := n.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != 20 { // 16-byte large header + 4 bytes padding
		t.Fatalf("expected 20 bytes, got %d", buf.Len())
	}
}

func TestFixedPointEncoding(t *testing.T) {
	if fixed16(1.0) != 0x0100 {
		t.Fatalf("unexpected fixed16: %x", fixed16(1.0))
	}
	if fixed32(1.0) != 0x00010000 {
		t.Fatalf("unexpected fixed32: %x", fixed32(1.0))
	}
}
