package matroska

import "testing"

func TestVIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 126, 127, 128, 16383, 16384, 2097151, 268435455}
	for _, n := range cases {
		enc := encodeVInt(n)
		got, consumed, err := decodeVInt(enc, false)
		if err != nil {
			t.Fatalf("decodeVInt(%d): %v", n, err)
		}
		if consumed != len(enc) {
			t.Fatalf("n=%d: consumed %d, expected %d", n, consumed, len(enc))
		}
		if got != n {
			t.Fatalf("n=%d: got %d", n, got)
		}
	}
}

func TestEncodeVIntWidthForcesLength(t *testing.T) {
	enc := encodeVIntWidth(42, 8)
	if len(enc) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(enc))
	}
	got, n, err := decodeVInt(enc, false)
	if err != nil || n != 8 || got != 42 {
		t.Fatalf("round trip failed: got=%d n=%d err=%v", got, n, err)
	}
}

func TestElementIDIsAllOnesDetectsUnknownSize(t *testing.T) {
	eh, err := readElementHeader(append(encodeElementID(idCluster), unknownSizeMarker...))
	if err != nil {
		t.Fatalf("readElementHeader: %v", err)
	}
	if !eh.Unknown {
		t.Fatalf("expected Unknown size")
	}
}

func TestEncodeIntSignedMinimalWidth(t *testing.T) {
	if len(encodeInt(0)) != 1 {
		t.Fatalf("zero should encode to 1 byte")
	}
	if len(encodeInt(-1)) != 1 {
		t.Fatalf("-1 should encode to 1 byte, got %d", len(encodeInt(-1)))
	}
	if len(encodeInt(200)) != 2 {
		t.Fatalf("200 should need 2 bytes (sign bit), got %d", len(encodeInt(200)))
	}
}
