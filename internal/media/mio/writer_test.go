package mio

import (
	"bytes"
	"testing"
)

func TestMemoryWriterWriteAndSeekBackpatch(t *testing.T) {
	w := NewMemoryWriter()
	if _, err := w.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := w.Write([]byte("HELLO")); err != nil {
		t.Fatalf("backpatch Write: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := w.Bytes(); string(got) != "HELLO world" {
		t.Fatalf("unexpected bytes: %q", got)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatalf("expected error writing after finalize")
	}
}

func TestStreamingWriterCoalescesSections(t *testing.T) {
	var flushed []string
	w := NewStreamingWriter(func(data []byte, offset int64) error {
		flushed = append(flushed, string(data))
		return nil
	})
	if _, err := w.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("def")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(flushed) != 1 || flushed[0] != "abcdef" {
		t.Fatalf("expected coalesced single section, got %v", flushed)
	}
}

func TestStreamingWriterBackpatchOverlap(t *testing.T) {
	var got []byte
	w := NewStreamingWriter(func(data []byte, offset int64) error {
		if offset != 0 {
			t.Fatalf("expected single section at offset 0, got %d", offset)
		}
		got = data
		return nil
	})
	if _, err := w.Write([]byte("AAAA")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Seek(1); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := w.Write([]byte("BB")); err != nil {
		t.Fatalf("backpatch Write: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if string(got) != "ABBA" {
		t.Fatalf("expected merged ABBA, got %q", got)
	}
}

func TestChunkedWriterFlushesCompleteChunks(t *testing.T) {
	var chunks [][]byte
	var offsets []int64
	w := NewChunkedWriter(4, 2, func(data []byte, offset int64) error {
		chunks = append(chunks, append([]byte(nil), data...))
		offsets = append(offsets, offset)
		return nil
	})
	if _, err := w.Write([]byte("01234567")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 complete chunks flushed eagerly, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte("0123")) || offsets[0] != 0 {
		t.Fatalf("unexpected first chunk: %q @ %d", chunks[0], offsets[0])
	}
	if !bytes.Equal(chunks[1], []byte("4567")) || offsets[1] != 4 {
		t.Fatalf("unexpected second chunk: %q @ %d", chunks[1], offsets[1])
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestChunkedWriterFinalizeFlushesPartialChunk(t *testing.T) {
	var chunks [][]byte
	w := NewChunkedWriter(8, 4, func(data []byte, offset int64) error {
		chunks = append(chunks, append([]byte(nil), data...))
		return nil
	})
	if _, err := w.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no flush before Finalize, got %d", len(chunks))
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected Finalize to flush the partial chunk, got %d", len(chunks))
	}
}

func TestChunkedWriterInFlightLimitForcesFlush(t *testing.T) {
	flushCount := 0
	w := NewChunkedWriter(4, 1, func(data []byte, offset int64) error {
		flushCount++
		return nil
	})
	// Touching a new chunk while one is already open at maxInFlight=1 exceeds
	// the limit and should force-flush the oldest open chunk even though it's
	// incomplete.
	if _, err := w.Write([]byte("ab")); err != nil { // opens chunk 0, incomplete
		t.Fatalf("Write: %v", err)
	}
	if err := w.Seek(4); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := w.Write([]byte("cd")); err != nil { // opens chunk 1, forces chunk 0 out
		t.Fatalf("Write: %v", err)
	}
	if flushCount != 1 {
		t.Fatalf("expected the in-flight limit to force-flush chunk 0, got %d flushes", flushCount)
	}
}
