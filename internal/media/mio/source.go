// Package mio implements the reader/writer I/O layer (spec §4.1–4.2):
// cached range-addressable reads and seekable/streaming/chunked writes.
package mio

import "context"

// Source is the abstract byte source a Reader caches reads from. Typical
// implementations wrap an *os.File or an in-memory buffer.
type Source interface {
	// Size returns the total number of bytes available from the source.
	Size(ctx context.Context) (int64, error)
	// Read returns the bytes in [start, end). Implementations may return
	// fewer bytes only at end-of-source.
	Read(ctx context.Context, start, end int64) ([]byte, error)
}

// FileSource adapts an io.ReaderAt with a known size to Source.
type FileSource struct {
	ra   readerAt
	size int64
}

type readerAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// NewFileSource wraps ra, reporting size for every Size call.
func NewFileSource(ra readerAt, size int64) *FileSource {
	return &FileSource{ra: ra, size: size}
}

func (f *FileSource) Size(ctx context.Context) (int64, error) {
	return f.size, nil
}

func (f *FileSource) Read(ctx context.Context, start, end int64) ([]byte, error) {
	if end > f.size {
		end = f.size
	}
	if start >= end {
		return nil, nil
	}
	buf := make([]byte, end-start)
	n, err := f.ra.ReadAt(buf, start)
	if n == len(buf) {
		return buf, nil
	}
	return buf[:n], err
}

// MemorySource is a Source backed by an in-memory byte slice, useful for
// tests and for round-tripping an in-memory-faststart muxer's output.
type MemorySource struct {
	Data []byte
}

func (m *MemorySource) Size(ctx context.Context) (int64, error) {
	return int64(len(m.Data)), nil
}

func (m *MemorySource) Read(ctx context.Context, start, end int64) ([]byte, error) {
	if end > int64(len(m.Data)) {
		end = int64(len(m.Data))
	}
	if start >= end {
		return nil, nil
	}
	return m.Data[start:end], nil
}
