package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alxayo/mediabox/internal/media/isobmff"
	"github.com/alxayo/mediabox/internal/media/matroska"
	"github.com/alxayo/mediabox/internal/media/mio"
	"github.com/alxayo/mediabox/internal/media/packet"
	"github.com/alxayo/mediabox/internal/media/riff"
)

// demuxer is the common retrieval surface isobmff/matroska/riff all expose;
// convert.Job and the sink package only ever need this subset.
type demuxer interface {
	Open(ctx context.Context) error
	Tracks() []*packet.Track
	GetFirstPacket(ctx context.Context, trackID int) (*packet.Packet, error)
	GetNextPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error)
	GetKeyPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error)
	GetNextKeyPacket(ctx context.Context, trackID int, p *packet.Packet) (*packet.Packet, error)
	GetPacket(ctx context.Context, trackID int, t float64) (*packet.Packet, error)
}

// muxer is the common write surface isobmff.Muxer/matroska.Muxer expose.
type muxer interface {
	AddTrack(t *packet.Track) error
	Start() error
	WritePacket(trackID int, pkt *packet.Packet) error
	Finalize() error
}

// detectFormat guesses a container family from a file extension, per
// spec.md §4.5–§4.7's format list.
func detectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4a", ".m4v":
		return "isobmff", nil
	case ".mkv", ".webm":
		return "matroska", nil
	case ".avi":
		return "riff", nil
	default:
		return "", fmt.Errorf("cannot determine container format from extension of %q; pass -format", path)
	}
}

// openDemuxer opens path and returns a demuxer over its whole contents,
// plus the underlying *os.File the caller must Close.
func openDemuxer(ctx context.Context, path string) (demuxer, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	format, err := detectFormat(path)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	src := mio.NewFileSource(f, info.Size())
	r := mio.NewReader(src, 64<<20)

	var d demuxer
	switch format {
	case "isobmff":
		d = isobmff.NewDemuxer(r, info.Size())
	case "matroska":
		d = matroska.NewDemuxer(r, info.Size())
	case "riff":
		d = riff.NewDemuxer(r, info.Size())
	}
	if err := d.Open(ctx); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("opening container %q: %w", path, err)
	}
	return d, f, nil
}

// openMuxer creates path and returns a muxer writing into it through a
// mio.ChunkedWriter, plus the underlying *os.File the caller must Close
// after Finalize.
func openMuxer(path, format string, webm bool) (muxer, *os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %q: %w", path, err)
	}
	w := mio.NewChunkedWriter(1<<20, 4, func(data []byte, offset int64) error {
		_, err := f.WriteAt(data, offset)
		return err
	})

	var m muxer
	switch format {
	case "isobmff":
		m = isobmff.NewMuxer(w, isobmff.Options{Mode: isobmff.FaststartReservedHole})
	case "matroska":
		m = matroska.NewMuxer(w, matroska.Options{WebM: webm})
	default:
		f.Close()
		return nil, nil, fmt.Errorf("unsupported mux output format %q", format)
	}
	return m, f, nil
}
