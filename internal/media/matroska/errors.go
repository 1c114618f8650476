package matroska

import "errors"

var (
	errAlreadyStarted   = errors.New("muxer already started")
	errAlreadyFinalized = errors.New("muxer already finalized")
	errNotStarted       = errors.New("muxer not started")
	errNotWritable      = errors.New("muxer not started or already finalized")
	errDuplicateTrack   = errors.New("duplicate track id")
	errUnknownTrack     = errors.New("unknown track id")
	errUnknownCodec     = errors.New("codec has no Matroska CodecID mapping")
	errWebMCodec        = errors.New("codec not permitted in WebM DocType")
	errSeekHeadSize     = errors.New("seek head backpatch size mismatch")
)
