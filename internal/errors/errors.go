// Package errors defines the error taxonomy shared across the muxers,
// demuxers, and conversion pipeline (spec §7).
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// mediaMarker is implemented by every error type in this package so callers
// can classify "did this come from the media core" without a type switch.
type mediaMarker interface {
	error
	isMedia()
}

// InvalidInputError indicates malformed container data: a truncated box, a
// bad field value, an element that fails its own length check.
type InvalidInputError struct {
	Op  string
	Err error
}

func (e *InvalidInputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid input: %s", e.Op)
	}
	return fmt.Sprintf("invalid input: %s: %v", e.Op, e.Err)
}
func (e *InvalidInputError) Unwrap() error { return e.Err }
func (e *InvalidInputError) isMedia()      {}

// UnsupportedFeatureError indicates a recognized but unimplementable
// request: a container accepts a codec but no encoder is registered for it,
// or a box/element variant this implementation doesn't emit or parse.
type UnsupportedFeatureError struct {
	Op  string
	Err error
}

func (e *UnsupportedFeatureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unsupported feature: %s", e.Op)
	}
	return fmt.Sprintf("unsupported feature: %s: %v", e.Op, e.Err)
}
func (e *UnsupportedFeatureError) Unwrap() error { return e.Err }
func (e *UnsupportedFeatureError) isMedia()      {}

// UnorderedTimestampError indicates a caller supplied a packet whose decode
// timestamp regressed relative to the previous packet on the same track.
type UnorderedTimestampError struct {
	TrackID  int
	Previous float64
	Got      float64
}

func (e *UnorderedTimestampError) Error() string {
	return fmt.Sprintf("unordered timestamp on track %d: previous=%.6f got=%.6f", e.TrackID, e.Previous, e.Got)
}
func (e *UnorderedTimestampError) isMedia() {}

// ClusterTooLongError indicates a Matroska cluster would exceed the 2^15 ms
// relative-timestamp range a Block can encode.
type ClusterTooLongError struct {
	TrackID     int
	RelativeMS  int64
	MaxRelative int64
}

func (e *ClusterTooLongError) Error() string {
	return fmt.Sprintf("cluster too long: track %d relative timestamp %dms exceeds %dms; key more often",
		e.TrackID, e.RelativeMS, e.MaxRelative)
}
func (e *ClusterTooLongError) isMedia() {}

// TrackLimitExceededError indicates the muxer's declared expected chunk
// count (faststart hole-reservation mode) was reached.
type TrackLimitExceededError struct {
	TrackID  int
	Expected int
}

func (e *TrackLimitExceededError) Error() string {
	return fmt.Sprintf("track %d exceeded its reserved chunk budget of %d", e.TrackID, e.Expected)
}
func (e *TrackLimitExceededError) isMedia() {}

// StateViolationError indicates an operation was attempted in the wrong
// lifecycle state: adding a track after start(), double finalize(), writing
// after finalize().
type StateViolationError struct {
	Op  string
	Err error
}

func (e *StateViolationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("state violation: %s", e.Op)
	}
	return fmt.Sprintf("state violation: %s: %v", e.Op, e.Err)
}
func (e *StateViolationError) Unwrap() error { return e.Err }
func (e *StateViolationError) isMedia()      {}

// CodecRole distinguishes the missing half of an encoder/decoder pair in a
// CodecUnavailableError.
type CodecRole int

const (
	RoleDecoder CodecRole = iota
	RoleEncoder
)

func (r CodecRole) String() string {
	if r == RoleEncoder {
		return "encoder"
	}
	return "decoder"
}

// CodecUnavailableError indicates no implementation is registered for a
// requested codec (covers both DecoderUnavailable and EncoderUnavailable).
type CodecUnavailableError struct {
	Role  CodecRole
	Codec string
}

func (e *CodecUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable for codec %q", e.Role, e.Codec)
}
func (e *CodecUnavailableError) isMedia() {}

// CanceledError wraps a caller-initiated cancellation.
type CanceledError struct {
	Op  string
	Err error
}

func (e *CanceledError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("canceled: %s", e.Op)
	}
	return fmt.Sprintf("canceled: %s: %v", e.Op, e.Err)
}
func (e *CanceledError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return context.Canceled
}
func (e *CanceledError) isMedia() {}

// IOError wraps a failure from an underlying Source or Writer.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Op, e.Err)
}
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) isMedia()      {}

// IsMediaError returns true if err is (or wraps) any error type defined in
// this package.
func IsMediaError(err error) bool {
	if err == nil {
		return false
	}
	var mm mediaMarker
	return stdErrors.As(err, &mm)
}

// Constructors (encourage contextual wrapping; cause may be nil).
func NewInvalidInput(op string, cause error) error { return &InvalidInputError{Op: op, Err: cause} }
func NewUnsupportedFeature(op string, cause error) error {
	return &UnsupportedFeatureError{Op: op, Err: cause}
}
func NewUnorderedTimestamp(trackID int, previous, got float64) error {
	return &UnorderedTimestampError{TrackID: trackID, Previous: previous, Got: got}
}
func NewClusterTooLong(trackID int, relativeMS, maxRelative int64) error {
	return &ClusterTooLongError{TrackID: trackID, RelativeMS: relativeMS, MaxRelative: maxRelative}
}
func NewTrackLimitExceeded(trackID, expected int) error {
	return &TrackLimitExceededError{TrackID: trackID, Expected: expected}
}
func NewStateViolation(op string, cause error) error {
	return &StateViolationError{Op: op, Err: cause}
}
func NewCodecUnavailable(role CodecRole, codec string) error {
	return &CodecUnavailableError{Role: role, Codec: codec}
}
func NewCanceled(op string, cause error) error { return &CanceledError{Op: op, Err: cause} }
func NewIOError(op string, cause error) error  { return &IOError{Op: op, Err: cause} }

// IsCanceled reports whether err is a CanceledError or wraps
// context.Canceled.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	var ce *CanceledError
	if stdErrors.As(err, &ce) {
		return true
	}
	return stdErrors.Is(err, context.Canceled)
}
