package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestIsMediaErrorClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)
	ii := NewInvalidInput("isobmff.parseBox", wrapped)
	if !IsMediaError(ii) {
		t.Fatalf("expected IsMediaError=true for invalid input error")
	}
	if !stdErrors.Is(ii, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	var ie *InvalidInputError
	if !stdErrors.As(ii, &ie) {
		t.Fatalf("expected errors.As to *InvalidInputError")
	}
	if ie.Op != "isobmff.parseBox" {
		t.Fatalf("unexpected op: %s", ie.Op)
	}

	uf := NewUnsupportedFeature("mux.chooseCodec", nil)
	if !IsMediaError(uf) {
		t.Fatalf("expected unsupported feature classified as media error")
	}

	sv := NewStateViolation("muxer.finalize", stdErrors.New("already finalized"))
	if !IsMediaError(sv) {
		t.Fatalf("expected state violation classified as media error")
	}
}

func TestUnorderedTimestampError(t *testing.T) {
	err := NewUnorderedTimestamp(2, 1.5, 1.2)
	if !IsMediaError(err) {
		t.Fatalf("expected media error")
	}
	var ut *UnorderedTimestampError
	if !stdErrors.As(err, &ut) {
		t.Fatalf("expected *UnorderedTimestampError")
	}
	if ut.TrackID != 2 || ut.Previous != 1.5 || ut.Got != 1.2 {
		t.Fatalf("unexpected fields: %+v", ut)
	}
}

func TestClusterTooLongError(t *testing.T) {
	err := NewClusterTooLong(1, 40000, 32768)
	var ct *ClusterTooLongError
	if !stdErrors.As(err, &ct) {
		t.Fatalf("expected *ClusterTooLongError")
	}
	if ct.Error() == "" {
		t.Fatalf("expected non-empty message")
	}
}

func TestCodecUnavailableError(t *testing.T) {
	dec := NewCodecUnavailable(RoleDecoder, "av01")
	enc := NewCodecUnavailable(RoleEncoder, "opus")
	if dec.Error() == enc.Error() {
		t.Fatalf("expected distinct messages for decoder vs encoder role")
	}
}

func TestCanceledError(t *testing.T) {
	err := NewCanceled("convert.execute", nil)
	if !IsCanceled(err) {
		t.Fatalf("expected IsCanceled true")
	}
	if !IsMediaError(err) {
		t.Fatalf("expected media error classification")
	}
}

func TestIOError(t *testing.T) {
	cause := stdErrors.New("short read")
	err := NewIOError("reader.loadRange", cause)
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause")
	}
}

func TestNilSafety(t *testing.T) {
	if IsMediaError(nil) {
		t.Fatalf("nil should not be a media error")
	}
	if IsCanceled(nil) {
		t.Fatalf("nil should not be canceled")
	}
}

func TestNegativePredicate(t *testing.T) {
	if IsMediaError(stdErrors.New("plain")) {
		t.Fatalf("plain error shouldn't classify as media error")
	}
}
