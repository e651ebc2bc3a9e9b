package wire

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/coreswim/swim/internal/event"
)

// encodeRaw bypasses event.Event.Prepare to let a test hand-construct a
// malformed tuple directly on the wire.
func encodeRaw(tuples []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(tuples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	events := []event.Event{
		event.Ping{ID: uuid.New(), Host: "127.0.0.1", Port: 5376, RestartCounter: 1, Tx: 1, NeighbourID: uuid.New(), AttemptNumber: 1, TS: 100},
		event.Join{ID: uuid.New(), RestartCounter: 1, Tx: 0, Host: "127.0.0.1", Port: 5377},
		event.Left{ID: uuid.New(), RestartCounter: 2, Tx: 9},
	}

	payload, err := Encode(events)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(result.Events) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(result.Events), len(events))
	}
	if result.UnknownCount != 0 || result.MalformedCount != 0 {
		t.Fatalf("unexpected skip counts: unknown=%d malformed=%d", result.UnknownCount, result.MalformedCount)
	}

	gotPing, ok := result.Events[0].(event.Ping)
	if !ok {
		t.Fatalf("events[0] = %T, want event.Ping", result.Events[0])
	}
	wantPing := events[0].(event.Ping)
	if gotPing.ID != wantPing.ID || gotPing.Host != wantPing.Host || gotPing.Port != wantPing.Port || gotPing.TS != wantPing.TS {
		t.Fatalf("ping round trip mismatch: got=%#v want=%#v", gotPing, wantPing)
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	payload, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(result.Events))
	}
}

func TestDecode_UnknownEventSkippedNotWholeFrame(t *testing.T) {
	events := []event.Event{
		event.Left{ID: uuid.New(), RestartCounter: 1, Tx: 1},
		event.UnknownEvent{RawCode: uint64(250)},
		event.Left{ID: uuid.New(), RestartCounter: 2, Tx: 2},
	}
	payload, err := Encode(events)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 known events, got %d", len(result.Events))
	}
	if result.UnknownCount != 1 {
		t.Fatalf("UnknownCount = %d, want 1", result.UnknownCount)
	}
}

func TestDecode_MalformedEventSkippedNotWholeFrame(t *testing.T) {
	good := event.Left{ID: uuid.New(), RestartCounter: 1, Tx: 1}
	goodPayload, err := Encode([]event.Event{good})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	goodResult, err := Decode(goodPayload)
	if err != nil || len(goodResult.Events) != 1 {
		t.Fatalf("sanity encode/decode of one good event failed: %v %+v", err, goodResult)
	}

	// Hand-build a payload containing one well-formed Left and one
	// truncated Ping (missing its trailing fields).
	badTuple := []any{uint64(0), uuid.New(), "host-only"}
	raw := []any{good.Prepare(), badTuple}
	payload, err := encodeRaw(raw)
	if err != nil {
		t.Fatalf("encodeRaw() error: %v", err)
	}

	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 surviving event, got %d", len(result.Events))
	}
	if result.MalformedCount != 1 {
		t.Fatalf("MalformedCount = %d, want 1", result.MalformedCount)
	}
}

func TestDecode_BadFrameOnTopLevelGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xFF, 0xFF, 0xFF}); err == nil {
		t.Fatal("Decode() on garbage bytes should return an error")
	}
}
