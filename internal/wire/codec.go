// Package wire implements C2: serialization of a vector of prepared
// events to and from a compact self-describing binary form (§4.2). It
// uses MessagePack via hashicorp/go-msgpack, the same codec the
// memberlist family of gossip protocols in the retrieval pack uses for
// membership state encoding.
package wire

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

var msgpackHandle = &codec.MsgpackHandle{}

// Encode serializes a vector of prepared events into one payload. An
// empty or nil slice encodes to an empty-array payload.
func Encode(events []event.Event) ([]byte, error) {
	tuples := make([]any, 0, len(events))
	for _, ev := range events {
		tuples = append(tuples, ev.Prepare())
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(tuples); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", domain.ErrValidation, err)
	}
	return buf.Bytes(), nil
}

// DecodeResult is the outcome of decoding one payload: the events that
// restored cleanly, plus counts of events that were skipped because they
// carried an unrecognized code or failed structural validation. Skipping
// a bad event must never fail the whole frame (§4.2, §7).
type DecodeResult struct {
	Events         []event.Event
	UnknownCount   int
	MalformedCount int
}

// Decode parses a payload produced by Encode. A top-level decode failure
// (the payload is not a well-formed MessagePack array of arrays at all)
// is reported as domain.ErrBadFrame; per-event problems are absorbed into
// DecodeResult's counters instead of failing the call.
func Decode(payload []byte) (DecodeResult, error) {
	var raw []any
	dec := codec.NewDecoder(bytes.NewReader(payload), msgpackHandle)
	if err := dec.Decode(&raw); err != nil {
		return DecodeResult{}, fmt.Errorf("%w: decode: %v", domain.ErrBadFrame, err)
	}

	result := DecodeResult{Events: make([]event.Event, 0, len(raw))}
	for _, item := range raw {
		tuple, ok := item.([]any)
		if !ok {
			result.MalformedCount++
			continue
		}
		ev, err := event.Restore(tuple)
		if err != nil {
			result.MalformedCount++
			continue
		}
		if _, unknown := ev.(event.UnknownEvent); unknown {
			result.UnknownCount++
			continue
		}
		result.Events = append(result.Events, ev)
	}
	return result, nil
}
