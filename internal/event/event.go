// Package event implements C3: a typed variant for every SWIM protocol
// message, each able to build (Prepare) its wire tuple and to validate
// and restore itself from one (§4.3).
package event

import (
	"fmt"

	"github.com/coreswim/swim/internal/domain"
)

// Event is the sum type over every protocol message variant. Each prepared
// event is a heterogeneous tuple whose first element is its EventCode
// (§4.2); Prepare produces that tuple and Restore parses it back.
type Event interface {
	Code() domain.EventCode
	Prepare() []any
}

// Restore decodes a single prepared tuple back into its typed Event.
// Decoding of an unknown code yields an UnknownEvent (not an error) so the
// wire codec can skip a single bad event without dropping the whole
// frame; arity/type mismatches on a known code yield ErrMalformedEvent.
func Restore(tuple []any) (Event, error) {
	if len(tuple) == 0 {
		return nil, fmt.Errorf("%w: empty tuple", domain.ErrMalformedEvent)
	}
	code, err := toEventCode(tuple[0])
	if err != nil {
		return nil, err
	}

	r := newReader(tuple[1:])
	var ev Event
	switch code {
	case domain.EventPing:
		ev, err = restorePing(r)
	case domain.EventAck:
		ev, err = restoreAck(r)
	case domain.EventJoin:
		ev, err = restoreJoin(r)
	case domain.EventAlive:
		ev, err = restoreAlive(r)
	case domain.EventSuspect:
		ev, err = restoreSuspect(r)
	case domain.EventLeft:
		ev, err = restoreLeft(r)
	case domain.EventDead:
		ev, err = restoreDead(r)
	case domain.EventPayload:
		ev, err = restorePayload(r)
	case domain.EventAntiEntropy:
		ev, err = restoreAntiEntropy(r)
	case domain.EventProbe:
		ev, err = restoreProbe(r)
	case domain.EventProbeAck:
		ev, err = restoreProbeAck(r)
	case domain.EventNewClusterSize:
		ev, err = restoreNewClusterSize(r)
	case domain.EventIndirectPing:
		ev, err = restoreIndirectPing(r)
	case domain.EventIndirectAck:
		ev, err = restoreIndirectAck(r)
	default:
		return UnknownEvent{RawCode: tuple[0]}, nil
	}
	if err != nil {
		return nil, err
	}
	if rerr := r.exhausted(); rerr != nil {
		return nil, rerr
	}
	return ev, nil
}

// UnknownEvent is the placeholder restored for a code this build does not
// recognize. The wire codec skips it rather than failing the whole frame.
type UnknownEvent struct {
	RawCode any
}

// Code implements Event. Callers must not route UnknownEvent through the
// processor's code-based dispatch; it exists only to be logged and
// dropped.
func (UnknownEvent) Code() domain.EventCode { return domain.EventCode(0xFF) }

// Prepare implements Event.
func (u UnknownEvent) Prepare() []any { return []any{u.RawCode} }

func toEventCode(v any) (domain.EventCode, error) {
	n, err := toUint64(v)
	if err != nil {
		return 0, fmt.Errorf("%w: event code: %v", domain.ErrMalformedEvent, err)
	}
	return domain.EventCode(n), nil
}
