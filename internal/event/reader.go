package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// reader walks a decoded tuple positionally, converting each element to
// the expected Go type and reporting domain.ErrMalformedEvent on any
// arity or type mismatch.
type reader struct {
	fields []any
	idx    int
}

func newReader(fields []any) *reader {
	return &reader{fields: fields}
}

func (r *reader) next() (any, error) {
	if r.idx >= len(r.fields) {
		return nil, fmt.Errorf("%w: missing field at position %d", domain.ErrMalformedEvent, r.idx)
	}
	v := r.fields[r.idx]
	r.idx++
	return v, nil
}

// exhausted reports whether every field was consumed; extra trailing
// fields are themselves an arity violation.
func (r *reader) exhausted() error {
	if r.idx != len(r.fields) {
		return fmt.Errorf("%w: %d unconsumed fields", domain.ErrMalformedEvent, len(r.fields)-r.idx)
	}
	return nil
}

func (r *reader) uuid() (uuid.UUID, error) {
	v, err := r.next()
	if err != nil {
		return uuid.Nil, err
	}
	return toUUID(v)
}

func (r *reader) str() (string, error) {
	v, err := r.next()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return "", fmt.Errorf("%w: expected string, got %T", domain.ErrMalformedEvent, v)
	}
	return s, nil
}

func (r *reader) uint64() (uint64, error) {
	v, err := r.next()
	if err != nil {
		return 0, err
	}
	return toUint64(v)
}

func (r *reader) uint16() (uint16, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	if n > 0xFFFF {
		return 0, fmt.Errorf("%w: port out of range: %d", domain.ErrMalformedEvent, n)
	}
	return uint16(n), nil
}

func (r *reader) int() (int, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.next()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		n64, err := toUint64(v)
		if err != nil {
			return 0, err
		}
		return int64(n64), nil
	}
}

func (r *reader) bytes() ([]byte, error) {
	v, err := r.next()
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: expected bytes, got %T", domain.ErrMalformedEvent, v)
	}
}

func (r *reader) status() (domain.NodeStatus, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	return domain.NodeStatus(n), nil
}

func (r *reader) access() (domain.Access, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	return domain.Access(n), nil
}

// eventsTx reads a map[event_code]tx, the field shape used by each
// AntiEntropyItem tuple.
func (r *reader) eventsTx() (map[domain.EventCode]uint64, error) {
	v, err := r.next()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[domain.EventCode]uint64{}, nil
	}
	m, ok := v.(map[any]any)
	if !ok {
		if m2, ok2 := v.(map[string]any); ok2 {
			out := make(map[domain.EventCode]uint64, len(m2))
			for k, val := range m2 {
				code, err := parseEventCodeKey(k)
				if err != nil {
					return nil, err
				}
				tx, err := toUint64(val)
				if err != nil {
					return nil, err
				}
				out[code] = tx
			}
			return out, nil
		}
		return nil, fmt.Errorf("%w: expected events_tx map, got %T", domain.ErrMalformedEvent, v)
	}
	out := make(map[domain.EventCode]uint64, len(m))
	for k, val := range m {
		code, err := parseEventCodeKey(k)
		if err != nil {
			return nil, err
		}
		tx, err := toUint64(val)
		if err != nil {
			return nil, err
		}
		out[code] = tx
	}
	return out, nil
}

func parseEventCodeKey(k any) (domain.EventCode, error) {
	n, err := toUint64(k)
	if err != nil {
		return 0, fmt.Errorf("%w: events_tx key: %v", domain.ErrMalformedEvent, err)
	}
	return domain.EventCode(n), nil
}

// antiEntropyData reads the sequence of compact neighbour tuples carried
// by an AntiEntropy event.
func (r *reader) antiEntropyData() ([]domain.AntiEntropyItem, error) {
	v, err := r.next()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected anti_entropy_data sequence, got %T", domain.ErrMalformedEvent, v)
	}
	items := make([]domain.AntiEntropyItem, 0, len(seq))
	for _, raw := range seq {
		tuple, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: anti_entropy_data entry must be a tuple", domain.ErrMalformedEvent)
		}
		ir := newReader(tuple)
		id, err := ir.uuid()
		if err != nil {
			return nil, err
		}
		host, err := ir.str()
		if err != nil {
			return nil, err
		}
		port, err := ir.uint16()
		if err != nil {
			return nil, err
		}
		status, err := ir.status()
		if err != nil {
			return nil, err
		}
		access, err := ir.access()
		if err != nil {
			return nil, err
		}
		restartCounter, err := ir.uint64()
		if err != nil {
			return nil, err
		}
		eventsTx, err := ir.eventsTx()
		if err != nil {
			return nil, err
		}
		payload, err := ir.bytes()
		if err != nil {
			return nil, err
		}
		if err := ir.exhausted(); err != nil {
			return nil, err
		}
		items = append(items, domain.AntiEntropyItem{
			ID:             id,
			Host:           host,
			Port:           port,
			Status:         status,
			Access:         access,
			RestartCounter: restartCounter,
			EventsTx:       eventsTx,
			Payload:        payload,
		})
	}
	return items, nil
}

// ─── Conversion helpers ─────────────────────────────────────────────────────

func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case []byte:
		id, err := uuid.FromBytes(x)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: malformed uuid bytes: %v", domain.ErrMalformedEvent, err)
		}
		return id, nil
	case string:
		// Accept both raw 16-byte strings (msgpack round-trip form) and
		// canonical hyphenated strings (convenient for tests/tools).
		if len(x) == 16 {
			id, err := uuid.FromBytes([]byte(x))
			if err == nil {
				return id, nil
			}
		}
		id, err := uuid.Parse(x)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: malformed uuid string: %v", domain.ErrMalformedEvent, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: expected uuid, got %T", domain.ErrMalformedEvent, v)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", domain.ErrMalformedEvent, n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", domain.ErrMalformedEvent, n)
		}
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case domain.EventCode:
		return uint64(n), nil
	case int32:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", domain.ErrMalformedEvent, v)
	}
}

// uuidBytes is the wire representation of a uuid.UUID: its raw 16 bytes,
// carried as a msgpack binary string. This preserves the value exactly
// while staying within plain MessagePack (no extension type required).
func uuidBytes(id uuid.UUID) []byte {
	b := id
	return b[:]
}
