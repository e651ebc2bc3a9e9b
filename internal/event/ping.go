package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Ping probes a neighbour directly (§4.3, §4.8). ts correlates the
// request with its Ack and must be echoed back unchanged; attempt_number
// starts at 1 and increases on each retry of the same logical probe.
type Ping struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	RestartCounter uint64
	Tx             uint64
	NeighbourID    uuid.UUID
	AttemptNumber  int
	TS             int64
}

// Code implements Event.
func (p Ping) Code() domain.EventCode { return domain.EventPing }

// Prepare implements Event.
func (p Ping) Prepare() []any {
	return []any{
		p.Code(), uuidBytes(p.ID), p.Host, p.Port, p.RestartCounter, p.Tx,
		uuidBytes(p.NeighbourID), p.AttemptNumber, p.TS,
	}
}

// Validate enforces the invariants restorePing checks on every decoded
// Ping.
func (p Ping) Validate() error {
	if p.AttemptNumber < 1 {
		return fmt.Errorf("%w: ping attempt_number must be >= 1", domain.ErrValidation)
	}
	if p.ID == uuid.Nil || p.NeighbourID == uuid.Nil {
		return fmt.Errorf("%w: ping requires id and neighbour_id", domain.ErrValidation)
	}
	return nil
}

func restorePing(r *reader) (Event, error) {
	id, err := r.uuid()
	if err != nil {
		return nil, err
	}
	host, err := r.str()
	if err != nil {
		return nil, err
	}
	port, err := r.uint16()
	if err != nil {
		return nil, err
	}
	restartCounter, err := r.uint64()
	if err != nil {
		return nil, err
	}
	tx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	neighbourID, err := r.uuid()
	if err != nil {
		return nil, err
	}
	attempt, err := r.int()
	if err != nil {
		return nil, err
	}
	ts, err := r.int64()
	if err != nil {
		return nil, err
	}
	p := Ping{
		ID: id, Host: host, Port: port, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, AttemptNumber: attempt, TS: ts,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Ack answers a Ping (or IndirectPing) once the receiver has processed
// it. NeighbourTx carries the Alive tx the sender holds for the pinger's
// neighbour entry; the pinger's ack handling does not read it.
type Ack struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	NeighbourID    uuid.UUID
	NeighbourTx    uint64
	AttemptNumber  int
	TS             int64
}

// Code implements Event.
func (a Ack) Code() domain.EventCode { return domain.EventAck }

// Prepare implements Event.
func (a Ack) Prepare() []any {
	return []any{
		a.Code(), uuidBytes(a.ID), a.RestartCounter, a.Tx,
		uuidBytes(a.NeighbourID), a.NeighbourTx, a.AttemptNumber, a.TS,
	}
}

func restoreAck(r *reader) (Event, error) {
	id, err := r.uuid()
	if err != nil {
		return nil, err
	}
	restartCounter, err := r.uint64()
	if err != nil {
		return nil, err
	}
	tx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	neighbourID, err := r.uuid()
	if err != nil {
		return nil, err
	}
	neighbourTx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	attempt, err := r.int()
	if err != nil {
		return nil, err
	}
	ts, err := r.int64()
	if err != nil {
		return nil, err
	}
	return Ack{
		ID: id, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourTx: neighbourTx,
		AttemptNumber: attempt, TS: ts,
	}, nil
}
