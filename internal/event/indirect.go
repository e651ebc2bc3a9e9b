package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// IndirectPing asks Intermediate to probe NeighbourHost:NeighbourPort on
// the sender's behalf (§4.3, §4.8 step 3). A node that is not the named
// intermediate ignores it; it is not forwarded.
type IndirectPing struct {
	ID               uuid.UUID
	Host             string
	Port             uint16
	RestartCounter   uint64
	Tx               uint64
	NeighbourID      uuid.UUID
	NeighbourHost    string
	NeighbourPort    uint16
	IntermediateID   uuid.UUID
	IntermediateHost string
	IntermediatePort uint16
	AttemptNumber    int
	TS               int64
}

// Code implements Event.
func (p IndirectPing) Code() domain.EventCode { return domain.EventIndirectPing }

// Prepare implements Event.
func (p IndirectPing) Prepare() []any {
	return []any{
		p.Code(), uuidBytes(p.ID), p.Host, p.Port, p.RestartCounter, p.Tx,
		uuidBytes(p.NeighbourID), p.NeighbourHost, p.NeighbourPort,
		uuidBytes(p.IntermediateID), p.IntermediateHost, p.IntermediatePort,
		p.AttemptNumber, p.TS,
	}
}

func restoreIndirectPing(r *reader) (Event, error) {
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
	neighbourHost, err := r.str()
	if err != nil {
		return nil, err
	}
	neighbourPort, err := r.uint16()
	if err != nil {
		return nil, err
	}
	intermediateID, err := r.uuid()
	if err != nil {
		return nil, err
	}
	intermediateHost, err := r.str()
	if err != nil {
		return nil, err
	}
	intermediatePort, err := r.uint16()
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
	return IndirectPing{
		ID: id, Host: host, Port: port, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourHost: neighbourHost, NeighbourPort: neighbourPort,
		IntermediateID: intermediateID, IntermediateHost: intermediateHost, IntermediatePort: intermediatePort,
		AttemptNumber: attempt, TS: ts,
	}, nil
}

// IndirectAck is the reply path for IndirectPing: the intermediate's
// verdict on the probed neighbour, sent straight back to the original
// requester (§4.9). ID names the probed neighbour, RestartCounter and Tx
// are the intermediate's own, and SenderStatus is the status the
// intermediate observed. No node forwards an IndirectAck further.
type IndirectAck struct {
	ID               uuid.UUID
	RestartCounter   uint64
	Tx               uint64
	NeighbourID      uuid.UUID
	NeighbourTx      uint64
	NeighbourHost    string
	NeighbourPort    uint16
	IntermediateID   uuid.UUID
	IntermediateHost string
	IntermediatePort uint16
	SenderStatus     domain.NodeStatus
	AttemptNumber    int
	TS               int64
}

// Code implements Event.
func (a IndirectAck) Code() domain.EventCode { return domain.EventIndirectAck }

// Prepare implements Event.
func (a IndirectAck) Prepare() []any {
	return []any{
		a.Code(), uuidBytes(a.ID), a.RestartCounter, a.Tx,
		uuidBytes(a.NeighbourID), a.NeighbourTx, a.NeighbourHost, a.NeighbourPort,
		uuidBytes(a.IntermediateID), a.IntermediateHost, a.IntermediatePort,
		uint64(a.SenderStatus), a.AttemptNumber, a.TS,
	}
}

func restoreIndirectAck(r *reader) (Event, error) {
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
	neighbourHost, err := r.str()
	if err != nil {
		return nil, err
	}
	neighbourPort, err := r.uint16()
	if err != nil {
		return nil, err
	}
	intermediateID, err := r.uuid()
	if err != nil {
		return nil, err
	}
	intermediateHost, err := r.str()
	if err != nil {
		return nil, err
	}
	intermediatePort, err := r.uint16()
	if err != nil {
		return nil, err
	}
	status, err := r.status()
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
	return IndirectAck{
		ID: id, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourTx: neighbourTx,
		NeighbourHost: neighbourHost, NeighbourPort: neighbourPort,
		IntermediateID: intermediateID, IntermediateHost: intermediateHost, IntermediatePort: intermediatePort,
		SenderStatus: status, AttemptNumber: attempt, TS: ts,
	}, nil
}
