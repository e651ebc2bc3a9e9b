package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Suspect marks a local observation that NeighbourID may be failing.
// Per §4.9 / §9, Suspect is recorded but not currently propagated
// further by this build — preserved intentionally, not an oversight.
type Suspect struct {
	ID                      uuid.UUID
	RestartCounter          uint64
	Tx                      uint64
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
}

// Code implements Event.
func (s Suspect) Code() domain.EventCode { return domain.EventSuspect }

// Prepare implements Event.
func (s Suspect) Prepare() []any {
	return []any{
		s.Code(), uuidBytes(s.ID), s.RestartCounter, s.Tx,
		uuidBytes(s.NeighbourID), s.NeighbourRestartCounter, s.NeighbourTx,
	}
}

func restoreSuspect(r *reader) (Event, error) {
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
	neighbourRestartCounter, err := r.uint64()
	if err != nil {
		return nil, err
	}
	neighbourTx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	return Suspect{
		ID: id, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRestartCounter, NeighbourTx: neighbourTx,
	}, nil
}

// Dead declares NeighbourID dead at the given incarnation (§4.3). If the
// declared target is the receiver itself and the sender checks out, the
// receiver transitions to left rather than disbelieving the message
// (§4.9).
type Dead struct {
	ID                      uuid.UUID
	RestartCounter          uint64
	Tx                      uint64
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
}

// Code implements Event.
func (d Dead) Code() domain.EventCode { return domain.EventDead }

// Prepare implements Event.
func (d Dead) Prepare() []any {
	return []any{
		d.Code(), uuidBytes(d.ID), d.RestartCounter, d.Tx,
		uuidBytes(d.NeighbourID), d.NeighbourRestartCounter, d.NeighbourTx,
	}
}

func restoreDead(r *reader) (Event, error) {
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
	neighbourRestartCounter, err := r.uint64()
	if err != nil {
		return nil, err
	}
	neighbourTx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	return Dead{
		ID: id, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRestartCounter, NeighbourTx: neighbourTx,
	}, nil
}
