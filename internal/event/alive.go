package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Alive announces (or confirms) that NeighbourID is alive at the given
// incarnation (§4.3). Also used to confirm a node's own join (§4.9).
type Alive struct {
	ID                      uuid.UUID
	RestartCounter          uint64
	Tx                      uint64
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
	NeighbourHost           string
	NeighbourPort           uint16
}

// Code implements Event.
func (a Alive) Code() domain.EventCode { return domain.EventAlive }

// Prepare implements Event.
func (a Alive) Prepare() []any {
	return []any{
		a.Code(), uuidBytes(a.ID), a.RestartCounter, a.Tx,
		uuidBytes(a.NeighbourID), a.NeighbourRestartCounter, a.NeighbourTx,
		a.NeighbourHost, a.NeighbourPort,
	}
}

func restoreAlive(r *reader) (Event, error) {
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
	neighbourHost, err := r.str()
	if err != nil {
		return nil, err
	}
	neighbourPort, err := r.uint16()
	if err != nil {
		return nil, err
	}
	return Alive{
		ID: id, RestartCounter: restartCounter, Tx: tx,
		NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRestartCounter,
		NeighbourTx: neighbourTx, NeighbourHost: neighbourHost, NeighbourPort: neighbourPort,
	}, nil
}
