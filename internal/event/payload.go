package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Payload carries a node's latest opaque application payload (§3, §4.3).
type Payload struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	Data           []byte
}

// Code implements Event.
func (p Payload) Code() domain.EventCode { return domain.EventPayload }

// Prepare implements Event.
func (p Payload) Prepare() []any {
	return []any{p.Code(), uuidBytes(p.ID), p.RestartCounter, p.Tx, p.Data}
}

func restorePayload(r *reader) (Event, error) {
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
	data, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return Payload{ID: id, RestartCounter: restartCounter, Tx: tx, Data: data}, nil
}
