package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Left announces a node's voluntary departure (§4.3, §4.10). No ack is
// required.
type Left struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
}

// Code implements Event.
func (l Left) Code() domain.EventCode { return domain.EventLeft }

// Prepare implements Event.
func (l Left) Prepare() []any {
	return []any{l.Code(), uuidBytes(l.ID), l.RestartCounter, l.Tx}
}

func restoreLeft(r *reader) (Event, error) {
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
	return Left{ID: id, RestartCounter: restartCounter, Tx: tx}, nil
}
