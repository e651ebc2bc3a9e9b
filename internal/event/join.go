package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Join announces a node's arrival to a contact peer (§4.3, §4.9).
type Join struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	Host           string
	Port           uint16
}

// Code implements Event.
func (j Join) Code() domain.EventCode { return domain.EventJoin }

// Prepare implements Event.
func (j Join) Prepare() []any {
	return []any{j.Code(), uuidBytes(j.ID), j.RestartCounter, j.Tx, j.Host, j.Port}
}

func restoreJoin(r *reader) (Event, error) {
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
	host, err := r.str()
	if err != nil {
		return nil, err
	}
	port, err := r.uint16()
	if err != nil {
		return nil, err
	}
	return Join{ID: id, RestartCounter: restartCounter, Tx: tx, Host: host, Port: port}, nil
}
