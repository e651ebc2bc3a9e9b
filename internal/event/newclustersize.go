package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// NewClusterSize propagates an administrative change to the cluster's
// node-count ceiling (§4.3, §4.9).
type NewClusterSize struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	OldSize        int
	NewSize        int
}

// Code implements Event.
func (n NewClusterSize) Code() domain.EventCode { return domain.EventNewClusterSize }

// Prepare implements Event.
func (n NewClusterSize) Prepare() []any {
	return []any{n.Code(), uuidBytes(n.ID), n.RestartCounter, n.Tx, n.OldSize, n.NewSize}
}

func restoreNewClusterSize(r *reader) (Event, error) {
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
	oldSize, err := r.int()
	if err != nil {
		return nil, err
	}
	newSize, err := r.int()
	if err != nil {
		return nil, err
	}
	return NewClusterSize{ID: id, RestartCounter: restartCounter, Tx: tx, OldSize: oldSize, NewSize: newSize}, nil
}
