package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// AntiEntropy opportunistically replicates a sample of the sender's
// neighbour table to heal divergence (§4.3, §4.6). Each entry is a
// compact tuple: [id, host, port, status, access, restart_counter,
// events_tx, payload].
type AntiEntropy struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	Data           []domain.AntiEntropyItem
}

// Code implements Event.
func (a AntiEntropy) Code() domain.EventCode { return domain.EventAntiEntropy }

// Prepare implements Event.
func (a AntiEntropy) Prepare() []any {
	items := make([]any, 0, len(a.Data))
	for _, it := range a.Data {
		items = append(items, prepareAntiEntropyItem(it))
	}
	return []any{a.Code(), uuidBytes(a.ID), a.RestartCounter, a.Tx, items}
}

func prepareAntiEntropyItem(it domain.AntiEntropyItem) []any {
	txs := make(map[any]any, len(it.EventsTx))
	for k, v := range it.EventsTx {
		txs[uint64(k)] = v
	}
	return []any{
		uuidBytes(it.ID), it.Host, it.Port, uint64(it.Status), uint64(it.Access),
		it.RestartCounter, txs, it.Payload,
	}
}

func restoreAntiEntropy(r *reader) (Event, error) {
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
	data, err := r.antiEntropyData()
	if err != nil {
		return nil, err
	}
	return AntiEntropy{ID: id, RestartCounter: restartCounter, Tx: tx, Data: data}, nil
}
