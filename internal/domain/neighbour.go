package domain

import (
	"time"

	"github.com/google/uuid"
)

// NeighbourNode is this node's view of one peer (§3). Unique by ID.
type NeighbourNode struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	Status         NodeStatus
	Access         Access
	RestartCounter uint64
	// EventsTx maps event_code to the highest tx observed for that code
	// from this neighbour, used by SuitableTx.
	EventsTx  map[EventCode]uint64
	Payload   []byte
	UpdatedAt time.Time
}

// Incarnation returns the neighbour's best-known (restart_counter,
// highest tx across all event codes) pair.
func (n *NeighbourNode) Incarnation() Incarnation {
	var maxTx uint64
	for _, tx := range n.EventsTx {
		if tx > maxTx {
			maxTx = tx
		}
	}
	return Incarnation{RestartCounter: n.RestartCounter, Tx: maxTx}
}

// TxFor returns the highest tx observed for the given event code.
func (n *NeighbourNode) TxFor(code EventCode) uint64 {
	return n.EventsTx[code]
}

// Clone returns a deep copy safe for callers to read without holding the
// owning node's lock.
func (n *NeighbourNode) Clone() *NeighbourNode {
	out := *n
	out.EventsTx = make(map[EventCode]uint64, len(n.EventsTx))
	for k, v := range n.EventsTx {
		out.EventsTx[k] = v
	}
	if n.Payload != nil {
		out.Payload = append([]byte(nil), n.Payload...)
	}
	return &out
}

// AntiEntropyItem is the compact tuple form of a neighbour carried inside
// an AntiEntropy event (§4.3): [id, host, port, status, access,
// restart_counter, events_tx, payload].
type AntiEntropyItem struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	Status         NodeStatus
	Access         Access
	RestartCounter uint64
	EventsTx       map[EventCode]uint64
	Payload        []byte
}

// ToAntiEntropyItem projects a neighbour into its wire tuple form.
func (n *NeighbourNode) ToAntiEntropyItem() AntiEntropyItem {
	txs := make(map[EventCode]uint64, len(n.EventsTx))
	for k, v := range n.EventsTx {
		txs[k] = v
	}
	return AntiEntropyItem{
		ID:             n.ID,
		Host:           n.Host,
		Port:           n.Port,
		Status:         n.Status,
		Access:         n.Access,
		RestartCounter: n.RestartCounter,
		EventsTx:       txs,
		Payload:        append([]byte(nil), n.Payload...),
	}
}

// FromAntiEntropyItem builds a neighbour record from a received tuple.
func FromAntiEntropyItem(item AntiEntropyItem, updatedAt time.Time) *NeighbourNode {
	txs := make(map[EventCode]uint64, len(item.EventsTx))
	for k, v := range item.EventsTx {
		txs[k] = v
	}
	return &NeighbourNode{
		ID:             item.ID,
		Host:           item.Host,
		Port:           item.Port,
		Status:         item.Status,
		Access:         item.Access,
		RestartCounter: item.RestartCounter,
		EventsTx:       txs,
		Payload:        append([]byte(nil), item.Payload...),
		UpdatedAt:      updatedAt,
	}
}
