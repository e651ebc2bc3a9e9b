package swim

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

// dedupeKey identifies one logical membership fact for piggyback
// collapsing (§4.6): the subject node, its event code, and its
// incarnation. Only the freshest tx for a given (id, code, restart)
// survives a collapse.
type dedupeKey struct {
	id      uuid.UUID
	code    domain.EventCode
	restart uint64
}

// putEventLocked appends ev to the outgoing FIFO (§4.6). Must be called
// with mu held.
func (n *Node) putEventLocked(ev event.Event) {
	n.outgoing = append(n.outgoing, ev)
}

// PutEvent enqueues ev for piggybacked dissemination.
func (n *Node) PutEvent(ev event.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.putEventLocked(ev)
}

// takeEventsLocked removes and returns up to count events from the
// front of the outgoing FIFO, collapsed to the latest incarnation per
// subject (§4.6). Must be called with mu held.
func (n *Node) takeEventsLocked(count int) []event.Event {
	if count <= 0 || len(n.outgoing) == 0 {
		return nil
	}

	take := count
	if take > len(n.outgoing) {
		take = len(n.outgoing)
	}
	batch := n.outgoing[:take]
	n.outgoing = n.outgoing[take:]

	return collapseEvents(batch)
}

// TakeEvents is the locking entry point for takeEventsLocked.
func (n *Node) TakeEvents(count int) []event.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.takeEventsLocked(count)
}

// collapseEvents drops all but the last (freshest) event sharing a
// subject/code/restart key, preserving the relative order of survivors
// (§4.6: "a later fact about the same subject supersedes an earlier
// one still waiting to go out").
func collapseEvents(events []event.Event) []event.Event {
	keep := make([]bool, len(events))
	last := make(map[dedupeKey]int)

	for i, ev := range events {
		k, ok := subjectKey(ev)
		if !ok {
			keep[i] = true
			continue
		}
		if prev, exists := last[k]; exists {
			keep[prev] = false
		}
		last[k] = i
		keep[i] = true
	}

	out := make([]event.Event, 0, len(events))
	for i, ev := range events {
		if keep[i] {
			out = append(out, ev)
		}
	}
	return out
}

// subjectKey extracts a dedupe key for event types that describe a
// single subject's membership fact. Event types without a clear single
// subject (AntiEntropy, Payload broadcasts) are never collapsed.
func subjectKey(ev event.Event) (dedupeKey, bool) {
	switch e := ev.(type) {
	case event.Alive:
		return dedupeKey{id: e.NeighbourID, code: e.Code(), restart: e.NeighbourRestartCounter}, true
	case event.Suspect:
		return dedupeKey{id: e.NeighbourID, code: e.Code(), restart: e.NeighbourRestartCounter}, true
	case event.Dead:
		return dedupeKey{id: e.NeighbourID, code: e.Code(), restart: e.NeighbourRestartCounter}, true
	case event.Left:
		return dedupeKey{id: e.ID, code: e.Code(), restart: e.RestartCounter}, true
	case event.Join:
		return dedupeKey{id: e.ID, code: e.Code(), restart: e.RestartCounter}, true
	case event.NewClusterSize:
		return dedupeKey{id: e.ID, code: e.Code(), restart: e.RestartCounter}, true
	default:
		return dedupeKey{}, false
	}
}

// buildAntiEntropyLocked snapshots up to max_anti_entropy_items random
// neighbours into an AntiEntropy event (§4.6). The sample is drawn from
// the whole neighbour table, not just alive members, so suspect/dead/
// left facts keep disseminating through anti-entropy too. Must be
// called with mu held.
func (n *Node) buildAntiEntropyLocked() event.AntiEntropy {
	sample := n.randomNLocked(n.cfg.MaxAntiEntropyItems)
	items := make([]domain.AntiEntropyItem, 0, len(sample))
	for _, nb := range sample {
		items = append(items, nb.ToAntiEntropyItem())
	}
	return event.AntiEntropy{
		ID:             n.id,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		Data:           items,
	}
}

// BuildAntiEntropy is the locking entry point for
// buildAntiEntropyLocked.
func (n *Node) BuildAntiEntropy() event.AntiEntropy {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buildAntiEntropyLocked()
}

// buildAntiEntropyForLocked snapshots a single named neighbour into an
// AntiEntropy event (§4.6: "or a single tuple for a specified id"), used
// to answer a direct lookup. Returns false if id is unknown.
func (n *Node) buildAntiEntropyForLocked(id uuid.UUID) (event.AntiEntropy, bool) {
	nb, ok := n.neighbours[id]
	if !ok {
		return event.AntiEntropy{}, false
	}
	return event.AntiEntropy{
		ID:             n.id,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		Data:           []domain.AntiEntropyItem{nb.ToAntiEntropyItem()},
	}, true
}
