package swim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Neighbour returns a snapshot copy of one neighbour, or false if unknown.
func (n *Node) Neighbour(id uuid.UUID) (*domain.NeighbourNode, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nb, ok := n.neighbours[id]
	if !ok {
		return nil, false
	}
	return nb.Clone(), true
}

// Neighbours returns a snapshot of every neighbour.
func (n *Node) Neighbours() []*domain.NeighbourNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.neighboursLocked()
}

func (n *Node) neighboursLocked() []*domain.NeighbourNode {
	out := make([]*domain.NeighbourNode, 0, len(n.neighbours))
	for _, nb := range n.neighbours {
		out = append(out, nb.Clone())
	}
	return out
}

// NeighboursByStatus returns a snapshot filtered to neighbours whose
// status is in the given set (§4.5).
func (n *Node) NeighboursByStatus(statuses ...domain.NodeStatus) []*domain.NeighbourNode {
	want := make(map[domain.NodeStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*domain.NeighbourNode, 0, len(n.neighbours))
	for _, nb := range n.neighbours {
		if _, ok := want[nb.Status]; ok {
			out = append(out, nb.Clone())
		}
	}
	return out
}

// upsertLocked inserts or refreshes a neighbour. It refuses a self
// duplicate and enforces the cluster-size bound on genuinely new entries
// (§3 invariants 1 & 3, §4.5). Must be called with mu held.
func (n *Node) upsertLocked(nb *domain.NeighbourNode) error {
	if nb.ID == n.id {
		return fmt.Errorf("%w", domain.ErrSelfNeighbour)
	}
	_, exists := n.neighbours[nb.ID]
	if !exists && n.nodesInClusterLocked() >= n.cluster.ClusterSize {
		return fmt.Errorf("%w: cluster_size=%d", domain.ErrClusterSizeExceeded, n.cluster.ClusterSize)
	}

	stored := nb.Clone()
	stored.UpdatedAt = time.Now()
	n.neighbours[nb.ID] = stored
	return nil
}

// Upsert is the public, locking entry point for upsertLocked, used by
// callers outside the event processor (tests, anti-entropy seeding).
func (n *Node) Upsert(nb *domain.NeighbourNode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.upsertLocked(nb)
}

// deleteLocked removes one neighbour. Must be called with mu held.
func (n *Node) deleteLocked(id uuid.UUID) {
	delete(n.neighbours, id)
}

// Delete removes one neighbour by id.
func (n *Node) Delete(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleteLocked(id)
}

// deleteAllLocked clears the entire neighbour table (cluster-wide reset,
// §3). Must be called with mu held.
func (n *Node) deleteAllLocked() {
	n.neighbours = make(map[uuid.UUID]*domain.NeighbourNode)
}

// DeleteAll clears the entire neighbour table.
func (n *Node) DeleteAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleteAllLocked()
}

// suitableRestartCounter reports whether candidate.RestartCounter is
// fresh enough to mutate the stored neighbour (>= stored, per §4.5's
// freshness predicates: a strictly newer restart always wins, and an
// equal restart defers to SuitableTx for the specific event code).
func suitableRestartCounter(stored *domain.NeighbourNode, candidateRestart uint64) bool {
	if stored == nil {
		return true
	}
	return candidateRestart >= stored.RestartCounter
}

// suitableTx reports whether candidateTx is fresher than the stored tx
// for the given event code, given equal restart counters. A strictly
// newer restart counter on the candidate always makes it suitable
// regardless of tx (the neighbour's tx map resets with a new restart).
func suitableTx(stored *domain.NeighbourNode, code domain.EventCode, candidateRestart, candidateTx uint64) bool {
	if stored == nil {
		return true
	}
	if candidateRestart > stored.RestartCounter {
		return true
	}
	if candidateRestart < stored.RestartCounter {
		return false
	}
	return candidateTx > stored.TxFor(code)
}

// suitableIncarnation combines both freshness predicates (§4.5).
func suitableIncarnation(stored *domain.NeighbourNode, code domain.EventCode, candidateRestart, candidateTx uint64) bool {
	if stored == nil {
		return true
	}
	if !suitableRestartCounter(stored, candidateRestart) {
		return false
	}
	return suitableTx(stored, code, candidateRestart, candidateTx)
}

// suitableIncarnationLocked reports whether an observation of
// neighbourID at (restart, tx) for the given event code is fresh enough
// to apply; used by the event processor in process.go. Must be called
// with mu held.
func (n *Node) suitableIncarnationLocked(neighbourID uuid.UUID, code domain.EventCode, restart, tx uint64) bool {
	return suitableIncarnation(n.neighbours[neighbourID], code, restart, tx)
}

// oldestByUpdatedAtLocked returns the neighbour with the oldest
// UpdatedAt among the given status set, or nil if none match (§4.5).
func (n *Node) oldestByUpdatedAtLocked(statuses ...domain.NodeStatus) *domain.NeighbourNode {
	want := make(map[domain.NodeStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	var oldest *domain.NeighbourNode
	for _, nb := range n.neighbours {
		if _, ok := want[nb.Status]; !ok {
			continue
		}
		if oldest == nil || nb.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = nb
		}
	}
	if oldest == nil {
		return nil
	}
	return oldest.Clone()
}

// OldestByUpdatedAt is the locking entry point for
// oldestByUpdatedAtLocked.
func (n *Node) OldestByUpdatedAt(statuses ...domain.NodeStatus) *domain.NeighbourNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.oldestByUpdatedAtLocked(statuses...)
}

// randomAliveExceptLocked returns a uniformly random alive neighbour,
// excluding the given ids, or nil if none qualify. Must be called with
// mu held.
func (n *Node) randomAliveExceptLocked(exclude ...uuid.UUID) *domain.NeighbourNode {
	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	candidates := make([]*domain.NeighbourNode, 0, len(n.neighbours))
	for _, nb := range n.neighbours {
		if nb.Status != domain.StatusAlive {
			continue
		}
		if _, ok := skip[nb.ID]; ok {
			continue
		}
		candidates = append(candidates, nb)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// randomNLocked returns up to count distinct, uniformly shuffled
// neighbours drawn from the whole table regardless of status
// (§4.6: anti-entropy samples over every known neighbour, not just the
// alive ones, so suspect/dead/left facts disseminate too).
func (n *Node) randomNLocked(count int, exclude ...uuid.UUID) []*domain.NeighbourNode {
	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	candidates := make([]*domain.NeighbourNode, 0, len(n.neighbours))
	for _, nb := range n.neighbours {
		if _, ok := skip[nb.ID]; ok {
			continue
		}
		candidates = append(candidates, nb)
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if count > len(candidates) {
		count = len(candidates)
	}
	return candidates[:count]
}
