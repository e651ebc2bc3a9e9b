package swim

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// roundSizeLocked returns floor(log2(nodes_in_cluster)), with a floor of
// 1 (§4.7). Must be called with mu held.
func (n *Node) roundSizeLocked() int {
	nodes := n.nodesInClusterLocked()
	if nodes < 2 {
		return 1
	}
	size := int(math.Floor(math.Log2(float64(nodes))))
	if size < 1 {
		size = 1
	}
	return size
}

// refillRoundBufferLocked discards ids no longer present as alive
// neighbours, then reshuffles a fresh pass over every currently alive
// neighbour id (§4.7: "the buffer is refilled by a shuffle over the
// live set once exhausted or once it contains stale entries").
func (n *Node) refillRoundBufferLocked() {
	alive := make([]uuid.UUID, 0, len(n.neighbours))
	for id, nb := range n.neighbours {
		if nb.Status == domain.StatusAlive {
			alive = append(alive, id)
		}
	}
	rand.Shuffle(len(alive), func(i, j int) { alive[i], alive[j] = alive[j], alive[i] })
	n.roundBuffer = alive
}

// pruneRoundBufferLocked drops ids from roundBuffer that are no longer
// alive neighbours (e.g. declared dead since being buffered).
func (n *Node) pruneRoundBufferLocked() {
	if len(n.roundBuffer) == 0 {
		return
	}
	kept := n.roundBuffer[:0]
	for _, id := range n.roundBuffer {
		nb, ok := n.neighbours[id]
		if ok && nb.Status == domain.StatusAlive {
			kept = append(kept, id)
		}
	}
	n.roundBuffer = kept
}

// nextRoundLocked pops the round size's worth of distinct neighbour ids
// to probe this heartbeat tick, refilling the buffer as needed (§4.7).
// Must be called with mu held.
func (n *Node) nextRoundLocked() []uuid.UUID {
	n.pruneRoundBufferLocked()

	aliveCount := 0
	for _, nb := range n.neighbours {
		if nb.Status == domain.StatusAlive {
			aliveCount++
		}
	}

	size := n.roundSizeLocked()
	if size > aliveCount {
		size = aliveCount // never return more distinct ids than exist
	}
	out := make([]uuid.UUID, 0, size)

	for len(out) < size {
		if len(n.roundBuffer) == 0 {
			n.refillRoundBufferLocked()
			if len(n.roundBuffer) == 0 {
				break // no alive neighbours at all
			}
		}
		id := n.roundBuffer[0]
		n.roundBuffer = n.roundBuffer[1:]
		out = append(out, id)
	}
	return out
}

// NextRound is the locking entry point for nextRoundLocked.
func (n *Node) NextRound() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nextRoundLocked()
}
