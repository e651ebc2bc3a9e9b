package swim

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

func TestRoundSize_FloorLog2WithMinimumOne(t *testing.T) {
	n := testNode(t, 64)
	n.mu.Lock()
	defer n.mu.Unlock()

	cases := []struct {
		neighbours int
		want       int
	}{
		{0, 1}, {1, 1}, {2, 1}, {3, 2}, {4, 2}, {7, 3}, {8, 3}, {15, 4}, {16, 4},
	}
	for _, tc := range cases {
		n.neighbours = make(map[uuid.UUID]*domain.NeighbourNode)
		for i := 0; i < tc.neighbours; i++ {
			id := uuid.New()
			n.neighbours[id] = &domain.NeighbourNode{ID: id, Status: domain.StatusAlive}
		}
		if got := n.roundSizeLocked(); got != tc.want {
			t.Errorf("roundSizeLocked() with %d neighbours = %d, want %d", tc.neighbours, got, tc.want)
		}
	}
}

func TestNextRound_ReturnsDistinctIDs(t *testing.T) {
	n := testNode(t, 32)
	for i := 0; i < 20; i++ {
		id := uuid.New()
		_ = n.Upsert(&domain.NeighbourNode{ID: id, Host: "h", Port: uint16(i + 1), Status: domain.StatusAlive})
	}
	round := n.NextRound()
	seen := make(map[uuid.UUID]bool)
	for _, id := range round {
		if seen[id] {
			t.Fatalf("NextRound() returned duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNextRound_CapsAtAliveCount(t *testing.T) {
	n := testNode(t, 32)
	id := uuid.New()
	_ = n.Upsert(&domain.NeighbourNode{ID: id, Host: "h", Port: 1, Status: domain.StatusAlive})
	round := n.NextRound()
	if len(round) != 1 {
		t.Fatalf("NextRound() with 1 alive neighbour = %d ids, want 1", len(round))
	}
}

func TestNextRound_EmptyWhenNoAliveNeighbours(t *testing.T) {
	n := testNode(t, 32)
	round := n.NextRound()
	if len(round) != 0 {
		t.Fatalf("NextRound() with no neighbours = %+v, want empty", round)
	}
}

func TestNextRound_EventuallyCoversAllAliveNeighbours(t *testing.T) {
	n := testNode(t, 64)
	ids := make(map[uuid.UUID]bool)
	for i := 0; i < 10; i++ {
		id := uuid.New()
		ids[id] = true
		_ = n.Upsert(&domain.NeighbourNode{ID: id, Host: "h", Port: uint16(i + 1), Status: domain.StatusAlive})
	}
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 50 && len(seen) < len(ids); i++ {
		for _, id := range n.NextRound() {
			seen[id] = true
		}
	}
	for id := range ids {
		if !seen[id] {
			t.Fatalf("neighbour %s never appeared in any round", id)
		}
	}
}

func TestPruneRoundBuffer_DropsDeadIDs(t *testing.T) {
	n := testNode(t, 32)
	id := uuid.New()
	_ = n.Upsert(&domain.NeighbourNode{ID: id, Host: "h", Port: 1, Status: domain.StatusAlive})

	n.mu.Lock()
	n.roundBuffer = []uuid.UUID{id, uuid.New()}
	n.neighbours[id].Status = domain.StatusDead
	n.pruneRoundBufferLocked()
	got := len(n.roundBuffer)
	n.mu.Unlock()

	if got != 0 {
		t.Fatalf("pruneRoundBufferLocked() left %d ids, want 0", got)
	}
}
