package swim

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

func TestTakeEvents_FIFOOrderAndDrain(t *testing.T) {
	n := testNode(t, 8)
	a := event.Left{ID: uuid.New(), RestartCounter: 1, Tx: 1}
	b := event.Left{ID: uuid.New(), RestartCounter: 1, Tx: 2}
	n.PutEvent(a)
	n.PutEvent(b)

	got := n.TakeEvents(1)
	if len(got) != 1 || got[0].(event.Left).ID != a.ID {
		t.Fatalf("TakeEvents(1) = %+v, want [a]", got)
	}
	got = n.TakeEvents(10)
	if len(got) != 1 || got[0].(event.Left).ID != b.ID {
		t.Fatalf("TakeEvents(10) = %+v, want [b]", got)
	}
	if got := n.TakeEvents(10); len(got) != 0 {
		t.Fatalf("TakeEvents on empty FIFO = %+v, want empty", got)
	}
}

func TestCollapseEvents_KeepsOnlyFreshestPerSubject(t *testing.T) {
	subject := uuid.New()
	stale := event.Alive{NeighbourID: subject, NeighbourRestartCounter: 1, NeighbourTx: 1}
	fresh := event.Alive{NeighbourID: subject, NeighbourRestartCounter: 1, NeighbourTx: 5}
	other := event.Left{ID: uuid.New(), RestartCounter: 1, Tx: 1}

	got := collapseEvents([]event.Event{stale, other, fresh})
	if len(got) != 2 {
		t.Fatalf("collapseEvents() = %+v, want 2 survivors", got)
	}
	if got[0].(event.Left).ID != other.ID {
		t.Fatalf("expected unrelated event to survive in place, got %+v", got[0])
	}
	if got[1].(event.Alive).NeighbourTx != fresh.NeighbourTx {
		t.Fatalf("expected freshest Alive to survive, got %+v", got[1])
	}
}

func TestCollapseEvents_DifferentSubjectsBothSurvive(t *testing.T) {
	a := event.Alive{NeighbourID: uuid.New(), NeighbourRestartCounter: 1, NeighbourTx: 1}
	b := event.Alive{NeighbourID: uuid.New(), NeighbourRestartCounter: 1, NeighbourTx: 1}
	got := collapseEvents([]event.Event{a, b})
	if len(got) != 2 {
		t.Fatalf("collapseEvents() = %+v, want both to survive (different subjects)", got)
	}
}

func TestBuildAntiEntropy_RespectsMaxItems(t *testing.T) {
	n := testNode(t, 16)
	n.cfg.MaxAntiEntropyItems = 2
	for i := 0; i < 5; i++ {
		_ = n.Upsert(&domain.NeighbourNode{ID: uuid.New(), Host: "h", Port: uint16(i + 1), Status: domain.StatusAlive})
	}
	ae := n.BuildAntiEntropy()
	if len(ae.Data) != 2 {
		t.Fatalf("BuildAntiEntropy() returned %d items, want 2", len(ae.Data))
	}
}

func TestBuildAntiEntropyFor_UnknownID(t *testing.T) {
	n := testNode(t, 8)
	if _, ok := n.buildAntiEntropyForLocked(uuid.New()); ok {
		t.Fatal("expected unknown id to yield ok=false")
	}
}
