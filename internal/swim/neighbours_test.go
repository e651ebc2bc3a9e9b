package swim

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

func testNode(t *testing.T, clusterSize int) *Node {
	t.Helper()
	cl, err := domain.NewCluster(domain.NewClusterParams{
		ID:          uuid.New(),
		Name:        "test",
		Password:    "0123456789abcdef",
		ClusterSize: clusterSize,
	})
	if err != nil {
		t.Fatalf("NewCluster() error: %v", err)
	}
	n, err := NewNode(Params{Cluster: cl, Config: DefaultConfig(), ID: uuid.New(), Host: "127.0.0.1", Port: 5000})
	if err != nil {
		t.Fatalf("NewNode() error: %v", err)
	}
	return n
}

func TestUpsert_RefusesSelf(t *testing.T) {
	n := testNode(t, 4)
	err := n.Upsert(&domain.NeighbourNode{ID: n.ID(), Host: "127.0.0.1", Port: 5001, Status: domain.StatusAlive})
	if !errors.Is(err, domain.ErrSelfNeighbour) {
		t.Fatalf("Upsert(self) error = %v, want ErrSelfNeighbour", err)
	}
}

func TestUpsert_RefusesOverClusterSize(t *testing.T) {
	n := testNode(t, 2) // self + 1 neighbour max
	if err := n.Upsert(&domain.NeighbourNode{ID: uuid.New(), Host: "127.0.0.1", Port: 5001, Status: domain.StatusAlive}); err != nil {
		t.Fatalf("first Upsert() error: %v", err)
	}
	err := n.Upsert(&domain.NeighbourNode{ID: uuid.New(), Host: "127.0.0.1", Port: 5002, Status: domain.StatusAlive})
	if !errors.Is(err, domain.ErrClusterSizeExceeded) {
		t.Fatalf("second Upsert() error = %v, want ErrClusterSizeExceeded", err)
	}
}

func TestUpsert_RefreshOfExistingNeverBlockedBySize(t *testing.T) {
	n := testNode(t, 2)
	id := uuid.New()
	if err := n.Upsert(&domain.NeighbourNode{ID: id, Host: "127.0.0.1", Port: 5001, Status: domain.StatusAlive}); err != nil {
		t.Fatalf("first Upsert() error: %v", err)
	}
	if err := n.Upsert(&domain.NeighbourNode{ID: id, Host: "127.0.0.1", Port: 5001, Status: domain.StatusSuspect}); err != nil {
		t.Fatalf("refresh Upsert() error: %v", err)
	}
	nb, ok := n.Neighbour(id)
	if !ok || nb.Status != domain.StatusSuspect {
		t.Fatalf("refresh did not apply: ok=%v nb=%+v", ok, nb)
	}
}

func TestUpsert_RefreshesUpdatedAt(t *testing.T) {
	n := testNode(t, 4)
	id := uuid.New()
	if err := n.Upsert(&domain.NeighbourNode{ID: id, Host: "h", Port: 1, Status: domain.StatusAlive}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	nb, _ := n.Neighbour(id)
	if time.Since(nb.UpdatedAt) > time.Second {
		t.Fatalf("UpdatedAt not freshly set: %v", nb.UpdatedAt)
	}
}

func TestDeleteAndDeleteAll(t *testing.T) {
	n := testNode(t, 4)
	a, b := uuid.New(), uuid.New()
	_ = n.Upsert(&domain.NeighbourNode{ID: a, Host: "h", Port: 1, Status: domain.StatusAlive})
	_ = n.Upsert(&domain.NeighbourNode{ID: b, Host: "h", Port: 2, Status: domain.StatusAlive})

	n.Delete(a)
	if _, ok := n.Neighbour(a); ok {
		t.Fatal("expected a to be deleted")
	}
	if _, ok := n.Neighbour(b); !ok {
		t.Fatal("expected b to survive")
	}

	n.DeleteAll()
	if len(n.Neighbours()) != 0 {
		t.Fatal("expected empty neighbour table after DeleteAll")
	}
}

func TestSuitableRestartCounter(t *testing.T) {
	stored := &domain.NeighbourNode{RestartCounter: 5}
	if suitableRestartCounter(stored, 4) {
		t.Fatal("older restart counter should not be suitable")
	}
	if !suitableRestartCounter(stored, 5) {
		t.Fatal("equal restart counter should be suitable")
	}
	if !suitableRestartCounter(stored, 6) {
		t.Fatal("newer restart counter should be suitable")
	}
}

func TestSuitableTx(t *testing.T) {
	stored := &domain.NeighbourNode{RestartCounter: 5, EventsTx: map[domain.EventCode]uint64{domain.EventAlive: 10}}
	if suitableTx(stored, domain.EventAlive, 5, 10) {
		t.Fatal("equal tx should not be suitable")
	}
	if !suitableTx(stored, domain.EventAlive, 5, 11) {
		t.Fatal("newer tx at same restart should be suitable")
	}
	if !suitableTx(stored, domain.EventAlive, 6, 0) {
		t.Fatal("newer restart with tx 0 should be suitable")
	}
	if suitableTx(stored, domain.EventAlive, 4, 999) {
		t.Fatal("older restart should not be suitable regardless of tx")
	}
}

func TestSuitableIncarnation_NilStoredAlwaysSuitable(t *testing.T) {
	if !suitableIncarnation(nil, domain.EventAlive, 0, 0) {
		t.Fatal("unknown neighbour should always be suitable")
	}
}

func TestOldestByUpdatedAt(t *testing.T) {
	n := testNode(t, 8)
	old := uuid.New()
	newer := uuid.New()
	_ = n.Upsert(&domain.NeighbourNode{ID: old, Host: "h", Port: 1, Status: domain.StatusAlive})
	time.Sleep(2 * time.Millisecond)
	_ = n.Upsert(&domain.NeighbourNode{ID: newer, Host: "h", Port: 2, Status: domain.StatusAlive})

	got := n.OldestByUpdatedAt(domain.StatusAlive)
	if got == nil || got.ID != old {
		t.Fatalf("OldestByUpdatedAt() = %+v, want id=%s", got, old)
	}
}

func TestNeighboursByStatus(t *testing.T) {
	n := testNode(t, 8)
	alive, suspect := uuid.New(), uuid.New()
	_ = n.Upsert(&domain.NeighbourNode{ID: alive, Host: "h", Port: 1, Status: domain.StatusAlive})
	_ = n.Upsert(&domain.NeighbourNode{ID: suspect, Host: "h", Port: 2, Status: domain.StatusSuspect})

	got := n.NeighboursByStatus(domain.StatusSuspect)
	if len(got) != 1 || got[0].ID != suspect {
		t.Fatalf("NeighboursByStatus(suspect) = %+v", got)
	}
}
