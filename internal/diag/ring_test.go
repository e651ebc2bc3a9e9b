package diag

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

func TestRingSink_KeepsInsertionOrderBeforeFull(t *testing.T) {
	s := NewRingSink(4)
	s.Emit(domain.DiagRecord{Cmd: "a", TS: time.Now()})
	s.Emit(domain.DiagRecord{Cmd: "b", TS: time.Now()})

	got := s.Records()
	if len(got) != 2 || got[0].Cmd != "a" || got[1].Cmd != "b" {
		t.Fatalf("Records() = %+v, want [a b]", got)
	}
}

func TestRingSink_OverwritesOldestOnceFull(t *testing.T) {
	s := NewRingSink(3)
	for _, cmd := range []string{"a", "b", "c", "d"} {
		s.Emit(domain.DiagRecord{Cmd: cmd, TS: time.Now(), NodeID: uuid.New()})
	}

	got := s.Records()
	if len(got) != 3 {
		t.Fatalf("Records() len = %d, want 3", len(got))
	}
	want := []string{"b", "c", "d"}
	for i, w := range want {
		if got[i].Cmd != w {
			t.Fatalf("Records()[%d] = %s, want %s", i, got[i].Cmd, w)
		}
	}
}
