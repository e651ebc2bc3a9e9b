package domain

import (
	"time"

	"github.com/google/uuid"
)

// DiagRecord is one structured diagnostic event (§6): the only shape the
// external diagnostic tap contract requires.
type DiagRecord struct {
	Cmd    string
	TS     time.Time
	NodeID uuid.UUID
	Data   map[string]any
}

// DiagSink is the fire-and-forget diagnostic tap contract. The tap/
// telemetry sink itself is an external collaborator (§1); core code only
// depends on this interface. Implementations MAY no-op when disabled and
// MUST NOT block the caller.
type DiagSink interface {
	Emit(rec DiagRecord)
}

// NopDiagSink discards every record. Used as the default when a node is
// constructed without an explicit sink.
type NopDiagSink struct{}

// Emit implements DiagSink.
func (NopDiagSink) Emit(DiagRecord) {}
