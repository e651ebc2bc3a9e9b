// Package diag provides concrete DiagSink implementations: a bounded
// in-memory ring buffer for local inspection and a Prometheus-backed
// sink for production scraping.
package diag

import (
	"log"
	"sync"

	"github.com/coreswim/swim/internal/domain"
)

// RingSink keeps the last N diagnostic records in memory, overwriting
// the oldest once full. Optionally also writes each record through a
// *log.Logger for local runs.
type RingSink struct {
	mu     sync.Mutex
	buf    []domain.DiagRecord
	cap    int
	next   int
	filled bool
	logger *log.Logger
}

// NewRingSink creates a ring buffer holding up to capacity records.
// A capacity of 0 is treated as 1.
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingSink{buf: make([]domain.DiagRecord, capacity), cap: capacity}
}

// WithLogger attaches a *log.Logger that every Emit also writes through.
func (s *RingSink) WithLogger(l *log.Logger) *RingSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
	return s
}

// Emit implements domain.DiagSink.
func (s *RingSink) Emit(rec domain.DiagRecord) {
	s.mu.Lock()
	s.buf[s.next] = rec
	s.next = (s.next + 1) % s.cap
	if s.next == 0 {
		s.filled = true
	}
	logger := s.logger
	s.mu.Unlock()

	if logger != nil {
		logger.Printf("%s node=%s data=%v", rec.Cmd, rec.NodeID, rec.Data)
	}
}

// Records returns a snapshot of all currently buffered records, oldest
// first.
func (s *RingSink) Records() []domain.DiagRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filled {
		out := make([]domain.DiagRecord, s.next)
		copy(out, s.buf[:s.next])
		return out
	}
	out := make([]domain.DiagRecord, s.cap)
	copy(out, s.buf[s.next:])
	copy(out[s.cap-s.next:], s.buf[:s.next])
	return out
}
