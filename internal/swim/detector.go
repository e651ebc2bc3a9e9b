package swim

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

// probeNeighbour starts a direct-ping attempt cycle against id (§4.8).
// It is the entry point the heartbeat loop calls once per round member.
// A neighbour already being probed (an outstanding ping_events entry
// still pending) is left alone; the existing attempt runs to its own
// timeout.
func (n *Node) probeNeighbour(id uuid.UUID) {
	n.mu.Lock()
	nb, ok := n.neighbours[id]
	if !ok || nb.Status == domain.StatusDead || nb.Status == domain.StatusLeft {
		n.mu.Unlock()
		return
	}
	for _, p := range n.pingEvents {
		if p.ping.NeighbourID == id {
			n.mu.Unlock()
			return
		}
	}
	n.mu.Unlock()

	n.sendDirectPing(id, 1)
}

// sendDirectPing builds and sends attempt number attemptNumber of a
// direct Ping to id, arming the ack timer (§4.8).
func (n *Node) sendDirectPing(id uuid.UUID, attemptNumber int) {
	n.mu.Lock()
	nb, ok := n.neighbours[id]
	if !ok || nb.Status == domain.StatusDead {
		n.mu.Unlock()
		return
	}
	ts := time.Now().UnixNano()
	ping := event.Ping{
		ID:             n.id,
		Host:           n.host,
		Port:           n.port,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		NeighbourID:    id,
		AttemptNumber:  attemptNumber,
		TS:             ts,
	}
	key := pingKey{NeighbourID: id, TS: ts}
	n.pingEvents[key] = &outstandingPing{
		ping:  ping,
		timer: time.AfterFunc(n.cfg.AckTimeout, func() { n.onDirectPingTimeout(key) }),
	}
	host, port := nb.Host, nb.Port
	n.mu.Unlock()

	n.emitDiag("ping", map[string]any{"neighbour": id.String(), "attempt": attemptNumber})
	_ = n.sendPiggybacked(host, port, []event.Event{ping})
}

// onDirectPingTimeout fires when a direct ping attempt goes unacked. It
// either retries directly, escalates to indirect probing through
// relays, or declares the neighbour dead, per the attempt thresholds in
// §4.8.
func (n *Node) onDirectPingTimeout(key pingKey) {
	n.mu.Lock()
	outstanding, ok := n.pingEvents[key]
	if !ok {
		n.mu.Unlock()
		return // already acked
	}
	delete(n.pingEvents, key)
	id := key.NeighbourID
	attempt := outstanding.ping.AttemptNumber
	nb, known := n.neighbours[id]
	n.mu.Unlock()
	if !known {
		return
	}

	if attempt < n.cfg.MaxPingWithoutAckBeforeSuspect {
		n.sendDirectPing(id, attempt+1)
		return
	}

	n.transitionStatus(id, domain.StatusSuspect)

	if attempt < n.cfg.MaxPingWithoutAckBeforeDead {
		n.sendIndirectPing(id, attempt+1)
		return
	}

	_ = nb
	n.transitionStatus(id, domain.StatusDead)
}

// sendIndirectPing picks a random relay (uniform choice, §4.8 tie-break
// rule) and asks it to probe id on this node's behalf.
func (n *Node) sendIndirectPing(id uuid.UUID, attemptNumber int) {
	n.mu.Lock()
	nb, ok := n.neighbours[id]
	if !ok {
		n.mu.Unlock()
		return
	}
	relay := n.randomAliveExceptLocked(id)
	if relay == nil {
		// No relay available: fall back to one more direct attempt so the
		// ack-attempt budget still advances toward the dead threshold.
		n.mu.Unlock()
		n.sendDirectPing(id, attemptNumber)
		return
	}

	ts := time.Now().UnixNano()
	directPing := event.Ping{
		ID:             n.id,
		Host:           n.host,
		Port:           n.port,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		NeighbourID:    id,
		AttemptNumber:  attemptNumber,
		TS:             ts,
	}
	ping := event.IndirectPing{
		ID:               directPing.ID,
		Host:             directPing.Host,
		Port:             directPing.Port,
		RestartCounter:   directPing.RestartCounter,
		Tx:               directPing.Tx,
		NeighbourID:      id,
		NeighbourHost:    nb.Host,
		NeighbourPort:    nb.Port,
		IntermediateID:   relay.ID,
		IntermediateHost: relay.Host,
		IntermediatePort: relay.Port,
		AttemptNumber:    attemptNumber,
		TS:               ts,
	}
	key := pingKey{NeighbourID: id, TS: ts}
	n.indirectPingEvents[key] = &outstandingPing{
		ping:  directPing,
		relay: relay,
		timer: time.AfterFunc(n.cfg.AckTimeout, func() { n.onIndirectPingTimeout(key) }),
	}
	relayHost, relayPort := relay.Host, relay.Port
	n.mu.Unlock()

	n.emitDiag("indirect_ping", map[string]any{"neighbour": id.String(), "relay": relay.ID.String(), "attempt": attemptNumber})
	_ = n.sendPiggybacked(relayHost, relayPort, []event.Event{ping})
}

// onIndirectPingTimeout fires when an indirect ping round goes
// unanswered. It escalates exactly as the direct path does (§4.8).
func (n *Node) onIndirectPingTimeout(key pingKey) {
	n.mu.Lock()
	outstanding, ok := n.indirectPingEvents[key]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.indirectPingEvents, key)
	id := key.NeighbourID
	attempt := outstanding.ping.AttemptNumber
	n.mu.Unlock()

	if attempt < n.cfg.MaxPingWithoutAckBeforeDead {
		n.sendIndirectPing(id, attempt+1)
		return
	}
	n.transitionStatus(id, domain.StatusDead)
}

// handleAck closes out a direct ping attempt on receipt of its Ack
// (§4.8: "first ack wins"; any later ack or timeout for the same key is
// a no-op since the entry is already gone). An Ack answering a ping this
// node forwarded on another's behalf closes the relay entry instead and
// reports success upstream.
func (n *Node) handleAck(ack event.Ack) {
	n.mu.Lock()
	for key, outstanding := range n.pingEvents {
		if key.NeighbourID == ack.ID && outstanding.ping.TS == ack.TS {
			outstanding.timer.Stop()
			delete(n.pingEvents, key)
			n.mu.Unlock()
			n.transitionStatus(ack.ID, domain.StatusAlive)
			return
		}
	}
	for key, r := range n.relayedPings {
		if key.NeighbourID == ack.ID && ack.TS == key.TS {
			r.timer.Stop()
			delete(n.relayedPings, key)
			n.mu.Unlock()
			n.replyIndirectAck(r.request, domain.StatusAlive)
			return
		}
	}
	n.mu.Unlock()
}

// handleIndirectAck closes out an indirect ping attempt when the relay's
// IndirectAck arrives, whether the relay reports success or not (§4.8).
func (n *Node) handleIndirectAck(ack event.IndirectAck) {
	n.mu.Lock()
	for key, outstanding := range n.indirectPingEvents {
		if key.NeighbourID == ack.ID && outstanding.ping.TS == ack.TS {
			outstanding.timer.Stop()
			delete(n.indirectPingEvents, key)
			n.mu.Unlock()
			if ack.SenderStatus == domain.StatusAlive {
				n.transitionStatus(ack.ID, domain.StatusAlive)
				n.mu.Lock()
				if nb, ok := n.neighbours[ack.ID]; ok {
					nb.Access = domain.AccessIndirect
				}
				n.mu.Unlock()
			}
			return
		}
	}
	n.mu.Unlock()
}

// transitionStatus changes a neighbour's status, bumping tx for the
// Alive/Suspect/Dead/Left event code it represents and enqueueing the
// corresponding dissemination event (§4.4, §4.6, §4.9). It manages its
// own locking; callers must NOT be holding mu when they call it.
func (n *Node) transitionStatus(id uuid.UUID, status domain.NodeStatus) {
	n.mu.Lock()
	nb, ok := n.neighbours[id]
	if !ok || nb.Status == status {
		n.mu.Unlock()
		return
	}
	old := nb.Status
	nb.Status = status
	nb.UpdatedAt = time.Now()

	code := domain.EventAlive
	switch status {
	case domain.StatusSuspect:
		code = domain.EventSuspect
	case domain.StatusDead:
		code = domain.EventDead
	case domain.StatusLeft:
		code = domain.EventLeft
	}
	if nb.EventsTx == nil {
		nb.EventsTx = make(map[domain.EventCode]uint64)
	}
	nb.EventsTx[code] = n.incTxLocked()

	ev := n.buildTransitionEvent(nb, code)
	n.putEventLocked(ev)
	n.mu.Unlock()

	n.emitDiag("status_change", map[string]any{"neighbour": id.String(), "from": old.String(), "to": status.String()})
}

// buildTransitionEvent constructs the dissemination event that
// announces nb's new status. Must be called with mu held.
func (n *Node) buildTransitionEvent(nb *domain.NeighbourNode, code domain.EventCode) event.Event {
	base := event.Alive{
		ID:                      n.id,
		RestartCounter:          n.restartCounter,
		Tx:                      n.tx,
		NeighbourID:             nb.ID,
		NeighbourRestartCounter: nb.RestartCounter,
		NeighbourTx:             nb.TxFor(code),
		NeighbourHost:           nb.Host,
		NeighbourPort:           nb.Port,
	}
	switch code {
	case domain.EventSuspect:
		return event.Suspect{ID: base.ID, RestartCounter: base.RestartCounter, Tx: base.Tx, NeighbourID: base.NeighbourID, NeighbourRestartCounter: base.NeighbourRestartCounter, NeighbourTx: base.NeighbourTx}
	case domain.EventDead:
		return event.Dead{ID: base.ID, RestartCounter: base.RestartCounter, Tx: base.Tx, NeighbourID: base.NeighbourID, NeighbourRestartCounter: base.NeighbourRestartCounter, NeighbourTx: base.NeighbourTx}
	case domain.EventLeft:
		return event.Left{ID: nb.ID, RestartCounter: nb.RestartCounter, Tx: base.NeighbourTx}
	default:
		return base
	}
}
