package swim

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/crypto"
	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
	"github.com/coreswim/swim/internal/wire"
)

// onDatagram is the Transport callback: decrypt, decode, and dispatch
// every event in one inbound frame (§4.2, §4.9). A frame that fails to
// decrypt or decode at the top level is dropped whole; a single
// malformed or unrecognized event inside an otherwise good frame is
// skipped without discarding its neighbours (§7).
func (n *Node) onDatagram(frame []byte, fromHost string, fromPort uint16) {
	payload, err := crypto.Decrypt(frame, n.key)
	if err != nil {
		n.emitDiag("bad_frame", map[string]any{"from": fromHost, "error": err.Error()})
		return
	}

	result, err := wire.Decode(payload)
	if err != nil {
		n.emitDiag("bad_frame", map[string]any{"from": fromHost, "error": err.Error()})
		return
	}

	skipped := result.UnknownCount + result.MalformedCount
	if skipped > 0 {
		n.mu.Lock()
		for i := 0; i < skipped; i++ {
			n.incTxLocked()
		}
		n.mu.Unlock()
		n.emitDiag("skipped_events", map[string]any{"unknown": result.UnknownCount, "malformed": result.MalformedCount})
	}

	for _, ev := range result.Events {
		n.dispatch(ev)
	}
}

// dispatch routes one decoded event to its handler, bumping tx exactly
// once per event processed regardless of outcome (§4.4, §5).
func (n *Node) dispatch(ev event.Event) {
	n.mu.Lock()
	selfAlive := n.status == domain.StatusAlive || n.status == domain.StatusJoin
	if !selfAlive {
		n.incTxLocked()
	}
	n.mu.Unlock()
	if !selfAlive {
		return
	}

	// These handlers only bump tx for the events they send; their
	// inbound bump is made here.
	switch ev.(type) {
	case event.Ping, event.Ack, event.IndirectPing, event.IndirectAck:
		n.mu.Lock()
		n.incTxLocked()
		n.mu.Unlock()
	}

	switch e := ev.(type) {
	case event.Ping:
		n.handlePing(e)
	case event.Ack:
		n.handleAck(e)
	case event.IndirectPing:
		n.handleIndirectPing(e)
	case event.IndirectAck:
		n.handleIndirectAck(e)
	case event.Join:
		n.handleJoin(e)
	case event.Alive:
		n.handleAlive(e)
	case event.Suspect:
		n.handleSuspect(e)
	case event.Dead:
		n.handleDead(e)
	case event.Left:
		n.handleLeft(e)
	case event.Payload:
		n.handlePayload(e)
	case event.NewClusterSize:
		n.handleNewClusterSize(e)
	case event.AntiEntropy:
		n.handleAntiEntropy(e)
	case event.Probe:
		n.handleProbe(e)
	case event.ProbeAck:
		n.handleProbeAck(e)
	default:
		n.mu.Lock()
		n.incTxLocked()
		n.mu.Unlock()
	}
}

// touchSenderLocked records that sender was just heard from at
// (restart, tx) for the given event code, upserting it as alive if it
// is new or stale (§4.5, §4.9). Must be called with mu held. Returns
// false if sender is this node itself or the observation is stale.
func (n *Node) touchSenderLocked(sender uuid.UUID, host string, port uint16, restart uint64, tx uint64, code domain.EventCode) bool {
	if sender == n.id {
		return false
	}
	if !n.suitableIncarnationLocked(sender, code, restart, tx) {
		return false
	}
	nb, known := n.neighbours[sender]
	if !known {
		nb = &domain.NeighbourNode{ID: sender, EventsTx: make(map[domain.EventCode]uint64)}
	} else {
		nb = nb.Clone()
	}
	nb.Host = host
	nb.Port = port
	nb.RestartCounter = restart
	if nb.EventsTx == nil {
		nb.EventsTx = make(map[domain.EventCode]uint64)
	}
	nb.EventsTx[code] = tx
	if nb.Status != domain.StatusAlive {
		nb.Status = domain.StatusAlive
	}
	return n.upsertLocked(nb) == nil
}

// handlePing answers a direct probe addressed to this node (§4.8). A
// sender that is unknown or stale gets Dead(sender) back instead of an
// Ack (§4.9).
func (n *Node) handlePing(p event.Ping) {
	if p.NeighbourID != n.id {
		return // not addressed to us; a relay scenario uses IndirectPing instead
	}

	n.mu.Lock()
	existing, known := n.neighbours[p.ID]
	fresh := n.suitableIncarnationLocked(p.ID, domain.EventPing, p.RestartCounter, p.Tx)
	if !known || !fresh {
		dead := event.Dead{
			ID:                      n.id,
			RestartCounter:          n.restartCounter,
			Tx:                      n.incTxLocked(),
			NeighbourID:             p.ID,
			NeighbourRestartCounter: p.RestartCounter,
			NeighbourTx:             p.Tx,
		}
		if known {
			dead.NeighbourRestartCounter = existing.RestartCounter
			dead.NeighbourTx = existing.TxFor(domain.EventDead)
		}
		n.mu.Unlock()
		_ = n.sendPiggybacked(p.Host, p.Port, []event.Event{dead})
		return
	}

	n.touchSenderLocked(p.ID, p.Host, p.Port, p.RestartCounter, p.Tx, domain.EventPing)
	nb := n.neighbours[p.ID]
	var neighbourTx uint64
	if nb != nil {
		neighbourTx = nb.TxFor(domain.EventAlive)
	}
	ack := event.Ack{
		ID:             n.id,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		NeighbourID:    p.ID,
		NeighbourTx:    neighbourTx,
		AttemptNumber:  p.AttemptNumber,
		TS:             p.TS,
	}
	n.mu.Unlock()

	_ = n.sendPiggybacked(p.Host, p.Port, []event.Event{ack})
}

// handleIndirectPing relays a probe on behalf of the original requester
// (§4.8, §4.9). The relay pings the real target under its own identity
// so the target's Ack routes back here, then turns that Ack (or a
// timeout) into an IndirectAck for the original requester.
func (n *Node) handleIndirectPing(p event.IndirectPing) {
	if p.IntermediateID != n.id {
		return // we are neither the requester nor the chosen relay
	}

	key := pingKey{NeighbourID: p.NeighbourID, TS: p.TS}

	n.mu.Lock()
	relayedFromUs := event.Ping{
		ID:             n.id,
		Host:           n.host,
		Port:           n.port,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		NeighbourID:    p.NeighbourID,
		AttemptNumber:  p.AttemptNumber,
		TS:             p.TS,
	}
	n.relayedPings[key] = &relayedPing{
		request: p,
		timer:   time.AfterFunc(n.cfg.AckTimeout, func() { n.onRelayTimeout(key) }),
	}
	n.mu.Unlock()

	_ = n.sendPiggybacked(p.NeighbourHost, p.NeighbourPort, []event.Event{relayedFromUs})
}

// onRelayTimeout fires when the real target never acked a forwarded
// ping; the relay reports it as suspect to the original requester.
func (n *Node) onRelayTimeout(key pingKey) {
	n.mu.Lock()
	r, ok := n.relayedPings[key]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.relayedPings, key)
	n.mu.Unlock()
	n.replyIndirectAck(r.request, domain.StatusSuspect)
}

// replyIndirectAck sends the relay's verdict on the probed neighbour
// (named by the ack's ID) back to the original requester (§4.8).
func (n *Node) replyIndirectAck(p event.IndirectPing, status domain.NodeStatus) {
	n.mu.Lock()
	ack := event.IndirectAck{
		ID:             p.NeighbourID,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		NeighbourID:    p.ID,
		NeighbourTx:    p.Tx,
		NeighbourHost:  p.NeighbourHost,
		NeighbourPort:  p.NeighbourPort,
		IntermediateID: n.id,
		SenderStatus:   status,
		AttemptNumber:  p.AttemptNumber,
		TS:             p.TS,
	}
	n.mu.Unlock()
	_ = n.sendPiggybacked(p.Host, p.Port, []event.Event{ack})
}

// handleJoin admits a new node into the neighbour table and answers
// with an Alive confirming its own identity (§4.9). A joiner that is
// known but stale, or that would push the table past cluster_size, gets
// Dead(sender) back instead and is not inserted (§4.9, S5).
func (n *Node) handleJoin(j event.Join) {
	if j.ID == n.id {
		return
	}
	n.mu.Lock()
	n.incTxLocked()

	existing, known := n.neighbours[j.ID]
	if known && j.RestartCounter < existing.RestartCounter {
		dead := event.Dead{
			ID:                      n.id,
			RestartCounter:          n.restartCounter,
			Tx:                      n.incTxLocked(),
			NeighbourID:             j.ID,
			NeighbourRestartCounter: existing.RestartCounter,
			NeighbourTx:             existing.TxFor(domain.EventDead),
		}
		n.mu.Unlock()
		n.emitDiag("join_received", map[string]any{"neighbour": j.ID.String(), "accepted": false, "reason": "stale_restart_counter"})
		_ = n.sendPiggybacked(j.Host, j.Port, []event.Event{dead})
		return
	}

	err := n.upsertLocked(&domain.NeighbourNode{
		ID:             j.ID,
		Host:           j.Host,
		Port:           j.Port,
		Status:         domain.StatusAlive,
		Access:         domain.AccessDirect,
		RestartCounter: j.RestartCounter,
		EventsTx:       map[domain.EventCode]uint64{domain.EventJoin: j.Tx},
	})
	if err != nil {
		dead := event.Dead{
			ID:                      n.id,
			RestartCounter:          n.restartCounter,
			Tx:                      n.incTxLocked(),
			NeighbourID:             j.ID,
			NeighbourRestartCounter: j.RestartCounter,
			NeighbourTx:             j.Tx,
		}
		n.mu.Unlock()
		n.emitDiag("join_received", map[string]any{"neighbour": j.ID.String(), "accepted": false, "reason": err.Error()})
		_ = n.sendPiggybacked(j.Host, j.Port, []event.Event{dead})
		return
	}

	reply := event.Alive{
		ID:                      n.id,
		RestartCounter:          n.restartCounter,
		Tx:                      n.incTxLocked(),
		NeighbourID:             n.id,
		NeighbourRestartCounter: n.restartCounter,
		NeighbourTx:             n.tx,
		NeighbourHost:           n.host,
		NeighbourPort:           n.port,
	}
	n.putEventLocked(event.Alive{
		ID: n.id, RestartCounter: n.restartCounter, Tx: n.tx,
		NeighbourID: j.ID, NeighbourRestartCounter: j.RestartCounter, NeighbourTx: j.Tx,
		NeighbourHost: j.Host, NeighbourPort: j.Port,
	})
	n.putEventLocked(event.NewClusterSize{
		ID: n.id, RestartCounter: n.restartCounter, Tx: n.incTxLocked(),
		OldSize: n.cluster.ClusterSize, NewSize: n.cluster.ClusterSize,
	})
	n.mu.Unlock()

	// The anti-entropy snapshot toward the joiner rides along for free:
	// sendPiggybacked always drains the outgoing queue and appends one.
	n.emitDiag("join_received", map[string]any{"neighbour": j.ID.String(), "accepted": true})
	_ = n.sendPiggybacked(j.Host, j.Port, []event.Event{reply})
}

// handleAlive applies a freshness-gated liveness observation about some
// third neighbour (§4.5, §4.9).
func (n *Node) handleAlive(a event.Alive) {
	if a.NeighbourID == n.id {
		n.mu.Lock()
		n.incTxLocked()
		n.mu.Unlock()
		n.confirmJoin()
		return // a peer is confirming our own membership
	}
	n.mu.Lock()
	n.incTxLocked()
	if n.suitableIncarnationLocked(a.NeighbourID, domain.EventAlive, a.NeighbourRestartCounter, a.NeighbourTx) {
		nb, known := n.neighbours[a.NeighbourID]
		if known {
			nb = nb.Clone()
		} else {
			nb = &domain.NeighbourNode{ID: a.NeighbourID, EventsTx: make(map[domain.EventCode]uint64)}
		}
		nb.Host = a.NeighbourHost
		nb.Port = a.NeighbourPort
		nb.RestartCounter = a.NeighbourRestartCounter
		nb.Status = domain.StatusAlive
		if nb.EventsTx == nil {
			nb.EventsTx = make(map[domain.EventCode]uint64)
		}
		nb.EventsTx[domain.EventAlive] = a.NeighbourTx
		if n.upsertLocked(nb) == nil {
			n.putEventLocked(a)
		}
	}
	n.mu.Unlock()
}

// handleSuspect records the observation but does not forward it
// further (§4.9, §9 open question; see event.Suspect).
func (n *Node) handleSuspect(s event.Suspect) {
	n.mu.Lock()
	n.incTxLocked()
	if s.NeighbourID != n.id && n.suitableIncarnationLocked(s.NeighbourID, domain.EventSuspect, s.NeighbourRestartCounter, s.NeighbourTx) {
		if nb, ok := n.neighbours[s.NeighbourID]; ok {
			nb.Status = domain.StatusSuspect
			nb.UpdatedAt = time.Now()
			if nb.EventsTx == nil {
				nb.EventsTx = make(map[domain.EventCode]uint64)
			}
			nb.EventsTx[domain.EventSuspect] = s.NeighbourTx
		}
	}
	n.mu.Unlock()
}

// handleDead applies a dead declaration. If it names this node and the
// sender checks out, this node transitions to left rather than
// disbelieving the message (§4.9); a stale sender is disbelieved.
// Otherwise a known sender is refreshed as alive (event.Dead carries no
// host/port, so an unknown sender is not inserted and is otherwise
// ignored) and, if the target's incarnation still matches or is older,
// marked dead and propagated.
func (n *Node) handleDead(d event.Dead) {
	if d.NeighbourID == n.id {
		n.mu.Lock()
		n.incTxLocked()
		if !n.suitableIncarnationLocked(d.ID, domain.EventDead, d.RestartCounter, d.Tx) {
			n.mu.Unlock()
			return
		}
		n.status = domain.StatusLeft
		n.mu.Unlock()
		n.notifyStatusChange(domain.StatusAlive, domain.StatusLeft)
		if n.cfg.RejoinIfDead {
			n.triggerRejoin()
		}
		return
	}
	n.mu.Lock()
	n.incTxLocked()
	if sender, ok := n.neighbours[d.ID]; ok && n.suitableIncarnationLocked(d.ID, domain.EventDead, d.RestartCounter, d.Tx) {
		sender.RestartCounter = d.RestartCounter
		sender.Status = domain.StatusAlive
		sender.UpdatedAt = time.Now()
		if sender.EventsTx == nil {
			sender.EventsTx = make(map[domain.EventCode]uint64)
		}
		sender.EventsTx[domain.EventDead] = d.Tx
	}
	if n.suitableIncarnationLocked(d.NeighbourID, domain.EventDead, d.NeighbourRestartCounter, d.NeighbourTx) {
		if nb, ok := n.neighbours[d.NeighbourID]; ok {
			nb.Status = domain.StatusDead
			nb.UpdatedAt = time.Now()
			if nb.EventsTx == nil {
				nb.EventsTx = make(map[domain.EventCode]uint64)
			}
			nb.EventsTx[domain.EventDead] = d.NeighbourTx
			n.putEventLocked(d)
		}
	}
	n.mu.Unlock()
}

// handleLeft applies a voluntary-departure announcement (§4.9, §4.10).
func (n *Node) handleLeft(l event.Left) {
	n.mu.Lock()
	n.incTxLocked()
	if nb, ok := n.neighbours[l.ID]; ok && l.RestartCounter >= nb.RestartCounter {
		nb.Status = domain.StatusLeft
		nb.UpdatedAt = time.Now()
		n.putEventLocked(l)
	}
	n.mu.Unlock()
}

// handlePayload records a neighbour's latest opaque application payload
// (§3, §4.9) and invokes the user's incoming callback if one is set.
func (n *Node) handlePayload(p event.Payload) {
	n.mu.Lock()
	n.incTxLocked()
	if nb, ok := n.neighbours[p.ID]; ok && n.suitableIncarnationLocked(p.ID, domain.EventPayload, p.RestartCounter, p.Tx) {
		nb.Payload = append([]byte(nil), p.Data...)
		if nb.EventsTx == nil {
			nb.EventsTx = make(map[domain.EventCode]uint64)
		}
		nb.EventsTx[domain.EventPayload] = p.Tx
		n.putEventLocked(p)
	}
	cb := n.incomingCb
	n.mu.Unlock()

	if cb != nil {
		cb(p.Data)
	}
}

// handleNewClusterSize applies an administrative cluster-size change
// (§4.9). OldSize is informational only. A size that would drop below
// the number of nodes already known is rejected outright, since
// admitting it would make every future upsert fail cluster_size_exceed
// (§3 invariant 1); otherwise the new ceiling wins and the event
// propagates.
func (n *Node) handleNewClusterSize(c event.NewClusterSize) {
	n.mu.Lock()
	n.incTxLocked()
	if c.NewSize >= n.nodesInClusterLocked() {
		n.cluster.ClusterSize = c.NewSize
		n.putEventLocked(c)
	}
	n.mu.Unlock()
}

// handleAntiEntropy merges a sampled snapshot of the sender's neighbour
// table, applying each item only if it is fresher than what is already
// known (§4.5, §4.6).
func (n *Node) handleAntiEntropy(ae event.AntiEntropy) {
	n.mu.Lock()
	n.incTxLocked()
	for _, item := range ae.Data {
		if item.ID == n.id {
			continue
		}
		maxTx := uint64(0)
		for _, tx := range item.EventsTx {
			if tx > maxTx {
				maxTx = tx
			}
		}
		if !n.suitableIncarnationLocked(item.ID, domain.EventAntiEntropy, item.RestartCounter, maxTx) {
			continue
		}
		nb := domain.FromAntiEntropyItem(item, time.Now())
		_ = n.upsertLocked(nb)
	}
	n.mu.Unlock()
}

// handleProbe answers a pre-join liveness check without adding the
// prober as a neighbour (§4.9, GLOSSARY).
func (n *Node) handleProbe(p event.Probe) {
	n.mu.Lock()
	n.incTxLocked()
	ack := event.ProbeAck{
		ID:             n.id,
		RestartCounter: n.restartCounter,
		Tx:             n.tx,
		NeighbourID:    p.ID,
		Host:           n.host,
		Port:           n.port,
		Status:         n.status,
		ProbeKey:       p.ProbeKey,
	}
	n.mu.Unlock()
	_ = n.sendTo(p.Host, p.Port, []event.Event{ack})
}

// handleProbeAck accepts a ProbeAck only if it answers a probe key this
// node actually issued and is addressed back to this node (§4.9).
func (n *Node) handleProbeAck(a event.ProbeAck) {
	n.mu.Lock()
	n.incTxLocked()
	if a.NeighbourID != n.id {
		n.mu.Unlock()
		return
	}
	_, outstanding := n.probeEvents[a.ProbeKey]
	if outstanding {
		n.probeEvents[a.ProbeKey] = &a
	}
	n.mu.Unlock()
}

// notifyStatusChange invokes the user's status callback outside the
// lock, if one is registered (§4.10).
func (n *Node) notifyStatusChange(old, new domain.NodeStatus) {
	n.mu.Lock()
	cb := n.userCb
	n.mu.Unlock()
	if cb != nil {
		cb(old, new)
	}
}
