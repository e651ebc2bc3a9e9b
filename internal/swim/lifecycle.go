package swim

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

// Start binds the node's UDP socket and begins the ping heartbeat loop
// (§4.10). user_cb, if non-nil, is invoked on every self status
// transition; incoming_cb, if non-nil, is invoked with every inbound
// Payload's Data.
func (n *Node) Start(userCb func(old, new domain.NodeStatus), incomingCb func(payload []byte)) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return fmt.Errorf("%w: a stopped node cannot be restarted", domain.ErrAlreadyStarted)
	}
	if n.status != domain.StatusStop {
		n.mu.Unlock()
		return fmt.Errorf("%w: node is already started", domain.ErrAlreadyStarted)
	}
	n.userCb = userCb
	n.incomingCb = incomingCb
	n.status = domain.StatusJoin
	n.mu.Unlock()

	t, err := listenUDP(net.JoinHostPort(n.host, strconv.Itoa(int(n.port))), n.onDatagram)
	if err != nil {
		n.mu.Lock()
		n.status = domain.StatusStop
		n.mu.Unlock()
		return err
	}

	n.mu.Lock()
	n.transport = t
	n.closed = false
	ctx, cancel := context.WithCancel(context.Background())
	n.heartbeatCtl = cancel
	n.mu.Unlock()

	go n.heartbeatLoop(ctx)

	n.emitDiag("started", map[string]any{"addr": t.LocalAddr()})
	return nil
}

// heartbeatLoop drives one ping_heartbeat tick per period, probing the
// next round's worth of neighbours each time (§4.7, §4.8, §4.10).
func (n *Node) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.PingHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.mu.Lock()
			alive := n.status == domain.StatusAlive
			n.mu.Unlock()
			if !alive {
				continue
			}
			for _, id := range n.NextRound() {
				n.probeNeighbour(id)
			}
		}
	}
}

// Join contacts contactHost:contactPort and waits up to max_join_time
// for that peer to confirm membership (§4.9, §4.10, S1).
func (n *Node) Join(ctx context.Context, contactHost string, contactPort uint16) error {
	n.mu.Lock()
	if n.transport == nil {
		n.mu.Unlock()
		return fmt.Errorf("%w: Start must be called before Join", domain.ErrNotAlive)
	}
	join := event.Join{
		ID:             n.id,
		RestartCounter: n.restartCounter,
		Tx:             n.incTxLocked(),
		Host:           n.host,
		Port:           n.port,
	}
	n.mu.Unlock()

	sub := n.subscribeStatus()
	defer n.unsubscribeStatus(sub)

	if err := n.sendTo(contactHost, contactPort, []event.Event{join}); err != nil {
		return err
	}

	deadline := time.NewTimer(n.cfg.MaxJoinTime)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: no join confirmation within max_join_time", domain.ErrTimeout)
		case <-sub:
			n.mu.Lock()
			status := n.status
			n.mu.Unlock()
			if status == domain.StatusAlive {
				return nil
			}
		}
	}
}

// confirmJoin is called once this node has direct evidence it has been
// admitted (an Alive event addressed to itself, §4.9): it flips this
// node's own status to alive and wakes any Join waiter.
func (n *Node) confirmJoin() {
	n.mu.Lock()
	if n.status != domain.StatusJoin {
		n.mu.Unlock()
		return
	}
	n.status = domain.StatusAlive
	n.mu.Unlock()
	n.notifyStatusChange(domain.StatusJoin, domain.StatusAlive)
	n.broadcastStatus()
}

// Leave announces a voluntary departure and ends probing (the heartbeat
// loop keeps ticking but only probes while the node is alive), and
// leaves the socket open so a final Left frame and any in-flight replies
// can still flow (§4.10).
func (n *Node) Leave() error {
	n.mu.Lock()
	if n.status != domain.StatusAlive && n.status != domain.StatusSuspect {
		n.mu.Unlock()
		return fmt.Errorf("%w: node is not alive", domain.ErrNotAlive)
	}
	left := event.Left{ID: n.id, RestartCounter: n.restartCounter, Tx: n.incTxLocked()}
	n.status = domain.StatusLeft
	peers := n.neighboursLocked()
	n.mu.Unlock()

	n.notifyStatusChange(domain.StatusAlive, domain.StatusLeft)

	for _, nb := range peers {
		if nb.Status == domain.StatusAlive {
			_ = n.sendTo(nb.Host, nb.Port, []event.Event{left})
		}
	}
	return nil
}

// Stop halts the heartbeat loop, any rejoin watcher, and closes the
// socket. A stopped Node cannot be restarted; construct a new one
// instead (§4.10).
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	heartbeatCtl := n.heartbeatCtl
	rejoinCtl := n.rejoinCtl
	t := n.transport
	n.status = domain.StatusStop
	for _, p := range n.pingEvents {
		p.timer.Stop()
	}
	for _, p := range n.indirectPingEvents {
		p.timer.Stop()
	}
	for _, r := range n.relayedPings {
		r.timer.Stop()
	}
	n.mu.Unlock()

	if heartbeatCtl != nil {
		heartbeatCtl()
	}
	if rejoinCtl != nil {
		rejoinCtl()
	}
	if t != nil {
		return t.Close()
	}
	return nil
}

// Probe sends a pre-join one-shot liveness check to host:port and waits
// up to ack_timeout for a ProbeAck (§4.9, GLOSSARY).
func (n *Node) Probe(ctx context.Context, host string, port uint16) (*event.ProbeAck, error) {
	key := uuid.New()
	n.mu.Lock()
	n.probeEvents[key] = nil
	probe := event.Probe{ID: n.id, Host: n.host, Port: n.port, ProbeKey: key}
	n.mu.Unlock()

	if err := n.sendTo(host, port, []event.Event{probe}); err != nil {
		n.mu.Lock()
		delete(n.probeEvents, key)
		n.mu.Unlock()
		return nil, err
	}

	timeout := time.NewTimer(n.cfg.AckTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			delete(n.probeEvents, key)
			n.mu.Unlock()
			return nil, ctx.Err()
		case <-timeout.C:
			n.mu.Lock()
			delete(n.probeEvents, key)
			n.mu.Unlock()
			return nil, fmt.Errorf("%w: no probe ack within ack_timeout", domain.ErrTimeout)
		case <-poll.C:
			n.mu.Lock()
			ack := n.probeEvents[key]
			n.mu.Unlock()
			if ack != nil {
				n.mu.Lock()
				delete(n.probeEvents, key)
				n.mu.Unlock()
				return ack, nil
			}
		}
	}
}

// subscribeStatus registers a channel that receives a notification on
// every self status transition.
func (n *Node) subscribeStatus() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.statusSubs = append(n.statusSubs, ch)
	n.mu.Unlock()
	return ch
}

// unsubscribeStatus removes a channel registered by subscribeStatus.
func (n *Node) unsubscribeStatus(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.statusSubs {
		if s == ch {
			n.statusSubs = append(n.statusSubs[:i], n.statusSubs[i+1:]...)
			return
		}
	}
}

// broadcastStatus wakes every registered status subscriber.
func (n *Node) broadcastStatus() {
	n.mu.Lock()
	subs := append([]chan struct{}(nil), n.statusSubs...)
	n.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// triggerRejoin starts a background watcher that retries Join against
// the oldest known alive neighbour, up to rejoin_max_attempts, after
// this node has been declared dead by a peer (§4.10, §6).
func (n *Node) triggerRejoin() {
	n.mu.Lock()
	if n.rejoinCtl != nil {
		n.mu.Unlock()
		return // a rejoin watcher is already running
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.rejoinCtl = cancel
	n.mu.Unlock()

	go n.rejoinWatcher(ctx)
}

// rejoinWatcher implements the retry loop started by triggerRejoin.
func (n *Node) rejoinWatcher(ctx context.Context) {
	defer func() {
		n.mu.Lock()
		n.rejoinCtl = nil
		n.mu.Unlock()
	}()

	for attempt := 1; attempt <= n.cfg.RejoinMaxAttempts; attempt++ {
		contact := n.OldestByUpdatedAt(domain.StatusAlive)
		if contact == nil {
			return // no known peer left to rejoin through
		}

		n.mu.Lock()
		n.restartCounter++
		n.tx = 0
		n.status = domain.StatusJoin
		n.mu.Unlock()

		joinCtx, cancel := context.WithTimeout(ctx, n.cfg.MaxJoinTime)
		err := n.Join(joinCtx, contact.Host, contact.Port)
		cancel()
		if err == nil {
			n.emitDiag("rejoined", map[string]any{"attempt": attempt, "via": contact.ID.String()})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(n.cfg.AckTimeout):
		}
	}
	n.emitDiag("rejoin_exhausted", map[string]any{"attempts": n.cfg.RejoinMaxAttempts})
}
