// Package swim implements C4 through C10: the single-owner node state
// machine, neighbour-table operations, dissemination, the ping-round
// planner, the failure detector, the event processor, and lifecycle
// management for one SWIM node.
package swim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
)

// pingKey identifies one outstanding direct or indirect ping attempt
// (§3): the neighbour being probed and the ts of the Ping that started
// the attempt.
type pingKey struct {
	NeighbourID uuid.UUID
	TS          int64
}

// outstandingPing tracks one entry of ping_events or
// indirect_ping_events (§3, §4.8).
type outstandingPing struct {
	ping  event.Ping            // the direct Ping this attempt sent
	relay *domain.NeighbourNode // set only for indirect_ping_events: the chosen relay
	timer *time.Timer
}

// relayedPing tracks one IndirectPing this node is relaying on behalf of
// another node, so the eventual Ack (or a timeout) can be turned into
// an IndirectAck back to the original requester (§4.8 step 3).
type relayedPing struct {
	request event.IndirectPing
	timer   *time.Timer
}

// Node is the single-owner membership state machine for one process
// (§3). All reads return consistent snapshots; all writes go through mu
// (§5).
type Node struct {
	mu sync.Mutex

	cluster *domain.Cluster
	cfg     Config
	diag    domain.DiagSink
	key     [32]byte

	id   uuid.UUID
	host string
	port uint16

	restartCounter uint64
	tx             uint64
	status         domain.NodeStatus
	payload        []byte

	neighbours map[uuid.UUID]*domain.NeighbourNode

	pingEvents         map[pingKey]*outstandingPing
	indirectPingEvents map[pingKey]*outstandingPing
	probeEvents        map[uuid.UUID]*event.ProbeAck
	relayedPings       map[pingKey]*relayedPing

	outgoing []event.Event

	roundBuffer []uuid.UUID

	transport Transport

	// Lifecycle / coordination, see lifecycle.go.
	statusSubs   []chan struct{}
	heartbeatCtl context.CancelFunc
	rejoinCtl    context.CancelFunc
	userCb       func(old, new domain.NodeStatus)
	incomingCb   func(payload []byte)
	closed       bool
}

// Params collects the arguments needed to construct a Node.
type Params struct {
	Cluster *domain.Cluster
	Config  Config
	Diag    domain.DiagSink
	ID      uuid.UUID
	Host    string
	Port    uint16
}

// NewNode constructs a Node in the stop state. It does not bind any
// socket; Start does that (§4.10).
func NewNode(p Params) (*Node, error) {
	if p.Cluster == nil {
		return nil, fmt.Errorf("%w: cluster is required", domain.ErrValidation)
	}
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: node id is required", domain.ErrValidation)
	}
	if p.Port == 0 {
		return nil, fmt.Errorf("%w: port must be 1-65535", domain.ErrValidation)
	}

	diag := p.Diag
	if diag == nil {
		diag = domain.NopDiagSink{}
	}

	n := &Node{
		cluster:            p.Cluster,
		cfg:                p.Config,
		diag:               diag,
		key:                p.Cluster.SecretKey(),
		id:                 p.ID,
		host:                p.Host,
		port:               p.Port,
		status:             domain.StatusStop,
		neighbours:         make(map[uuid.UUID]*domain.NeighbourNode),
		pingEvents:         make(map[pingKey]*outstandingPing),
		indirectPingEvents: make(map[pingKey]*outstandingPing),
		probeEvents:        make(map[uuid.UUID]*event.ProbeAck),
		relayedPings:       make(map[pingKey]*relayedPing),
	}
	return n, nil
}

// ─── Getters ────────────────────────────────────────────────────────────────

// ID returns the node's own id.
func (n *Node) ID() uuid.UUID { return n.id }

// Host returns the node's own bind host.
func (n *Node) Host() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.host
}

// Port returns the node's own bind port.
func (n *Node) Port() uint16 { return n.port }

// Status returns the node's current lifecycle status.
func (n *Node) Status() domain.NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// RestartCounter returns the node's current restart counter.
func (n *Node) RestartCounter() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.restartCounter
}

// Tx returns the node's current tx counter.
func (n *Node) Tx() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tx
}

// Incarnation returns the node's own current (restart_counter, tx) pair.
func (n *Node) Incarnation() domain.Incarnation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return domain.Incarnation{RestartCounter: n.restartCounter, Tx: n.tx}
}

// Cluster returns the cluster this node belongs to.
func (n *Node) Cluster() *domain.Cluster { return n.cluster }

// Config returns the node's tunable configuration.
func (n *Node) Config() Config { return n.cfg }

// Payload returns a copy of the node's own opaque payload.
func (n *Node) Payload() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]byte(nil), n.payload...)
}

// SetPayload sets the node's own opaque payload after validating its size
// (§4.4, §7).
func (n *Node) SetPayload(payload []byte) error {
	if len(payload) > n.cfg.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds max_payload_size=%d", domain.ErrOversizedPayload, len(payload), n.cfg.MaxPayloadSize)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payload = append([]byte(nil), payload...)
	return nil
}

// NodesInCluster returns 1 (self) plus the current neighbour count
// (invariant 1, §3).
func (n *Node) NodesInCluster() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodesInClusterLocked()
}

func (n *Node) nodesInClusterLocked() int {
	return 1 + len(n.neighbours)
}

// incTxLocked increments tx by exactly one; must be called with mu held.
// It is invoked exactly once per outgoing event built and once per
// inbound event processed (§4.4, §5), including unknown/ignored events.
func (n *Node) incTxLocked() uint64 {
	n.tx++
	return n.tx
}

// emitDiag forwards a diagnostic record to the configured sink if
// enabled (§6).
func (n *Node) emitDiag(cmd string, data map[string]any) {
	if !n.cfg.EnableDiagTap {
		return
	}
	n.diag.Emit(domain.DiagRecord{Cmd: cmd, TS: time.Now(), NodeID: n.id, Data: data})
}
