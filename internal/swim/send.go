package swim

import (
	"fmt"

	"github.com/coreswim/swim/internal/crypto"
	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/event"
	"github.com/coreswim/swim/internal/wire"
)

// encodeFrame turns events into an encrypted wire frame ready for
// transport (§4.2, §4.3): MessagePack-encode, then AES-GCM seal with the
// cluster's derived key.
func (n *Node) encodeFrame(events []event.Event) ([]byte, error) {
	payload, err := wire.Encode(events)
	if err != nil {
		return nil, err
	}
	frame, err := crypto.Encrypt(payload, n.key)
	if err != nil {
		return nil, err
	}
	if !n.cfg.IgnoreMaxUDPSize && len(frame) > n.cfg.MaxUDPSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds max_udp_size=%d", domain.ErrOversizedFrame, len(frame), n.cfg.MaxUDPSize)
	}
	return frame, nil
}

// sendTo encodes events and writes the resulting frame to host:port over
// the node's transport. It takes its own snapshot of the transport
// pointer so callers need not hold mu for the duration of the network
// write (§5).
func (n *Node) sendTo(host string, port uint16, events []event.Event) error {
	n.mu.Lock()
	t := n.transport
	n.mu.Unlock()
	if t == nil {
		return fmt.Errorf("%w: node is not started", domain.ErrNotAlive)
	}

	frame, err := n.encodeFrame(events)
	if err != nil {
		return err
	}
	if err := t.WriteTo(frame, host, port); err != nil {
		return err
	}
	n.emitDiag("send", map[string]any{"host": host, "port": port, "events": len(events), "bytes": len(frame)})
	return nil
}

// sendPiggybacked sends events plus whatever the dissemination FIFO and
// anti-entropy sampler currently have to offer, up to the configured
// anti-entropy sample size (§4.6).
func (n *Node) sendPiggybacked(host string, port uint16, base []event.Event) error {
	n.mu.Lock()
	extra := n.takeEventsLocked(len(n.outgoing))
	ae := n.buildAntiEntropyLocked()
	n.mu.Unlock()

	events := make([]event.Event, 0, len(base)+len(extra)+1)
	events = append(events, base...)
	events = append(events, extra...)
	if len(ae.Data) > 0 {
		events = append(events, ae)
	}
	return n.sendTo(host, port, events)
}
