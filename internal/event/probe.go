package event

import (
	"github.com/google/uuid"

	"github.com/coreswim/swim/internal/domain"
)

// Probe is a pre-join one-shot liveness check addressed by host:port; the
// target's id may be unknown to the prober (§4.3, §4.9, GLOSSARY). The
// prober does not get added as a neighbour by the recipient.
type Probe struct {
	ID       uuid.UUID
	Host     string
	Port     uint16
	ProbeKey uuid.UUID
}

// Code implements Event.
func (p Probe) Code() domain.EventCode { return domain.EventProbe }

// Prepare implements Event.
func (p Probe) Prepare() []any {
	return []any{p.Code(), uuidBytes(p.ID), p.Host, p.Port, uuidBytes(p.ProbeKey)}
}

func restoreProbe(r *reader) (Event, error) {
	id, err := r.uuid()
	if err != nil {
		return nil, err
	}
	host, err := r.str()
	if err != nil {
		return nil, err
	}
	port, err := r.uint16()
	if err != nil {
		return nil, err
	}
	probeKey, err := r.uuid()
	if err != nil {
		return nil, err
	}
	return Probe{ID: id, Host: host, Port: port, ProbeKey: probeKey}, nil
}

// ProbeAck answers a Probe. NeighbourID addresses the ack back at the
// original prober: the receiver only accepts a ProbeAck whose
// NeighbourID equals its own id and whose ProbeKey matches one it issued
// (§4.9).
type ProbeAck struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
	NeighbourID    uuid.UUID
	Host           string
	Port           uint16
	Status         domain.NodeStatus
	ProbeKey       uuid.UUID
}

// Code implements Event.
func (p ProbeAck) Code() domain.EventCode { return domain.EventProbeAck }

// Prepare implements Event.
func (p ProbeAck) Prepare() []any {
	return []any{
		p.Code(), uuidBytes(p.ID), p.RestartCounter, p.Tx, uuidBytes(p.NeighbourID),
		p.Host, p.Port, uint64(p.Status), uuidBytes(p.ProbeKey),
	}
}

func restoreProbeAck(r *reader) (Event, error) {
	id, err := r.uuid()
	if err != nil {
		return nil, err
	}
	restartCounter, err := r.uint64()
	if err != nil {
		return nil, err
	}
	tx, err := r.uint64()
	if err != nil {
		return nil, err
	}
	neighbourID, err := r.uuid()
	if err != nil {
		return nil, err
	}
	host, err := r.str()
	if err != nil {
		return nil, err
	}
	port, err := r.uint16()
	if err != nil {
		return nil, err
	}
	status, err := r.status()
	if err != nil {
		return nil, err
	}
	probeKey, err := r.uuid()
	if err != nil {
		return nil, err
	}
	return ProbeAck{
		ID: id, RestartCounter: restartCounter, Tx: tx, NeighbourID: neighbourID,
		Host: host, Port: port, Status: status, ProbeKey: probeKey,
	}, nil
}
