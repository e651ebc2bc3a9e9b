package swim

import "time"

// Config holds every operational tunable the core recognizes (§6). All
// fields have defaults via DefaultConfig; a Node is constructed with a
// Config value, never a mutable global.
type Config struct {
	// EnableDiagTap, when true, emits structured diagnostic events to the
	// configured DiagSink.
	EnableDiagTap bool

	// MaxUDPSize is the hard size limit for outgoing frames.
	MaxUDPSize int

	// IgnoreMaxUDPSize skips the size check at send time.
	IgnoreMaxUDPSize bool

	// MaxPayloadSize is the max bytes of per-node opaque payload.
	MaxPayloadSize int

	// MaxAntiEntropyItems is the number of neighbours per AntiEntropy
	// event.
	MaxAntiEntropyItems int

	// MaxPingWithoutAckBeforeSuspect is the number of direct ping attempts
	// before a neighbour is marked suspect.
	MaxPingWithoutAckBeforeSuspect int

	// MaxPingWithoutAckBeforeDead is the total attempts (direct +
	// indirect) before a neighbour is marked dead.
	MaxPingWithoutAckBeforeDead int

	// PingHeartbeat is the heartbeat period.
	PingHeartbeat time.Duration

	// AckTimeout is the ack wait per attempt.
	AckTimeout time.Duration

	// MaxJoinTime is the join confirmation wait.
	MaxJoinTime time.Duration

	// RejoinIfDead enables automatic rejoin when this node is declared
	// dead by a peer.
	RejoinIfDead bool

	// RejoinMaxAttempts bounds the number of rejoin tries.
	RejoinMaxAttempts int
}

// DefaultConfig returns the §6 defaults.
func DefaultConfig() Config {
	return Config{
		EnableDiagTap:                  true,
		MaxUDPSize:                     1432,
		IgnoreMaxUDPSize:               false,
		MaxPayloadSize:                 256,
		MaxAntiEntropyItems:            2,
		MaxPingWithoutAckBeforeSuspect: 2,
		MaxPingWithoutAckBeforeDead:    4,
		PingHeartbeat:                  1000 * time.Millisecond,
		AckTimeout:                     200 * time.Millisecond,
		MaxJoinTime:                    500 * time.Millisecond,
		RejoinIfDead:                   true,
		RejoinMaxAttempts:              10,
	}
}
