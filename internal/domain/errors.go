package domain

import "errors"

// ─── Error Taxonomy (§7) ────────────────────────────────────────────────────
// Errors are classified by kind, not by concrete type, so callers can
// errors.Is against a stable sentinel regardless of which layer raised it.

var (
	// ErrValidation marks a structural violation of an event or a state
	// update, raised at the boundary and at every setter.
	ErrValidation = errors.New("swim: validation error")

	// ErrClusterSizeExceeded is returned when adding a neighbour would push
	// nodes_in_cluster above the administrative cluster size.
	ErrClusterSizeExceeded = errors.New("swim: cluster size exceeded")

	// ErrUnknownNeighbour is returned when an operation addresses a
	// neighbour id that is not in the table.
	ErrUnknownNeighbour = errors.New("swim: unknown neighbour")

	// ErrBadFrame marks decryption or deserialization failure of an
	// incoming datagram frame.
	ErrBadFrame = errors.New("swim: bad frame")

	// ErrMalformedEvent marks an event that failed arity/type validation
	// on restore from the wire.
	ErrMalformedEvent = errors.New("swim: malformed event")

	// ErrOversizedPayload marks a payload exceeding max_payload_size.
	ErrOversizedPayload = errors.New("swim: oversized payload")

	// ErrOversizedFrame marks an outgoing frame exceeding max_udp_size.
	ErrOversizedFrame = errors.New("swim: oversized frame")

	// ErrTransport marks a bind/send/receive failure at the datagram
	// transport boundary.
	ErrTransport = errors.New("swim: transport error")

	// ErrTimeout marks an expired ack or join await.
	ErrTimeout = errors.New("swim: timeout")

	// ErrNotAlive is returned when an operation requires the node to be
	// alive but it is not.
	ErrNotAlive = errors.New("swim: node is not alive")

	// ErrAlreadyStarted is returned by Start when the node is not in the
	// stop state, or when it has already been stopped once.
	ErrAlreadyStarted = errors.New("swim: already started")

	// ErrSelfNeighbour is returned when an upsert would add the node as
	// its own neighbour.
	ErrSelfNeighbour = errors.New("swim: a node cannot be its own neighbour")
)
