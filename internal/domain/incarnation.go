package domain

import "fmt"

// Incarnation is the pair (restart_counter, tx) that versions a node's
// claims about itself (§3). restart_counter increases on every (re)start;
// tx increases on every event the node emits or processes.
type Incarnation struct {
	RestartCounter uint64
	Tx             uint64
}

// String renders the incarnation as "restart/tx" for logs.
func (in Incarnation) String() string {
	return fmt.Sprintf("%d/%d", in.RestartCounter, in.Tx)
}

// NewerThan reports whether in is a fresher observation than other of the
// same node: strictly greater restart_counter, or equal restart_counter and
// strictly greater tx.
func (in Incarnation) NewerThan(other Incarnation) bool {
	if in.RestartCounter != other.RestartCounter {
		return in.RestartCounter > other.RestartCounter
	}
	return in.Tx > other.Tx
}

// NewerOrEqual reports whether in is at least as fresh as other.
func (in Incarnation) NewerOrEqual(other Incarnation) bool {
	return in == other || in.NewerThan(other)
}
