package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionTerminated is returned when a continue request hits a session
// that already reached a terminal group.
var ErrSessionTerminated = errors.New("session already terminated")

// ErrVersionConflict signals an optimistic-concurrency conflict: another
// turn committed state derived from the same prior cursor. The caller
// should retry the whole turn.
var ErrVersionConflict = errors.New("concurrent session modification")

// GraphIntegrityError reports a malformed graph: a dangling edge, a
// duplicate identifier, or ambiguous duplicate branch labels. It is
// fatal; the turn is not committed.
type GraphIntegrityError struct {
	GroupID string
	BlockID string
	Reason  string
}

func (e *GraphIntegrityError) Error() string {
	loc := e.GroupID
	if e.BlockID != "" {
		loc += "/" + e.BlockID
	}
	if loc == "" {
		return "graph integrity: " + e.Reason
	}
	return fmt.Sprintf("graph integrity at %s: %s", loc, e.Reason)
}

// InfiniteLoopError reports that a turn exceeded the block-step ceiling
// without suspending. The previously persisted cursor is untouched.
type InfiniteLoopError struct {
	GroupID string
	BlockID string
	Steps   int
}

func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("step ceiling (%d) exceeded at group %s block %s", e.Steps, e.GroupID, e.BlockID)
}

// CapabilityError reports a failed external call (webhook, script,
// payment confirmation). When the graph declares an error edge the
// engine recovers by branching; otherwise the error surfaces.
type CapabilityError struct {
	Capability string
	BlockID    string
	Timeout    bool
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s call timed out at block %s", e.Capability, e.BlockID)
	}
	return fmt.Sprintf("%s call failed at block %s: %v", e.Capability, e.BlockID, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// ValidationError reports a visitor reply that does not match the
// expected input shape. Recoverable: the engine re-prompts the same
// block instead of failing the turn.
type ValidationError struct {
	BlockID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reply for block %s: %s", e.BlockID, e.Reason)
}
