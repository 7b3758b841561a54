package domain

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// StatusRunning means the engine is actively executing blocks.
	StatusRunning SessionStatus = "running"
	// StatusAwaitingInput means the cursor is parked on an input or wait
	// block until the visitor replies (or the timer elapses).
	StatusAwaitingInput SessionStatus = "awaitingInput"
	// StatusTerminated means a group with no outgoing edge was exhausted.
	StatusTerminated SessionStatus = "terminated"
)

// Cursor is the session's execution position: a group plus a block index
// within that group. Index-based addressing keeps loop bounding and
// persistence to plain identifier comparisons.
type Cursor struct {
	GroupID    string `json:"groupId"`
	BlockIndex int    `json:"blockIndex"`
}

// Zero reports whether the cursor points nowhere (terminal sessions).
func (c Cursor) Zero() bool { return c.GroupID == "" }

// SessionState is everything the engine needs to resume a session.
// It is persisted as one value through ports.SessionStore; the version
// token lives next to it in the store, not inside it.
type SessionState struct {
	ID       string `json:"id"`
	ResultID string `json:"resultId,omitempty"`

	// Graph is the immutable flow snapshot this session is bound to.
	Graph *Graph `json:"graph"`

	Cursor Cursor        `json:"cursor"`
	Status SessionStatus `json:"status"`

	// Variables is the committed binding snapshot. A name that is absent
	// is "unset", which is distinct from an empty string.
	Variables map[string]any `json:"variables,omitempty"`

	TurnCount      int `json:"turnCount"`
	StepsCompleted int `json:"stepsCompleted"`

	StreamEnabled bool   `json:"streamEnabled,omitempty"`
	TextFormat    string `json:"textFormat,omitempty"` // "richText" or "markdown"

	// ResolvedTheme holds the last resolved dynamic theme values, used to
	// compute the per-turn theme delta.
	ResolvedTheme map[string]string `json:"resolvedTheme,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSessionState binds a fresh session to a graph snapshot.
func NewSessionState(id string, graph *Graph, now time.Time) *SessionState {
	return &SessionState{
		ID:        id,
		Graph:     graph,
		Status:    StatusRunning,
		Variables: make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
