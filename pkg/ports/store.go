package ports

import (
	"context"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// Version is the opaque optimistic-concurrency token attached to a
// persisted session. A commit must present the token it loaded; the
// store rejects the commit when the token moved in the meantime.
type Version string

// NoVersion is presented when creating a session that must not exist yet.
const NoVersion Version = ""

// SessionStore persists session state with compare-and-swap semantics.
// Turns on the same session are serialized by the token check: no two
// turns may commit state derived from the same prior cursor.
type SessionStore interface {
	// Load retrieves the state and its current version token.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SessionState, Version, error)

	// Commit persists the state if the stored token still equals expected
	// (NoVersion for a fresh session). Returns domain.ErrVersionConflict
	// on a concurrent modification; nothing is written in that case.
	Commit(ctx context.Context, sessionID string, state *domain.SessionState, expected Version) (Version, error)

	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// BotLoader resolves a bot identifier to its published graph snapshot.
// Returns domain.ErrSessionNotFound semantics via its own error; loaders
// should return a descriptive error for unknown bots.
type BotLoader interface {
	LoadBot(ctx context.Context, botID string) (*domain.Graph, error)
}
