package ports

import (
	"context"
	"testing"
	"time"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// honors the load/commit/delete contract, including the compare-and-swap
// behavior the engine depends on for turn serialization.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405")

	graph := &domain.Graph{ID: "bot", Groups: []domain.Group{{ID: "g1"}}}

	t.Run("Create and Load", func(t *testing.T) {
		state := domain.NewSessionState(sessionID, graph, time.Now().UTC())
		state.Variables["foo"] = "bar"
		state.Cursor = domain.Cursor{GroupID: "g1"}

		v1, err := store.Commit(ctx, sessionID, state, NoVersion)
		require.NoError(t, err, "initial commit should not return error")
		require.NotEqual(t, NoVersion, v1)

		loaded, v, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, v1, v)
		assert.Equal(t, "g1", loaded.Cursor.GroupID)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		require.NotNil(t, loaded.Graph)
		assert.Equal(t, "bot", loaded.Graph.ID)
	})

	t.Run("CAS Conflict", func(t *testing.T) {
		loaded, v, err := store.Load(ctx, sessionID)
		require.NoError(t, err)

		loaded.TurnCount++
		v2, err := store.Commit(ctx, sessionID, loaded, v)
		require.NoError(t, err)
		require.NotEqual(t, v, v2)

		// Replaying the same commit with the stale token must conflict.
		_, err = store.Commit(ctx, sessionID, loaded, v)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		// And the stored state must be the first commit's, untouched.
		reloaded, _, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, loaded.TurnCount, reloaded.TurnCount)
	})

	t.Run("Create Conflict", func(t *testing.T) {
		state := domain.NewSessionState(sessionID, graph, time.Now().UTC())
		_, err := store.Commit(ctx, sessionID, state, NoVersion)
		assert.ErrorIs(t, err, domain.ErrVersionConflict, "NoVersion commit on existing session should conflict")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, _, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))

		_, _, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		// Deleting again is a no-op.
		assert.NoError(t, store.Delete(ctx, sessionID))
	})
}
