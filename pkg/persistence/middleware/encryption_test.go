package middleware_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/persistence/middleware"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestEncryptionMiddleware_RoundTrip(t *testing.T) {
	underlying := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: testKey(1)})
	store := mw(underlying)

	ctx := context.Background()
	state := newState("enc-session")
	state.Variables["email"] = "jdoe@example.com"
	state.Cursor = domain.Cursor{GroupID: "g1", BlockIndex: 2}

	version, err := store.Commit(ctx, state.ID, state, ports.NoVersion)
	require.NoError(t, err)
	require.NotEqual(t, ports.NoVersion, version)

	// The underlying store sees only the opaque envelope.
	raw, _, err := underlying.Load(ctx, state.ID)
	require.NoError(t, err)
	assert.Nil(t, raw.Graph)
	assert.NotContains(t, raw.Variables, "email")
	assert.Contains(t, raw.Variables, "__encrypted__")

	// Loading through the middleware restores the full state.
	loaded, loadedVersion, err := store.Load(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, version, loadedVersion)
	assert.Equal(t, "jdoe@example.com", loaded.Variables["email"])
	assert.Equal(t, domain.Cursor{GroupID: "g1", BlockIndex: 2}, loaded.Cursor)
	require.NotNil(t, loaded.Graph)
	assert.Equal(t, "bot", loaded.Graph.ID)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: testKey(1)})(underlying)
	state := newState("rotated")
	state.Variables["email"] = "old@example.com"
	_, err := oldStore.Commit(ctx, state.ID, state, ports.NoVersion)
	require.NoError(t, err)

	t.Run("New Key With Fallback Reads Old Data", func(t *testing.T) {
		rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    testKey(2),
			FallbackKeys: [][]byte{testKey(1)},
		})(underlying)

		loaded, _, err := rotated.Load(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, "old@example.com", loaded.Variables["email"])
	})

	t.Run("New Key Without Fallback Fails", func(t *testing.T) {
		strict := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: testKey(2)})(underlying)
		_, _, err := strict.Load(ctx, state.ID)
		assert.Error(t, err)
	})
}

func TestEncryptionMiddleware_RejectsPlainState(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	// A state written without encryption must not be silently accepted.
	plain := newState("plain")
	_, err := underlying.Commit(ctx, plain.ID, plain, ports.NoVersion)
	require.NoError(t, err)

	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: testKey(1)})(underlying)
	_, _, err = store.Load(ctx, plain.ID)
	assert.Error(t, err)
}
