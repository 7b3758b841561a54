package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwalk/chatwalk/internal/logging"
)

func TestNew_LevelGating(t *testing.T) {
	ctx := context.Background()

	logger := logging.New(slog.LevelWarn)
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))
}

func TestNewJSON_LevelGating(t *testing.T) {
	ctx := context.Background()

	logger := logging.NewJSON(slog.LevelInfo)
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.Enabled(ctx, slog.LevelError))
}

func TestNewNop(t *testing.T) {
	logger := logging.NewNop()
	require.NotNil(t, logger)
	// Must be safe to use without any setup.
	logger.Info("discarded", "key", "value")
}
