package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscope/internal/config"
	"reelscope/internal/logger"
)

func testLog() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Output: io.Discard})
}

func TestOpen_UnreachableDurableFallsBackToMemory(t *testing.T) {
	st := Open(&config.DatabaseConfig{
		Driver: "postgres",
		DSN:    "host=127.0.0.1 port=1 user=nobody dbname=nothing sslmode=disable connect_timeout=1",
	}, testLog())

	require.NotNil(t, st)
	assert.Equal(t, ModeMemory, st.Mode())

	// The fallback serves the full contract, so the process still works.
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "jobs", "job-1", &testDoc{Name: "pending"}))
	var got testDoc
	require.NoError(t, st.Get(ctx, "jobs", "job-1", &got))
	assert.Equal(t, "pending", got.Name)
	require.NoError(t, st.Ping(ctx))
}

func TestOpen_ReachableDurableIsSelected(t *testing.T) {
	st := Open(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "app.db"),
		AutoMigrate: true,
	}, testLog())

	require.NotNil(t, st)
	assert.Equal(t, ModeDurable, st.Mode())
}
