package api

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscope/internal/logger"
)

func testWorkspace(t *testing.T) *Workspace {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	ws, err := NewWorkspace(t.TempDir(), 0, log)
	require.NoError(t, err)
	return ws
}

func TestWorkspace_CreateAndReclaim(t *testing.T) {
	ws := testWorkspace(t)

	dir, err := ws.Create("job-1")
	require.NoError(t, err)
	require.DirExists(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))

	require.NoError(t, ws.Reclaim(dir))
	assert.NoDirExists(t, dir)
}

func TestWorkspace_ReclaimRefusesOutsidePaths(t *testing.T) {
	ws := testWorkspace(t)

	outside := t.TempDir()
	assert.Error(t, ws.Reclaim(outside))
	assert.DirExists(t, outside)

	assert.Error(t, ws.Reclaim(""))
	assert.Error(t, ws.Reclaim(filepath.Join(ws.root, "..")))
}
