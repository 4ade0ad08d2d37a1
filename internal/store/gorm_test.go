package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscope/internal/config"
)

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	st, err := OpenDurable(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	return st
}

func TestGormStore_PutGetRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "first", Count: 1}))

	var got testDoc
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "first", got.Name)

	// Put is an upsert
	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "second", Count: 2}))
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "second", got.Name)
	assert.Equal(t, 2, got.Count)
}

func TestGormStore_GetMissing(t *testing.T) {
	st := openTestStore(t)
	var got testDoc
	err := st.Get(context.Background(), "docs", "nope", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_CollectionsIsolated(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "jobs", "a", &testDoc{Name: "job"}))
	require.NoError(t, st.Put(ctx, "results", "a", &testDoc{Name: "result"}))

	var got testDoc
	require.NoError(t, st.Get(ctx, "jobs", "a", &got))
	assert.Equal(t, "job", got.Name)
	require.NoError(t, st.Get(ctx, "results", "a", &got))
	assert.Equal(t, "result", got.Name)
}

func TestGormStore_FindFilter(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "x", Count: 1}))
	require.NoError(t, st.Put(ctx, "docs", "b", &testDoc{Name: "x", Count: 2}))
	require.NoError(t, st.Put(ctx, "docs", "c", &testDoc{Name: "y", Count: 3}))

	raws, err := st.Find(ctx, "docs", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}

func TestGormStore_UpdateMergeAndUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "x", Count: 1}))
	require.NoError(t, st.Update(ctx, "docs", "a", map[string]interface{}{"count": 5}, false))

	var got testDoc
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "x", got.Name)
	assert.Equal(t, 5, got.Count)

	err := st.Update(ctx, "docs", "missing", map[string]interface{}{"count": 1}, false)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Update(ctx, "docs", "missing", map[string]interface{}{"name": "fresh"}, true))
	require.NoError(t, st.Get(ctx, "docs", "missing", &got))
	assert.Equal(t, "fresh", got.Name)
}

func TestGormStore_Mode(t *testing.T) {
	st := openTestStore(t)
	assert.Equal(t, ModeDurable, st.Mode())
	assert.NoError(t, st.Ping(context.Background()))
}

func TestGormStore_FindPrefix(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "results", "job-1/ocr", &testDoc{Name: "a"}))
	require.NoError(t, st.Put(ctx, "results", "job-1/captioning", &testDoc{Name: "b"}))
	require.NoError(t, st.Put(ctx, "results", "job-10/ocr", &testDoc{Name: "c"}))
	require.NoError(t, st.Put(ctx, "jobs", "job-1/ocr", &testDoc{Name: "other collection"}))

	raws, err := st.FindPrefix(ctx, "results", "job-1/")
	require.NoError(t, err)
	assert.Len(t, raws, 2, "job-10 keys must not match the job-1/ prefix")

	// LIKE metacharacters in keys match literally
	require.NoError(t, st.Put(ctx, "results", "job_2/ocr", &testDoc{Name: "d"}))
	require.NoError(t, st.Put(ctx, "results", "jobX2/ocr", &testDoc{Name: "e"}))
	raws, err = st.FindPrefix(ctx, "results", "job_2/")
	require.NoError(t, err)
	assert.Len(t, raws, 1)
}
