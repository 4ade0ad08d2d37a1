package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_PutGet(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "first", Count: 1}))

	var got testDoc
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, 1, got.Count)

	// replace
	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "second", Count: 2}))
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "second", got.Name)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	st := NewMemoryStore()
	var got testDoc
	err := st.Get(context.Background(), "docs", "nope", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_FindFilter(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "x", Count: 1}))
	require.NoError(t, st.Put(ctx, "docs", "b", &testDoc{Name: "x", Count: 2}))
	require.NoError(t, st.Put(ctx, "docs", "c", &testDoc{Name: "y", Count: 3}))

	raws, err := st.Find(ctx, "docs", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Len(t, raws, 2)

	raws, err = st.Find(ctx, "docs", nil)
	require.NoError(t, err)
	assert.Len(t, raws, 3)

	raws, err = st.Find(ctx, "docs", map[string]interface{}{"name": "z"})
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestMemoryStore_Update(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "docs", "a", &testDoc{Name: "x", Count: 1}))
	require.NoError(t, st.Update(ctx, "docs", "a", map[string]interface{}{"count": 9}, false))

	var got testDoc
	require.NoError(t, st.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "x", got.Name, "untouched field survives merge")
	assert.Equal(t, 9, got.Count)

	// missing key without upsert
	err := st.Update(ctx, "docs", "nope", map[string]interface{}{"count": 1}, false)
	assert.ErrorIs(t, err, ErrNotFound)

	// missing key with upsert
	require.NoError(t, st.Update(ctx, "docs", "new", map[string]interface{}{"name": "fresh"}, true))
	require.NoError(t, st.Get(ctx, "docs", "new", &got))
	assert.Equal(t, "fresh", got.Name)
}

func TestMemoryStore_Mode(t *testing.T) {
	st := NewMemoryStore()
	assert.Equal(t, ModeMemory, st.Mode())
	assert.NoError(t, st.Ping(context.Background()))
}

func TestMemoryStore_FindPrefix(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "results", "job-1/ocr", &testDoc{Name: "a"}))
	require.NoError(t, st.Put(ctx, "results", "job-1/captioning", &testDoc{Name: "b"}))
	require.NoError(t, st.Put(ctx, "results", "job-10/ocr", &testDoc{Name: "c"}))

	raws, err := st.FindPrefix(ctx, "results", "job-1/")
	require.NoError(t, err)
	assert.Len(t, raws, 2, "job-10 keys must not match the job-1/ prefix")
}
