package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("fake video bytes")
	require.NoError(t, st.Upload(ctx, "ab/cd1234.mp4", bytes.NewReader(data), int64(len(data)), "video/mp4"))

	ok, err := st.Exists(ctx, "ab/cd1234.mp4")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := st.Download(ctx, "ab/cd1234.mp4")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, st.Delete(ctx, "ab/cd1234.mp4"))
	ok, err = st.Exists(ctx, "ab/cd1234.mp4")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing object is not an error
	assert.NoError(t, st.Delete(ctx, "ab/cd1234.mp4"))
}

func TestLocalStorage_RequiresDir(t *testing.T) {
	_, err := NewLocalStorage("")
	assert.Error(t, err)
}

func TestNewFactory(t *testing.T) {
	st, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, st, "archiving disabled yields no backend")
}
