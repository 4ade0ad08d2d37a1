package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o644))
	return path
}

func TestClient_CreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "idx-1", r.FormValue("index_id"))
		_, header, err := r.FormFile("video_file")
		require.NoError(t, err)
		assert.Equal(t, "clip.mp4", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_id":      "task-9",
			"video_id": "video-9",
			"status":   "pending",
		})
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{BaseURL: srv.URL, APIKey: "secret", IndexID: "idx-1", RequestTimeout: 5 * time.Second})
	task, err := c.CreateTask(context.Background(), writeTestVideo(t))
	require.NoError(t, err)
	assert.Equal(t, "task-9", task.ID)
	assert.Equal(t, "video-9", task.VideoID)
	assert.Equal(t, "pending", task.Status)
}

func TestClient_GetTaskNormalizesProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/task-9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_id":      "task-9",
			"video_id": "video-9",
			"status":   "indexing",
			"process":  map[string]interface{}{"percentage": 42.0},
		})
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	task, err := c.GetTask(context.Background(), "task-9")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, task.Progress, 1e-9)
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "video-9", body["video_id"])
		assert.Equal(t, "describe the clip", body["prompt"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "gen-1", "data": "a short summary"})
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	out, err := c.Generate(context.Background(), "video-9", "describe the clip", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "a short summary", out)
}

func TestClient_CreateTaskRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"index not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{BaseURL: srv.URL, IndexID: "nope", RequestTimeout: 5 * time.Second})
	_, err := c.CreateTask(context.Background(), writeTestVideo(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
