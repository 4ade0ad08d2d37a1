package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// Task mirrors the remote service's indexing task resource.
type Task struct {
	ID       string
	VideoID  string
	Status   string
	Progress float64 // fraction in [0, 1]
}

// API is the surface of the bulk video-understanding service the indexer
// drives: upload a video into an index, poll the indexing task, and issue
// text generation against an indexed video.
type API interface {
	CreateTask(ctx context.Context, videoPath string) (*Task, error)
	GetTask(ctx context.Context, taskID string) (*Task, error)
	Generate(ctx context.Context, videoID, prompt string, temperature float64) (string, error)
}

// Client talks to the service over HTTPS.
type Client struct {
	http    *resty.Client
	indexID string
}

// ClientConfig holds connection settings for the remote service.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	IndexID        string
	RequestTimeout time.Duration
}

// NewClient creates a remote service client.
func NewClient(cfg *ClientConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("x-api-key", cfg.APIKey).
		SetTimeout(cfg.RequestTimeout)
	return &Client{http: http, indexID: cfg.IndexID}
}

type taskResponse struct {
	ID      string `json:"_id"`
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
	Process struct {
		Percentage float64 `json:"percentage"`
	} `json:"process"`
	Message string `json:"message,omitempty"`
}

type generateResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// CreateTask uploads the video into the configured index and returns the
// created indexing task.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - videoPath: local path of the video file to upload.
// Returns:
//   - *Task: created task with its remote IDs.
//   - error: non-nil if the upload is rejected or the request fails.
func (c *Client) CreateTask(ctx context.Context, videoPath string) (*Task, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	var out taskResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"index_id": c.indexID}).
		SetFileReader("video_file", filepath.Base(videoPath), f).
		SetResult(&out).
		Post("/tasks")
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload rejected: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return taskFromResponse(&out), nil
}

// GetTask fetches the current state of an indexing task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var out taskResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/tasks/" + taskID)
	if err != nil {
		return nil, fmt.Errorf("task status request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("task status error: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return taskFromResponse(&out), nil
}

// Generate issues a free-text generation request against an indexed video.
// The response text is returned as-is; any JSON inside it is the caller's
// concern.
func (c *Client) Generate(ctx context.Context, videoID, prompt string, temperature float64) (string, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"video_id":    videoID,
			"prompt":      prompt,
			"temperature": temperature,
		}).
		SetResult(&out).
		Post("/generate")
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generate error: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return out.Data, nil
}

func taskFromResponse(r *taskResponse) *Task {
	return &Task{
		ID:       r.ID,
		VideoID:  r.VideoID,
		Status:   r.Status,
		Progress: r.Process.Percentage / 100,
	}
}
