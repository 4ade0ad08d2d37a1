package domain

import "time"

// IndexingStatus represents the remote service's ingestion state for one video.
type IndexingStatus string

const (
	IndexingStatusPending IndexingStatus = "pending"
	IndexingStatusRunning IndexingStatus = "running"
	IndexingStatusReady   IndexingStatus = "ready"
	IndexingStatusFailed  IndexingStatus = "failed"
)

// IndexRecord is the remote indexer's dedup cache entry. Keyed by the content
// fingerprint of the source video, so renamed-but-identical files reuse the
// same remote upload and identically named but different files do not.
// At most one record exists per fingerprint.
type IndexRecord struct {
	Fingerprint      string         `json:"fingerprint"`
	RemoteVideoID    string         `json:"remote_video_id,omitempty"`
	RemoteTaskID     string         `json:"remote_task_id,omitempty"`
	IndexingStatus   IndexingStatus `json:"indexing_status"`
	IndexingProgress float64        `json:"indexing_progress"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
