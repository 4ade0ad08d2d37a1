package domain

import "time"

// JobStatus represents the lifecycle state of an analysis job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted,
// JobStatusFailed, and JobStatusCancelled.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further mutation.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// transitions enumerates the legal state machine edges.
//
//	pending -> processing -> completed | failed
//	pending | processing -> cancelled
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// CanTransition reports whether the edge s -> to is legal.
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// VideoMetadata describes the submitted video. Set once at job creation,
// never mutated afterwards.
type VideoMetadata struct {
	Filename    string `json:"filename"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Job is one client-visible unit of work: a set of requested analyses over
// one uploaded video, polled asynchronously under a single ID.
type Job struct {
	ID                string         `json:"id"`
	Status            JobStatus      `json:"status"`
	RequestedAnalyses []AnalysisType `json:"requested_analyses"`
	Video             VideoMetadata  `json:"video_metadata"`

	// WorkingDir references externally owned temporary storage. The engine
	// only hands the path to analysis procedures and signals when it may be
	// reclaimed; it never deletes video bytes itself.
	WorkingDir string `json:"working_dir"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
