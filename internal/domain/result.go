package domain

import (
	"encoding/json"
	"time"
)

// ResultStatus represents the outcome of one analysis procedure.
type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"

	// ResultStatusSkipped marks an analysis that was never attempted because
	// a prerequisite failed. Skips are always recorded with a reason, never
	// silently omitted.
	ResultStatusSkipped ResultStatus = "skipped"
)

// Result is the stored output of one analysis for one job. The composite key
// (JobID, AnalysisType) is unique; a retry overwrites the prior record.
type Result struct {
	JobID        string       `json:"job_id"`
	AnalysisType AnalysisType `json:"analysis_type"`
	Status       ResultStatus `json:"status"`

	// Payload is analysis-type specific and opaque to the engine.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Reason explains a failed or skipped result in human-readable form.
	Reason string `json:"reason,omitempty"`

	ProcessingTime time.Duration `json:"processing_time"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CompletedResult builds a successful result record.
func CompletedResult(jobID string, t AnalysisType, payload json.RawMessage, took time.Duration) *Result {
	return &Result{
		JobID:          jobID,
		AnalysisType:   t,
		Status:         ResultStatusCompleted,
		Payload:        payload,
		ProcessingTime: took,
		CreatedAt:      time.Now(),
	}
}

// FailedResult builds a failure record carrying the error text.
func FailedResult(jobID string, t AnalysisType, reason string, took time.Duration) *Result {
	return &Result{
		JobID:          jobID,
		AnalysisType:   t,
		Status:         ResultStatusFailed,
		Reason:         reason,
		ProcessingTime: took,
		CreatedAt:      time.Now(),
	}
}

// SkippedResult builds a record for an analysis not attempted because of a
// failed dependency.
func SkippedResult(jobID string, t AnalysisType, reason string) *Result {
	return &Result{
		JobID:        jobID,
		AnalysisType: t,
		Status:       ResultStatusSkipped,
		Reason:       reason,
		CreatedAt:    time.Now(),
	}
}
