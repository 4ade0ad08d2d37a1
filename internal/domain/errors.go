package domain

import "errors"

// Sentinel errors shared across the engine. Callers match with errors.Is;
// wrapping adds situational detail without losing the category.
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrResultNotFound = errors.New("result not found")

	// ErrInvalidTransition marks an attempted illegal job state machine
	// edge. The job record is always left unchanged.
	ErrInvalidTransition = errors.New("invalid job status transition")

	ErrUnknownAnalysisType = errors.New("unknown analysis type")
	ErrEmptyAnalysisList   = errors.New("no analysis types requested")

	// ErrUploadFailed marks a remote indexing upload that kept failing
	// after bounded retry.
	ErrUploadFailed = errors.New("video upload to indexing service failed")

	// ErrIndexingTimeout marks a remote indexing task that did not reach a
	// terminal state within the overall indexing deadline.
	ErrIndexingTimeout = errors.New("video indexing timed out")
)
