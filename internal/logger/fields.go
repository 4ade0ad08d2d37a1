package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the analysis job ID
	FieldJobID = "job_id"

	// FieldAnalysis is the analysis type being executed
	FieldAnalysis = "analysis"

	// FieldFingerprint is the video content fingerprint
	FieldFingerprint = "fingerprint"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, attached per log entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldAttempt is the retry attempt number
	FieldAttempt = "attempt"
)
