// Package procedure defines the contract between the pipeline engine and the
// external analysis procedures (scene detection, OCR, transcription,
// captioning, summarization). Procedures are opaque: they accept a video or
// scene reference plus prior stage output and return structured data or fail.
package procedure

import (
	"context"
	"encoding/json"

	"reelscope/internal/domain"
)

// Request carries everything a procedure may need: the video location, the
// job's working directory for intermediate artifacts, and the payloads of
// the stages it depends on.
type Request struct {
	JobID       string
	VideoPath   string
	WorkingDir  string
	Fingerprint string

	// Inputs holds the completed payloads of the procedure's dependencies,
	// keyed by analysis type.
	Inputs map[domain.AnalysisType]json.RawMessage
}

// Procedure executes one analysis and returns its structured payload. The
// engine treats the payload as opaque.
type Procedure interface {
	Run(ctx context.Context, req *Request) (json.RawMessage, error)
}

// Func adapts a plain function to the Procedure interface.
type Func func(ctx context.Context, req *Request) (json.RawMessage, error)

// Run implements Procedure.
func (f Func) Run(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Registry maps analysis types to their procedures.
type Registry struct {
	procs map[domain.AnalysisType]Procedure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[domain.AnalysisType]Procedure)}
}

// Register binds a procedure to an analysis type, replacing any previous one.
func (r *Registry) Register(t domain.AnalysisType, p Procedure) {
	r.procs[t] = p
}

// Get returns the procedure for an analysis type, or nil if none registered.
func (r *Registry) Get(t domain.AnalysisType) Procedure {
	return r.procs[t]
}
