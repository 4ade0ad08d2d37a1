// Package pipeline resolves inter-analysis dependencies into an execution
// order and dispatches each analysis to its external procedure, aggregating
// outcomes through the results manager and updating the job manager as it
// proceeds. The router holds no persistent state of its own.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelscope/internal/domain"
	"reelscope/internal/job"
	"reelscope/internal/logger"
	"reelscope/internal/procedure"
	"reelscope/internal/results"
)

// Router schedules and executes the analyses of one job at a time per
// Execute call. Jobs are independent; no cross-job ordering exists.
type Router struct {
	jobs     *job.Manager
	results  *results.Manager
	registry *procedure.Registry
	log      *logger.Logger

	// cpuSlots bounds concurrent CPU-heavy procedure calls. Network-bound
	// analyses bypass it so remote polling never occupies a worker slot.
	cpuSlots chan struct{}

	// reclaim, when set, is told that a finished job's working directory may
	// be cleaned up by its external owner.
	reclaim func(dir string)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRouter creates a pipeline router with a bounded CPU worker pool.
func NewRouter(jobs *job.Manager, res *results.Manager, registry *procedure.Registry, workers int, log *logger.Logger) *Router {
	if workers < 1 {
		workers = 1
	}
	return &Router{
		jobs:     jobs,
		results:  res,
		registry: registry,
		log:      log,
		cpuSlots: make(chan struct{}, workers),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetReclaimFunc wires the working-directory reclamation signal fired after
// a job reaches a terminal status.
func (r *Router) SetReclaimFunc(f func(dir string)) { r.reclaim = f }

// Cancel fires the cancellation token for a running job. It implements
// job.Canceller. Cancellation is cooperative: workers stop dispatching
// further stages, while in-flight external calls finish and are discarded.
// Returns whether a running pipeline was signalled.
func (r *Router) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Execute runs the full pipeline for one job. It is meant to run on a
// background goroutine: job submission returns as soon as the pending record
// exists, and this drives it to a terminal status.
func (r *Router) Execute(ctx context.Context, jobID string) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     jobID,
		logger.FieldComponent: "pipeline",
	})

	j, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		logger.CtxError(ctx, "Pipeline aborted, job lookup failed: %v", err)
		return
	}

	if err := r.jobs.Transition(ctx, jobID, domain.JobStatusProcessing, ""); err != nil {
		logger.CtxError(ctx, "Pipeline aborted, could not enter processing: %v", err)
		return
	}
	// re-read: a cancellation racing the transition leaves the job terminal
	if j, err = r.jobs.Get(ctx, jobID); err != nil || j.Status != domain.JobStatusProcessing {
		logger.CtxInfo(ctx, "Pipeline not started, job no longer runnable")
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancels[jobID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.cancels, jobID)
		r.mu.Unlock()
	}()

	set := Expand(j.RequestedAnalyses)
	waves := Waves(set)
	logger.CtxInfo(ctx, "Pipeline started: analyses=%v waves=%d", set, len(waves))

	st := &jobState{
		outcomes: make(map[domain.AnalysisType]domain.ResultStatus, len(set)),
		payloads: make(map[domain.AnalysisType]json.RawMessage, len(set)),
	}

	start := time.Now()
	for _, wave := range waves {
		if jobCtx.Err() != nil {
			break
		}
		var g errgroup.Group
		for _, a := range wave {
			g.Go(func() error {
				r.runAnalysis(jobCtx, j, a, st)
				return nil
			})
		}
		g.Wait()
	}

	if jobCtx.Err() != nil {
		logger.CtxInfo(ctx, "Pipeline stopped: job cancelled")
		return
	}

	if fails := st.failureSummary(); len(fails) > 0 {
		summary := strings.Join(fails, "; ")
		if err := r.jobs.Transition(ctx, jobID, domain.JobStatusFailed, summary); err != nil {
			logger.CtxError(ctx, "Failed to mark job failed: %v", err)
		}
		logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
			Warn(ctx, "Pipeline finished with failures: %s", summary)
	} else {
		if err := r.jobs.Transition(ctx, jobID, domain.JobStatusCompleted, ""); err != nil {
			logger.CtxError(ctx, "Failed to mark job completed: %v", err)
		}
		logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
			Info(ctx, "Pipeline completed")
	}

	if r.reclaim != nil && j.WorkingDir != "" {
		r.reclaim(j.WorkingDir)
	}
}

// jobState accumulates per-analysis outcomes for one Execute run.
type jobState struct {
	mu       sync.Mutex
	outcomes map[domain.AnalysisType]domain.ResultStatus
	payloads map[domain.AnalysisType]json.RawMessage
	failures []string
}

func (s *jobState) record(t domain.AnalysisType, status domain.ResultStatus, payload json.RawMessage, failure string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[t] = status
	if payload != nil {
		s.payloads[t] = payload
	}
	if failure != "" {
		s.failures = append(s.failures, failure)
	}
}

func (s *jobState) outcome(t domain.AnalysisType) (domain.ResultStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.outcomes[t]
	return st, ok
}

func (s *jobState) inputs(deps []domain.AnalysisType) map[domain.AnalysisType]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.AnalysisType]json.RawMessage, len(deps))
	for _, d := range deps {
		if p, ok := s.payloads[d]; ok {
			out[d] = p
		}
	}
	return out
}

func (s *jobState) failureSummary() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failures...)
}

// runAnalysis executes one analysis: checks its dependency outcomes, invokes
// the procedure under the appropriate concurrency slot, and records exactly
// one Result. Results of cancelled jobs are discarded, never written.
func (r *Router) runAnalysis(jobCtx context.Context, j *domain.Job, t domain.AnalysisType, st *jobState) {
	ctx := logger.WithField(jobCtx, logger.FieldAnalysis, string(t))
	deps := dependencies[t]

	if reason := r.blockedBy(t, deps, st); reason != "" {
		st.record(t, domain.ResultStatusSkipped, nil, "")
		r.storeResult(ctx, domain.SkippedResult(j.ID, t, reason))
		logger.CtxWarn(ctx, "Analysis skipped: %s", reason)
		return
	}

	proc := r.registry.Get(t)
	if proc == nil {
		reason := fmt.Sprintf("no procedure available for %s", t)
		st.record(t, domain.ResultStatusFailed, nil, fmt.Sprintf("%s: %s", t, reason))
		r.storeResult(ctx, domain.FailedResult(j.ID, t, reason, 0))
		return
	}

	if !networkBound[t] {
		select {
		case r.cpuSlots <- struct{}{}:
			defer func() { <-r.cpuSlots }()
		case <-jobCtx.Done():
			return
		}
	}
	if jobCtx.Err() != nil {
		return
	}

	req := &procedure.Request{
		JobID:       j.ID,
		VideoPath:   videoPath(j),
		WorkingDir:  j.WorkingDir,
		Fingerprint: j.Video.Fingerprint,
		Inputs:      st.inputs(deps),
	}

	// The procedure runs on a detached context: an in-flight external call
	// is never forcibly aborted; once cancelled, its result is discarded.
	start := time.Now()
	payload, err := proc.Run(context.WithoutCancel(jobCtx), req)
	took := time.Since(start)

	if jobCtx.Err() != nil {
		logger.CtxInfo(ctx, "Discarding result of cancelled job")
		return
	}

	if err != nil {
		st.record(t, domain.ResultStatusFailed, nil, fmt.Sprintf("%s: %v", t, err))
		r.storeResult(ctx, domain.FailedResult(j.ID, t, err.Error(), took))
		logger.With(logger.Fields{logger.FieldDurationMs: took.Milliseconds()}).
			Error(ctx, "Analysis failed: %v", err)
		return
	}

	st.record(t, domain.ResultStatusCompleted, payload, "")
	r.storeResult(ctx, domain.CompletedResult(j.ID, t, payload, took))
	logger.With(logger.Fields{logger.FieldDurationMs: took.Milliseconds()}).
		Info(ctx, "Analysis completed")
}

// blockedBy returns a skip reason when the analysis's dependency policy is
// not satisfied: every dependency must have completed, except for any-of
// analyses which need just one completed dependency.
func (r *Router) blockedBy(t domain.AnalysisType, deps []domain.AnalysisType, st *jobState) string {
	if len(deps) == 0 {
		return ""
	}

	var unmet []string
	satisfied := 0
	for _, dep := range deps {
		status, ok := st.outcome(dep)
		if ok && status == domain.ResultStatusCompleted {
			satisfied++
			continue
		}
		verb := "failed"
		if status == domain.ResultStatusSkipped {
			verb = "was skipped"
		}
		unmet = append(unmet, fmt.Sprintf("dependency %s %s", dep, verb))
	}

	if anyOf[t] {
		if satisfied > 0 {
			return ""
		}
		return strings.Join(unmet, "; ")
	}
	if len(unmet) > 0 {
		return unmet[0]
	}
	return ""
}

// storeResult persists one result record; a store failure here loses only
// that record's visibility, never the pipeline run.
func (r *Router) storeResult(ctx context.Context, res *domain.Result) {
	if err := r.results.Store(context.WithoutCancel(ctx), res); err != nil {
		logger.CtxError(ctx, "Failed to store result: %v", err)
	}
}

// videoPath resolves the uploaded video location inside the working directory.
func videoPath(j *domain.Job) string {
	if j.WorkingDir == "" {
		return j.Video.Filename
	}
	return j.WorkingDir + "/" + j.Video.Filename
}
