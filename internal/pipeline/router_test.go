package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscope/internal/domain"
	"reelscope/internal/job"
	"reelscope/internal/logger"
	"reelscope/internal/procedure"
	"reelscope/internal/results"
	"reelscope/internal/store"
)

// callRecorder tracks the order procedures ran in across goroutines.
type callRecorder struct {
	mu    sync.Mutex
	order []domain.AnalysisType
}

func (r *callRecorder) add(t domain.AnalysisType) {
	r.mu.Lock()
	r.order = append(r.order, t)
	r.mu.Unlock()
}

func (r *callRecorder) calls() []domain.AnalysisType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AnalysisType(nil), r.order...)
}

// fakeProc records its invocation and can fail or block on demand.
type fakeProc struct {
	rec     *callRecorder
	name    domain.AnalysisType
	fail    error
	block   chan struct{} // when set, Run waits until closed
	payload json.RawMessage
}

func (f *fakeProc) Run(ctx context.Context, req *procedure.Request) (json.RawMessage, error) {
	if f.block != nil {
		<-f.block
	}
	f.rec.add(f.name)
	if f.fail != nil {
		return nil, f.fail
	}
	if f.payload != nil {
		return f.payload, nil
	}
	return json.RawMessage(`{}`), nil
}

type harness struct {
	jobs    *job.Manager
	results *results.Manager
	router  *Router
	rec     *callRecorder
	reg     *procedure.Registry
}

func newHarness(t *testing.T, failing map[domain.AnalysisType]error) *harness {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	st := store.NewMemoryStore()

	h := &harness{
		jobs:    job.NewManager(st, log),
		results: results.NewManager(st),
		reg:     procedure.NewRegistry(),
		rec:     &callRecorder{},
	}
	for _, a := range domain.SupportedAnalysisTypes() {
		h.reg.Register(a, &fakeProc{rec: h.rec, name: a, fail: failing[a]})
	}
	h.router = NewRouter(h.jobs, h.results, h.reg, 2, log)
	h.jobs.SetCanceller(h.router)
	return h
}

func (h *harness) submit(t *testing.T, analyses ...domain.AnalysisType) *domain.Job {
	t.Helper()
	j, err := h.jobs.Create(context.Background(), analyses, domain.VideoMetadata{
		Filename:    "clip.mp4",
		Fingerprint: "fp-1",
	}, "")
	require.NoError(t, err)
	return j
}

func TestRouter_SingleAnalysisCompletes(t *testing.T) {
	h := newHarness(t, nil)
	j := h.submit(t, domain.AnalysisTranscription)

	h.router.Execute(context.Background(), j.ID)

	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)

	res, err := h.results.GetAll(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, domain.ResultStatusCompleted, res[domain.AnalysisTranscription].Status)
}

func TestRouter_DependencyOrdering(t *testing.T) {
	h := newHarness(t, nil)
	j := h.submit(t, domain.AnalysisMatching)

	h.router.Execute(context.Background(), j.ID)

	// matching implies transcription and scene_detection, both before it
	calls := h.rec.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, domain.AnalysisMatching, calls[2])
	assert.ElementsMatch(t,
		[]domain.AnalysisType{domain.AnalysisSceneDetection, domain.AnalysisTranscription},
		calls[:2])

	res, err := h.results.GetAll(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Len(t, res, 3, "implicit dependencies get results of their own")
}

func TestRouter_FailurePropagatesAsSkips(t *testing.T) {
	h := newHarness(t, map[domain.AnalysisType]error{
		domain.AnalysisSceneDetection: errors.New("decoder crashed"),
	})
	j := h.submit(t, domain.AnalysisFullPipeline)

	h.router.Execute(context.Background(), j.ID)

	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "scene_detection")

	res, err := h.results.GetAll(context.Background(), j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ResultStatusFailed, res[domain.AnalysisSceneDetection].Status)
	assert.Equal(t, domain.ResultStatusCompleted, res[domain.AnalysisTranscription].Status,
		"independent analyses still run")

	for _, a := range []domain.AnalysisType{
		domain.AnalysisOCR,
		domain.AnalysisCaptioning,
		domain.AnalysisMatching,
		domain.AnalysisStructuredSummary,
	} {
		require.Contains(t, res, a)
		assert.Equal(t, domain.ResultStatusSkipped, res[a].Status, "%s", a)
		assert.NotEmpty(t, res[a].Reason)
	}
	// skip reasons name the failed dependency chain
	assert.Contains(t, res[domain.AnalysisOCR].Reason, "scene_detection")
}

func TestRouter_AnyOfDependencyPolicy(t *testing.T) {
	// OCR fails but captioning succeeds; structured_summary still runs.
	h := newHarness(t, map[domain.AnalysisType]error{
		domain.AnalysisOCR: errors.New("ocr model missing"),
	})
	j := h.submit(t, domain.AnalysisStructuredSummary)

	h.router.Execute(context.Background(), j.ID)

	res, err := h.results.GetAll(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusFailed, res[domain.AnalysisOCR].Status)
	assert.Equal(t, domain.ResultStatusCompleted, res[domain.AnalysisCaptioning].Status)
	assert.Equal(t, domain.ResultStatusCompleted, res[domain.AnalysisStructuredSummary].Status)

	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status, "the OCR failure still fails the job")
}

func TestRouter_MissingProcedureFailsAnalysis(t *testing.T) {
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	st := store.NewMemoryStore()
	jobs := job.NewManager(st, log)
	res := results.NewManager(st)
	reg := procedure.NewRegistry() // nothing registered
	router := NewRouter(jobs, res, reg, 1, log)

	j, err := jobs.Create(context.Background(), []domain.AnalysisType{domain.AnalysisMultimodal},
		domain.VideoMetadata{Filename: "clip.mp4"}, "")
	require.NoError(t, err)

	router.Execute(context.Background(), j.ID)

	got, err := jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
}

func TestRouter_CancelledJobWritesNoResults(t *testing.T) {
	h := newHarness(t, nil)
	block := make(chan struct{})
	h.reg.Register(domain.AnalysisTranscription,
		&fakeProc{rec: h.rec, name: domain.AnalysisTranscription, block: block})

	j := h.submit(t, domain.AnalysisTranscription)

	done := make(chan struct{})
	go func() {
		h.router.Execute(context.Background(), j.ID)
		close(done)
	}()

	// wait for the pipeline to enter processing
	require.Eventually(t, func() bool {
		got, err := h.jobs.Get(context.Background(), j.ID)
		return err == nil && got.Status == domain.JobStatusProcessing
	}, time.Second, time.Millisecond)

	_, err := h.jobs.Cancel(context.Background(), j.ID)
	require.NoError(t, err)
	close(block)
	<-done

	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)

	res, err := h.results.GetAll(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Empty(t, res, "results of a cancelled job are discarded")
}

func TestRouter_CancelBeforeExecuteNeverRuns(t *testing.T) {
	h := newHarness(t, nil)
	j := h.submit(t, domain.AnalysisTranscription)

	_, err := h.jobs.Cancel(context.Background(), j.ID)
	require.NoError(t, err)

	h.router.Execute(context.Background(), j.ID)

	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)
	assert.Empty(t, h.rec.calls(), "no procedure runs for a pre-cancelled job")
}

func TestRouter_CancelUnknownJob(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.router.Cancel("nope"))
}

func TestRouter_ReclaimSignalledOnCompletion(t *testing.T) {
	h := newHarness(t, nil)
	var reclaimed []string
	var mu sync.Mutex
	h.router.SetReclaimFunc(func(dir string) {
		mu.Lock()
		reclaimed = append(reclaimed, dir)
		mu.Unlock()
	})

	j, err := h.jobs.Create(context.Background(),
		[]domain.AnalysisType{domain.AnalysisTranscription},
		domain.VideoMetadata{Filename: "clip.mp4"}, "/tmp/work/j1")
	require.NoError(t, err)

	h.router.Execute(context.Background(), j.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/tmp/work/j1"}, reclaimed)
}
