// Package job owns the analysis job lifecycle: creation, state transitions,
// and cancellation, persisted through the storage backend.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelscope/internal/domain"
	"reelscope/internal/logger"
	"reelscope/internal/store"
)

// Collection is the store collection holding job documents.
const Collection = "jobs"

// Canceller signals a running pipeline that a job should stop dispatching
// further stages. Cancellation is cooperative; in-flight external calls run
// to completion and their results are discarded.
type Canceller interface {
	Cancel(jobID string) bool
}

// Reclaimer is the external owner of job working directories. The manager
// only signals when a directory may be reclaimed; it never deletes video
// bytes itself.
type Reclaimer interface {
	Reclaim(dir string) error
}

// lockStripes sizes the fixed pool of mutexes serializing job mutations.
const lockStripes = 64

// Manager owns Job records. All mutation goes through its narrow operations.
// Transition and Cancel are read-check-write sequences, so mutations of the
// same job are serialized through a striped lock; otherwise a cancel landing
// between another caller's read and write would be overwritten, resurrecting
// a terminal job.
type Manager struct {
	store     store.Store
	log       *logger.Logger
	canceller Canceller
	reclaimer Reclaimer

	locks [lockStripes]sync.Mutex
}

// NewManager creates a job manager backed by the given store.
func NewManager(st store.Store, log *logger.Logger) *Manager {
	return &Manager{store: st, log: log}
}

// SetCanceller wires the pipeline's cancellation entry point. Set after
// construction because the pipeline router is built on top of the manager.
func (m *Manager) SetCanceller(c Canceller) { m.canceller = c }

// SetReclaimer wires the working-directory owner.
func (m *Manager) SetReclaimer(r Reclaimer) { m.reclaimer = r }

// lock returns the stripe mutex guarding mutations of one job.
func (m *Manager) lock(jobID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(jobID))
	return &m.locks[h.Sum32()%lockStripes]
}

// Create registers a new job in pending state and returns it immediately;
// analysis execution is scheduled separately so submission never blocks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - analyses: deduplicated requested analysis set.
//   - video: immutable video metadata captured at upload time.
//   - workingDir: externally owned temporary directory holding the video.
// Returns:
//   - *domain.Job: the created job with a fresh ID.
//   - error: non-nil only if the store write fails.
func (m *Manager) Create(ctx context.Context, analyses []domain.AnalysisType, video domain.VideoMetadata, workingDir string) (*domain.Job, error) {
	return m.CreateWithID(ctx, uuid.New().String(), analyses, video, workingDir)
}

// CreateWithID registers a pending job under a caller-chosen ID. The API
// layer allocates the ID up front so the working directory can be named
// after the job before the record exists.
func (m *Manager) CreateWithID(ctx context.Context, id string, analyses []domain.AnalysisType, video domain.VideoMetadata, workingDir string) (*domain.Job, error) {
	now := time.Now()
	j := &domain.Job{
		ID:                id,
		Status:            domain.JobStatusPending,
		RequestedAnalyses: analyses,
		Video:             video,
		WorkingDir:        workingDir,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Put(ctx, Collection, j.ID, j); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	return j, nil
}

// Get retrieves a job by ID.
func (m *Manager) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var j domain.Job
	if err := m.store.Get(ctx, Collection, jobID, &j); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

// List returns jobs matching a status filter; empty status means all jobs.
func (m *Manager) List(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	var filter map[string]interface{}
	if status != "" {
		filter = map[string]interface{}{"status": status}
	}
	raws, err := m.store.Find(ctx, Collection, filter)
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(raws))
	for _, raw := range raws {
		var j domain.Job
		if err := json.Unmarshal(raw, &j); err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Transition moves a job along a legal state machine edge. A transition on
// an already-terminal job is a no-op, making retries idempotent. An illegal
// edge returns domain.ErrInvalidTransition; it is logged, never fatal.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to mutate.
//   - to: target status.
//   - errMsg: failure description, recorded only on transition to failed.
// Returns:
//   - error: domain.ErrJobNotFound, domain.ErrInvalidTransition, or a store error.
func (m *Manager) Transition(ctx context.Context, jobID string, to domain.JobStatus, errMsg string) error {
	mu := m.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	j, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if j.Status.Terminal() {
		return nil
	}
	if !j.Status.CanTransition(to) {
		m.log.WithFields(logger.Fields{
			logger.FieldJobID: jobID,
			"from":            j.Status,
			"to":              to,
		}).Warn("Rejected illegal job status transition")
		return domain.ErrInvalidTransition
	}

	j.Status = to
	if to == domain.JobStatusFailed {
		j.Error = errMsg
	}
	j.UpdatedAt = time.Now()
	return m.store.Put(ctx, Collection, jobID, j)
}

// Cancel marks a pending or processing job cancelled, signals the pipeline's
// cancellation token, and requests working-directory cleanup from the
// external owner. Cancelling an already-terminal job returns
// domain.ErrInvalidTransition so the API layer can answer 409.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	mu := m.lock(jobID)
	mu.Lock()
	j, err := m.Get(ctx, jobID)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if j.Status.Terminal() {
		mu.Unlock()
		return j, domain.ErrInvalidTransition
	}

	j.Status = domain.JobStatusCancelled
	j.UpdatedAt = time.Now()
	err = m.store.Put(ctx, Collection, jobID, j)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	if m.canceller != nil {
		interrupted := m.canceller.Cancel(jobID)
		m.log.WithFields(logger.Fields{
			logger.FieldJobID: jobID,
			"interrupted":     interrupted,
		}).Info("Job cancelled")
	}
	if m.reclaimer != nil && j.WorkingDir != "" {
		if err := m.reclaimer.Reclaim(j.WorkingDir); err != nil {
			m.log.WithError(err).WithField(logger.FieldJobID, jobID).
				Warn("Failed to reclaim working directory")
		}
	}
	return j, nil
}
