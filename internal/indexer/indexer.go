// Package indexer drives the upload -> index -> query workflow against the
// external bulk video-understanding service, with a content-addressed dedup
// cache, bounded retry with exponential backoff, and live progress reporting.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"reelscope/internal/config"
	"reelscope/internal/domain"
	"reelscope/internal/logger"
	"reelscope/internal/store"
)

// Collection is the store collection holding index records.
const Collection = "index_records"

// Indexer owns IndexRecord documents and the remote indexing workflow.
type Indexer struct {
	api    API
	store  store.Store
	log    *logger.Logger
	flight singleflight.Group

	pollMin         time.Duration
	pollMax         time.Duration
	indexingTimeout time.Duration

	maxRetries        uint64
	retryBaseInterval time.Duration
	retryMaxInterval  time.Duration
}

// New creates an indexer using the given remote API and store.
func New(api API, st store.Store, cfg *config.IndexerConfig, log *logger.Logger) *Indexer {
	return &Indexer{
		api:               api,
		store:             st,
		log:               log,
		pollMin:           cfg.PollMinInterval,
		pollMax:           cfg.PollMaxInterval,
		indexingTimeout:   cfg.IndexingTimeout,
		maxRetries:        uint64(cfg.MaxRetries),
		retryBaseInterval: cfg.RetryBaseInterval,
		retryMaxInterval:  cfg.RetryMaxInterval,
	}
}

// Record returns the dedup cache entry for a fingerprint, or nil if none.
func (ix *Indexer) Record(ctx context.Context, fingerprint string) (*domain.IndexRecord, error) {
	var rec domain.IndexRecord
	if err := ix.store.Get(ctx, Collection, fingerprint, &rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// EnsureIndexed returns a remote video ID for the given content fingerprint,
// uploading and indexing the video only when no ready record exists.
//
// Fast path: a ready record short-circuits with zero network calls. A record
// still pending or running resumes polling its existing task instead of
// re-uploading. Absent or previously failed records trigger a fresh upload,
// retried with bounded exponential backoff.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fingerprint: content-derived identity of the video.
//   - videoPath: local path of the video bytes.
// Concurrent calls for the same fingerprint collapse into one workflow;
// later callers share the outcome of the call already in flight, under the
// earliest caller's context.
// Returns:
//   - string: the remote video ID once indexing is ready.
//   - error: domain.ErrUploadFailed, domain.ErrIndexingTimeout, or a store error.
func (ix *Indexer) EnsureIndexed(ctx context.Context, fingerprint, videoPath string) (string, error) {
	v, err, _ := ix.flight.Do(fingerprint, func() (interface{}, error) {
		return ix.ensureIndexed(ctx, fingerprint, videoPath)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ix *Indexer) ensureIndexed(ctx context.Context, fingerprint, videoPath string) (string, error) {
	rec, err := ix.Record(ctx, fingerprint)
	if err != nil {
		return "", err
	}

	if rec != nil {
		switch rec.IndexingStatus {
		case domain.IndexingStatusReady:
			if rec.RemoteVideoID != "" {
				ix.log.WithField(logger.FieldFingerprint, fingerprint).
					Debug("Reusing indexed video")
				return rec.RemoteVideoID, nil
			}
		case domain.IndexingStatusPending, domain.IndexingStatusRunning:
			if rec.RemoteTaskID != "" {
				return ix.pollUntilReady(ctx, fingerprint, rec.RemoteTaskID)
			}
		}
		// failed or incomplete record: start over from upload
	}

	task, err := ix.upload(ctx, fingerprint, videoPath)
	if err != nil {
		return "", err
	}
	return ix.pollUntilReady(ctx, fingerprint, task.ID)
}

// upload creates the remote indexing task, retrying transient failures, and
// records the pending index record. Exhausting retries marks the record
// failed and returns domain.ErrUploadFailed.
func (ix *Indexer) upload(ctx context.Context, fingerprint, videoPath string) (*Task, error) {
	var task *Task
	attempt := 0
	op := func() error {
		attempt++
		t, err := ix.api.CreateTask(ctx, videoPath)
		if err != nil {
			logger.With(logger.Fields{logger.FieldAttempt: attempt}).
				Warn(ctx, "Video upload attempt failed: %v", err)
			return err
		}
		task = t
		return nil
	}
	if err := backoff.Retry(op, ix.retryPolicy(ctx)); err != nil {
		ix.writeRecord(ctx, fingerprint, map[string]interface{}{
			"indexing_status": domain.IndexingStatusFailed,
			"error":           err.Error(),
			"updated_at":      time.Now(),
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	now := time.Now()
	rec := &domain.IndexRecord{
		Fingerprint:    fingerprint,
		RemoteVideoID:  task.VideoID,
		RemoteTaskID:   task.ID,
		IndexingStatus: domain.IndexingStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := ix.store.Put(ctx, Collection, fingerprint, rec); err != nil {
		return nil, err
	}
	ix.log.WithFields(logger.Fields{
		logger.FieldFingerprint: fingerprint,
		"task_id":               task.ID,
	}).Info("Video uploaded, indexing started")
	return task, nil
}

// pollUntilReady queries the task status at exponentially increasing
// intervals bounded by the configured min/max, refreshing the record's
// progress on every poll so observers see it live. Exceeding the overall
// timeout marks the record failed and returns domain.ErrIndexingTimeout;
// the record is retained so a later request can retry from scratch.
func (ix *Indexer) pollUntilReady(ctx context.Context, fingerprint, taskID string) (string, error) {
	deadline := time.Now().Add(ix.indexingTimeout)
	interval := ix.pollMin

	for {
		task, err := ix.getTask(ctx, taskID)
		if err != nil {
			return "", err
		}

		status := mapTaskStatus(task.Status)
		ix.writeRecord(ctx, fingerprint, map[string]interface{}{
			"indexing_status":   status,
			"indexing_progress": task.Progress,
			"remote_video_id":   task.VideoID,
			"updated_at":        time.Now(),
		})

		switch status {
		case domain.IndexingStatusReady:
			ix.log.WithField(logger.FieldFingerprint, fingerprint).Info("Indexing ready")
			return task.VideoID, nil
		case domain.IndexingStatusFailed:
			return "", fmt.Errorf("remote indexing failed for task %s", taskID)
		}

		// Sleep no longer than the time left so the timeout check after
		// waking fires only once the full configured window has elapsed.
		sleep := interval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleep):
		}

		if !time.Now().Before(deadline) {
			ix.writeRecord(ctx, fingerprint, map[string]interface{}{
				"indexing_status": domain.IndexingStatusFailed,
				"error":           domain.ErrIndexingTimeout.Error(),
				"updated_at":      time.Now(),
			})
			return "", fmt.Errorf("%w after %s", domain.ErrIndexingTimeout, ix.indexingTimeout)
		}

		interval *= 2
		if interval > ix.pollMax {
			interval = ix.pollMax
		}
	}
}

// getTask fetches task status with the shared retry policy.
func (ix *Indexer) getTask(ctx context.Context, taskID string) (*Task, error) {
	var task *Task
	op := func() error {
		t, err := ix.api.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		task = t
		return nil
	}
	if err := backoff.Retry(op, ix.retryPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("task status polling failed: %w", err)
	}
	return task, nil
}

// Generate issues a text generation request against an indexed video,
// retrying transient failures with the same bounded policy as upload.
func (ix *Indexer) Generate(ctx context.Context, videoID, prompt string, temperature float64) (string, error) {
	var text string
	op := func() error {
		out, err := ix.api.Generate(ctx, videoID, prompt, temperature)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	if err := backoff.Retry(op, ix.retryPolicy(ctx)); err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return text, nil
}

// retryPolicy builds the bounded exponential backoff shared by every remote
// call site: maxRetries attempts beyond the first, intervals growing from
// the base up to the max.
func (ix *Indexer) retryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = ix.retryBaseInterval
	policy.MaxInterval = ix.retryMaxInterval
	policy.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(policy, ix.maxRetries-1), ctx)
}

// writeRecord merges fields into the index record, creating it if absent.
// Store errors here only degrade progress visibility and are logged.
func (ix *Indexer) writeRecord(ctx context.Context, fingerprint string, fields map[string]interface{}) {
	fields["fingerprint"] = fingerprint
	if err := ix.store.Update(ctx, Collection, fingerprint, fields, true); err != nil {
		ix.log.WithError(err).WithField(logger.FieldFingerprint, fingerprint).
			Warn("Failed to update index record")
	}
}

// mapTaskStatus translates remote task states into the engine's indexing
// status. Unknown intermediate states count as running.
func mapTaskStatus(remote string) domain.IndexingStatus {
	switch remote {
	case "ready":
		return domain.IndexingStatusReady
	case "failed":
		return domain.IndexingStatusFailed
	case "pending", "validating", "queued":
		return domain.IndexingStatusPending
	default:
		return domain.IndexingStatusRunning
	}
}
