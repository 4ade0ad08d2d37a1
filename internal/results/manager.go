// Package results owns persistence and retrieval of per-analysis output,
// keyed by (job, analysis type).
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reelscope/internal/domain"
	"reelscope/internal/store"
)

// Collection is the store collection holding result documents.
const Collection = "results"

// Manager owns Result records. Payloads are opaque; no shape validation
// happens here.
type Manager struct {
	store store.Store
}

// NewManager creates a results manager backed by the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// resultKey builds the composite document key for (job, analysis type).
func resultKey(jobID string, t domain.AnalysisType) string {
	return fmt.Sprintf("%s/%s", jobID, t)
}

// Store upserts the result for (result.JobID, result.AnalysisType). A retry
// overwrites the prior record for that key, never duplicates it.
func (m *Manager) Store(ctx context.Context, result *domain.Result) error {
	return m.store.Put(ctx, Collection, resultKey(result.JobID, result.AnalysisType), result)
}

// GetOne retrieves the result for one analysis of one job.
// Returns domain.ErrResultNotFound if it does not exist.
func (m *Manager) GetOne(ctx context.Context, jobID string, t domain.AnalysisType) (*domain.Result, error) {
	var r domain.Result
	if err := m.store.Get(ctx, Collection, resultKey(jobID, t), &r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}
	return &r, nil
}

// GetAll returns every recorded result for the job, keyed by analysis type.
// Skipped and failed entries are included; callers decide how to present
// them. The composite key starts with the job ID, so the lookup scans only
// that job's documents rather than the whole collection.
func (m *Manager) GetAll(ctx context.Context, jobID string) (map[domain.AnalysisType]domain.Result, error) {
	raws, err := m.store.FindPrefix(ctx, Collection, jobID+"/")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AnalysisType]domain.Result, len(raws))
	for _, raw := range raws {
		var r domain.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		out[r.AnalysisType] = r
	}
	return out, nil
}
