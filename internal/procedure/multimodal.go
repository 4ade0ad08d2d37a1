package procedure

import (
	"context"
	"encoding/json"
	"fmt"

	"reelscope/internal/domain"
	"reelscope/internal/indexer"
	"reelscope/internal/prompts"
)

// multimodalPayload is the stored shape of a multimodal analysis result.
type multimodalPayload struct {
	Summary       string `json:"summary"`
	RemoteVideoID string `json:"remote_video_id"`
	ReusedUpload  bool   `json:"reused_existing_upload"`
}

// MultimodalProcedure runs the multimodal analysis through the remote
// indexer: ensure the video is indexed (deduplicated by content
// fingerprint), then generate a summary against it. It has no dependencies
// on the scene/transcription graph.
type MultimodalProcedure struct {
	indexer     *indexer.Indexer
	temperature float64
}

// NewMultimodalProcedure creates the indexer-backed multimodal procedure.
func NewMultimodalProcedure(ix *indexer.Indexer, temperature float64) *MultimodalProcedure {
	return &MultimodalProcedure{indexer: ix, temperature: temperature}
}

// Run implements Procedure.
func (p *MultimodalProcedure) Run(ctx context.Context, req *Request) (json.RawMessage, error) {
	existing, err := p.indexer.Record(ctx, req.Fingerprint)
	if err != nil {
		return nil, err
	}
	reused := existing != nil && existing.IndexingStatus == domain.IndexingStatusReady

	videoID, err := p.indexer.EnsureIndexed(ctx, req.Fingerprint, req.VideoPath)
	if err != nil {
		return nil, err
	}

	summary, err := p.indexer.Generate(ctx, videoID, prompts.MultimodalSummaryPrompt, p.temperature)
	if err != nil {
		return nil, fmt.Errorf("multimodal summary generation failed: %w", err)
	}

	return json.Marshal(multimodalPayload{
		Summary:       summary,
		RemoteVideoID: videoID,
		ReusedUpload:  reused,
	})
}
