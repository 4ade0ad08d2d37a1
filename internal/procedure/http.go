package procedure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"reelscope/internal/config"
	"reelscope/internal/domain"
	"reelscope/internal/prompts"
)

// runnerRequest is the wire shape posted to an analysis runner endpoint.
type runnerRequest struct {
	JobID        string                                  `json:"job_id"`
	VideoPath    string                                  `json:"video_path"`
	WorkingDir   string                                  `json:"working_dir"`
	SystemPrompt string                                  `json:"system_prompt,omitempty"`
	Inputs       map[domain.AnalysisType]json.RawMessage `json:"inputs,omitempty"`
}

// runnerResponse is the wire shape returned by a runner endpoint.
type runnerResponse struct {
	Results json.RawMessage `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// HTTPProcedure invokes an externally hosted analysis runner over HTTP. One
// instance per analysis type, each bound to its endpoint. The optional
// system prompt frames runners that drive an LLM.
type HTTPProcedure struct {
	client       *resty.Client
	endpoint     string
	systemPrompt string
}

// NewHTTPProcedure creates a procedure bound to a runner endpoint.
func NewHTTPProcedure(client *resty.Client, endpoint string) *HTTPProcedure {
	return &HTTPProcedure{client: client, endpoint: endpoint}
}

// Run posts the request to the runner and returns its structured payload.
func (p *HTTPProcedure) Run(ctx context.Context, req *Request) (json.RawMessage, error) {
	body := runnerRequest{
		JobID:        req.JobID,
		VideoPath:    req.VideoPath,
		WorkingDir:   req.WorkingDir,
		SystemPrompt: p.systemPrompt,
		Inputs:       req.Inputs,
	}

	var out runnerResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("analysis runner request failed: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return nil, fmt.Errorf("analysis runner error: %s", out.Error)
		}
		return nil, fmt.Errorf("analysis runner error: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("analysis runner error: %s", out.Error)
	}
	return out.Results, nil
}

// httpAnalyses lists the analysis types served by external HTTP runners.
// multimodal is excluded: it is handled entirely by the remote indexer.
var httpAnalyses = []domain.AnalysisType{
	domain.AnalysisSceneDetection,
	domain.AnalysisOCR,
	domain.AnalysisCaptioning,
	domain.AnalysisTranscription,
	domain.AnalysisMatching,
	domain.AnalysisStructuredSummary,
}

// systemPrompts holds the framing prompt forwarded to runners that drive an
// LLM. Only the summarizer needs one today.
var systemPrompts = map[domain.AnalysisType]string{
	domain.AnalysisStructuredSummary: prompts.StructuredSummarySystemPrompt,
}

// RegisterHTTPProcedures wires an HTTP procedure for every runner-served
// analysis type into the registry. Per-type endpoint overrides win over the
// default base URL joined with the analysis type.
func RegisterHTTPProcedures(reg *Registry, cfg *config.ProceduresConfig) {
	client := resty.New().SetTimeout(cfg.Timeout)
	for _, t := range httpAnalyses {
		endpoint, ok := cfg.Endpoints[string(t)]
		if !ok {
			endpoint = fmt.Sprintf("%s/%s", cfg.BaseURL, t)
		}
		p := NewHTTPProcedure(client, endpoint)
		p.systemPrompt = systemPrompts[t]
		reg.Register(t, p)
	}
}
