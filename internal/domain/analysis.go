package domain

import (
	"fmt"
	"sort"
	"strings"
)

// AnalysisType identifies one analysis a client may request for a video.
type AnalysisType string

const (
	AnalysisSceneDetection    AnalysisType = "scene_detection"
	AnalysisOCR               AnalysisType = "ocr"
	AnalysisCaptioning        AnalysisType = "captioning"
	AnalysisTranscription     AnalysisType = "transcription"
	AnalysisMatching          AnalysisType = "matching"
	AnalysisStructuredSummary AnalysisType = "structured_summary"
	AnalysisMultimodal        AnalysisType = "multimodal"

	// AnalysisFullPipeline is an alias token expanding to every concrete
	// analysis type. It never appears in stored results.
	AnalysisFullPipeline AnalysisType = "full_pipeline"
)

var allAnalyses = []AnalysisType{
	AnalysisSceneDetection,
	AnalysisOCR,
	AnalysisCaptioning,
	AnalysisTranscription,
	AnalysisMatching,
	AnalysisStructuredSummary,
	AnalysisMultimodal,
}

// Valid reports whether t is a recognized request token, alias included.
func (t AnalysisType) Valid() bool {
	if t == AnalysisFullPipeline {
		return true
	}
	for _, a := range allAnalyses {
		if t == a {
			return true
		}
	}
	return false
}

// SupportedAnalysisTypes returns every concrete analysis type.
func SupportedAnalysisTypes() []AnalysisType {
	return append([]AnalysisType(nil), allAnalyses...)
}

// ParseAnalysisTypes parses a comma-separated client token list into a
// deduplicated, deterministically ordered analysis set. Unknown tokens and
// empty lists are rejected.
func ParseAnalysisTypes(raw string) ([]AnalysisType, error) {
	seen := make(map[AnalysisType]bool)
	var out []AnalysisType

	for _, tok := range strings.Split(raw, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		t := AnalysisType(tok)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysisType, tok)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyAnalysisList
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
