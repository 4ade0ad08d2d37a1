package pipeline

import (
	"sort"

	"reelscope/internal/domain"
)

// dependencies declares the fixed prerequisite graph between analyses.
// These rules are not user-configurable.
var dependencies = map[domain.AnalysisType][]domain.AnalysisType{
	domain.AnalysisOCR:               {domain.AnalysisSceneDetection},
	domain.AnalysisCaptioning:        {domain.AnalysisSceneDetection},
	domain.AnalysisMatching:          {domain.AnalysisTranscription, domain.AnalysisSceneDetection},
	domain.AnalysisStructuredSummary: {domain.AnalysisOCR, domain.AnalysisCaptioning},
}

// anyOf marks analyses that proceed as long as at least one dependency
// produced a result. structured_summary needs scene-derived data from either
// OCR or captioning, not both.
var anyOf = map[domain.AnalysisType]bool{
	domain.AnalysisStructuredSummary: true,
}

// networkBound marks analyses whose execution is dominated by waiting on a
// remote service. They run outside the CPU worker slots so long polls never
// starve CPU-bound stages.
var networkBound = map[domain.AnalysisType]bool{
	domain.AnalysisMultimodal: true,
}

// fullPipelineSet is the expansion of the full_pipeline alias.
var fullPipelineSet = []domain.AnalysisType{
	domain.AnalysisSceneDetection,
	domain.AnalysisOCR,
	domain.AnalysisCaptioning,
	domain.AnalysisTranscription,
	domain.AnalysisMatching,
	domain.AnalysisStructuredSummary,
}

// Expand resolves the requested set into the concrete execution set:
// full_pipeline is expanded, and every analysis implicitly required to
// satisfy a dependency is added even if not explicitly requested. The result
// is sorted for deterministic scheduling and echo-back.
func Expand(requested []domain.AnalysisType) []domain.AnalysisType {
	set := make(map[domain.AnalysisType]struct{})

	var add func(t domain.AnalysisType)
	add = func(t domain.AnalysisType) {
		if _, ok := set[t]; ok {
			return
		}
		set[t] = struct{}{}
		for _, dep := range dependencies[t] {
			add(dep)
		}
	}

	for _, t := range requested {
		if t == domain.AnalysisFullPipeline {
			for _, sub := range fullPipelineSet {
				add(sub)
			}
			continue
		}
		add(t)
	}

	out := make([]domain.AnalysisType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Waves orders the execution set into topological depth levels. Analyses in
// one wave have all prerequisites in earlier waves and may run concurrently;
// a wave only starts after the previous one has fully finished, so a
// dependency's result is always visible before its dependents execute.
func Waves(set []domain.AnalysisType) [][]domain.AnalysisType {
	inSet := make(map[domain.AnalysisType]bool, len(set))
	for _, t := range set {
		inSet[t] = true
	}

	placed := make(map[domain.AnalysisType]bool, len(set))
	var waves [][]domain.AnalysisType

	for len(placed) < len(set) {
		var wave []domain.AnalysisType
		for _, t := range set {
			if placed[t] {
				continue
			}
			ready := true
			for _, dep := range dependencies[t] {
				if inSet[dep] && !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, t)
			}
		}
		if len(wave) == 0 {
			// unreachable with the fixed acyclic rules above
			break
		}
		for _, t := range wave {
			placed[t] = true
		}
		waves = append(waves, wave)
	}
	return waves
}
