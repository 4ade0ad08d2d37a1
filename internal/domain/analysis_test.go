package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisTypes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []AnalysisType
		wantErr error
	}{
		{
			name: "single type",
			raw:  "ocr",
			want: []AnalysisType{AnalysisOCR},
		},
		{
			name: "deduplicates and sorts",
			raw:  "transcription,ocr,transcription",
			want: []AnalysisType{AnalysisOCR, AnalysisTranscription},
		},
		{
			name: "trims whitespace and lowercases",
			raw:  " OCR , Scene_Detection ",
			want: []AnalysisType{AnalysisOCR, AnalysisSceneDetection},
		},
		{
			name: "full pipeline alias accepted",
			raw:  "full_pipeline",
			want: []AnalysisType{AnalysisFullPipeline},
		},
		{
			name:    "unknown token rejected",
			raw:     "ocr,face_detection",
			wantErr: ErrUnknownAnalysisType,
		},
		{
			name:    "empty list rejected",
			raw:     "",
			wantErr: ErrEmptyAnalysisList,
		},
		{
			name:    "only separators rejected",
			raw:     ", ,",
			wantErr: ErrEmptyAnalysisList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnalysisTypes(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCancelled, true},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCancelled, false},
		{JobStatusCancelled, JobStatusProcessing, false},
	}

	for _, tt := range tests {
		got := tt.from.CanTransition(tt.to)
		assert.Equal(t, tt.allowed, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}
