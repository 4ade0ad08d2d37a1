package handler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reelscope/internal/config"
	"reelscope/internal/domain"
	"reelscope/internal/indexer"
	"reelscope/internal/job"
	"reelscope/internal/logger"
	"reelscope/internal/results"
	"reelscope/internal/storage"
)

// PipelineRunner drives job execution on a background goroutine.
type PipelineRunner interface {
	Execute(ctx context.Context, jobID string)
}

// UploadWorkspace owns the per-job temp directories for uploaded videos.
type UploadWorkspace interface {
	Create(jobID string) (string, error)
	SaveUpload(dir string, file *multipart.FileHeader, name string) (string, error)
}

// AnalyzeHandler handles the video analysis job endpoints.
type AnalyzeHandler struct {
	jobs    *job.Manager
	results *results.Manager
	runner  PipelineRunner
	ws      UploadWorkspace
	indexer *indexer.Indexer // nil when the remote indexing service is not configured
	archive storage.ObjectStorage
	upload  config.UploadConfig
}

// NewAnalyzeHandler creates the analysis job handler.
// Parameters:
//   - jobs: job lifecycle manager.
//   - res: results manager.
//   - runner: pipeline runner used to execute jobs in the background.
//   - ws: upload workspace.
//   - ix: remote indexer, nil when multimodal analysis is unavailable.
//   - archive: optional source-video archive, nil when disabled.
//   - upload: upload validation settings.
// Returns:
//   - *AnalyzeHandler: initialized handler.
func NewAnalyzeHandler(
	jobs *job.Manager,
	res *results.Manager,
	runner PipelineRunner,
	ws UploadWorkspace,
	ix *indexer.Indexer,
	archive storage.ObjectStorage,
	upload config.UploadConfig,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		jobs:    jobs,
		results: res,
		runner:  runner,
		ws:      ws,
		indexer: ix,
		archive: archive,
		upload:  upload,
	}
}

// Submit handles POST /analyze. It validates the upload, creates a pending
// job, and schedules pipeline execution in the background; the response
// never waits on any analysis.
func (h *AnalyzeHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing video file"})
		return
	}

	if err := h.validateUpload(file.Filename, file.Size); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analyses, err := domain.ParseAnalysisTypes(c.PostForm("analysis_types"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if containsType(analyses, domain.AnalysisMultimodal) && h.indexer == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multimodal analysis is not available: indexing service not configured",
		})
		return
	}

	// Working directory first: the video must be on disk before the job
	// record exists, so a racing GET never sees a job without its file.
	jobID := uuid.New().String()
	dir, err := h.ws.Create(jobID)
	if err != nil {
		logger.CtxError(ctx, "Failed to create working dir: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}
	saved, err := h.ws.SaveUpload(dir, file, filepath.Base(file.Filename))
	if err != nil {
		logger.CtxError(ctx, "Failed to stage upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	fingerprint, err := fingerprintFile(saved)
	if err != nil {
		logger.CtxError(ctx, "Failed to fingerprint upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		return
	}

	video := domain.VideoMetadata{
		Filename:    filepath.Base(saved),
		Fingerprint: fingerprint,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	}

	j, err := h.jobs.CreateWithID(ctx, jobID, analyses, video, dir)
	if err != nil {
		logger.CtxError(ctx, "Failed to create job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	if h.archive != nil {
		go h.archiveVideo(saved, fingerprint, video)
	}

	go h.runner.Execute(context.WithoutCancel(ctx), j.ID)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     j.ID,
		"status":     j.Status,
		"created_at": j.CreatedAt,
	})
}

// Status handles GET /analyze/:job_id.
func (h *AnalyzeHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	j, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		logger.CtxError(ctx, "Failed to load job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	resp := gin.H{
		"job_id":     j.ID,
		"status":     j.Status,
		"analyses":   j.RequestedAnalyses,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.Error != "" {
		resp["error"] = j.Error
	}

	if j.Status == domain.JobStatusProcessing || j.Status.Terminal() {
		res, err := h.results.GetAll(ctx, jobID)
		if err != nil {
			logger.CtxError(ctx, "Failed to load results: %v", err)
		} else if len(res) > 0 {
			resp["results"] = res
		}
	}

	if h.indexer != nil && containsType(j.RequestedAnalyses, domain.AnalysisMultimodal) {
		if rec, err := h.indexer.Record(ctx, j.Video.Fingerprint); err == nil && rec != nil {
			resp["indexing"] = gin.H{
				"status":   rec.IndexingStatus,
				"progress": rec.IndexingProgress,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel handles DELETE /analyze/:job_id.
func (h *AnalyzeHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	j, err := h.jobs.Cancel(ctx, jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":  fmt.Sprintf("Job already %s", j.Status),
			"status": j.Status,
		})
		return
	case err != nil:
		logger.CtxError(ctx, "Failed to cancel job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (h *AnalyzeHandler) validateUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file has no extension")
	}
	supported := false
	for _, f := range h.upload.SupportedFormats {
		if ext == strings.ToLower(f) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported video format %s, supported: %s",
			ext, strings.Join(h.upload.SupportedFormats, ", "))
	}
	if h.upload.MaxSizeMB > 0 && size > h.upload.MaxSizeMB*1024*1024 {
		return fmt.Errorf("file exceeds maximum size of %d MB", h.upload.MaxSizeMB)
	}
	return nil
}

// archiveVideo copies the accepted upload to the archive, keyed by
// fingerprint so duplicates share one archived object.
func (h *AnalyzeHandler) archiveVideo(path, fingerprint string, video domain.VideoMetadata) {
	ctx := context.Background()
	key := fingerprint + filepath.Ext(video.Filename)

	if ok, err := h.archive.Exists(ctx, key); err == nil && ok {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.CtxWarn(ctx, "Archive skipped, cannot open %s: %v", path, err)
		return
	}
	defer f.Close()

	if err := h.archive.Upload(ctx, key, f, video.Size, video.ContentType); err != nil {
		logger.CtxWarn(ctx, "Archive upload failed for %s: %v", key, err)
	}
}

func containsType(set []domain.AnalysisType, t domain.AnalysisType) bool {
	for _, a := range set {
		if a == t {
			return true
		}
	}
	return false
}

// fingerprintFile computes the MD5 content fingerprint of a stored upload.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for fingerprint: %w", err)
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
