package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reelscope/internal/store"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store   store.Store
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st store.Store, version string) *HealthHandler {
	return &HealthHandler{store: st, version: version}
}

// Health returns the health status of the service, including which storage
// mode is active and whether the backend answers a ping.
func (h *HealthHandler) Health(c *gin.Context) {
	storageOK := h.store.Ping(c.Request.Context()) == nil

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"version":         h.version,
		"storage_mode":    h.store.Mode(),
		"storage_healthy": storageOK,
		"time":            time.Now().UTC(),
	})
}
