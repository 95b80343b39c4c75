package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/auth"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// IngestStarter schedules an ingestion run and returns its id.
type IngestStarter interface {
	Start(path string) (string, error)
}

// RegisterIngestRoutes registers the ingestion trigger.
//
// POST /ingest
// - 202 once the run is scheduled; the outcome is logged, not returned
// - 409 while another run holds the ingestion lock
func RegisterIngestRoutes(r gin.IRoutes, starter IngestStarter, logger *slog.Logger) {
	r.POST("/ingest", func(c *gin.Context) {
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if req.Path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
			return
		}

		runID, err := starter.Start(req.Path)
		switch {
		case errors.Is(err, ingest.ErrInvalidPath):
			logger.WarnContext(c.Request.Context(), "ingest path rejected", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": ingest.ErrInvalidPath.Error()})
			return
		case errors.Is(err, ingest.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			logger.ErrorContext(c.Request.Context(), "start ingestion failed", "error", err, "path", req.Path)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		logger.InfoContext(c.Request.Context(), "ingestion requested",
			"run_id", runID,
			"path", req.Path,
			"principal", auth.Principal(c),
		)
		c.JSON(http.StatusAccepted, models.IngestResponse{RunID: runID, Status: "accepted"})
	})
}
