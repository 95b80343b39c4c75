package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/store"
)

// respondStoreError maps a store error onto a response. Storage details are
// logged, never returned.
func respondStoreError(c *gin.Context, logger *slog.Logger, op string, err error) {
	if errors.Is(err, store.ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.ErrorContext(c.Request.Context(), op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
