package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/store"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// RegisterSubscriberRoutes registers subscriber id listing and search.
func RegisterSubscriberRoutes(r gin.IRoutes, reader store.RecordReader, logger *slog.Logger) {
	r.GET("/subscribers", func(c *gin.Context) {
		page, err := positiveQueryInt(c, "page", 1)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		limit, err := positiveQueryInt(c, "limit", defaultPageLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(limit, maxPageLimit)

		ids, err := reader.ListSubscribers(c.Request.Context(), page, limit)
		if err != nil {
			respondStoreError(c, logger, "list subscribers", err)
			return
		}

		// total is the size of this page.
		c.JSON(http.StatusOK, models.SubscriberPage{
			Page:  page,
			Limit: limit,
			Total: len(ids),
			Data:  ids,
		})
	})

	r.GET("/subscribers/search", func(c *gin.Context) {
		term := c.Query("q")
		if term == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "search term is required"})
			return
		}

		ids, err := reader.SearchSubscribers(c.Request.Context(), term)
		if err != nil {
			respondStoreError(c, logger, "search subscribers", err)
			return
		}
		c.JSON(http.StatusOK, ids)
	})
}

func positiveQueryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, strconv.ErrRange
	}
	return v, nil
}
