package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/store"
)

// RegisterRecordRoutes registers the record read endpoints.
//
// POST /records/latest
// - Latest record per subscriber, optional event_name filter
// - 404 when no subscriber has a matching record
//
// POST /records
// - Every record of one event type; event_name required
//
// POST /records/all
// - Every record with every column, attribute set chosen per row
func RegisterRecordRoutes(r gin.IRoutes, reader store.RecordReader, logger *slog.Logger) {
	r.POST("/records/latest", func(c *gin.Context) {
		req, ok := bindRecordsRequest(c)
		if !ok {
			return
		}

		recs, err := reader.FindRecords(c.Request.Context(), store.RecordQuery{
			SubscriberIDs: req.SubscriberIDs,
			EventName:     req.EventName,
			Latest:        true,
		})
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "no records found for the given subscriber ids"})
			return
		}
		if err != nil {
			respondStoreError(c, logger, "latest records query", err)
			return
		}
		c.JSON(http.StatusOK, recs)
	})

	r.POST("/records", func(c *gin.Context) {
		req, ok := bindRecordsRequest(c)
		if !ok {
			return
		}
		if req.EventName == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_name required"})
			return
		}

		recs, err := reader.FindRecords(c.Request.Context(), store.RecordQuery{
			SubscriberIDs: req.SubscriberIDs,
			EventName:     req.EventName,
		})
		respondList(c, logger, "records query", recs, err)
	})

	r.POST("/records/all", func(c *gin.Context) {
		req, ok := bindRecordsRequest(c)
		if !ok {
			return
		}

		recs, err := reader.FindRecords(c.Request.Context(), store.RecordQuery{
			SubscriberIDs: req.SubscriberIDs,
			AllColumns:    true,
		})
		respondList(c, logger, "all records query", recs, err)
	})
}

func bindRecordsRequest(c *gin.Context) (models.RecordsRequest, bool) {
	var req models.RecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return req, false
	}
	if len(req.SubscriberIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscriber_ids must be a non-empty array"})
		return req, false
	}
	return req, true
}

// respondList answers 200 with an empty list when nothing matched.
func respondList(c *gin.Context, logger *slog.Logger, op string, recs []models.EventRecord, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, []models.EventRecord{})
		return
	}
	if err != nil {
		respondStoreError(c, logger, op, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}
