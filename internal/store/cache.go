package store

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_query_cache_hits_total",
		Help: "Record queries served from the in-memory cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_query_cache_misses_total",
		Help: "Record queries that went to Postgres.",
	})
)

// CachedReader memoizes FindRecords results per instance. Subscriber listings
// pass through. Purge must run after every successful ingestion.
type CachedReader struct {
	next  RecordReader
	cache *expirable.LRU[string, []models.EventRecord]
}

// NewCachedReader wraps next with an LRU of size entries living for ttl.
func NewCachedReader(next RecordReader, size int, ttl time.Duration) *CachedReader {
	return &CachedReader{
		next:  next,
		cache: expirable.NewLRU[string, []models.EventRecord](size, nil, ttl),
	}
}

// FindRecords serves q from cache when possible. Errors, including
// ErrNotFound, are never cached.
func (c *CachedReader) FindRecords(ctx context.Context, q RecordQuery) ([]models.EventRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(q)
	if recs, ok := c.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return recs, nil
	}
	cacheMissesTotal.Inc()

	recs, err := c.next.FindRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, recs)
	return recs, nil
}

func (c *CachedReader) ListSubscribers(ctx context.Context, page, limit int) ([]string, error) {
	return c.next.ListSubscribers(ctx, page, limit)
}

func (c *CachedReader) SearchSubscribers(ctx context.Context, term string) ([]string, error) {
	return c.next.SearchSubscribers(ctx, term)
}

// Purge drops every cached result.
func (c *CachedReader) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached queries.
func (c *CachedReader) Len() int {
	return c.cache.Len()
}

// cacheKey is order-insensitive in the subscriber ids; results are ordered by
// subscriber id in SQL, so equal keys always mean equal results.
func cacheKey(q RecordQuery) string {
	ids := slices.Clone(q.SubscriberIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var b strings.Builder
	b.WriteString(strconv.FormatBool(q.Latest))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(q.AllColumns))
	b.WriteByte('|')
	if q.EventName != nil {
		b.WriteString(strconv.Itoa(*q.EventName))
	}
	b.WriteByte('|')
	// \x00 cannot appear in a valid id.
	b.WriteString(strings.Join(ids, "\x00"))
	return b.String()
}
