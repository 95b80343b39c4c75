package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

type countingReader struct {
	calls int
	recs  []models.EventRecord
	err   error
}

func (r *countingReader) FindRecords(_ context.Context, _ RecordQuery) ([]models.EventRecord, error) {
	r.calls++
	return r.recs, r.err
}

func (r *countingReader) ListSubscribers(_ context.Context, _, _ int) ([]string, error) {
	return []string{"A"}, nil
}

func (r *countingReader) SearchSubscribers(_ context.Context, _ string) ([]string, error) {
	return []string{"A"}, nil
}

func TestCachedReader_HitAfterMiss(t *testing.T) {
	next := &countingReader{recs: []models.EventRecord{{SubscriberID: "A", Attributes: models.SessionAttributes{}}}}
	c := NewCachedReader(next, 16, time.Minute)

	q := RecordQuery{SubscriberIDs: []string{"B", "A"}, Latest: true}
	_, err := c.FindRecords(context.Background(), q)
	require.NoError(t, err)

	// Same set in another order hits the cache.
	recs, err := c.FindRecords(context.Background(), RecordQuery{SubscriberIDs: []string{"A", "B"}, Latest: true})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 1, next.calls)

	// Different mode is a different entry.
	_, err = c.FindRecords(context.Background(), RecordQuery{SubscriberIDs: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedReader_PurgeForcesReload(t *testing.T) {
	next := &countingReader{recs: []models.EventRecord{{SubscriberID: "A", Attributes: models.SessionAttributes{}}}}
	c := NewCachedReader(next, 16, time.Minute)
	q := RecordQuery{SubscriberIDs: []string{"A"}, Latest: true}

	_, _ = c.FindRecords(context.Background(), q)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())

	_, _ = c.FindRecords(context.Background(), q)
	assert.Equal(t, 2, next.calls)
}

func TestCachedReader_NotFoundIsNotCached(t *testing.T) {
	next := &countingReader{err: ErrNotFound}
	c := NewCachedReader(next, 16, time.Minute)
	q := RecordQuery{SubscriberIDs: []string{"A"}, Latest: true}

	for i := 0; i < 2; i++ {
		_, err := c.FindRecords(context.Background(), q)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, 2, next.calls)
}

func TestCachedReader_ValidatesBeforeLookup(t *testing.T) {
	next := &countingReader{}
	c := NewCachedReader(next, 16, time.Minute)

	_, err := c.FindRecords(context.Background(), RecordQuery{})
	assert.True(t, errors.Is(err, ErrInvalidQuery))
	assert.Zero(t, next.calls)
}

func TestCacheKey_EventNameDistinguishes(t *testing.T) {
	one, two := 1, 2
	a := cacheKey(RecordQuery{SubscriberIDs: []string{"A"}, EventName: &one})
	b := cacheKey(RecordQuery{SubscriberIDs: []string{"A"}, EventName: &two})
	c := cacheKey(RecordQuery{SubscriberIDs: []string{"A"}})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}
