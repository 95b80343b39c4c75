package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// setupTestStore starts Postgres in Docker, applies migrations and returns a
// connected store. Skipped unless TEST_INTEGRATION is set.
func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("telemetry_test"),
		postgres.WithUsername("telemetry"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := discardLogger()
	require.NoError(t, Migrate(dsn, logger))
	// Second run is a no-op.
	require.NoError(t, Migrate(dsn, logger))

	st, err := NewPostgresStore(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func session(ts string, eventName int, id string) models.EventRecord {
	return models.EventRecord{Timestamp: ts, EventName: eventName, SubscriberID: id, Attributes: models.SessionAttributes{IP: "10.0.0.1", CRName: "cr"}}
}

func bitrate(ts string, id string, up float64) models.EventRecord {
	return models.EventRecord{Timestamp: ts, EventName: 1, SubscriberID: id, Attributes: models.BitrateAttributes{ClassIdentifier: "gold", MaxUploadBitRate: &up}}
}

func TestIntegration_LatestPerSubscriber(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	loader := NewEventLoader(st.Pool(), discardLogger())

	n, err := loader.Load(ctx, []models.EventRecord{
		session("1", 2, "A"),
		session("3", 2, "A"),
		bitrate("2", "B", 10),
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	recs, err := st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"A", "B"}, Latest: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].SubscriberID)
	assert.Equal(t, "3", recs[0].Timestamp)
	assert.Equal(t, "B", recs[1].SubscriberID)
	assert.Equal(t, "2", recs[1].Timestamp)

	// No filter means the session projection for every row.
	_, ok := recs[1].Session()
	assert.True(t, ok)

	// Type filter applies to aggregate and join: A has no type-1 events.
	one := 1
	recs, err = st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"A", "B"}, EventName: &one, Latest: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	b, ok := recs[0].Bitrate()
	require.True(t, ok)
	assert.Equal(t, 10.0, *b.MaxUploadBitRate)
	assert.Nil(t, b.MaxDownloadBitRate)

	// Ties on the maximal timestamp are all returned, in insertion order.
	_, err = loader.Load(ctx, []models.EventRecord{session("3", 2, "A")})
	require.NoError(t, err)
	recs, err = st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"A"}, Latest: true})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"nobody"}, Latest: true})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestIntegration_NullsRoundTrip(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	loader := NewEventLoader(st.Pool(), discardLogger())

	_, err := loader.Load(ctx, []models.EventRecord{
		{Timestamp: "5", EventName: 1, SubscriberID: "N1", Attributes: models.BitrateAttributes{}},
		{Timestamp: "5", EventName: 4, SubscriberID: "N2", Attributes: models.SessionAttributes{}},
	})
	require.NoError(t, err)

	recs, err := st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"N1", "N2"}, AllColumns: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	b, ok := recs[0].Bitrate()
	require.True(t, ok)
	assert.Nil(t, b.MaxUploadBitRate)
	assert.Nil(t, b.MaxDownloadBitRate)

	s, ok := recs[1].Session()
	require.True(t, ok)
	assert.Nil(t, s.FupToFull)
	assert.Nil(t, s.FullToFup)
	assert.Nil(t, s.FupStatus)
	assert.Nil(t, s.MultisimFlag)
}

func TestIntegration_OversizeRowFailsWholeBatch(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	loader := NewEventLoader(st.Pool(), discardLogger())

	_, err := loader.Load(ctx, []models.EventRecord{
		session("1", 2, "OK"),
		session("1", 2, "THIS-ID-IS-FAR-TOO-LONG-FOR-THE-COLUMN"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite))

	_, err = st.FindRecords(ctx, RecordQuery{SubscriberIDs: []string{"OK"}})
	assert.True(t, errors.Is(err, ErrNotFound), "no partial commit")
}

func TestIntegration_Subscribers(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	loader := NewEventLoader(st.Pool(), discardLogger())

	_, err := loader.Load(ctx, []models.EventRecord{
		session("1", 2, "96650"), session("2", 2, "96650"),
		session("1", 2, "96651"), session("1", 2, "4470%"),
	})
	require.NoError(t, err)

	page, err := st.ListSubscribers(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4470%", "96650"}, page)

	page, err = st.ListSubscribers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"96651"}, page)

	found, err := st.SearchSubscribers(ctx, "665")
	require.NoError(t, err)
	assert.Equal(t, []string{"96650", "96651"}, found)

	found, err = st.SearchSubscribers(ctx, "%")
	require.NoError(t, err)
	assert.Equal(t, []string{"4470%"}, found, "LIKE wildcards match literally")
}
