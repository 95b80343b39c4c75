package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBuild_EmptySubscriberIDs(t *testing.T) {
	for _, q := range []RecordQuery{
		{},
		{SubscriberIDs: []string{}, Latest: true},
		{SubscriberIDs: []string{"A", "  "}, Latest: true},
	} {
		_, err := q.Build()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidQuery), "got %v", err)
	}
}

func TestBuild_AllRecords_NoFilter(t *testing.T) {
	stmt, err := RecordQuery{SubscriberIDs: []string{"A", "B"}}.Build()
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "e"."timestamp", "e"."event_name", "e"."subscriber_id", "e"."ip", "e"."cr_name", "e"."fup_to_full", "e"."full_to_fup", "e"."fup_status", "e"."multisim_flag" FROM events e WHERE "e"."subscriber_id" = ANY($1) ORDER BY "e"."subscriber_id", "e"."timestamp", "e"."id"`,
		stmt.SQL)
	assert.Equal(t, []any{[]string{"A", "B"}}, stmt.Args)
	assert.Equal(t, ProjectSession, stmt.Projection)
	assert.NotContains(t, stmt.SQL, "JOIN")
}

func TestBuild_Latest_NoFilter(t *testing.T) {
	stmt, err := RecordQuery{SubscriberIDs: []string{"A", "B"}, Latest: true}.Build()
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `JOIN (SELECT "subscriber_id", MAX("timestamp") AS latest_timestamp FROM events WHERE "subscriber_id" = ANY($1) GROUP BY "subscriber_id") latest`)
	assert.Contains(t, stmt.SQL, `ON "e"."subscriber_id" = latest.subscriber_id AND "e"."timestamp" = latest.latest_timestamp`)
	assert.Contains(t, stmt.SQL, `WHERE "e"."subscriber_id" = ANY($1) ORDER BY "e"."subscriber_id", "e"."id"`)
	assert.NotContains(t, stmt.SQL, "event_name\" = $")
	assert.Len(t, stmt.Args, 1)
}

func TestBuild_Latest_FilterAppliedOnBothSides(t *testing.T) {
	stmt, err := RecordQuery{SubscriberIDs: []string{"A"}, EventName: intPtr(2), Latest: true}.Build()
	require.NoError(t, err)

	// One bound value, referenced by the aggregate and by the join side.
	assert.Equal(t, []any{[]string{"A"}, 2}, stmt.Args)
	assert.Equal(t, 1, strings.Count(stmt.SQL, `WHERE "subscriber_id" = ANY($1) AND "event_name" = $2 GROUP BY`))
	assert.Equal(t, 1, strings.Count(stmt.SQL, `WHERE "e"."subscriber_id" = ANY($1) AND "e"."event_name" = $2 ORDER BY`))
	assert.NotContains(t, stmt.SQL, "$3")
}

func TestBuild_ProjectionFollowsFilter(t *testing.T) {
	bitrate, err := RecordQuery{SubscriberIDs: []string{"A"}, EventName: intPtr(1), Latest: true}.Build()
	require.NoError(t, err)
	assert.Equal(t, ProjectBitrate, bitrate.Projection)
	assert.Contains(t, bitrate.SQL, `"e"."max_upload_bit_rate"`)
	assert.NotContains(t, bitrate.SQL, `"e"."ip"`)

	session, err := RecordQuery{SubscriberIDs: []string{"A"}, EventName: intPtr(7)}.Build()
	require.NoError(t, err)
	assert.Equal(t, ProjectSession, session.Projection)
	assert.Contains(t, session.SQL, `"e"."fup_status"`)
	assert.NotContains(t, session.SQL, `"e"."class_identifier"`)

	all, err := RecordQuery{SubscriberIDs: []string{"A"}, EventName: intPtr(1), AllColumns: true}.Build()
	require.NoError(t, err)
	assert.Equal(t, ProjectAll, all.Projection)
	assert.Contains(t, all.SQL, `"e"."class_identifier"`)
	assert.Contains(t, all.SQL, `"e"."multisim_flag"`)
}

func TestBuild_SubscriberIDsAreBoundNotInlined(t *testing.T) {
	hostile := `A'); DROP TABLE events; --`
	stmt, err := RecordQuery{SubscriberIDs: []string{hostile}, Latest: true}.Build()
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, "DROP TABLE")
	assert.Equal(t, []any{[]string{hostile}}, stmt.Args)
}

func TestProjection_Columns(t *testing.T) {
	assert.Equal(t, 9, len(ProjectSession.Columns()))
	assert.Equal(t, 6, len(ProjectBitrate.Columns()))
	assert.Equal(t, 12, len(ProjectAll.Columns()))
}

func TestProperty_ProjectionNeverMixes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("type filter selects exactly one attribute set", prop.ForAll(
		func(eventName int, latest bool, ids []string) bool {
			if len(ids) == 0 {
				ids = []string{"A"}
			}
			stmt, err := RecordQuery{SubscriberIDs: ids, EventName: &eventName, Latest: latest}.Build()
			if err != nil {
				return false
			}
			hasBitrate := strings.Contains(stmt.SQL, `"e"."class_identifier"`)
			hasSession := strings.Contains(stmt.SQL, `"e"."ip"`)
			if eventName == 1 {
				return hasBitrate && !hasSession
			}
			return hasSession && !hasBitrate
		},
		gen.IntRange(-5, 10),
		gen.Bool(),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("filters are bound once and reused on both sides", prop.ForAll(
		func(eventName int, ids []string) bool {
			if len(ids) == 0 {
				ids = []string{"A"}
			}
			stmt, err := RecordQuery{SubscriberIDs: ids, EventName: &eventName, Latest: true}.Build()
			if err != nil {
				return false
			}
			return len(stmt.Args) == 2 &&
				strings.Count(stmt.SQL, "$2") == 2 &&
				strings.Count(stmt.SQL, "$1") == 2
		},
		gen.IntRange(-5, 10),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	assert.Equal(t, "9665", escapeLike("9665"))
}
