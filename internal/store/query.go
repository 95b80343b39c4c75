package store

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// RecordQuery selects event records for a set of subscribers.
//
// In latest mode exactly the rows holding each subscriber's maximum timestamp
// (among rows matching the filters) are returned. Rows tied on that timestamp
// are all returned, ordered by insertion.
type RecordQuery struct {
	SubscriberIDs []string
	// EventName restricts matches to one event type when set.
	EventName *int
	Latest    bool
	// AllColumns returns both attribute sets; the variant of each record is
	// then chosen by its own discriminant.
	AllColumns bool
}

// Projection names the attribute set a statement selects.
type Projection int

const (
	ProjectSession Projection = iota
	ProjectBitrate
	ProjectAll
)

var (
	headerColumns  = []string{"timestamp", "event_name", "subscriber_id"}
	bitrateColumns = []string{"class_identifier", "max_upload_bit_rate", "max_download_bit_rate"}
	sessionColumns = []string{"ip", "cr_name", "fup_to_full", "full_to_fup", "fup_status", "multisim_flag"}
)

// Columns returns the selected columns in scan order.
func (p Projection) Columns() []string {
	cols := append([]string{}, headerColumns...)
	switch p {
	case ProjectBitrate:
		return append(cols, bitrateColumns...)
	case ProjectAll:
		cols = append(cols, bitrateColumns...)
		return append(cols, sessionColumns...)
	default:
		return append(cols, sessionColumns...)
	}
}

// Statement is a built query ready for pgx.
type Statement struct {
	SQL        string
	Args       []any
	Projection Projection
}

// Projection picks the attribute set from the type filter: the bitrate set for
// type 1, the session set otherwise.
func (q RecordQuery) Projection() Projection {
	switch {
	case q.AllColumns:
		return ProjectAll
	case q.EventName != nil && models.IsBitrate(*q.EventName):
		return ProjectBitrate
	default:
		return ProjectSession
	}
}

// Validate rejects requests that must never reach storage.
func (q RecordQuery) Validate() error {
	if len(q.SubscriberIDs) == 0 {
		return fmt.Errorf("%w: subscriber ids required", ErrInvalidQuery)
	}
	for i, id := range q.SubscriberIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: subscriber id at index %d is empty", ErrInvalidQuery, i)
		}
	}
	return nil
}

// Build renders the statement. Filters are bound once and the same scope is
// applied to the aggregate and to the join, so both agree on which events count.
func (q RecordQuery) Build() (Statement, error) {
	if err := q.Validate(); err != nil {
		return Statement{}, err
	}

	var b binder
	sc := scope{anyOf{column: "subscriber_id", param: b.bind(q.SubscriberIDs)}}
	if q.EventName != nil {
		sc = append(sc, equals{column: "event_name", param: b.bind(*q.EventName)})
	}

	proj := q.Projection()
	cols := selectList("e", proj.Columns())

	var sql string
	if q.Latest {
		sql = fmt.Sprintf(
			`SELECT %s FROM events e JOIN (SELECT %s, MAX(%s) AS latest_timestamp FROM events WHERE %s GROUP BY %s) latest ON %s = latest.subscriber_id AND %s = latest.latest_timestamp WHERE %s ORDER BY %s, %s`,
			cols,
			ident("", "subscriber_id"), ident("", "timestamp"),
			sc.where(""),
			ident("", "subscriber_id"),
			ident("e", "subscriber_id"), ident("e", "timestamp"),
			sc.where("e"),
			ident("e", "subscriber_id"), ident("e", "id"),
		)
	} else {
		sql = fmt.Sprintf(
			`SELECT %s FROM events e WHERE %s ORDER BY %s, %s, %s`,
			cols,
			sc.where("e"),
			ident("e", "subscriber_id"), ident("e", "timestamp"), ident("e", "id"),
		)
	}

	return Statement{SQL: sql, Args: b.args, Projection: proj}, nil
}

// binder assigns positional parameters.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// predicate is one bound filter fragment, renderable against any table alias.
type predicate interface {
	render(alias string) string
}

type anyOf struct {
	column string
	param  string
}

func (p anyOf) render(alias string) string {
	return fmt.Sprintf("%s = ANY(%s)", ident(alias, p.column), p.param)
}

type equals struct {
	column string
	param  string
}

func (p equals) render(alias string) string {
	return fmt.Sprintf("%s = %s", ident(alias, p.column), p.param)
}

// scope is the conjunction of filters that decides which events count.
type scope []predicate

func (s scope) where(alias string) string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.render(alias)
	}
	return strings.Join(parts, " AND ")
}

func ident(alias, column string) string {
	if alias == "" {
		return pgx.Identifier{column}.Sanitize()
	}
	return pgx.Identifier{alias, column}.Sanitize()
}

func selectList(alias string, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = ident(alias, c)
	}
	return strings.Join(parts, ", ")
}
