package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// RecordReader is the read surface used by the HTTP layer.
type RecordReader interface {
	FindRecords(ctx context.Context, q RecordQuery) ([]models.EventRecord, error)
	ListSubscribers(ctx context.Context, page, limit int) ([]string, error)
	SearchSubscribers(ctx context.Context, term string) ([]string, error)
}

// SearchLimit caps SearchSubscribers results.
const SearchLimit = 100

// FindRecords runs q and scans rows into the attribute set chosen by its
// projection. Returns ErrNotFound when nothing matches.
func (p *PostgresStore) FindRecords(ctx context.Context, q RecordQuery) ([]models.EventRecord, error) {
	stmt, err := q.Build()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", ErrStorageRead, err)
	}
	defer rows.Close()

	var out []models.EventRecord
	for rows.Next() {
		rec, err := scanRecord(rows, stmt.Projection)
		if err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrStorageRead, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", ErrStorageRead, err)
	}

	p.logger.Debug("records query",
		slog.Int("subscribers", len(q.SubscriberIDs)),
		slog.Bool("latest", q.Latest),
		slog.Int("rows", len(out)),
		slog.Duration("duration", time.Since(start)),
	)

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// ListSubscribers returns one page of distinct subscriber ids. page is 1-based.
func (p *PostgresStore) ListSubscribers(ctx context.Context, page, limit int) ([]string, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w: page and limit must be positive", ErrInvalidQuery)
	}
	offset := (page - 1) * limit

	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT subscriber_id
		FROM events
		ORDER BY subscriber_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscribers: %w", ErrStorageRead, err)
	}
	return collectIDs(rows)
}

// SearchSubscribers returns up to SearchLimit distinct ids containing term.
func (p *PostgresStore) SearchSubscribers(ctx context.Context, term string) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term required", ErrInvalidQuery)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT subscriber_id
		FROM events
		WHERE subscriber_id ILIKE $1 ESCAPE '\'
		ORDER BY subscriber_id
		LIMIT $2
	`, "%"+escapeLike(term)+"%", SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: search subscribers: %w", ErrStorageRead, err)
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: collect ids: %w", ErrStorageRead, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// scanRecord reads one row laid out as proj.Columns().
func scanRecord(row pgx.Row, proj Projection) (models.EventRecord, error) {
	var (
		rec                          models.EventRecord
		class                        pgtype.Text
		up, down                     pgtype.Float8
		ip, crName                   pgtype.Text
		fupToFull, fullToFup, status pgtype.Text
		multisim                     pgtype.Text
	)
	header := []any{&rec.Timestamp, &rec.EventName, &rec.SubscriberID}
	bitrate := []any{&class, &up, &down}
	session := []any{&ip, &crName, &fupToFull, &fullToFup, &status, &multisim}

	var dest []any
	switch proj {
	case ProjectBitrate:
		dest = append(append(dest, header...), bitrate...)
	case ProjectAll:
		dest = append(append(append(dest, header...), bitrate...), session...)
	default:
		dest = append(append(dest, header...), session...)
	}
	if err := row.Scan(dest...); err != nil {
		return models.EventRecord{}, err
	}

	useBitrate := proj == ProjectBitrate || (proj == ProjectAll && models.IsBitrate(rec.EventName))
	if useBitrate {
		rec.Attributes = models.BitrateAttributes{
			ClassIdentifier:    class.String,
			MaxUploadBitRate:   floatPtr(up),
			MaxDownloadBitRate: floatPtr(down),
		}
	} else {
		rec.Attributes = models.SessionAttributes{
			IP:           ip.String,
			CRName:       crName.String,
			FupToFull:    textPtr(fupToFull),
			FullToFup:    textPtr(fullToFup),
			FupStatus:    textPtr(status),
			MultisimFlag: textPtr(multisim),
		}
	}
	return rec, nil
}

func floatPtr(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
