package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// eventsTable and eventColumns describe the COPY target; order matches eventRow.
var (
	eventsTable  = pgx.Identifier{"events"}
	eventColumns = []string{
		"timestamp", "event_name", "subscriber_id",
		"ip", "cr_name",
		"class_identifier", "max_upload_bit_rate", "max_download_bit_rate",
		"fup_to_full", "full_to_fup", "fup_status", "multisim_flag",
	}
)

// Copier is the bulk-write surface of the pool. Implemented by *pgxpool.Pool,
// *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// EventLoader persists decoded records with a single COPY per batch.
// COPY is one statement, so storage either accepts the whole batch or none of it.
type EventLoader struct {
	db     Copier
	logger *slog.Logger
}

// NewEventLoader creates a loader writing through db.
func NewEventLoader(db Copier, logger *slog.Logger) *EventLoader {
	return &EventLoader{
		db:     db,
		logger: logger.With(slog.String("component", "loader")),
	}
}

// Load writes records in one bulk operation and returns the row count reported
// by storage. An empty batch is a no-op. Failures wrap ErrStorageWrite.
func (l *EventLoader) Load(ctx context.Context, records []models.EventRecord) (int64, error) {
	if len(records) == 0 {
		l.logger.Info("nothing to insert")
		return 0, nil
	}

	n, err := l.db.CopyFrom(ctx, eventsTable, eventColumns, pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return eventRow(records[i]), nil
	}))
	if err != nil {
		return 0, fmt.Errorf("%w: copy %d rows: %w", ErrStorageWrite, len(records), err)
	}

	// Storage's count is authoritative; a mismatch is reported, not failed.
	if n != int64(len(records)) {
		l.logger.Warn("inserted row count differs from batch size",
			slog.Int("batch", len(records)),
			slog.Int64("inserted", n),
		)
	}

	l.logger.Info("inserted rows", slog.Int64("rows", n))
	return n, nil
}

// eventRow flattens a record into column order; attributes of the other
// variant are written as NULL.
func eventRow(r models.EventRecord) []any {
	row := make([]any, len(eventColumns))
	row[0] = r.Timestamp
	row[1] = r.EventName
	row[2] = r.SubscriberID

	switch a := r.Attributes.(type) {
	case models.BitrateAttributes:
		row[5] = a.ClassIdentifier
		row[6] = floatOrNil(a.MaxUploadBitRate)
		row[7] = floatOrNil(a.MaxDownloadBitRate)
	case models.SessionAttributes:
		row[3] = a.IP
		row[4] = a.CRName
		row[8] = stringOrNil(a.FupToFull)
		row[9] = stringOrNil(a.FullToFup)
		row[10] = stringOrNil(a.FupStatus)
		row[11] = stringOrNil(a.MultisimFlag)
	}
	return row
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
