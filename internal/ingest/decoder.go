package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// Header names of the ingested file.
const (
	ColTimestamp          = "timestamp"
	ColEventName          = "eventName"
	ColSubscriberID       = "MSISDN"
	ColIP                 = "ip"
	ColCRName             = "crName"
	ColClassIdentifier    = "classIdentifier"
	ColMaxUploadBitRate   = "maxUploadBitRate"
	ColMaxDownloadBitRate = "maxDownloadBitRate"
	ColFupToFull          = "fup_to_full"
	ColFullToFup          = "full_to_fup"
	ColFupStatus          = "fup_status"
	ColMultisimFlag       = "multisim_flag"
)

// Row is one data row keyed by header name.
type Row map[string]string

// DecodeError reports a row that cannot become an EventRecord.
type DecodeError struct {
	Line   int
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: field %q: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Decode turns a raw row into a typed record.
//
// Numeric attributes that are empty or not numbers become nil and never fail
// the row. Only the identifying fields can produce a *DecodeError.
func Decode(row Row) (models.EventRecord, error) {
	ts, err := required(row, ColTimestamp)
	if err != nil {
		return models.EventRecord{}, err
	}
	id, err := required(row, ColSubscriberID)
	if err != nil {
		return models.EventRecord{}, err
	}
	rawName, err := required(row, ColEventName)
	if err != nil {
		return models.EventRecord{}, err
	}
	eventName, err := strconv.Atoi(strings.TrimSpace(rawName))
	if err != nil {
		return models.EventRecord{}, &DecodeError{Field: ColEventName, Reason: fmt.Sprintf("not an integer: %q", rawName)}
	}

	rec := models.EventRecord{
		Timestamp:    ts,
		EventName:    eventName,
		SubscriberID: id,
	}

	if models.IsBitrate(eventName) {
		rec.Attributes = models.BitrateAttributes{
			ClassIdentifier:    row[ColClassIdentifier],
			MaxUploadBitRate:   parseNullableFloat(row[ColMaxUploadBitRate]),
			MaxDownloadBitRate: parseNullableFloat(row[ColMaxDownloadBitRate]),
		}
	} else {
		rec.Attributes = models.SessionAttributes{
			IP:           row[ColIP],
			CRName:       row[ColCRName],
			FupToFull:    nullableString(row[ColFupToFull]),
			FullToFup:    nullableString(row[ColFullToFup]),
			FupStatus:    nullableString(row[ColFupStatus]),
			MultisimFlag: nullableString(row[ColMultisimFlag]),
		}
	}
	return rec, nil
}

// required returns the trimmed value of an identifying field.
func required(row Row, field string) (string, error) {
	v, ok := row[field]
	if !ok {
		return "", &DecodeError{Field: field, Reason: "missing"}
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", &DecodeError{Field: field, Reason: "empty"}
	}
	return v, nil
}

// parseNullableFloat returns nil for empty, malformed or non-finite input.
// Non-finite values have no JSON encoding.
func parseNullableFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// nullableString maps "" to nil and passes anything else through verbatim.
func nullableString(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
