package models

import (
	"encoding/json"
)

// BitrateEvent is the discriminant value whose records carry BitrateAttributes.
// Every other event type carries SessionAttributes.
const BitrateEvent = 1

// EventRecord is one observed network event for a subscriber.
// The attribute set is selected by EventName and never mixes both shapes.
type EventRecord struct {
	Timestamp    string
	EventName    int
	SubscriberID string
	Attributes   EventAttributes
}

// EventAttributes is the per-type attribute set of an EventRecord.
// Implemented only by BitrateAttributes and SessionAttributes.
type EventAttributes interface {
	isEventAttributes()
}

// BitrateAttributes are the attributes of event type 1.
type BitrateAttributes struct {
	ClassIdentifier    string
	MaxUploadBitRate   *float64
	MaxDownloadBitRate *float64
}

// SessionAttributes are the attributes of every non-bitrate event type.
type SessionAttributes struct {
	IP           string
	CRName       string
	FupToFull    *string
	FullToFup    *string
	FupStatus    *string
	MultisimFlag *string
}

func (BitrateAttributes) isEventAttributes() {}
func (SessionAttributes) isEventAttributes() {}

// IsBitrate reports whether eventName selects the bitrate attribute set.
func IsBitrate(eventName int) bool {
	return eventName == BitrateEvent
}

// Bitrate returns the bitrate attributes, or false for a session record.
func (r EventRecord) Bitrate() (BitrateAttributes, bool) {
	a, ok := r.Attributes.(BitrateAttributes)
	return a, ok
}

// Session returns the session attributes, or false for a bitrate record.
func (r EventRecord) Session() (SessionAttributes, bool) {
	a, ok := r.Attributes.(SessionAttributes)
	return a, ok
}

// bitrateJSON and sessionJSON are the flat wire shapes of the two variants.
type bitrateJSON struct {
	Timestamp          string   `json:"timestamp"`
	EventName          int      `json:"event_name"`
	SubscriberID       string   `json:"subscriber_id"`
	ClassIdentifier    string   `json:"class_identifier"`
	MaxUploadBitRate   *float64 `json:"max_upload_bit_rate"`
	MaxDownloadBitRate *float64 `json:"max_download_bit_rate"`
}

type sessionJSON struct {
	Timestamp    string  `json:"timestamp"`
	EventName    int     `json:"event_name"`
	SubscriberID string  `json:"subscriber_id"`
	IP           string  `json:"ip"`
	CRName       string  `json:"cr_name"`
	FupToFull    *string `json:"fup_to_full"`
	FullToFup    *string `json:"full_to_fup"`
	FupStatus    *string `json:"fup_status"`
	MultisimFlag *string `json:"multisim_flag"`
}

// MarshalJSON flattens the header and the single populated attribute set.
func (r EventRecord) MarshalJSON() ([]byte, error) {
	switch a := r.Attributes.(type) {
	case BitrateAttributes:
		return json.Marshal(bitrateJSON{
			Timestamp:          r.Timestamp,
			EventName:          r.EventName,
			SubscriberID:       r.SubscriberID,
			ClassIdentifier:    a.ClassIdentifier,
			MaxUploadBitRate:   a.MaxUploadBitRate,
			MaxDownloadBitRate: a.MaxDownloadBitRate,
		})
	case SessionAttributes:
		return json.Marshal(sessionJSON{
			Timestamp:    r.Timestamp,
			EventName:    r.EventName,
			SubscriberID: r.SubscriberID,
			IP:           a.IP,
			CRName:       a.CRName,
			FupToFull:    a.FupToFull,
			FullToFup:    a.FullToFup,
			FupStatus:    a.FupStatus,
			MultisimFlag: a.MultisimFlag,
		})
	default:
		// Header only; should not happen for decoded or scanned records.
		return json.Marshal(struct {
			Timestamp    string `json:"timestamp"`
			EventName    int    `json:"event_name"`
			SubscriberID string `json:"subscriber_id"`
		}{r.Timestamp, r.EventName, r.SubscriberID})
	}
}
