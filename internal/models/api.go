package models

// RecordsRequest is the body of POST /api/records, /api/records/all and
// /api/records/latest. EventName is optional except on /api/records.
type RecordsRequest struct {
	SubscriberIDs []string `json:"subscriber_ids"`
	EventName     *int     `json:"event_name,omitempty"`
}

// SubscriberPage is returned by GET /api/subscribers.
type SubscriberPage struct {
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
	Data  []string `json:"data"`
}

// IngestRequest is the POST /api/ingest payload.
type IngestRequest struct {
	Path string `json:"path"`
}

// IngestResponse is returned by POST /api/ingest once the run is scheduled.
type IngestResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}
