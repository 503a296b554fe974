package model

import "time"

// RequestKind distinguishes the two billable request types.
type RequestKind string

const (
	RequestPreview RequestKind = "preview"
	RequestFetch   RequestKind = "fetch"
)

// UsageStatus is the final outcome recorded for a request.
type UsageStatus string

const (
	UsageCompleted UsageStatus = "completed"
	UsageFailed    UsageStatus = "failed"
)

// UsageRecord is one append-only row per completed or failed request.
// Written after the outcome is known, never mutated.
type UsageRecord struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id,omitempty"`
	APIKeyID       string      `json:"api_key_id,omitempty"`
	RequestKind    RequestKind `json:"request_type"`
	URL            string      `json:"url"`
	EndpointID     string      `json:"endpoint_id,omitempty"`
	AmountUSD      float64     `json:"amount_usd"`
	TxHash         string      `json:"tx_hash,omitempty"`
	Status         UsageStatus `json:"status"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	ResponseTimeMS int64       `json:"response_time_ms"`
	CreatedAt      time.Time   `json:"created_at"`
}

// IsValid performs boundary validation before the record enters the
// usage stream.
func (r *UsageRecord) IsValid() bool {
	if r.ID == "" || r.URL == "" {
		return false
	}
	if r.RequestKind != RequestPreview && r.RequestKind != RequestFetch {
		return false
	}
	if r.Status != UsageCompleted && r.Status != UsageFailed {
		return false
	}
	return r.AmountUSD >= 0
}
