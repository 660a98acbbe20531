package domain

import "time"

// Provider job states. Only StatusSuccess is terminal for us.
const (
	StatusSuccess = "Success"
	StatusPending = "Pending"
)

// JobOptions are the knobs sent with an async reviews request.
type JobOptions struct {
	Sort         string
	ReviewsLimit int
	Language     string
	Cutoff       *time.Time // provider filters out reviews older than this
}

// JobHandle is an outstanding async request. It lives only in memory.
type JobHandle struct {
	RequestID string
	TargetID  string
}

// JobStatus is one poll answer. Data is set only when Status is StatusSuccess.
type JobStatus struct {
	ID     string
	Status string
	Data   []map[string]any
}

func (s JobStatus) Resolved() bool { return s.Status == StatusSuccess }

// Batch outcomes.
const (
	BatchSuccess = "success"
	BatchError   = "error"
)

// RecordError is one record that could not be written. Key is the place id or
// review id, or "unknown" when the payload had none.
type RecordError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// BatchResult summarizes one Persist call.
type BatchResult struct {
	Status             string        `json:"status"`
	Message            string        `json:"message,omitempty"`
	BusinessesInserted int           `json:"businesses_inserted"`
	ReviewsInserted    int           `json:"reviews_inserted"`
	BusinessErrors     []RecordError `json:"businesses_errors"`
	ReviewErrors       []RecordError `json:"reviews_errors"`
}

func (r BatchResult) OK() bool { return r.Status == BatchSuccess }
