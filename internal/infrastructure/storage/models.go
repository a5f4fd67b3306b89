package storage

// ClearRun represents one clearing cycle.
type ClearRun struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Matched     int    `json:"matched"`
	Unmatched   int    `json:"unmatched"`
	Errored     int    `json:"errored"`
	Status      string `json:"status"`
}

// Stats aggregates counts for the stats endpoint.
type Stats struct {
	TotalBills       int     `json:"total_bills"`
	UnpaidBills      int     `json:"unpaid_bills"`
	PaidBills        int     `json:"paid_bills"`
	TotalTemplates   int     `json:"total_templates"`
	TransactionCount int     `json:"transaction_count"`
	UnpaidTotal      float64 `json:"unpaid_total"`
}
