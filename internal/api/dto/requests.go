package dto

// IngestRequest carries a batch of transactions for ingestion.
type IngestRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// ClearRequest triggers a clearing cycle. UserID is optional.
type ClearRequest struct {
	UserID string `json:"user_id"`
}

// PreviewRequest scores one transaction against one bill without
// touching storage.
type PreviewRequest struct {
	Transaction Transaction `json:"transaction"`
	Bill        Bill        `json:"bill"`
}
