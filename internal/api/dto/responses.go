package dto

// BillListResponse wraps a list of bills.
type BillListResponse struct {
	Bills []Bill `json:"bills"`
	Count int    `json:"count"`
}

// TemplateListResponse wraps a list of recurring templates.
type TemplateListResponse struct {
	Templates []Template `json:"templates"`
	Count     int        `json:"count"`
}

// CreateTemplateResponse returns the stored template together with its
// generated first bill instance.
type CreateTemplateResponse struct {
	Template  Template `json:"template"`
	FirstBill Bill     `json:"first_bill"`
}

// IngestResponse reports how many transactions a batch landed.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}
