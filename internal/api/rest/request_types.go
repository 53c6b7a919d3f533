package rest

// PlaceBidRequest is the body of POST /items/{id}/bids
type PlaceBidRequest struct {
	Amount   string `json:"amount" validate:"required,money"`
	Currency string `json:"currency" validate:"omitempty,oneof=GBP EUR USD"`
}

// PaymentConfirmation is posted by the payment provider once a buyer paid
type PaymentConfirmation struct {
	ItemID           string `json:"item_id" validate:"required,uuid"`
	PaymentReference string `json:"payment_reference" validate:"required,max=128"`
}

type AssignExpertRequest struct {
	ExpertID string `json:"expert_id" validate:"required,uuid"`
}

type AutoAssignRequest struct {
	PreferredExpertID string `json:"preferred_expert_id,omitempty" validate:"omitempty,uuid"`
}

type BulkAutoAssignRequest struct {
	RequestIDs []string `json:"request_ids" validate:"required,min=1,max=100,dive,uuid"`
}

// RespondRequest carries an expert's verdict
type RespondRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve accept decline"`
}

// BulkAssignResult is one entry of the bulk auto-assign response
type BulkAssignResult struct {
	RequestID  string `json:"request_id"`
	Assignment any    `json:"assignment,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}
