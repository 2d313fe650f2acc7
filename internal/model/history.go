package model

import "time"

// ReviewRecord is one entry in the local review history. It captures the
// outcome of a review so past results can be listed and re-rendered without
// asking the backend again.
type ReviewRecord struct {
	ID           string        `json:"id"`
	ReviewID     string        `json:"review_id"`
	ContractID   string        `json:"contract_id"`
	Title        string        `json:"title"`
	FileName     string        `json:"file_name"`
	Status       ReviewStatus  `json:"status"`
	Result       *ReviewResult `json:"result,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
