// Package model defines the contract-review domain types shared by the API
// client, the lifecycle controller and the renderers.
package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ContractStatus is the backend lifecycle state of an uploaded contract.
type ContractStatus string

const (
	ContractPending   ContractStatus = "pending"
	ContractReviewing ContractStatus = "reviewing"
	ContractCompleted ContractStatus = "completed"
)

// Contract is the client's read-only projection of an uploaded contract.
type Contract struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	OriginalFilename string         `json:"original_filename"`
	Status           ContractStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ReviewStatus is the backend state of one review job.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewProcessing ReviewStatus = "processing"
	ReviewCompleted  ReviewStatus = "completed"
	ReviewFailed     ReviewStatus = "failed"
)

// Terminal reports whether the status is a final server-side state.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewCompleted || s == ReviewFailed
}

// Review is one asynchronous AI analysis job over a single uploaded contract.
type Review struct {
	ID           string        `json:"id"`
	ContractID   string        `json:"contract_id"`
	Status       ReviewStatus  `json:"status"`
	Result       *ReviewResult `json:"result,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// ReviewResult holds the structured findings of a completed review. The
// *_count fields are precomputed server-side and are not trusted for
// rendering; see Recount.
type ReviewResult struct {
	Issues          []Issue `json:"issues"`
	Summary         string  `json:"summary"`
	TotalIssues     int     `json:"total_issues"`
	HighRiskCount   int     `json:"high_risk_count"`
	MediumRiskCount int     `json:"medium_risk_count"`
	LowRiskCount    int     `json:"low_risk_count"`
}

// SeverityCounts are issue counts partitioned by severity.
type SeverityCounts struct {
	High   int
	Medium int
	Low    int
}

// Total returns the sum across severities.
func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low
}

// Recount partitions Issues by severity, ignoring the server's precomputed
// counts. Renderers use this instead of the wire counts.
func (r *ReviewResult) Recount() SeverityCounts {
	var c SeverityCounts
	for _, issue := range r.Issues {
		switch issue.Severity {
		case SeverityHigh:
			c.High++
		case SeverityLow:
			c.Low++
		default:
			c.Medium++
		}
	}
	return c
}

// IssuesBySeverity returns the issues carrying the given severity, preserving
// their original order.
func (r *ReviewResult) IssuesBySeverity(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Issue is one finding produced by a review. The backend provides no stable
// character offset into the source document; LocationHint is free text and
// anchoring is the matcher's job.
type Issue struct {
	Category     string   `json:"category"`
	Severity     Severity `json:"severity"`
	LocationHint string   `json:"location_hint"`
	OriginalText string   `json:"original_text"`
	Problem      string   `json:"problem"`
	Suggestion   string   `json:"suggestion"`
}

// Severity is the ordinal risk level of an issue, high > medium > low.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

// severity wire values. The backend emits Chinese labels; English spellings
// are accepted for forward compatibility.
var severityFromWire = map[string]Severity{
	"高":      SeverityHigh,
	"中":      SeverityMedium,
	"低":      SeverityLow,
	"high":   SeverityHigh,
	"medium": SeverityMedium,
	"low":    SeverityLow,
}

// String returns the stable English name.
func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityLow:
		return "low"
	default:
		return "medium"
	}
}

// Label returns the Chinese display label used by the review backend.
func (s Severity) Label() string {
	switch s {
	case SeverityHigh:
		return "高"
	case SeverityLow:
		return "低"
	default:
		return "中"
	}
}

// MarshalJSON emits the Chinese wire label.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Label())
}

// UnmarshalJSON accepts both Chinese and English severity labels. Unknown
// labels default to medium rather than failing the whole result.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode severity")
	}
	if sev, ok := severityFromWire[raw]; ok {
		*s = sev
		return nil
	}
	*s = SeverityMedium
	return nil
}

// UploadResponse is the backend's answer to a contract upload.
type UploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ContractID string `json:"contract_id,omitempty"`
}
