package model

import (
	"time"

	"github.com/google/uuid"
)

// ValidationBatch groups provider records submitted together. The total
// count is fixed at creation time.
type ValidationBatch struct {
	BatchID        string            `json:"batch_id"`
	TotalProviders int               `json:"total_providers"`
	Providers      []*ProviderRecord `json:"providers"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewValidationBatch creates a batch over the given records.
func NewValidationBatch(providers []*ProviderRecord) *ValidationBatch {
	return &ValidationBatch{
		BatchID:        uuid.New().String(),
		TotalProviders: len(providers),
		Providers:      providers,
		CreatedAt:      time.Now().UTC(),
	}
}

// ReportSummary holds the aggregate counters of a validation report.
type ReportSummary struct {
	TotalProviders    int     `json:"total_providers"`
	Validated         int     `json:"validated"`
	Discrepancies     int     `json:"discrepancies"`
	RequiresReview    int     `json:"requires_review"`
	Failed            int     `json:"failed"`
	AverageConfidence float64 `json:"average_confidence"`
}

// ValidationReport is a read-only snapshot over a completed batch. It owns
// copies of the providers it lists; later mutation of a provider cannot
// change a published report.
type ValidationReport struct {
	ReportID              string            `json:"report_id"`
	BatchID               string            `json:"batch_id"`
	GeneratedAt           time.Time         `json:"generated_at"`
	Summary               ReportSummary     `json:"summary"`
	PrioritizedReviewList []*ProviderRecord `json:"prioritized_review_list"`
	Recommendations       []string          `json:"recommendations"`
}

// Alert flags a single provider for operator attention.
type Alert struct {
	AlertID      string    `json:"alert_id"`
	ProviderNPI  string    `json:"provider_npi"`
	ProviderName string    `json:"provider_name"`
	AlertType    string    `json:"alert_type"`
	Priority     int       `json:"priority"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAlert creates an alert for a provider requiring attention.
func NewAlert(p *ProviderRecord, alertType string) Alert {
	return Alert{
		AlertID:      uuid.New().String(),
		ProviderNPI:  p.NPI,
		ProviderName: p.FullName(),
		AlertType:    alertType,
		Priority:     p.ReviewPriority,
		Message:      "Provider " + p.NPI + " requires " + alertType,
		CreatedAt:    time.Now().UTC(),
	}
}
