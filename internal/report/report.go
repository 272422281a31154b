// Package report builds batch validation reports: aggregate counters,
// the prioritized manual review list, and operator recommendations.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/directory-cli/internal/model"
)

// MaxReviewListSize caps the prioritized review list.
const MaxReviewListSize = 50

// Rate thresholds that trigger recommendations.
const (
	DiscrepancyRateThreshold = 0.20
	ReviewRateThreshold      = 0.30
)

// Recommendation texts. The wording is load-bearing for operator
// dashboards; do not reword without coordinating downstream.
const (
	RecommendationDiscrepancyRate = "High discrepancy rate detected - review data sources"
	RecommendationReviewRate      = "Large number of providers require manual review - consider adjusting confidence thresholds"
)

// Generate builds a report over a completed batch. providers holds only
// the records that finished the pipeline; failed counts records the
// pipeline could not process. Failed records never enter the confidence
// average or the rate denominators. The report owns deep copies of every
// provider it lists, so later mutation of a record cannot change a
// published report.
func Generate(batch *model.ValidationBatch, providers []*model.ProviderRecord, failed int) *model.ValidationReport {
	summary := model.ReportSummary{
		TotalProviders: batch.TotalProviders,
		Failed:         failed,
	}

	confSum := 0.0
	var review []*model.ProviderRecord
	for _, p := range providers {
		confSum += p.OverallConfidence

		switch p.ValidationStatus {
		case model.StatusValidated:
			summary.Validated++
		}
		if len(p.Discrepancies) > 0 {
			summary.Discrepancies++
		}
		if p.RequiresManualReview {
			summary.RequiresReview++
			review = append(review, p)
		}
	}
	if len(providers) > 0 {
		summary.AverageConfidence = confSum / float64(len(providers))
	}

	// Highest priority first; ties keep submission order.
	sort.SliceStable(review, func(i, j int) bool {
		return review[i].ReviewPriority > review[j].ReviewPriority
	})
	if len(review) > MaxReviewListSize {
		review = review[:MaxReviewListSize]
	}
	listed := make([]*model.ProviderRecord, len(review))
	for i, p := range review {
		listed[i] = p.Clone()
	}

	return &model.ValidationReport{
		ReportID:              uuid.New().String(),
		BatchID:               batch.BatchID,
		GeneratedAt:           time.Now().UTC(),
		Summary:               summary,
		PrioritizedReviewList: listed,
		Recommendations:       recommendations(summary),
	}
}

// recommendations derives operator guidance from the batch rates. Rates
// are over the records that finished; failed records carry no signal
// about data quality and must not dilute them.
func recommendations(s model.ReportSummary) []string {
	var recs []string
	completed := float64(s.TotalProviders - s.Failed)
	if completed <= 0 {
		return recs
	}
	if float64(s.Discrepancies)/completed > DiscrepancyRateThreshold {
		recs = append(recs, RecommendationDiscrepancyRate)
	}
	if float64(s.RequiresReview)/completed > ReviewRateThreshold {
		recs = append(recs, RecommendationReviewRate)
	}
	return recs
}

// Alerts derives operator alerts for every provider on the report's
// review list.
func Alerts(r *model.ValidationReport) []model.Alert {
	alerts := make([]model.Alert, 0, len(r.PrioritizedReviewList))
	for _, p := range r.PrioritizedReviewList {
		alertType := "manual review"
		if p.ValidationStatus == model.StatusFlagged {
			alertType = "low confidence review"
		}
		alerts = append(alerts, model.NewAlert(p, alertType))
	}
	return alerts
}

// Format generates a human-readable validation report.
func Format(r *model.ValidationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Validation Report: %s\n", r.ReportID)
	fmt.Fprintf(&b, "Batch: %s\n", r.BatchID)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	// Summary.
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total providers: %d\n", r.Summary.TotalProviders)
	fmt.Fprintf(&b, "- Validated: %d\n", r.Summary.Validated)
	fmt.Fprintf(&b, "- With discrepancies: %d\n", r.Summary.Discrepancies)
	fmt.Fprintf(&b, "- Requiring review: %d\n", r.Summary.RequiresReview)
	fmt.Fprintf(&b, "- Failed: %d\n", r.Summary.Failed)
	fmt.Fprintf(&b, "- Average confidence: %.2f\n\n", r.Summary.AverageConfidence)

	// Review queue, highest priority first.
	b.WriteString("## Prioritized Review List\n")
	if len(r.PrioritizedReviewList) == 0 {
		b.WriteString("No providers require manual review.\n\n")
	} else {
		for _, p := range r.PrioritizedReviewList {
			fmt.Fprintf(&b, "- **%s** (NPI %s): priority %d, status %s, confidence %.2f\n",
				p.FullName(), p.NPI, p.ReviewPriority, p.ValidationStatus, p.OverallConfidence)
			for _, d := range p.Discrepancies {
				fmt.Fprintf(&b, "  - %s\n", d)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n")
	if len(r.Recommendations) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}
