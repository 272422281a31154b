package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/scoring"
	"github.com/sells-group/directory-cli/pkg/licensure"
)

// maxSearchFindings caps how many search hits make it into the notes.
const maxSearchFindings = 3

// EnrichmentStage gathers supplementary facts about the provider:
// license standing from the state board and background from web search.
// Findings land in the validation notes and, for the license, as a
// scored observation. Stored demographic fields are never modified.
type EnrichmentStage struct {
	scorer *scoring.Scorer
}

// NewEnrichmentStage creates the stage over the given scorer.
func NewEnrichmentStage(scorer *scoring.Scorer) *EnrichmentStage {
	return &EnrichmentStage{scorer: scorer}
}

// Name implements Stage.
func (s *EnrichmentStage) Name() string { return StageEnrichment }

// Run implements Stage.
func (s *EnrichmentStage) Run(ctx context.Context, record *model.ProviderRecord, caps Capabilities) (*model.ProviderRecord, string, error) {
	r := record.Clone()

	var found []string
	var degraded []string

	if status := s.licenseStanding(ctx, r, caps, &degraded); status != "" {
		found = append(found, "license "+status)
	}
	found = append(found, s.searchFindings(ctx, r, caps, &degraded)...)

	for _, f := range found {
		r.AppendNote(StageEnrichment + ": " + f)
	}

	narrative := fmt.Sprintf("%s: %d findings", StageEnrichment, len(found))
	if len(degraded) > 0 {
		narrative += "; degraded: " + strings.Join(degraded, ", ")
	}
	return r, narrative, nil
}

// licenseStanding looks up the provider's license and records the board's
// answer as a license_board observation. Returns the license status, or
// empty when no lookup happened.
func (s *EnrichmentStage) licenseStanding(ctx context.Context, r *model.ProviderRecord, caps Capabilities, degraded *[]string) string {
	if caps.License == nil || r.LicenseNumber == "" {
		return ""
	}
	state := r.LicenseState
	if state == "" {
		state = r.State
	}

	lic, err := caps.License.Lookup(ctx, licensure.Query{
		LicenseNumber: r.LicenseNumber,
		State:         state,
	})
	if err != nil {
		zap.L().Warn("license lookup failed",
			zap.String("npi", r.NPI),
			zap.String("license", r.LicenseNumber),
			zap.Error(err))
		*degraded = append(*degraded, "license lookup failed")
		return ""
	}
	if !lic.Verified {
		*degraded = append(*degraded, "license unverified")
		return ""
	}

	o, err := s.scorer.Observe(elementLicense, lic.Status, model.SourceLicenseBoard)
	if err != nil {
		panic(err)
	}
	r.DataElementConfidences = append(r.DataElementConfidences, o)
	r.OverallConfidence = scoring.OverallConfidence(r.DataElementConfidences)

	if len(lic.DisciplinaryActions) > 0 {
		r.AppendNote(fmt.Sprintf("%s: %d disciplinary actions on record", StageEnrichment, len(lic.DisciplinaryActions)))
	}
	return lic.Status
}

// searchFindings pulls a few web search hits about the provider's
// credentials and affiliations.
func (s *EnrichmentStage) searchFindings(ctx context.Context, r *model.ProviderRecord, caps Capabilities, degraded *[]string) []string {
	if caps.Search == nil {
		return nil
	}

	query := r.FullName()
	if r.Taxonomy != "" {
		query += " " + r.Taxonomy
	}
	if r.State != "" {
		query += " " + r.State
	}
	query += " board certification education"

	hits, err := caps.Search.Search(ctx, query, "general", maxSearchFindings)
	if err != nil {
		zap.L().Warn("enrichment search failed",
			zap.String("npi", r.NPI),
			zap.Error(err))
		*degraded = append(*degraded, "web search failed")
		return nil
	}

	var findings []string
	for _, h := range hits {
		title := strings.TrimSpace(h.Title)
		if title == "" {
			continue
		}
		findings = append(findings, title+" ("+h.URL+")")
	}
	return findings
}
