package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/scoring"
	"github.com/sells-group/directory-cli/pkg/nppes"
	"github.com/sells-group/directory-cli/pkg/places"
)

// Field element names used across stages. Observations of the same
// element from different sources are what cross-validation compares.
const (
	elementPhone   = "phone"
	elementEmail   = "email"
	elementAddress = "address"
	elementWebsite = "website"
	elementLicense = "license_status"
)

// ValidationStage scores the record's stored contact fields and gathers
// corroborating observations from the registry, map listing, and the
// provider's own website. It never overwrites stored field values; it
// only accumulates observations, recomputes confidences, and refreshes
// the per-field shadows.
type ValidationStage struct {
	scorer *scoring.Scorer
}

// NewValidationStage creates the stage over the given scorer.
func NewValidationStage(scorer *scoring.Scorer) *ValidationStage {
	return &ValidationStage{scorer: scorer}
}

// Name implements Stage.
func (s *ValidationStage) Name() string { return StageValidation }

// Run implements Stage.
func (s *ValidationStage) Run(ctx context.Context, record *model.ProviderRecord, caps Capabilities) (*model.ProviderRecord, string, error) {
	r := record.Clone()

	var degraded []string
	var obs []model.DataElementConfidence

	// Stored fields score at registry weight when the registry
	// corroborates the record. Without a registry match they score at
	// web weight, the floor for uncorroborated claims.
	match := s.registryMatch(ctx, r, caps, &degraded)
	storedSource := model.SourceWeb
	if match != nil {
		storedSource = model.SourceRegistry
	}

	if r.Phone != "" {
		o := s.mustObserve(elementPhone, r.Phone, storedSource)
		r.PhoneConfidence = model.Float64Ptr(o.ConfidenceScore)
		obs = append(obs, o)
	}
	if r.Email != "" {
		o := s.mustObserve(elementEmail, r.Email, storedSource)
		r.EmailConfidence = model.Float64Ptr(o.ConfidenceScore)
		obs = append(obs, o)
	}
	if addr := composeAddress(r.AddressLine1, r.City, r.State, r.PostalCode); addr != "" {
		o := s.mustObserve(elementAddress, addr, storedSource)
		r.AddressConfidence = model.Float64Ptr(o.ConfidenceScore)
		obs = append(obs, o)
	}
	if r.Website != "" {
		obs = append(obs, s.mustObserve(elementWebsite, r.Website, storedSource))
	}

	if match != nil {
		if match.Phone != "" {
			obs = append(obs, s.mustObserve(elementPhone, match.Phone, model.SourceRegistry))
		}
		if addr := composeAddress(match.AddressLine1, match.City, match.State, match.PostalCode); addr != "" {
			obs = append(obs, s.mustObserve(elementAddress, addr, model.SourceRegistry))
		}
	}

	obs = append(obs, s.mapObservations(ctx, r, caps, &degraded)...)
	obs = append(obs, s.webObservations(ctx, r, caps, &degraded)...)

	r.DataElementConfidences = scoring.CrossValidate(append(r.DataElementConfidences, obs...))
	r.OverallConfidence = scoring.OverallConfidence(r.DataElementConfidences)

	narrative := fmt.Sprintf("%s: scored %d observations, overall confidence %.2f",
		StageValidation, len(r.DataElementConfidences), r.OverallConfidence)
	if len(degraded) > 0 {
		narrative += "; degraded: " + strings.Join(degraded, ", ")
	}
	return r, narrative, nil
}

// registryMatch returns the registry record for the provider's NPI, or
// nil when the registry is unavailable or has no matching entry.
func (s *ValidationStage) registryMatch(ctx context.Context, r *model.ProviderRecord, caps Capabilities, degraded *[]string) *nppes.Provider {
	if caps.Registry == nil {
		*degraded = append(*degraded, "registry unavailable")
		return nil
	}
	results, err := caps.Registry.Search(ctx, nppes.Query{NPI: r.NPI, Limit: 1})
	if err != nil {
		zap.L().Warn("registry lookup failed",
			zap.String("npi", r.NPI),
			zap.Error(err))
		*degraded = append(*degraded, "registry lookup failed")
		return nil
	}
	for i := range results {
		if results[i].NPI == r.NPI {
			return &results[i]
		}
	}
	*degraded = append(*degraded, "no registry match")
	return nil
}

func (s *ValidationStage) mapObservations(ctx context.Context, r *model.ProviderRecord, caps Capabilities, degraded *[]string) []model.DataElementConfidence {
	if caps.Map == nil {
		return nil
	}
	listing, err := caps.Map.Lookup(ctx, places.Query{
		Name:    r.FullName(),
		Address: r.AddressLine1,
		City:    r.City,
		State:   r.State,
	})
	if err != nil {
		zap.L().Warn("map lookup failed",
			zap.String("npi", r.NPI),
			zap.Error(err))
		*degraded = append(*degraded, "map lookup failed")
		return nil
	}
	if !listing.Verified {
		return nil
	}

	var obs []model.DataElementConfidence
	if listing.Phone != "" {
		obs = append(obs, s.mustObserve(elementPhone, listing.Phone, model.SourceMap))
	}
	if listing.FormattedAddress != "" {
		obs = append(obs, s.mustObserve(elementAddress, listing.FormattedAddress, model.SourceMap))
	}
	return obs
}

func (s *ValidationStage) webObservations(ctx context.Context, r *model.ProviderRecord, caps Capabilities, degraded *[]string) []model.DataElementConfidence {
	if caps.Scrape == nil || r.Website == "" {
		return nil
	}
	page, err := caps.Scrape.Scrape(ctx, r.Website)
	if err != nil {
		zap.L().Warn("website scrape failed",
			zap.String("npi", r.NPI),
			zap.String("url", r.Website),
			zap.Error(err))
		*degraded = append(*degraded, "website scrape failed")
		return nil
	}

	var obs []model.DataElementConfidence
	if page.Phone != "" {
		obs = append(obs, s.mustObserve(elementPhone, page.Phone, model.SourceWeb))
	}
	if page.Email != "" {
		obs = append(obs, s.mustObserve(elementEmail, page.Email, model.SourceWeb))
	}
	if page.Address != "" {
		obs = append(obs, s.mustObserve(elementAddress, page.Address, model.SourceWeb))
	}
	return obs
}

// mustObserve scores a value against one of the four fixed source tags.
// The scorer only errors on unknown tags, which cannot happen here.
func (s *ValidationStage) mustObserve(element, value string, source model.DataSource) model.DataElementConfidence {
	o, err := s.scorer.Observe(element, value, source)
	if err != nil {
		panic(err)
	}
	return o
}

// composeAddress joins address parts into one comparable line. Empty
// parts are skipped so partially populated addresses still compare.
func composeAddress(line1, city, state, postal string) string {
	var parts []string
	for _, p := range []string{line1, city, state, postal} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
