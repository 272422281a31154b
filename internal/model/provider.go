package model

import (
	"time"
)

// ValidationStatus represents where a provider record sits in the
// validation lifecycle.
type ValidationStatus string

const (
	StatusPending        ValidationStatus = "pending"
	StatusValidated      ValidationStatus = "validated"
	StatusDiscrepancy    ValidationStatus = "discrepancy"
	StatusRequiresReview ValidationStatus = "requires_review"
	StatusFlagged        ValidationStatus = "flagged"
)

// DataSource identifies the collaborator a scored observation came from.
type DataSource string

const (
	SourceRegistry     DataSource = "registry"
	SourceWeb          DataSource = "web"
	SourceMap          DataSource = "map"
	SourceLicenseBoard DataSource = "license_board"
)

// KnownSources lists every valid DataSource tag.
var KnownSources = []DataSource{SourceRegistry, SourceWeb, SourceMap, SourceLicenseBoard}

// Valid reports whether the source tag is a recognized DataSource.
func (s DataSource) Valid() bool {
	switch s {
	case SourceRegistry, SourceWeb, SourceMap, SourceLicenseBoard:
		return true
	}
	return false
}

// DataElementConfidence is one scored observation of a single field from
// one source. Multiple observations of the same field may coexist until
// cross-validation annotates them.
type DataElementConfidence struct {
	ElementName      string     `json:"element_name"`
	Value            string     `json:"value"`
	ConfidenceScore  float64    `json:"confidence_score"`
	Source           DataSource `json:"source"`
	DiscrepancyFound bool       `json:"discrepancy_found"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
}

// ProviderRecord is the unit of work flowing through the pipeline.
// NPI is the stable 10-digit identity and is immutable once set.
type ProviderRecord struct {
	NPI          string `json:"npi"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Website      string `json:"website,omitempty"`
	Taxonomy     string `json:"taxonomy,omitempty"`

	// License identity, when the roster carries it. LicenseState falls
	// back to State for board lookups.
	LicenseNumber string `json:"license_number,omitempty"`
	LicenseState  string `json:"license_state,omitempty"`

	// Per-field confidence shadows. Nil until the validation stage has
	// scored the field at least once.
	PhoneConfidence   *float64 `json:"phone_confidence,omitempty"`
	EmailConfidence   *float64 `json:"email_confidence,omitempty"`
	AddressConfidence *float64 `json:"address_confidence,omitempty"`

	DataElementConfidences []DataElementConfidence `json:"data_element_confidences,omitempty"`

	// OverallConfidence is derived from the observations by the
	// cross-validation engine; stages never assign it directly.
	OverallConfidence float64 `json:"overall_confidence"`

	ValidationStatus     ValidationStatus `json:"validation_status"`
	Discrepancies        []string         `json:"discrepancies,omitempty"`
	RequiresManualReview bool             `json:"requires_manual_review"`
	ReviewPriority       int              `json:"review_priority"`
	ValidationNotes      []string         `json:"validation_notes,omitempty"`
}

// NewProviderRecord returns a record in the pending state.
func NewProviderRecord(npi string) *ProviderRecord {
	return &ProviderRecord{
		NPI:              npi,
		ValidationStatus: StatusPending,
		ReviewPriority:   1,
	}
}

// FullName returns the provider's display name.
func (p *ProviderRecord) FullName() string {
	switch {
	case p.FirstName == "" && p.LastName == "":
		return p.NPI
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Clone returns a deep copy. Reports own copies of the providers they
// summarize, and cancelled pipeline runs discard their working copy, so
// shared slices must not leak between the original and the copy.
func (p *ProviderRecord) Clone() *ProviderRecord {
	cp := *p
	cp.PhoneConfidence = cloneFloat(p.PhoneConfidence)
	cp.EmailConfidence = cloneFloat(p.EmailConfidence)
	cp.AddressConfidence = cloneFloat(p.AddressConfidence)
	cp.DataElementConfidences = append([]DataElementConfidence(nil), p.DataElementConfidences...)
	cp.Discrepancies = append([]string(nil), p.Discrepancies...)
	cp.ValidationNotes = append([]string(nil), p.ValidationNotes...)
	return &cp
}

// RaisePriority bumps the review priority without ever lowering it.
func (p *ProviderRecord) RaisePriority(priority int) {
	if priority > p.ReviewPriority {
		p.ReviewPriority = priority
	}
}

// AppendNote records a stage narrative for audit purposes.
func (p *ProviderRecord) AppendNote(note string) {
	if note == "" {
		return
	}
	p.ValidationNotes = append(p.ValidationNotes, note)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float64Ptr is a convenience for populating confidence shadows.
func Float64Ptr(v float64) *float64 { return &v }
