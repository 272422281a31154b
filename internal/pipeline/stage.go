// Package pipeline drives provider records through the validation,
// enrichment, and quality-assurance stages under a supervisor-routed
// state machine.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/pkg/licensure"
	"github.com/sells-group/directory-cli/pkg/nppes"
	"github.com/sells-group/directory-cli/pkg/places"
	"github.com/sells-group/directory-cli/pkg/searxng"
	"github.com/sells-group/directory-cli/pkg/webscrape"
)

var (
	// ErrMalformedRecord marks a record that cannot enter the pipeline.
	// It is fatal for that record only; other records and the batch
	// proceed.
	ErrMalformedRecord = eris.New("pipeline: malformed record")

	// ErrAmbiguousRouting marks an unrecognized routing decision. It is
	// never surfaced to callers; the orchestrator recovers by finishing.
	ErrAmbiguousRouting = eris.New("pipeline: ambiguous routing decision")
)

// Capabilities bundles the external collaborators the stages consult.
// Any nil capability is treated as unavailable and degrades gracefully.
type Capabilities struct {
	Registry nppes.Client
	Search   searxng.Client
	Scrape   webscrape.Client
	Map      places.Client
	License  licensure.Client
}

// Stage is one phase of a record's pipeline. Run returns the updated
// record and a human-readable narrative of what happened. A stage never
// fails the pipeline over a capability outage: it proceeds with the data
// it has and notes the degradation in the narrative.
type Stage interface {
	Name() string
	Run(ctx context.Context, record *model.ProviderRecord, caps Capabilities) (*model.ProviderRecord, string, error)
}

// Stage names, fixed by the routing contract.
const (
	StageValidation = "DataValidation"
	StageEnrichment = "InformationEnrichment"
	StageQA         = "QualityAssurance"
)

// StageNames lists the worker stages in their canonical order.
var StageNames = []string{StageValidation, StageEnrichment, StageQA}
