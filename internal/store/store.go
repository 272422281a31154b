// Package store persists validation batches, provider records, and
// reports. Two backends ship: SQLite for single-operator use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/directory-cli/internal/model"
)

// ErrNotFound is returned when a batch, provider, or report does not
// exist.
var ErrNotFound = eris.New("store: not found")

// ProviderFilter specifies criteria for listing a batch's providers.
type ProviderFilter struct {
	Status     model.ValidationStatus `json:"status,omitempty"`
	ReviewOnly bool                   `json:"review_only,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Offset     int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the validation pipeline.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, batch *model.ValidationBatch) error
	GetBatch(ctx context.Context, batchID string) (*model.ValidationBatch, error)

	// Providers
	SaveProviders(ctx context.Context, batchID string, providers []*model.ProviderRecord) error
	GetProvider(ctx context.Context, batchID, npi string) (*model.ProviderRecord, error)
	ListProviders(ctx context.Context, batchID string, filter ProviderFilter) ([]*model.ProviderRecord, error)

	// Reports
	SaveReport(ctx context.Context, report *model.ValidationReport) error
	GetReport(ctx context.Context, reportID string) (*model.ValidationReport, error)
	LatestReport(ctx context.Context, batchID string) (*model.ValidationReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
