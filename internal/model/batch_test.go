package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationBatch(t *testing.T) {
	t.Parallel()

	providers := []*ProviderRecord{
		NewProviderRecord("1111111111"),
		NewProviderRecord("2222222222"),
	}
	batch := NewValidationBatch(providers)

	_, err := uuid.Parse(batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalProviders)
	assert.Len(t, batch.Providers, 2)
	assert.False(t, batch.CreatedAt.IsZero())
}

func TestNewAlert(t *testing.T) {
	t.Parallel()

	p := NewProviderRecord("1234567890")
	p.FirstName = "Jane"
	p.LastName = "Smith"
	p.ReviewPriority = 8

	alert := NewAlert(p, "manual review")
	assert.Equal(t, "1234567890", alert.ProviderNPI)
	assert.Equal(t, "Jane Smith", alert.ProviderName)
	assert.Equal(t, 8, alert.Priority)
	assert.Equal(t, "manual review", alert.AlertType)
	assert.Contains(t, alert.Message, "1234567890")
	assert.NotEmpty(t, alert.AlertID)
}
