package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/directory-cli/internal/model"
)

func TestBatchRunnerPreservesOrder(t *testing.T) {
	t.Parallel()

	batch := model.NewValidationBatch([]*model.ProviderRecord{
		model.NewProviderRecord("1111111111"),
		model.NewProviderRecord("2222222222"),
		model.NewProviderRecord("3333333333"),
	})
	runner := NewBatchRunner(testOrchestrator(stubStages()), 2)

	outcome, err := runner.Run(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, outcome.Completed, 3)
	assert.Zero(t, outcome.Failed)
	for i, p := range outcome.Completed {
		assert.Equal(t, batch.Providers[i].NPI, p.NPI)
		assert.NotEmpty(t, p.ValidationNotes)
	}
}

func TestBatchRunnerIsolatesRecordFailures(t *testing.T) {
	t.Parallel()

	bad := model.NewProviderRecord("") // malformed, fails before any stage
	batch := model.NewValidationBatch([]*model.ProviderRecord{
		model.NewProviderRecord("1111111111"),
		bad,
		model.NewProviderRecord("3333333333"),
	})
	runner := NewBatchRunner(testOrchestrator(stubStages()), 2)

	outcome, err := runner.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failed)
	// The failed record never reaches the completed set; survivors keep
	// their submission order.
	require.Len(t, outcome.Completed, 2)
	assert.Equal(t, "1111111111", outcome.Completed[0].NPI)
	assert.Equal(t, "3333333333", outcome.Completed[1].NPI)
	assert.NotEmpty(t, outcome.Completed[0].ValidationNotes)
	assert.NotEmpty(t, outcome.Completed[1].ValidationNotes)
	assert.Empty(t, bad.ValidationNotes)
}

func TestBatchRunnerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := model.NewValidationBatch([]*model.ProviderRecord{
		model.NewProviderRecord("1111111111"),
	})
	runner := NewBatchRunner(testOrchestrator(stubStages()), 1)

	_, err := runner.Run(ctx, batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBatchRunnerDefaultsConcurrency(t *testing.T) {
	t.Parallel()

	runner := NewBatchRunner(testOrchestrator(stubStages()), 0)
	assert.Equal(t, DefaultBatchConcurrency, runner.concurrency)

	runner = NewBatchRunner(testOrchestrator(stubStages()), -3)
	assert.Equal(t, DefaultBatchConcurrency, runner.concurrency)
}

func TestBatchRunnerEmptyBatch(t *testing.T) {
	t.Parallel()

	batch := model.NewValidationBatch(nil)
	runner := NewBatchRunner(testOrchestrator(stubStages()), 4)

	outcome, err := runner.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Empty(t, outcome.Completed)
	assert.Zero(t, outcome.Failed)
}
