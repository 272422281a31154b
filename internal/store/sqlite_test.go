package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/directory-cli/internal/model"
)

func testSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testBatch(npis ...string) *model.ValidationBatch {
	var providers []*model.ProviderRecord
	for _, npi := range npis {
		providers = append(providers, model.NewProviderRecord(npi))
	}
	return model.NewValidationBatch(providers)
}

func TestSQLiteBatchRoundTrip(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)
	ctx := context.Background()

	batch := testBatch("1111111111", "2222222222")
	batch.Providers[0].FirstName = "Jane"
	batch.Providers[0].LastName = "Smith"

	require.NoError(t, st.CreateBatch(ctx, batch))

	got, err := st.GetBatch(ctx, batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchID, got.BatchID)
	assert.Equal(t, 2, got.TotalProviders)
	require.Len(t, got.Providers, 2)

	byNPI := map[string]*model.ProviderRecord{}
	for _, p := range got.Providers {
		byNPI[p.NPI] = p
	}
	require.Contains(t, byNPI, "1111111111")
	assert.Equal(t, "Jane Smith", byNPI["1111111111"].FullName())
	assert.Equal(t, model.StatusPending, byNPI["1111111111"].ValidationStatus)
}

func TestSQLitePing(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)

	require.NoError(t, st.Ping(context.Background()))

	require.NoError(t, st.Close())
	assert.Error(t, st.Ping(context.Background()))
}

func TestSQLiteGetBatchNotFound(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)

	_, err := st.GetBatch(context.Background(), "no-such-batch")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteSaveProvidersUpserts(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)
	ctx := context.Background()

	batch := testBatch("1111111111")
	require.NoError(t, st.CreateBatch(ctx, batch))

	updated := batch.Providers[0].Clone()
	updated.ValidationStatus = model.StatusValidated
	updated.OverallConfidence = 0.92
	updated.ValidationNotes = []string{"QualityAssurance: status validated, priority 1"}
	require.NoError(t, st.SaveProviders(ctx, batch.BatchID, []*model.ProviderRecord{updated}))

	got, err := st.GetProvider(ctx, batch.BatchID, "1111111111")
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidated, got.ValidationStatus)
	assert.Equal(t, 0.92, got.OverallConfidence)
	assert.Len(t, got.ValidationNotes, 1)
}

func TestSQLiteGetProviderNotFound(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)
	ctx := context.Background()

	batch := testBatch("1111111111")
	require.NoError(t, st.CreateBatch(ctx, batch))

	_, err := st.GetProvider(ctx, batch.BatchID, "9999999999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteListProviders(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)
	ctx := context.Background()

	batch := testBatch("1111111111", "2222222222", "3333333333")
	batch.Providers[0].ValidationStatus = model.StatusValidated
	batch.Providers[1].ValidationStatus = model.StatusFlagged
	batch.Providers[1].RequiresManualReview = true
	batch.Providers[1].ReviewPriority = 8
	batch.Providers[2].ValidationStatus = model.StatusRequiresReview
	batch.Providers[2].RequiresManualReview = true
	batch.Providers[2].ReviewPriority = 7
	require.NoError(t, st.CreateBatch(ctx, batch))

	t.Run("priority order", func(t *testing.T) {
		got, err := st.ListProviders(ctx, batch.BatchID, ProviderFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2222222222", got[0].NPI)
		assert.Equal(t, "3333333333", got[1].NPI)
		assert.Equal(t, "1111111111", got[2].NPI)
	})

	t.Run("status filter", func(t *testing.T) {
		got, err := st.ListProviders(ctx, batch.BatchID, ProviderFilter{Status: model.StatusFlagged})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2222222222", got[0].NPI)
	})

	t.Run("review only", func(t *testing.T) {
		got, err := st.ListProviders(ctx, batch.BatchID, ProviderFilter{ReviewOnly: true})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := st.ListProviders(ctx, batch.BatchID, ProviderFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "3333333333", got[0].NPI)
	})
}

func TestSQLiteReports(t *testing.T) {
	t.Parallel()
	st := testSQLite(t)
	ctx := context.Background()

	batch := testBatch("1111111111")
	require.NoError(t, st.CreateBatch(ctx, batch))

	first := &model.ValidationReport{
		ReportID:    "report-1",
		BatchID:     batch.BatchID,
		GeneratedAt: batch.CreatedAt,
		Summary:     model.ReportSummary{TotalProviders: 1, Validated: 1},
	}
	second := &model.ValidationReport{
		ReportID:    "report-2",
		BatchID:     batch.BatchID,
		GeneratedAt: batch.CreatedAt.Add(time.Second),
		Summary:     model.ReportSummary{TotalProviders: 1, RequiresReview: 1},
	}
	require.NoError(t, st.SaveReport(ctx, first))
	require.NoError(t, st.SaveReport(ctx, second))

	got, err := st.GetReport(ctx, "report-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Summary.Validated)

	latest, err := st.LatestReport(ctx, batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "report-2", latest.ReportID)

	_, err = st.GetReport(ctx, "no-such-report")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = st.LatestReport(ctx, "no-such-batch")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}
