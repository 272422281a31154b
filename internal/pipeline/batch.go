package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/directory-cli/internal/model"
)

// DefaultBatchConcurrency is how many records run in parallel. The
// external capabilities rate-limit themselves, so this only caps
// in-flight goroutines.
const DefaultBatchConcurrency = 8

// BatchOutcome is the result of running a whole batch. Completed holds
// the post-pipeline records in submission order; a record the pipeline
// could not process is excluded from Completed and counted in Failed,
// so downstream aggregation only ever sees records that finished.
type BatchOutcome struct {
	Completed []*model.ProviderRecord
	Failed    int
}

// BatchRunner fans a batch's records out across the orchestrator. One
// record's failure never aborts the rest; only context cancellation
// stops the batch early.
type BatchRunner struct {
	orch        *Orchestrator
	concurrency int
}

// NewBatchRunner creates a runner over the orchestrator.
func NewBatchRunner(orch *Orchestrator, concurrency int) *BatchRunner {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchRunner{orch: orch, concurrency: concurrency}
}

// Run processes every record in the batch. The returned error is non-nil
// only when the context was cancelled; per-record failures are absorbed
// into the outcome.
func (b *BatchRunner) Run(ctx context.Context, batch *model.ValidationBatch) (*BatchOutcome, error) {
	slots := make([]*model.ProviderRecord, len(batch.Providers))
	outcome := &BatchOutcome{}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, record := range batch.Providers {
		g.Go(func() error {
			res, err := b.orch.Run(ctx, record)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Error("record failed",
					zap.String("batch_id", batch.BatchID),
					zap.Int("index", i),
					zap.Error(err))
				mu.Lock()
				outcome.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			slots[i] = res.Record
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Failed slots stay out of the completed set; their count is the
	// only trace they leave on the outcome.
	outcome.Completed = make([]*model.ProviderRecord, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			outcome.Completed = append(outcome.Completed, r)
		}
	}

	zap.L().Info("batch complete",
		zap.String("batch_id", batch.BatchID),
		zap.Int("total", batch.TotalProviders),
		zap.Int("failed", outcome.Failed))
	return outcome, nil
}
