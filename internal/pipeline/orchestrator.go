package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
)

// DefaultMaxSteps bounds supervisor hops per record. Three worker stages
// plus supervisor visits fit well inside it; hitting the bound means the
// routing policy is cycling.
const DefaultMaxSteps = 8

// RunResult is the outcome of one record's trip through the pipeline.
type RunResult struct {
	Record    *model.ProviderRecord
	StagesRun []string
	Steps     int
}

// Orchestrator routes records through the stages one supervisor decision
// at a time. It owns a working copy per run: the caller's record is
// never mutated, and a cancelled run discards all partial progress.
type Orchestrator struct {
	stages   map[Route]Stage
	policy   RoutingPolicy
	caps     Capabilities
	maxSteps int
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithPolicy overrides the default sequence routing policy.
func WithPolicy(p RoutingPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithMaxSteps overrides the supervisor step bound.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// NewOrchestrator wires the three stages over the given capabilities.
func NewOrchestrator(validation *ValidationStage, enrichment *EnrichmentStage, qa *QualityAssuranceStage, caps Capabilities, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages: map[Route]Stage{
			RouteValidation: validation,
			RouteEnrichment: enrichment,
			RouteQA:         qa,
		},
		policy:   SequencePolicy{},
		caps:     caps,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives one record to completion. A nil record or a record without
// an NPI fails with ErrMalformedRecord before any stage runs.
func (o *Orchestrator) Run(ctx context.Context, record *model.ProviderRecord) (*RunResult, error) {
	if record == nil || strings.TrimSpace(record.NPI) == "" {
		return nil, eris.Wrap(ErrMalformedRecord, "orchestrator: record missing NPI")
	}

	work := record.Clone()
	var history []string

	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "orchestrator: run cancelled for %s", record.NPI)
		}

		steps++
		if steps > o.maxSteps {
			zap.L().Warn("step bound reached, finishing record",
				zap.String("npi", work.NPI),
				zap.Int("max_steps", o.maxSteps),
				zap.Strings("stages_run", history))
			work.AppendNote("supervisor: step bound reached")
			break
		}

		route, err := o.policy.Decide(ctx, work, history)
		if err != nil {
			zap.L().Warn("routing failed, finishing record",
				zap.String("npi", work.NPI),
				zap.Error(err))
			break
		}
		if route == RouteFinish {
			break
		}

		stage, ok := o.stages[route]
		if !ok {
			zap.L().Warn("unrecognized route, finishing record",
				zap.String("npi", work.NPI),
				zap.String("route", string(route)),
				zap.Error(ErrAmbiguousRouting))
			break
		}

		next, narrative, err := stage.Run(ctx, work, o.caps)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(ctx.Err(), "orchestrator: run cancelled for %s", record.NPI)
			}
			// A stage error is a degraded stage, not a dead record.
			zap.L().Error("stage failed",
				zap.String("npi", work.NPI),
				zap.String("stage", stage.Name()),
				zap.Error(err))
			work.AppendNote(stage.Name() + ": stage failed, results incomplete")
			history = append(history, stage.Name())
			continue
		}

		work = next
		work.AppendNote(narrative)
		history = append(history, stage.Name())

		zap.L().Debug("stage complete",
			zap.String("npi", work.NPI),
			zap.String("stage", stage.Name()),
			zap.Float64("overall_confidence", work.OverallConfidence))
	}

	return &RunResult{Record: work, StagesRun: history, Steps: steps}, nil
}
