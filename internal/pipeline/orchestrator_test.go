package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/directory-cli/internal/model"
)

// testOrchestrator builds an orchestrator over stub stages, bypassing the
// concrete stage constructors.
func testOrchestrator(stages map[Route]Stage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:   stages,
		policy:   SequencePolicy{},
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func passThrough(name string) *stubStage {
	return &stubStage{
		name: name,
		run: func(r *model.ProviderRecord) (*model.ProviderRecord, string, error) {
			return r.Clone(), name + ": ok", nil
		},
	}
}

func stubStages() map[Route]Stage {
	return map[Route]Stage{
		RouteValidation: passThrough(StageValidation),
		RouteEnrichment: passThrough(StageEnrichment),
		RouteQA:         passThrough(StageQA),
	}
}

func TestRunMalformedRecord(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(stubStages())

	for _, record := range []*model.ProviderRecord{
		nil,
		model.NewProviderRecord(""),
		model.NewProviderRecord("   "),
	} {
		_, err := o.Run(context.Background(), record)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrMalformedRecord))
	}
}

func TestRunSequenceVisitsEachStageOnce(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(stubStages())

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)

	assert.Equal(t, []string{StageValidation, StageEnrichment, StageQA}, res.StagesRun)
	// Three stage visits plus the terminating FINISH decision.
	assert.Equal(t, 4, res.Steps)
	assert.Equal(t, []string{
		StageValidation + ": ok",
		StageEnrichment + ": ok",
		StageQA + ": ok",
	}, res.Record.ValidationNotes)
}

func TestRunDoesNotMutateCaller(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(stubStages())

	in := model.NewProviderRecord("1234567890")
	res, err := o.Run(context.Background(), in)
	require.NoError(t, err)

	assert.NotSame(t, in, res.Record)
	assert.Empty(t, in.ValidationNotes)
	assert.Equal(t, model.StatusPending, in.ValidationStatus)
}

func TestRunStepBound(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(stubStages(),
		WithPolicy(loopPolicy{route: RouteValidation}),
		WithMaxSteps(3),
	)

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Steps)
	assert.Equal(t, []string{StageValidation, StageValidation, StageValidation}, res.StagesRun)
	assert.Contains(t, res.Record.ValidationNotes, "supervisor: step bound reached")
}

func TestRunUnknownRouteFinishes(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(stubStages(), WithPolicy(loopPolicy{route: Route("Teleportation")}))

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)
	assert.Empty(t, res.StagesRun)
}

func TestRunPolicyErrorFinishes(t *testing.T) {
	t.Parallel()

	o := testOrchestrator(stubStages(), WithPolicy(policyFunc(func() (Route, error) {
		return "", eris.New("supervisor offline")
	})))

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)
	assert.Empty(t, res.StagesRun)
	assert.Equal(t, 1, res.Steps)
}

func TestRunStageErrorDegrades(t *testing.T) {
	t.Parallel()

	stages := stubStages()
	stages[RouteEnrichment] = &stubStage{
		name: StageEnrichment,
		run: func(*model.ProviderRecord) (*model.ProviderRecord, string, error) {
			return nil, "", eris.New("search backend down")
		},
	}
	o := testOrchestrator(stages)

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)

	// The failed stage still counts as run, and the record carries on to QA.
	assert.Equal(t, []string{StageValidation, StageEnrichment, StageQA}, res.StagesRun)
	assert.Contains(t, res.Record.ValidationNotes, StageEnrichment+": stage failed, results incomplete")
	assert.Contains(t, res.Record.ValidationNotes, StageQA+": ok")
}

func TestRunCancellationDiscardsPartialProgress(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stages := stubStages()
	stages[RouteValidation] = &stubStage{
		name: StageValidation,
		run: func(r *model.ProviderRecord) (*model.ProviderRecord, string, error) {
			cancel()
			return r.Clone(), "ok", nil
		},
	}
	o := testOrchestrator(stages)

	res, err := o.Run(ctx, model.NewProviderRecord("1234567890"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
	assert.Nil(t, res)
}

func TestRunPreCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := testOrchestrator(stubStages())
	_, err := o.Run(ctx, model.NewProviderRecord("1234567890"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
}

// policyFunc adapts a func to RoutingPolicy for tests.
type policyFunc func() (Route, error)

func (f policyFunc) Decide(context.Context, *model.ProviderRecord, []string) (Route, error) {
	return f()
}
