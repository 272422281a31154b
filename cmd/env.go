package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/pipeline"
	"github.com/sells-group/directory-cli/internal/scoring"
	"github.com/sells-group/directory-cli/internal/store"
	anthropicpkg "github.com/sells-group/directory-cli/pkg/anthropic"
	"github.com/sells-group/directory-cli/pkg/licensure"
	"github.com/sells-group/directory-cli/pkg/notion"
	"github.com/sells-group/directory-cli/pkg/nppes"
	"github.com/sells-group/directory-cli/pkg/places"
	"github.com/sells-group/directory-cli/pkg/searxng"
	"github.com/sells-group/directory-cli/pkg/webscrape"
)

// pipelineEnv holds the initialized store, clients, and orchestrator
// shared by the validate/batch/serve commands.
type pipelineEnv struct {
	Store  store.Store
	Orch   *pipeline.Orchestrator
	Runner *pipeline.BatchRunner
	Notion notion.Client // nil unless configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	}
	return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// initPipeline sets up the store, capability clients, scorer, and
// orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	weights := scoring.DefaultWeights()
	if cfg.Scoring.WeightsPath != "" {
		weights, err = scoring.LoadWeights(cfg.Scoring.WeightsPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load source weights")
		}
	}
	scorer := scoring.NewScorer(weights)

	caps := pipeline.Capabilities{
		Registry: nppes.NewClient(
			nppes.WithBaseURL(cfg.Registry.BaseURL),
			nppes.WithRateLimit(cfg.Registry.RPS, max(int(cfg.Registry.RPS)*2, 1)),
		),
		Search: searxng.NewClient(searxng.WithBaseURL(cfg.Search.BaseURL)),
		Scrape: webscrape.NewClient(),
	}

	// Map and license lookups are optional; without them the validation
	// and enrichment stages run degraded.
	if cfg.Places.Key != "" {
		caps.Map = places.NewClient(cfg.Places.Key)
	} else {
		zap.L().Debug("DIRECTORY_PLACES_KEY not set, map corroboration disabled")
	}
	if cfg.Licensure.BaseURL != "" {
		caps.License = licensure.NewClient(cfg.Licensure.BaseURL)
	} else {
		zap.L().Debug("licensure gateway not configured, license checks disabled")
	}

	opts := []pipeline.Option{pipeline.WithMaxSteps(cfg.Pipeline.MaxSteps)}
	if cfg.Pipeline.Routing == "llm" {
		if cfg.Anthropic.Key == "" {
			_ = st.Close()
			return nil, eris.New("llm routing requires DIRECTORY_ANTHROPIC_KEY")
		}
		opts = append(opts, pipeline.WithPolicy(
			pipeline.NewLLMPolicy(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model),
		))
	}

	orch := pipeline.NewOrchestrator(
		pipeline.NewValidationStage(scorer),
		pipeline.NewEnrichmentStage(scorer),
		pipeline.NewQualityAssuranceStage(scorer),
		caps,
		opts...,
	)

	env := &pipelineEnv{
		Store:  st,
		Orch:   orch,
		Runner: pipeline.NewBatchRunner(orch, cfg.Batch.MaxConcurrentProviders),
	}

	if cfg.Notion.Token != "" && cfg.Notion.ReviewDB != "" {
		env.Notion = notion.NewClient(cfg.Notion.Token)
	}

	return env, nil
}
