package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/pkg/anthropic"
)

// Route is a supervisor decision: the next stage to run, or FINISH.
type Route string

const (
	RouteValidation Route = Route(StageValidation)
	RouteEnrichment Route = Route(StageEnrichment)
	RouteQA         Route = Route(StageQA)
	RouteFinish     Route = "FINISH"
)

// RoutingPolicy decides which stage a record visits next. history lists
// the stages already run, in order. Any error from a policy is treated
// as a FINISH by the orchestrator; a policy can never wedge a record.
type RoutingPolicy interface {
	Decide(ctx context.Context, record *model.ProviderRecord, history []string) (Route, error)
}

// SequencePolicy routes each record through the canonical stage order,
// each stage exactly once, then finishes. It is the deterministic
// default and needs no external service.
type SequencePolicy struct{}

// Decide implements RoutingPolicy.
func (SequencePolicy) Decide(_ context.Context, _ *model.ProviderRecord, history []string) (Route, error) {
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[h] = true
	}
	for _, name := range StageNames {
		if !seen[name] {
			return Route(name), nil
		}
	}
	return RouteFinish, nil
}

// supervisorSystemPrompt instructs the model to act as the routing
// supervisor. The reply must name exactly one member or FINISH.
const supervisorSystemPrompt = `You are a supervisor coordinating a healthcare provider directory ` +
	`validation workflow with the following workers: %s. Given the provider ` +
	`record state and the workers that have already run, respond with the ` +
	`name of the worker to act next. Each worker should act at most once. ` +
	`When no further work is needed, respond with FINISH. Respond with ` +
	`exactly one word.`

// LLMPolicy asks a language model to choose the next stage. Replies are
// matched against the known stage names; anything unrecognized, and any
// API failure, resolves to FINISH so a flaky model degrades to a shorter
// run instead of a stuck one.
type LLMPolicy struct {
	client anthropic.Client
	model  string
}

// NewLLMPolicy creates a policy over the given model.
func NewLLMPolicy(client anthropic.Client, modelName string) *LLMPolicy {
	return &LLMPolicy{client: client, model: modelName}
}

// Decide implements RoutingPolicy.
func (p *LLMPolicy) Decide(ctx context.Context, record *model.ProviderRecord, history []string) (Route, error) {
	ran := "none"
	if len(history) > 0 {
		ran = strings.Join(history, ", ")
	}
	prompt := fmt.Sprintf(
		"Provider %s (%s): status %s, overall confidence %.2f, %d observations.\nWorkers already run: %s.\nWho acts next?",
		record.NPI, record.FullName(), record.ValidationStatus,
		record.OverallConfidence, len(record.DataElementConfidences), ran,
	)

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 16,
		System:    fmt.Sprintf(supervisorSystemPrompt, strings.Join(StageNames, ", ")),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("supervisor call failed, finishing record",
			zap.String("npi", record.NPI),
			zap.Error(err))
		return RouteFinish, nil
	}

	return parseRoute(resp.Text(), history), nil
}

// parseRoute maps a model reply onto a route. The reply is scanned for
// stage names rather than parsed strictly; FINISH wins over everything,
// and a stage that already ran is not routed to again.
func parseRoute(reply string, history []string) Route {
	if strings.Contains(reply, string(RouteFinish)) {
		return RouteFinish
	}

	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[h] = true
	}
	for _, name := range StageNames {
		if strings.Contains(reply, name) && !seen[name] {
			return Route(name)
		}
	}
	return RouteFinish
}

var (
	_ RoutingPolicy = SequencePolicy{}
	_ RoutingPolicy = (*LLMPolicy)(nil)
)
