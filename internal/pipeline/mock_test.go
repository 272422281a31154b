package pipeline

import (
	"context"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/pkg/anthropic"
	"github.com/sells-group/directory-cli/pkg/licensure"
	"github.com/sells-group/directory-cli/pkg/nppes"
	"github.com/sells-group/directory-cli/pkg/places"
	"github.com/sells-group/directory-cli/pkg/searxng"
	"github.com/sells-group/directory-cli/pkg/webscrape"
)

type fakeRegistry struct {
	providers []nppes.Provider
	err       error
	calls     int
}

func (f *fakeRegistry) Search(_ context.Context, q nppes.Query) ([]nppes.Provider, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []nppes.Provider
	for _, p := range f.providers {
		if q.NPI == "" || p.NPI == q.NPI {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSearch struct {
	results []searxng.Result
	err     error
}

func (f *fakeSearch) Search(context.Context, string, string, int) ([]searxng.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeScrape struct {
	result *webscrape.Result
	err    error
}

func (f *fakeScrape) Scrape(context.Context, string) (*webscrape.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeMap struct {
	result *places.Result
	err    error
}

func (f *fakeMap) Lookup(context.Context, places.Query) (*places.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLicense struct {
	result *licensure.Result
	err    error
}

func (f *fakeLicense) Lookup(context.Context, licensure.Query) (*licensure.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLLM struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	reply := "FINISH"
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: reply}},
	}, nil
}

// stubStage runs a canned mutation, for orchestrator tests that do not
// care about real stage behavior.
type stubStage struct {
	name string
	run  func(*model.ProviderRecord) (*model.ProviderRecord, string, error)
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Run(_ context.Context, record *model.ProviderRecord, _ Capabilities) (*model.ProviderRecord, string, error) {
	return s.run(record)
}

// loopPolicy always routes to the same stage, to exercise the step bound.
type loopPolicy struct{ route Route }

func (p loopPolicy) Decide(context.Context, *model.ProviderRecord, []string) (Route, error) {
	return p.route, nil
}
