package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/directory-cli/internal/model"
)

func TestSequencePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history []string
		want    Route
	}{
		{name: "fresh record starts with validation", want: RouteValidation},
		{name: "after validation", history: []string{StageValidation}, want: RouteEnrichment},
		{name: "after enrichment", history: []string{StageValidation, StageEnrichment}, want: RouteQA},
		{name: "all stages run", history: []string{StageValidation, StageEnrichment, StageQA}, want: RouteFinish},
		{name: "out of order history still fills gaps", history: []string{StageEnrichment}, want: RouteValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SequencePolicy{}.Decide(context.Background(), model.NewProviderRecord("1"), tt.history)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMPolicyDecide(t *testing.T) {
	t.Parallel()

	record := model.NewProviderRecord("1234567890")

	tests := []struct {
		name    string
		reply   string
		history []string
		want    Route
	}{
		{name: "exact stage name", reply: "DataValidation", want: RouteValidation},
		{name: "stage name inside prose", reply: "Next up: InformationEnrichment.", want: RouteEnrichment},
		{name: "finish", reply: "FINISH", want: RouteFinish},
		{
			name:    "finish wins over stage mention",
			reply:   "QualityAssurance is done, FINISH",
			history: []string{StageValidation, StageEnrichment},
			want:    RouteFinish,
		},
		{name: "unrecognized reply finishes", reply: "let me think about that", want: RouteFinish},
		{
			name:    "already-run stage not routed again",
			reply:   "DataValidation",
			history: []string{StageValidation},
			want:    RouteFinish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewLLMPolicy(&fakeLLM{replies: []string{tt.reply}}, "test-model")
			got, err := p.Decide(context.Background(), record, tt.history)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMPolicyAPIFailureFinishes(t *testing.T) {
	t.Parallel()

	p := NewLLMPolicy(&fakeLLM{err: eris.New("rate limited")}, "test-model")
	got, err := p.Decide(context.Background(), model.NewProviderRecord("1234567890"), nil)
	require.NoError(t, err)
	assert.Equal(t, RouteFinish, got)
}

func TestLLMPolicyDrivesFullRun(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{
		StageValidation,
		StageEnrichment,
		StageQA,
		"FINISH",
	}}
	o := testOrchestrator(stubStages(), WithPolicy(NewLLMPolicy(llm, "test-model")))

	res, err := o.Run(context.Background(), model.NewProviderRecord("1234567890"))
	require.NoError(t, err)
	assert.Equal(t, []string{StageValidation, StageEnrichment, StageQA}, res.StagesRun)
	assert.Equal(t, 4, llm.calls)
}
