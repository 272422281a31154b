package scoring

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/directory-cli/internal/model"
)

var foldCaser = cases.Fold()

// NormalizeValue canonicalizes an observed value for comparison: case
// folding plus collapsing of internal whitespace and common punctuation.
// "(555) 123-4567" and "555.123.4567" compare equal.
func NormalizeValue(v string) string {
	v = foldCaser.String(strings.TrimSpace(v))
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch r {
		case ' ', '\t', '\n', '(', ')', '-', '.', ',':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CrossValidate compares observations of the same element across sources.
// When two or more observations in a group carry non-empty, materially
// different values, every observation in that group is flagged with a
// discrepancy. The input list is returned annotated, one entry per
// original observation, so the audit trail survives. Grouping is
// order-insensitive: permuting the input permutes only the output order,
// never the flags.
func CrossValidate(observations []model.DataElementConfidence) []model.DataElementConfidence {
	out := append([]model.DataElementConfidence(nil), observations...)

	// Distinct normalized non-empty values per element.
	distinct := make(map[string]map[string]struct{})
	for _, obs := range out {
		norm := NormalizeValue(obs.Value)
		if norm == "" {
			continue
		}
		set, ok := distinct[obs.ElementName]
		if !ok {
			set = make(map[string]struct{})
			distinct[obs.ElementName] = set
		}
		set[norm] = struct{}{}
	}

	for i := range out {
		if set, ok := distinct[out[i].ElementName]; ok && len(set) > 1 {
			out[i].DiscrepancyFound = true
		}
	}

	return out
}

// OverallConfidence derives a record-level confidence as the arithmetic
// mean of the per-observation scores. An empty observation list yields
// 0.0: a record with no corroborating data must not skew positive.
func OverallConfidence(observations []model.DataElementConfidence) float64 {
	if len(observations) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, obs := range observations {
		sum += obs.ConfidenceScore
	}
	return sum / float64(len(observations))
}
