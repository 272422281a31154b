// Package scoring implements the confidence scoring and cross-validation
// engines. Both are pure: the same inputs always produce the same outputs,
// which keeps cross-source comparisons reproducible.
package scoring

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/directory-cli/internal/model"
)

// ErrInvalidSourceKind is returned when a score is requested for an
// unrecognized source tag. Unknown sources fail fast rather than silently
// defaulting to some weight.
var ErrInvalidSourceKind = eris.New("scoring: invalid source kind")

// Weights maps each data source to its base reliability weight in [0,1].
type Weights struct {
	Registry     float64 `yaml:"registry"`
	Web          float64 `yaml:"web"`
	Map          float64 `yaml:"map"`
	LicenseBoard float64 `yaml:"license_board"`
}

// DefaultWeights returns the built-in source reliability table. The NPPES
// registry and state license boards are systems of record; map listings
// are business-maintained; general web results rank lowest.
func DefaultWeights() Weights {
	return Weights{
		Registry:     0.9,
		Web:          0.5,
		Map:          0.7,
		LicenseBoard: 0.85,
	}
}

// LoadWeights reads a source weight table from a YAML file. Missing keys
// fall back to the defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()

	data, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrapf(err, "scoring: read weights %s", path)
	}

	// The YAML has a top-level "sources" key.
	var wrapper struct {
		Sources map[string]float64 `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return w, eris.Wrap(err, "scoring: parse weights")
	}

	for name, weight := range wrapper.Sources {
		switch model.DataSource(name) {
		case model.SourceRegistry:
			w.Registry = weight
		case model.SourceWeb:
			w.Web = weight
		case model.SourceMap:
			w.Map = weight
		case model.SourceLicenseBoard:
			w.LicenseBoard = weight
		default:
			return w, eris.Wrapf(ErrInvalidSourceKind, "scoring: weights entry %q", name)
		}
	}

	return w, nil
}

// Scorer assigns confidence scores to field observations based on the
// reliability of their source.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer over the given weight table.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the confidence for a field value claimed by the given
// source. An empty or whitespace-only value scores 0 regardless of source.
func (s *Scorer) Score(value string, source model.DataSource) (float64, error) {
	base, err := s.baseWeight(source)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return base, nil
}

// Observe builds a scored observation for the element. The source tag must
// be valid; the error surfaces as InvalidSourceKind otherwise.
func (s *Scorer) Observe(element, value string, source model.DataSource) (model.DataElementConfidence, error) {
	score, err := s.Score(value, source)
	if err != nil {
		return model.DataElementConfidence{}, err
	}
	return model.DataElementConfidence{
		ElementName:     element,
		Value:           value,
		ConfidenceScore: score,
		Source:          source,
	}, nil
}

func (s *Scorer) baseWeight(source model.DataSource) (float64, error) {
	switch source {
	case model.SourceRegistry:
		return s.weights.Registry, nil
	case model.SourceWeb:
		return s.weights.Web, nil
	case model.SourceMap:
		return s.weights.Map, nil
	case model.SourceLicenseBoard:
		return s.weights.LicenseBoard, nil
	}
	return 0, eris.Wrapf(ErrInvalidSourceKind, "scoring: source %q", string(source))
}
