// Package rubric scores enriched song records against a weighted
// criteria rubric with evidence-strength multipliers.
package rubric

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Criterion defines how one attribute is scored. Numeric criteria use
// ideal ranges with linear decay toward hard bounds; categorical criteria
// map values directly to scores.
type Criterion struct {
	Attribute string  `yaml:"attribute"`
	Weight    float64 `yaml:"weight"`

	// Evidence level applied when the record carries none of its own.
	Evidence string `yaml:"evidence"`

	// Numeric criteria. A value inside any ideal range scores 1.0 and
	// decays linearly to 0 at the hard bounds.
	IdealRanges []Range `yaml:"ideal_ranges,omitempty"`
	HardRange   *Range  `yaml:"hard_range,omitempty"`

	// Categorical criteria (e.g. musical mode). Lookup is case-insensitive;
	// unknown values fall back to OtherScore.
	ValueScores map[string]float64 `yaml:"value_scores,omitempty"`
	OtherScore  float64            `yaml:"other_score,omitempty"`
}

// Numeric reports whether the criterion scores a numeric attribute.
func (c Criterion) Numeric() bool {
	return len(c.ValueScores) == 0
}

// GradeCutoff maps a minimum percentage score to a letter grade.
type GradeCutoff struct {
	Min   float64 `yaml:"min"`
	Grade string  `yaml:"grade"`
}

// Config is the full scoring rubric.
type Config struct {
	Criteria []Criterion `yaml:"criteria"`

	// EvidenceMultipliers scale a criterion score by the strength of the
	// research backing it. Unknown levels use 1.0.
	EvidenceMultipliers map[string]float64 `yaml:"evidence_multipliers"`

	// GradeCutoffs must be ordered by descending Min; the first cutoff at
	// or below the percentage score wins.
	GradeCutoffs []GradeCutoff `yaml:"grade_cutoffs"`
}

// DefaultConfig returns the built-in therapeutic listening rubric.
// Weights sum to 1.0.
func DefaultConfig() Config {
	return Config{
		Criteria: []Criterion{
			{
				Attribute: model.AttrBPM,
				Weight:    0.25,
				Evidence:  "meta",
				IdealRanges: []Range{
					{Min: 60, Max: 80},
					{Min: 100, Max: 120},
				},
				HardRange: &Range{Min: 50, Max: 130},
			},
			{
				Attribute: model.AttrMode,
				Weight:    0.20,
				Evidence:  "theoretical",
				ValueScores: map[string]float64{
					"major":      1.0,
					"mixolydian": 0.8,
					"dorian":     0.5,
					"minor":      0.4,
				},
				OtherScore: 0.3,
			},
			{
				Attribute:   model.AttrLyricValence,
				Weight:      0.25,
				Evidence:    "observational",
				IdealRanges: []Range{{Min: 0.2, Max: 0.6}},
				HardRange:   &Range{Min: -0.5, Max: 1.0},
			},
			{
				Attribute:   model.AttrLyricArousal,
				Weight:      0.30,
				Evidence:    "observational",
				IdealRanges: []Range{{Min: 0.2, Max: 0.6}},
				HardRange:   &Range{Min: -0.3, Max: 1.0},
			},
		},
		EvidenceMultipliers: map[string]float64{
			"rct":           1.15,
			"meta":          1.10,
			"systematic":    1.10,
			"observational": 0.95,
			"clinical":      0.95,
			"theoretical":   0.85,
			"mechanistic":   0.85,
			"anecdotal":     0.75,
			"indirect":      0.75,
		},
		GradeCutoffs: []GradeCutoff{
			{Min: 97, Grade: "A+"},
			{Min: 93, Grade: "A"},
			{Min: 90, Grade: "A-"},
			{Min: 87, Grade: "B+"},
			{Min: 83, Grade: "B"},
			{Min: 80, Grade: "B-"},
			{Min: 77, Grade: "C+"},
			{Min: 73, Grade: "C"},
			{Min: 70, Grade: "C-"},
			{Min: 60, Grade: "D"},
			{Min: 0, Grade: "F"},
		},
	}
}

// LoadConfig reads a rubric from a YAML file, falling back to the default
// rubric when path is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "rubric: read %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, eris.Wrapf(err, "rubric: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that a rubric is internally consistent.
func (cfg Config) Validate() error {
	var errs []string

	if len(cfg.Criteria) == 0 {
		errs = append(errs, "at least one criterion is required")
	}

	var sum float64
	seen := make(map[string]bool)
	for _, c := range cfg.Criteria {
		if c.Attribute == "" {
			errs = append(errs, "criterion missing attribute name")
			continue
		}
		if seen[c.Attribute] {
			errs = append(errs, fmt.Sprintf("duplicate criterion %s", c.Attribute))
		}
		seen[c.Attribute] = true

		if c.Weight < 0 {
			errs = append(errs, fmt.Sprintf("%s: weight must be >= 0", c.Attribute))
		}
		sum += c.Weight

		if c.Numeric() {
			if c.HardRange == nil {
				errs = append(errs, fmt.Sprintf("%s: numeric criterion needs hard_range", c.Attribute))
			} else if c.HardRange.Max < c.HardRange.Min {
				errs = append(errs, fmt.Sprintf("%s: hard_range max < min", c.Attribute))
			}
			if len(c.IdealRanges) == 0 {
				errs = append(errs, fmt.Sprintf("%s: numeric criterion needs ideal_ranges", c.Attribute))
			}
			for _, r := range c.IdealRanges {
				if r.Max < r.Min {
					errs = append(errs, fmt.Sprintf("%s: ideal range max < min", c.Attribute))
				}
				if c.HardRange != nil && (r.Min < c.HardRange.Min || r.Max > c.HardRange.Max) {
					errs = append(errs, fmt.Sprintf("%s: ideal range outside hard range", c.Attribute))
				}
			}
		}
	}

	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	} else if math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.3f", sum))
	}

	for level, m := range cfg.EvidenceMultipliers {
		if m <= 0 {
			errs = append(errs, fmt.Sprintf("evidence multiplier %s must be > 0", level))
		}
	}

	if len(cfg.GradeCutoffs) == 0 {
		errs = append(errs, "at least one grade cutoff is required")
	}
	for i := 1; i < len(cfg.GradeCutoffs); i++ {
		if cfg.GradeCutoffs[i].Min >= cfg.GradeCutoffs[i-1].Min {
			errs = append(errs, "grade cutoffs must be in descending order")
			break
		}
	}

	if len(errs) > 0 {
		return eris.New("rubric: invalid config: " + strings.Join(errs, "; "))
	}
	return nil
}
