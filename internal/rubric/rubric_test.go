package rubric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func song(attrs map[string]string) *model.Song {
	s := &model.Song{ID: "s1", Title: "t", Artist: "a", Attrs: map[string]model.Attribute{}}
	for name, value := range attrs {
		s.Attrs[name] = model.Attribute{Value: value, Provenance: model.Sourced(model.StageFeatures)}
	}
	return s
}

func TestRangeDecay(t *testing.T) {
	ideals := []Range{{Min: 60, Max: 80}, {Min: 100, Max: 120}}
	hard := Range{Min: 50, Max: 130}

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"inside first ideal band", 70, 1.0},
		{"inside second ideal band", 110, 1.0},
		{"ideal band edge", 80, 1.0},
		{"below hard bound", 45, 0},
		{"above hard bound", 140, 0},
		{"hard bound itself", 50, 0},
		{"between bands, equidistant", 90, 0.8},
		{"below first band", 55, 0.5},
		{"above second band", 125, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, rangeDecay(tt.v, ideals, hard), 1e-9)
		})
	}
}

func TestScoreAllCriteria(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	sc := scorer.Score(song(map[string]string{
		model.AttrBPM:          "70",
		model.AttrMode:         "major",
		model.AttrLyricValence: "0.8",
		model.AttrLyricArousal: "0.3",
	}))

	require.Len(t, sc.Criteria, 4)
	assert.Empty(t, sc.Skipped)

	// Effective weights: .25*1.10, .20*0.85, .25*0.95, .30*0.95 (sum .9675).
	// Raw scores: 1.0, 1.0, 0.5 (0.8 decays halfway to the 1.0 bound), 1.0.
	// total = (.275 + .17 + .2375*0.5 + .285) / .9675
	assert.InDelta(t, 0.8773, sc.Total, 1e-4)
	assert.Equal(t, "B+", sc.Grade)

	// Reported weights are the renormalized effective weights.
	assert.InDelta(t, 0.2842, sc.Criteria[0].Weight, 1e-4)
}

func TestScoreEvidenceScalesWeightsNotScores(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// bpm (meta, w .25*1.10) at 1.0 and mode (theoretical, w .20*0.85)
	// at 0.4: total = (.275 + .17*0.4) / .445
	sc := scorer.Score(song(map[string]string{
		model.AttrBPM:  "70",
		model.AttrMode: "minor",
	}))

	require.Len(t, sc.Criteria, 2)
	assert.InDelta(t, 1.0, sc.Criteria[0].Score, 1e-9, "raw scores are never multiplied")
	assert.InDelta(t, 0.4, sc.Criteria[1].Score, 1e-9)
	assert.InDelta(t, 0.7708, sc.Total, 1e-4)
	assert.Equal(t, "C+", sc.Grade)
}

func TestScoreSkipsMissingAndRenormalizes(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// Only bpm present: its weight renormalizes to 1.0.
	sc := scorer.Score(song(map[string]string{model.AttrBPM: "70"}))

	require.Len(t, sc.Criteria, 1)
	assert.InDelta(t, 1.0, sc.Criteria[0].Weight, 1e-9)
	assert.InDelta(t, 1.0, sc.Total, 1e-9)
	assert.Equal(t, "A+", sc.Grade)
	assert.ElementsMatch(t, []string{model.AttrMode, model.AttrLyricValence, model.AttrLyricArousal}, sc.Skipped)
}

func TestScoreNoEvaluableCriteria(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	sc := scorer.Score(song(nil))
	assert.Zero(t, sc.Total)
	assert.Equal(t, "F", sc.Grade)
	assert.Len(t, sc.Skipped, 4)
}

func TestScoreModeFallback(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	sc := scorer.Score(song(map[string]string{model.AttrMode: "phrygian"}))
	require.Len(t, sc.Criteria, 1)
	assert.InDelta(t, 0.3, sc.Criteria[0].Score, 1e-9)
	assert.InDelta(t, 0.3, sc.Total, 1e-9)
}

func TestScoreModeCaseInsensitive(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	sc := scorer.Score(song(map[string]string{model.AttrMode: " Major "}))
	require.Len(t, sc.Criteria, 1)
	assert.InDelta(t, 1.0, sc.Criteria[0].Score, 1e-9)
}

func TestScoreUnparseableNumericSkipped(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	sc := scorer.Score(song(map[string]string{model.AttrBPM: "fast"}))
	assert.Empty(t, sc.Criteria)
	assert.Contains(t, sc.Skipped, model.AttrBPM)
}

func TestScoreDeterministic(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	attrs := map[string]string{
		model.AttrBPM:          "95",
		model.AttrMode:         "dorian",
		model.AttrLyricValence: "0.7",
		model.AttrLyricArousal: "0.15",
	}

	first := scorer.Score(song(attrs))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scorer.Score(song(attrs)))
	}
}

func TestEvidenceUpgradeShiftsWeight(t *testing.T) {
	attrs := map[string]string{
		model.AttrBPM:  "70",    // raw 1.0
		model.AttrMode: "minor", // raw 0.4
	}

	base := NewScorer(DefaultConfig()).Score(song(attrs))

	upgraded := DefaultConfig()
	upgraded.Criteria[0].Evidence = "rct" // 1.15 instead of meta's 1.10
	boosted := NewScorer(upgraded).Score(song(attrs))

	// Stronger evidence pulls the total toward the bpm criterion.
	assert.Greater(t, boosted.Total, base.Total)
	assert.InDelta(t, 0.7770, boosted.Total, 1e-4)

	// The total is a weighted mean of raw scores, so a multiplier above
	// one can never push it past 1.0.
	perfect := NewScorer(upgraded).Score(song(map[string]string{model.AttrBPM: "70"}))
	assert.InDelta(t, 1.0, perfect.Total, 1e-9)
}

func TestGradeBands(t *testing.T) {
	s := NewScorer(DefaultConfig())

	tests := []struct {
		pct  float64
		want string
	}{
		{98, "A+"}, {93, "A"}, {91, "A-"},
		{88, "B+"}, {83, "B"}, {80, "B-"},
		{77.5, "C+"}, {73, "C"}, {70, "C-"},
		{69, "D"}, {63, "D"}, {60, "D"},
		{59.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.grade(tt.pct), "pct %.1f", tt.pct)
	}
}

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no criteria", func(c *Config) { c.Criteria = nil }},
		{"negative weight", func(c *Config) { c.Criteria[0].Weight = -0.25 }},
		{"weights not summing to one", func(c *Config) { c.Criteria[0].Weight = 0.5 }},
		{"duplicate criterion", func(c *Config) { c.Criteria[1] = c.Criteria[0] }},
		{"missing hard range", func(c *Config) { c.Criteria[0].HardRange = nil }},
		{"ideal outside hard", func(c *Config) { c.Criteria[0].IdealRanges[0].Max = 500 }},
		{"zero multiplier", func(c *Config) { c.EvidenceMultipliers["rct"] = 0 }},
		{"no cutoffs", func(c *Config) { c.GradeCutoffs = nil }},
		{"unordered cutoffs", func(c *Config) {
			c.GradeCutoffs[0], c.GradeCutoffs[1] = c.GradeCutoffs[1], c.GradeCutoffs[0]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigEmptyPathUsesDefault(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
criteria:
  - attribute: bpm
    weight: 1.0
    evidence: rct
    ideal_ranges:
      - {min: 60, max: 80}
    hard_range: {min: 50, max: 130}
evidence_multipliers:
  rct: 1.15
grade_cutoffs:
  - {min: 90, grade: "A"}
  - {min: 0, grade: "F"}
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Criteria, 1)
	assert.Equal(t, "bpm", cfg.Criteria[0].Attribute)
	assert.Equal(t, 1.15, cfg.EvidenceMultipliers["rct"])

	sc := NewScorer(cfg).Score(song(map[string]string{model.AttrBPM: "70"}))
	assert.Equal(t, "A", sc.Grade)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte("criteria: ["), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
