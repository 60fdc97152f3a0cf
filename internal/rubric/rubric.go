package rubric

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// Scorer evaluates song records against a rubric. Scoring is deterministic:
// the same attributes and config always produce the same result.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. The config must already be validated.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates one record. Criteria whose attribute is missing are
// skipped; evidence multipliers scale the remaining criterion weights,
// which are then renormalized. Raw criterion scores are never scaled, so
// the total stays a weighted mean in [0, 1]. A record with no evaluable
// criteria scores 0 with grade F.
func (s *Scorer) Score(song *model.Song) model.Score {
	type evaluated struct {
		criterion Criterion
		raw       float64
		weight    float64
	}

	var evals []evaluated
	var skipped []string
	var weightSum float64

	for _, c := range s.cfg.Criteria {
		attr, ok := song.Attrs[c.Attribute]
		if !ok || attr.Value == "" || attr.Provenance == model.ProvenanceUnresolved {
			skipped = append(skipped, c.Attribute)
			continue
		}

		raw, ok := s.evaluate(c, attr.Value)
		if !ok {
			zap.L().Warn("rubric: unparseable attribute value",
				zap.String("song_id", song.ID),
				zap.String("attribute", c.Attribute),
				zap.String("value", attr.Value),
			)
			skipped = append(skipped, c.Attribute)
			continue
		}

		mult := 1.0
		if m, ok := s.cfg.EvidenceMultipliers[c.Evidence]; ok {
			mult = m
		}
		weight := c.Weight * mult
		evals = append(evals, evaluated{criterion: c, raw: raw, weight: weight})
		weightSum += weight
	}

	score := model.Score{
		SongID:   song.ID,
		Criteria: []model.CriterionScore{},
		Skipped:  skipped,
	}
	if len(evals) == 0 || weightSum <= 0 {
		score.Grade = s.grade(0)
		return score
	}

	var total float64
	for _, e := range evals {
		eff := e.weight / weightSum
		total += eff * e.raw
		score.Criteria = append(score.Criteria, model.CriterionScore{
			Attribute: e.criterion.Attribute,
			Score:     round4(e.raw),
			Weight:    round4(eff),
			Evidence:  e.criterion.Evidence,
		})
	}

	score.Total = round4(total)
	score.Grade = s.grade(score.Total * 100)
	return score
}

// evaluate computes the unweighted criterion score for a raw attribute value.
func (s *Scorer) evaluate(c Criterion, value string) (float64, bool) {
	if !c.Numeric() {
		key := strings.ToLower(strings.TrimSpace(value))
		if v, ok := c.ValueScores[key]; ok {
			return v, true
		}
		return c.OtherScore, true
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return rangeDecay(v, c.IdealRanges, *c.HardRange), true
}

// rangeDecay scores 1.0 inside any ideal range, 0 outside the hard range,
// and decays linearly between an ideal edge and the hard bound on that side.
// With multiple ideal ranges the most favorable one wins.
func rangeDecay(v float64, ideals []Range, hard Range) float64 {
	if v < hard.Min || v > hard.Max {
		return 0
	}

	best := 0.0
	for _, r := range ideals {
		var score float64
		switch {
		case v >= r.Min && v <= r.Max:
			score = 1.0
		case v < r.Min:
			span := r.Min - hard.Min
			if span <= 0 {
				continue
			}
			score = 1.0 - (r.Min-v)/span
		default:
			span := hard.Max - r.Max
			if span <= 0 {
				continue
			}
			score = 1.0 - (v-r.Max)/span
		}
		if score > best {
			best = score
		}
	}
	return best
}

func (s *Scorer) grade(pct float64) string {
	for _, cut := range s.cfg.GradeCutoffs {
		if pct >= cut.Min {
			return cut.Grade
		}
	}
	return s.cfg.GradeCutoffs[len(s.cfg.GradeCutoffs)-1].Grade
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
