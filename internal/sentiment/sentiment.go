// Package sentiment scores free text on valence and arousal using embedded
// lexicons. The analysis is purely lexical so that identical input always
// produces identical output, which the pipeline relies on for idempotent
// re-runs.
package sentiment

import (
	"math"
	"strings"

	"github.com/halcyon-research/tracklist-cli/internal/similarity"
)

// Result holds the derived sentiment attributes for one text.
type Result struct {
	Valence float64 // -1.0 (negative) .. 1.0 (positive)
	Arousal float64 // 0.0 (calm) .. 1.0 (energetic)
	Tokens  int     // total tokens considered
	Matched int     // tokens found in either lexicon
}

// Analyze scores the text. ok is false when the text contains no scorable
// tokens at all (empty or entirely out-of-lexicon input).
func Analyze(text string) (Result, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Result{}, false
	}

	var valSum, aroSum float64
	var valN, aroN, matched int
	for _, tok := range tokens {
		v, okV := valenceLexicon[tok]
		a, okA := arousalLexicon[tok]
		if okV {
			valSum += v
			valN++
		}
		if okA {
			aroSum += a
			aroN++
		}
		if okV || okA {
			matched++
		}
	}
	if matched == 0 {
		return Result{Tokens: len(tokens)}, false
	}

	res := Result{Tokens: len(tokens), Matched: matched}
	if valN > 0 {
		res.Valence = round4(valSum / float64(valN))
	}
	if aroN > 0 {
		res.Arousal = round4(aroSum / float64(aroN))
	} else {
		// No explicit arousal words: derive a mild baseline from valence
		// magnitude so strongly polarized lyrics still register energy.
		res.Arousal = round4(0.25 + 0.25*math.Abs(res.Valence))
	}
	return res, true
}

func tokenize(text string) []string {
	folded := similarity.Fold(text)
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
