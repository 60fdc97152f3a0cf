package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Positive(t *testing.T) {
	res, ok := Analyze("I love the sunshine, it makes me happy and alive")
	require.True(t, ok)
	assert.Greater(t, res.Valence, 0.5)
	assert.Greater(t, res.Matched, 0)
}

func TestAnalyze_Negative(t *testing.T) {
	res, ok := Analyze("alone in the darkness, broken and crying cold tears")
	require.True(t, ok)
	assert.Less(t, res.Valence, -0.3)
}

func TestAnalyze_Arousal(t *testing.T) {
	high, ok := Analyze("fire burning loud scream run wild")
	require.True(t, ok)
	low, ok2 := Analyze("quiet whisper gentle lullaby sleep softly")
	require.True(t, ok2)
	assert.Greater(t, high.Arousal, 0.6)
	assert.Less(t, low.Arousal, 0.3)
}

func TestAnalyze_Deterministic(t *testing.T) {
	text := "love and tears, dancing alone in the rain"
	a, okA := Analyze(text)
	b, okB := Analyze(text)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
}

func TestAnalyze_Empty(t *testing.T) {
	_, ok := Analyze("")
	assert.False(t, ok)

	_, ok = Analyze("   \n\t ")
	assert.False(t, ok)
}

func TestAnalyze_NoLexiconHits(t *testing.T) {
	_, ok := Analyze("xylophone zucchini quadrilateral")
	assert.False(t, ok)
}

func TestAnalyze_CaseAndPunctuationInsensitive(t *testing.T) {
	a, _ := Analyze("LOVE! Happy...")
	b, _ := Analyze("love happy")
	assert.Equal(t, a.Valence, b.Valence)
}
