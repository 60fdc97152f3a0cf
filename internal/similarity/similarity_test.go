package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Blue", "blue"},
		{"  BLUE  ", "blue"},
		{"Sigur Rós", "sigur ros"},
		{"Don't Stop Me Now!", "dont stop me now"},
		{"A  B   C", "a b c"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Fold(tc.in), tc.in)
	}
}

func TestNormalizeTitle_StripsVersionQualifiers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Blue (Remastered 2003)", "blue"},
		{"Blue - Remastered 2011", "blue"},
		{"Hurt - Live", "hurt"},
		{"Creep (Acoustic)", "creep"},
		{"One More Time - Radio Edit", "one more time"},
		{"Plain Title", "plain title"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeTitle(tc.in), tc.in)
	}
}

func TestExact(t *testing.T) {
	assert.True(t, Exact("Blue", "A", "BLUE (Live)", "a"))
	assert.True(t, Exact("Hallelujah", "Jeff Buckley", "hallelujah", "JEFF BUCKLEY"))
	assert.False(t, Exact("Blue", "A", "Red", "A"))
}

func TestScore(t *testing.T) {
	// Identical pair scores 1.
	assert.InDelta(t, 1.0, Score("Blue", "A", "Blue", "A"), 1e-9)

	// Near-identical title, same artist stays high.
	s := Score("Bohemian Rhapsody", "Queen", "Bohemian Rhapsod", "Queen")
	assert.Greater(t, s, 0.9)

	// Unrelated pair scores low.
	s = Score("Blue", "A", "Completely Different Song", "Someone Else")
	assert.Less(t, s, 0.5)
}

func TestKey_StableAcrossVariants(t *testing.T) {
	assert.Equal(t, Key("Blue (Live)", "A"), Key("blue", "a"))
}
