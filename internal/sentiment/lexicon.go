package sentiment

// valenceLexicon maps folded tokens to a polarity in [-1, 1]. The list
// covers the vocabulary that dominates popular song lyrics; out-of-lexicon
// tokens simply do not contribute.
var valenceLexicon = map[string]float64{
	// positive
	"love":      0.8,
	"loved":     0.7,
	"loving":    0.7,
	"happy":     0.9,
	"happiness": 0.9,
	"joy":       0.9,
	"smile":     0.7,
	"smiling":   0.7,
	"beautiful": 0.8,
	"wonderful": 0.9,
	"sweet":     0.6,
	"shine":     0.6,
	"shining":   0.6,
	"sunshine":  0.8,
	"light":     0.4,
	"bright":    0.6,
	"heaven":    0.6,
	"angel":     0.5,
	"dream":     0.4,
	"dreams":    0.4,
	"hope":      0.6,
	"free":      0.5,
	"freedom":   0.6,
	"alive":     0.6,
	"dance":     0.5,
	"dancing":   0.5,
	"laugh":     0.7,
	"peace":     0.7,
	"warm":      0.5,
	"home":      0.4,
	"heart":     0.3,
	"kiss":      0.6,
	"paradise":  0.8,
	"gold":      0.4,
	"golden":    0.5,
	"good":      0.5,
	"better":    0.4,
	"best":      0.7,
	"stronger":  0.5,
	"celebrate": 0.8,
	"together":  0.4,
	"forever":   0.3,

	// negative
	"sad":      -0.8,
	"sadness":  -0.8,
	"cry":      -0.7,
	"crying":   -0.7,
	"tears":    -0.6,
	"pain":     -0.8,
	"hurt":     -0.7,
	"hurting":  -0.7,
	"broken":   -0.7,
	"break":    -0.4,
	"lonely":   -0.7,
	"alone":    -0.5,
	"lost":     -0.5,
	"dark":     -0.5,
	"darkness": -0.6,
	"cold":     -0.4,
	"dead":     -0.8,
	"death":    -0.8,
	"die":      -0.8,
	"dying":    -0.8,
	"hate":     -0.9,
	"fear":     -0.7,
	"afraid":   -0.6,
	"scared":   -0.6,
	"goodbye":  -0.4,
	"sorry":    -0.4,
	"wrong":    -0.4,
	"fall":     -0.3,
	"falling":  -0.3,
	"empty":    -0.6,
	"nothing":  -0.4,
	"never":    -0.2,
	"war":      -0.7,
	"fight":    -0.4,
	"storm":    -0.4,
	"rain":     -0.2,
	"shame":    -0.6,
	"regret":   -0.6,
	"miss":     -0.4,
	"missing":  -0.4,
	"devil":    -0.6,
	"hell":     -0.6,
	"ghost":    -0.4,
	"grave":    -0.7,
}

// arousalLexicon maps folded tokens to an energy level in [0, 1].
var arousalLexicon = map[string]float64{
	// high energy
	"fire":      0.9,
	"burn":      0.8,
	"burning":   0.8,
	"run":       0.7,
	"running":   0.7,
	"jump":      0.8,
	"scream":    0.9,
	"screaming": 0.9,
	"shout":     0.8,
	"loud":      0.8,
	"wild":      0.8,
	"crazy":     0.8,
	"fast":      0.7,
	"race":      0.7,
	"electric":  0.8,
	"thunder":   0.8,
	"lightning": 0.8,
	"power":     0.7,
	"fight":     0.8,
	"dance":     0.7,
	"dancing":   0.7,
	"party":     0.8,
	"alive":     0.6,
	"rise":      0.6,
	"explode":   0.9,
	"rush":      0.8,

	// low energy
	"sleep":    0.1,
	"sleeping": 0.1,
	"quiet":    0.1,
	"still":    0.2,
	"slow":     0.2,
	"slowly":   0.2,
	"calm":     0.1,
	"gentle":   0.2,
	"gently":   0.2,
	"soft":     0.2,
	"softly":   0.2,
	"whisper":  0.2,
	"breathe":  0.3,
	"rest":     0.2,
	"dream":    0.3,
	"dreams":   0.3,
	"lullaby":  0.1,
	"float":    0.3,
	"drift":    0.2,
	"peace":    0.2,
	"silence":  0.1,
	"silent":   0.1,
}
