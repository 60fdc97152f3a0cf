package model

import "strings"

// Provenance tags where an attribute value came from. Sourced tags embed the
// stage that produced them ("sourced:features"); inferred values come from
// the gap filler; unresolved marks attributes no stage has produced yet.
type Provenance string

const (
	ProvenanceUnresolved Provenance = "unresolved"
	ProvenanceInferred   Provenance = "inferred"

	sourcedPrefix = "sourced:"
)

// Sourced builds the sourced provenance tag for a stage.
func Sourced(stage Stage) Provenance {
	return Provenance(sourcedPrefix + string(stage))
}

// IsSourced reports whether the tag is a sourced:<stage> tag.
func (p Provenance) IsSourced() bool {
	return strings.HasPrefix(string(p), sourcedPrefix)
}

// SourceStage returns the stage embedded in a sourced tag, or "" for
// inferred/unresolved provenance.
func (p Provenance) SourceStage() Stage {
	if !p.IsSourced() {
		return ""
	}
	return Stage(strings.TrimPrefix(string(p), sourcedPrefix))
}

// Rank orders provenance classes for merging: sourced > inferred >
// unresolved. Ties between two sourced tags are broken by the merger's
// stage ranking, not here.
func (p Provenance) Rank() int {
	switch {
	case p.IsSourced():
		return 2
	case p == ProvenanceInferred:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the tag is one of the recognized forms.
func (p Provenance) Valid() bool {
	if p == ProvenanceUnresolved || p == ProvenanceInferred {
		return true
	}
	return p.IsSourced() && p.SourceStage() != ""
}
