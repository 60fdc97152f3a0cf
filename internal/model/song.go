// Package model defines the catalog domain types shared across the pipeline.
package model

import (
	"strings"
	"time"
)

// Stage identifies one enrichment stage of the pipeline.
type Stage string

const (
	StageMatch    Stage = "match"
	StageFeatures Stage = "features"
	StageLyrics   Stage = "lyrics"
	StageText     Stage = "text"
	StageFill     Stage = "fill"

	// StageSeed tags attributes carried in by the import itself. It is
	// not scheduled; it only appears as a provenance source.
	StageSeed Stage = "seed"
)

// Stages lists all pipeline stages in scheduling order.
var Stages = []Stage{StageMatch, StageFeatures, StageLyrics, StageText, StageFill}

// Status is the per-stage processing state of a song record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusNotFound  Status = "not_found"
	StatusFailed    Status = "failed"
	StatusAmbiguous Status = "ambiguous"
	StatusDone      Status = "done"
)

// Well-known attribute names. Every stage reads and writes attributes by
// these keys; the store itself is schema-free about names.
const (
	AttrExternalID   = "external_id"
	AttrSourceLink   = "source_link"
	AttrFoundTitle   = "found_title"
	AttrFoundArtist  = "found_artist"
	AttrBPM          = "bpm"
	AttrMode         = "mode"
	AttrValence      = "valence"
	AttrDuration     = "duration_secs"
	AttrGain         = "gain_db"
	AttrLyrics       = "lyrics"
	AttrLyricValence = "lyric_valence"
	AttrLyricArousal = "lyric_arousal"
	AttrContext      = "listening_context"
	AttrContra       = "contraindications"
	AttrCurator      = "curator"
	AttrDateAdded    = "date_added"
)

// Attribute is a single named value on a song record together with the
// provenance that produced it.
type Attribute struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Song is one canonical catalog record. Records are created from seed input
// only; stages mutate them exclusively through patch application.
type Song struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Artist    string               `json:"artist"`
	Attrs     map[string]Attribute `json:"attrs"`
	Statuses  map[Stage]Status     `json:"statuses"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Attr returns the named attribute value, or "" when it is absent or still
// unresolved.
func (s *Song) Attr(name string) string {
	v, _ := s.AttrOK(name)
	return v
}

// AttrOK returns the named attribute value and whether the record holds a
// resolved value for it. Unresolved placeholders report false.
func (s *Song) AttrOK(name string) (string, bool) {
	a, ok := s.Attrs[name]
	if !ok || a.Provenance == ProvenanceUnresolved {
		return "", false
	}
	return a.Value, true
}

// HasSourced reports whether the named attribute carries sourced provenance.
func (s *Song) HasSourced(name string) bool {
	a, ok := s.Attrs[name]
	return ok && a.Provenance.IsSourced()
}

// Status returns the record's status for the given stage, defaulting to
// pending when the stage has not run yet.
func (s *Song) Status(stage Stage) Status {
	if st, ok := s.Statuses[stage]; ok {
		return st
	}
	return StatusPending
}

// Unresolved returns the subset of names that have no sourced or inferred
// value on the record, preserving the order of names.
func (s *Song) Unresolved(names []string) []string {
	var missing []string
	for _, n := range names {
		a, ok := s.Attrs[n]
		if !ok || a.Provenance == ProvenanceUnresolved || strings.TrimSpace(a.Value) == "" {
			missing = append(missing, n)
		}
	}
	return missing
}
