package model

// PatchAttr is one attribute assignment inside a patch.
type PatchAttr struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// Patch is the unit every stage emits: a set of attribute assignments for a
// single song. Patches are applied atomically by the merger; applying the
// same patch twice is a no-op.
type Patch struct {
	SongID string      `json:"song_id"`
	Stage  Stage       `json:"stage"`
	Attrs  []PatchAttr `json:"attrs"`
}

// NewPatch creates an empty patch for a song and stage.
func NewPatch(songID string, stage Stage) *Patch {
	return &Patch{SongID: songID, Stage: stage}
}

// Set appends an attribute assignment with the stage's sourced provenance.
// Empty values are skipped so providers can omit fields they did not return.
func (p *Patch) Set(name, value string) *Patch {
	if value == "" {
		return p
	}
	p.Attrs = append(p.Attrs, PatchAttr{Name: name, Value: value, Provenance: Sourced(p.Stage)})
	return p
}

// SetInferred appends an attribute assignment with inferred provenance.
func (p *Patch) SetInferred(name, value string) *Patch {
	if value == "" {
		return p
	}
	p.Attrs = append(p.Attrs, PatchAttr{Name: name, Value: value, Provenance: ProvenanceInferred})
	return p
}

// Empty reports whether the patch carries no assignments.
func (p *Patch) Empty() bool {
	return p == nil || len(p.Attrs) == 0
}
