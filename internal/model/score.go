package model

import "time"

// CriterionScore is the evaluated score of one rubric criterion.
type CriterionScore struct {
	Attribute string  `json:"attribute"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"` // normalized effective weight
	Evidence  string  `json:"evidence"`
}

// Score is the rubric result for one song record.
type Score struct {
	SongID    string           `json:"song_id"`
	Total     float64          `json:"total"` // 0.0 - 1.0
	Grade     string           `json:"grade"`
	Criteria  []CriterionScore `json:"criteria"`
	Skipped   []string         `json:"skipped"` // attributes that were unresolved
	CreatedAt time.Time        `json:"created_at"`
}

// RunSummary aggregates one pipeline run for the operator report.
type RunSummary struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Stages     map[Stage]StageSummary `json:"stages"`
	Statuses   map[Stage]StatusCounts `json:"statuses,omitempty"`
}

// StageSummary counts outcomes of one stage within a run.
type StageSummary struct {
	Processed int `json:"processed"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
	Ambiguous int `json:"ambiguous"`
	NotFound  int `json:"not_found"`
	Inferred  int `json:"inferred"`
	Skipped   int `json:"skipped"`
}

// StatusCounts maps record status to the number of records holding it.
type StatusCounts map[Status]int
