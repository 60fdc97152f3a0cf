// Package store persists the canonical song catalog: records, attributes
// with provenance, per-stage statuses, failure logs, rubric scores, and run
// summaries. It is the single source of truth every pipeline stage reads
// from; all attribute mutation goes through the merger.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// SongFilter selects records by per-stage status.
type SongFilter struct {
	Stage  model.Stage  `json:"stage,omitempty"`
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Songs. CreateSongs inserts seed records, skipping identifiers that
	// already exist; it is the only way records enter the catalog.
	CreateSongs(ctx context.Context, songs []model.Song) (created int, err error)
	GetSong(ctx context.Context, id string) (*model.Song, error)
	SongExists(ctx context.Context, id string) (bool, error)
	ListSongs(ctx context.Context, f SongFilter) ([]model.Song, error)

	// Statuses.
	SetStatus(ctx context.Context, songID string, stage model.Stage, status model.Status) error
	StatusCounts(ctx context.Context) (map[model.Stage]model.StatusCounts, error)

	// Attributes. PutAttribute overwrites unconditionally; precedence is
	// the merger's job, serialized per song.
	GetAttributes(ctx context.Context, songID string) (map[string]model.Attribute, error)
	PutAttribute(ctx context.Context, songID, name string, attr model.Attribute) error

	// Failure logs: append-only per stage; a successful reprocess clears
	// the prior entries for that (song, stage) pair.
	AppendFailure(ctx context.Context, f model.Failure) error
	ClearFailures(ctx context.Context, songID string, stage model.Stage) error
	ListFailures(ctx context.Context, stage model.Stage) ([]model.Failure, error)

	// Rubric scores.
	SaveScore(ctx context.Context, s model.Score) error
	ListScores(ctx context.Context) ([]model.Score, error)

	// Runs.
	CreateRun(ctx context.Context) (runID string, err error)
	FinishRun(ctx context.Context, runID string, summary model.RunSummary) error

	// Provider lookup cache, keyed by normalized title|artist.
	CacheGet(ctx context.Context, key string) ([]byte, bool, error)
	CachePut(ctx context.Context, key string, payload []byte) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL, path string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "sqlite", "":
		return NewSQLite(path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
