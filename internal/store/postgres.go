package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS songs (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	artist     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS song_status (
	song_id    TEXT NOT NULL REFERENCES songs(id),
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (song_id, stage)
);

CREATE TABLE IF NOT EXISTS attributes (
	song_id    TEXT NOT NULL REFERENCES songs(id),
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	provenance TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (song_id, name)
);

CREATE TABLE IF NOT EXISTS failures (
	id         BIGSERIAL PRIMARY KEY,
	song_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	detail     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scores (
	song_id    TEXT PRIMARY KEY REFERENCES songs(id),
	total      DOUBLE PRECISION NOT NULL,
	grade      TEXT NOT NULL,
	criteria   JSONB NOT NULL,
	skipped    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	summary     JSONB
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	key        TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_song_status_stage ON song_status(stage, status);
CREATE INDEX IF NOT EXISTS idx_failures_stage ON failures(stage);
CREATE INDEX IF NOT EXISTS idx_failures_song ON failures(song_id, stage);
CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(total);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSongs(ctx context.Context, songs []model.Song) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	created := 0
	for _, song := range songs {
		tag, err := tx.Exec(ctx,
			`INSERT INTO songs (id, title, artist, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			song.ID, song.Title, song.Artist, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert song %s", song.ID)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		created++

		for _, stage := range model.Stages {
			if _, err := tx.Exec(ctx,
				`INSERT INTO song_status (song_id, stage, status, updated_at) VALUES ($1, $2, $3, $4)`,
				song.ID, string(stage), string(model.StatusPending), now,
			); err != nil {
				return 0, eris.Wrapf(err, "postgres: seed status %s/%s", song.ID, stage)
			}
		}

		for name, attr := range song.Attrs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO attributes (song_id, name, value, provenance, updated_at) VALUES ($1, $2, $3, $4, $5)`,
				song.ID, name, attr.Value, string(attr.Provenance), now,
			); err != nil {
				return 0, eris.Wrapf(err, "postgres: seed attribute %s/%s", song.ID, name)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit")
	}
	return created, nil
}

func (s *PostgresStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, artist, created_at, updated_at FROM songs WHERE id = $1`, id,
	)
	var song model.Song
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.CreatedAt, &song.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("song not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan song")
	}
	if err := s.hydrate(ctx, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *PostgresStore) SongExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM songs WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: song exists")
	}
	return true, nil
}

func (s *PostgresStore) ListSongs(ctx context.Context, f SongFilter) ([]model.Song, error) {
	query := `SELECT s.id, s.title, s.artist, s.created_at, s.updated_at FROM songs s`
	var args []any

	if f.Stage != "" && f.Status != "" {
		query += ` JOIN song_status st ON st.song_id = s.id AND st.stage = $1 AND st.status = $2`
		args = append(args, string(f.Stage), string(f.Status))
		query += ` ORDER BY s.created_at, s.id LIMIT $3 OFFSET $4`
	} else {
		query += ` ORDER BY s.created_at, s.id LIMIT $1 OFFSET $2`
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10000
	}
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list songs")
	}
	defer rows.Close()

	var songs []model.Song
	for rows.Next() {
		var song model.Song
		if err := rows.Scan(&song.ID, &song.Title, &song.Artist, &song.CreatedAt, &song.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan song")
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list songs iterate")
	}

	for i := range songs {
		if err := s.hydrate(ctx, &songs[i]); err != nil {
			return nil, err
		}
	}
	return songs, nil
}

func (s *PostgresStore) hydrate(ctx context.Context, song *model.Song) error {
	attrs, err := s.GetAttributes(ctx, song.ID)
	if err != nil {
		return err
	}
	song.Attrs = attrs

	rows, err := s.pool.Query(ctx,
		`SELECT stage, status FROM song_status WHERE song_id = $1`, song.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: load statuses")
	}
	defer rows.Close()

	song.Statuses = make(map[model.Stage]model.Status)
	for rows.Next() {
		var stage, status string
		if err := rows.Scan(&stage, &status); err != nil {
			return eris.Wrap(err, "postgres: scan status")
		}
		song.Statuses[model.Stage(stage)] = model.Status(status)
	}
	return eris.Wrap(rows.Err(), "postgres: statuses iterate")
}

func (s *PostgresStore) SetStatus(ctx context.Context, songID string, stage model.Stage, status model.Status) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO song_status (song_id, stage, status, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (song_id, stage) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		songID, string(stage), string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set status %s/%s", songID, stage)
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (map[model.Stage]model.StatusCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT stage, status, COUNT(*) FROM song_status GROUP BY stage, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status counts")
	}
	defer rows.Close()

	counts := make(map[model.Stage]model.StatusCounts)
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan counts")
		}
		if counts[model.Stage(stage)] == nil {
			counts[model.Stage(stage)] = make(model.StatusCounts)
		}
		counts[model.Stage(stage)][model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: counts iterate")
}

func (s *PostgresStore) GetAttributes(ctx context.Context, songID string) (map[string]model.Attribute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, value, provenance, updated_at FROM attributes WHERE song_id = $1`, songID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get attributes")
	}
	defer rows.Close()

	attrs := make(map[string]model.Attribute)
	for rows.Next() {
		var name string
		var attr model.Attribute
		var prov string
		if err := rows.Scan(&name, &attr.Value, &prov, &attr.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attribute")
		}
		attr.Provenance = model.Provenance(prov)
		attrs[name] = attr
	}
	return attrs, eris.Wrap(rows.Err(), "postgres: attributes iterate")
}

func (s *PostgresStore) PutAttribute(ctx context.Context, songID, name string, attr model.Attribute) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attributes (song_id, name, value, provenance, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (song_id, name) DO UPDATE SET
		   value = excluded.value, provenance = excluded.provenance, updated_at = excluded.updated_at`,
		songID, name, attr.Value, string(attr.Provenance), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put attribute %s/%s", songID, name)
}

func (s *PostgresStore) AppendFailure(ctx context.Context, f model.Failure) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO failures (song_id, stage, reason, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		f.SongID, string(f.Stage), string(f.Reason), f.Detail, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: append failure %s/%s", f.SongID, f.Stage)
}

func (s *PostgresStore) ClearFailures(ctx context.Context, songID string, stage model.Stage) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM failures WHERE song_id = $1 AND stage = $2`, songID, string(stage),
	)
	return eris.Wrapf(err, "postgres: clear failures %s/%s", songID, stage)
}

func (s *PostgresStore) ListFailures(ctx context.Context, stage model.Stage) ([]model.Failure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, song_id, stage, reason, COALESCE(detail, ''), created_at
		 FROM failures WHERE stage = $1 ORDER BY created_at, id`,
		string(stage),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var failures []model.Failure
	for rows.Next() {
		var f model.Failure
		var st, reason string
		if err := rows.Scan(&f.ID, &f.SongID, &st, &reason, &f.Detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		f.Stage = model.Stage(st)
		f.Reason = model.FailureReason(reason)
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "postgres: failures iterate")
}

func (s *PostgresStore) SaveScore(ctx context.Context, sc model.Score) error {
	criteriaJSON, err := json.Marshal(sc.Criteria)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal criteria")
	}
	skippedJSON, err := json.Marshal(sc.Skipped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skipped")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scores (song_id, total, grade, criteria, skipped, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (song_id) DO UPDATE SET
		   total = excluded.total, grade = excluded.grade,
		   criteria = excluded.criteria, skipped = excluded.skipped, created_at = excluded.created_at`,
		sc.SongID, sc.Total, sc.Grade, criteriaJSON, skippedJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save score %s", sc.SongID)
}

func (s *PostgresStore) ListScores(ctx context.Context) ([]model.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT song_id, total, grade, criteria, skipped, created_at FROM scores ORDER BY total DESC, song_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var sc model.Score
		var criteriaJSON, skippedJSON []byte
		if err := rows.Scan(&sc.SongID, &sc.Total, &sc.Grade, &criteriaJSON, &skippedJSON, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		if err := json.Unmarshal(criteriaJSON, &sc.Criteria); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal criteria")
		}
		if err := json.Unmarshal(skippedJSON, &sc.Skipped); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal skipped")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: scores iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at) VALUES ($1, $2)`, id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $1, summary = $2 WHERE id = $3`,
		time.Now().UTC(), summaryJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM lookup_cache WHERE key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: cache get")
	}
	return payload, true, nil
}

func (s *PostgresStore) CachePut(ctx context.Context, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lookup_cache (key, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: cache put")
}
