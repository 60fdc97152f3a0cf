package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS songs (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	artist     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS song_status (
	song_id    TEXT NOT NULL REFERENCES songs(id),
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (song_id, stage)
);

CREATE TABLE IF NOT EXISTS attributes (
	song_id    TEXT NOT NULL REFERENCES songs(id),
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	provenance TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (song_id, name)
);

CREATE TABLE IF NOT EXISTS failures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	detail     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scores (
	song_id    TEXT PRIMARY KEY REFERENCES songs(id),
	total      REAL NOT NULL,
	grade      TEXT NOT NULL,
	criteria   TEXT NOT NULL,
	skipped    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	summary     TEXT
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_song_status_stage ON song_status(stage, status);
CREATE INDEX IF NOT EXISTS idx_failures_stage ON failures(stage);
CREATE INDEX IF NOT EXISTS idx_failures_song ON failures(song_id, stage);
CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(total);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSongs(ctx context.Context, songs []model.Song) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := 0
	for _, song := range songs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO songs (id, title, artist, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			song.ID, song.Title, song.Artist, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert song %s", song.ID)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			continue
		}
		created++

		for _, stage := range model.Stages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO song_status (song_id, stage, status, updated_at) VALUES (?, ?, ?, ?)`,
				song.ID, string(stage), string(model.StatusPending), now,
			); err != nil {
				return 0, eris.Wrapf(err, "sqlite: seed status %s/%s", song.ID, stage)
			}
		}

		// Seed attributes (curator, date_added) travel with the record.
		for name, attr := range song.Attrs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attributes (song_id, name, value, provenance, updated_at) VALUES (?, ?, ?, ?, ?)`,
				song.ID, name, attr.Value, string(attr.Provenance), now,
			); err != nil {
				return 0, eris.Wrapf(err, "sqlite: seed attribute %s/%s", song.ID, name)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return created, nil
}

func (s *SQLiteStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, created_at, updated_at FROM songs WHERE id = ?`, id,
	)
	var song model.Song
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.CreatedAt, &song.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("song not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan song")
	}
	if err := s.hydrate(ctx, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *SQLiteStore) SongExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM songs WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: song exists")
	}
	return true, nil
}

func (s *SQLiteStore) ListSongs(ctx context.Context, f SongFilter) ([]model.Song, error) {
	query := `SELECT s.id, s.title, s.artist, s.created_at, s.updated_at FROM songs s`
	var args []any

	if f.Stage != "" && f.Status != "" {
		query += ` JOIN song_status st ON st.song_id = s.id AND st.stage = ? AND st.status = ?`
		args = append(args, string(f.Stage), string(f.Status))
	}
	query += ` ORDER BY s.created_at, s.id`

	limit := f.Limit
	if limit <= 0 {
		limit = 10000
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list songs")
	}
	defer rows.Close()

	var songs []model.Song
	for rows.Next() {
		var song model.Song
		if err := rows.Scan(&song.ID, &song.Title, &song.Artist, &song.CreatedAt, &song.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan song")
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list songs iterate")
	}

	for i := range songs {
		if err := s.hydrate(ctx, &songs[i]); err != nil {
			return nil, err
		}
	}
	return songs, nil
}

// hydrate loads attributes and statuses onto a song.
func (s *SQLiteStore) hydrate(ctx context.Context, song *model.Song) error {
	attrs, err := s.GetAttributes(ctx, song.ID)
	if err != nil {
		return err
	}
	song.Attrs = attrs

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, status FROM song_status WHERE song_id = ?`, song.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: load statuses")
	}
	defer rows.Close()

	song.Statuses = make(map[model.Stage]model.Status)
	for rows.Next() {
		var stage, status string
		if err := rows.Scan(&stage, &status); err != nil {
			return eris.Wrap(err, "sqlite: scan status")
		}
		song.Statuses[model.Stage(stage)] = model.Status(status)
	}
	return eris.Wrap(rows.Err(), "sqlite: statuses iterate")
}

func (s *SQLiteStore) SetStatus(ctx context.Context, songID string, stage model.Stage, status model.Status) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO song_status (song_id, stage, status, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(song_id, stage) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		songID, string(stage), string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set status %s/%s", songID, stage)
}

func (s *SQLiteStore) StatusCounts(ctx context.Context) (map[model.Stage]model.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, status, COUNT(*) FROM song_status GROUP BY stage, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: status counts")
	}
	defer rows.Close()

	counts := make(map[model.Stage]model.StatusCounts)
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan counts")
		}
		if counts[model.Stage(stage)] == nil {
			counts[model.Stage(stage)] = make(model.StatusCounts)
		}
		counts[model.Stage(stage)][model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: counts iterate")
}

func (s *SQLiteStore) GetAttributes(ctx context.Context, songID string) (map[string]model.Attribute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, provenance, updated_at FROM attributes WHERE song_id = ?`, songID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get attributes")
	}
	defer rows.Close()

	attrs := make(map[string]model.Attribute)
	for rows.Next() {
		var name string
		var attr model.Attribute
		var prov string
		if err := rows.Scan(&name, &attr.Value, &prov, &attr.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attribute")
		}
		attr.Provenance = model.Provenance(prov)
		attrs[name] = attr
	}
	return attrs, eris.Wrap(rows.Err(), "sqlite: attributes iterate")
}

func (s *SQLiteStore) PutAttribute(ctx context.Context, songID, name string, attr model.Attribute) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attributes (song_id, name, value, provenance, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(song_id, name) DO UPDATE SET
		   value = excluded.value, provenance = excluded.provenance, updated_at = excluded.updated_at`,
		songID, name, attr.Value, string(attr.Provenance), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put attribute %s/%s", songID, name)
}

func (s *SQLiteStore) AppendFailure(ctx context.Context, f model.Failure) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (song_id, stage, reason, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.SongID, string(f.Stage), string(f.Reason), f.Detail, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: append failure %s/%s", f.SongID, f.Stage)
}

func (s *SQLiteStore) ClearFailures(ctx context.Context, songID string, stage model.Stage) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM failures WHERE song_id = ? AND stage = ?`, songID, string(stage),
	)
	return eris.Wrapf(err, "sqlite: clear failures %s/%s", songID, stage)
}

func (s *SQLiteStore) ListFailures(ctx context.Context, stage model.Stage) ([]model.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, song_id, stage, reason, COALESCE(detail, ''), created_at
		 FROM failures WHERE stage = ? ORDER BY created_at, id`,
		string(stage),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close()

	var failures []model.Failure
	for rows.Next() {
		var f model.Failure
		var st, reason string
		if err := rows.Scan(&f.ID, &f.SongID, &st, &reason, &f.Detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		f.Stage = model.Stage(st)
		f.Reason = model.FailureReason(reason)
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "sqlite: failures iterate")
}

func (s *SQLiteStore) SaveScore(ctx context.Context, sc model.Score) error {
	criteriaJSON, err := json.Marshal(sc.Criteria)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal criteria")
	}
	skippedJSON, err := json.Marshal(sc.Skipped)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skipped")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scores (song_id, total, grade, criteria, skipped, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(song_id) DO UPDATE SET
		   total = excluded.total, grade = excluded.grade,
		   criteria = excluded.criteria, skipped = excluded.skipped, created_at = excluded.created_at`,
		sc.SongID, sc.Total, sc.Grade, string(criteriaJSON), string(skippedJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save score %s", sc.SongID)
}

func (s *SQLiteStore) ListScores(ctx context.Context) ([]model.Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id, total, grade, criteria, skipped, created_at FROM scores ORDER BY total DESC, song_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scores")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var sc model.Score
		var criteriaJSON, skippedJSON string
		if err := rows.Scan(&sc.SongID, &sc.Total, &sc.Grade, &criteriaJSON, &skippedJSON, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &sc.Criteria); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal criteria")
		}
		if err := json.Unmarshal([]byte(skippedJSON), &sc.Skipped); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal skipped")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: scores iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UTC(), string(summaryJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM lookup_cache WHERE key = ?`, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: cache get")
	}
	return payload, true, nil
}

func (s *SQLiteStore) CachePut(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: cache put")
}
