package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/textscore/pkg/textscore/features"
	"github.com/cognicore/textscore/pkg/textscore/internalerr"
	"github.com/cognicore/textscore/pkg/textscore/result"
	"github.com/cognicore/textscore/pkg/textscore/score"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	mapping TEXT,
	plugins TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	row_id INTEGER NOT NULL,
	text TEXT NOT NULL,
	features TEXT NOT NULL,
	score TEXT NOT NULL,
	psych REAL NOT NULL,
	music REAL NOT NULL,
	PRIMARY KEY(run_id, row_id),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun records a run; an existing ID has its metadata replaced.
func (s *sqliteStore) CreateRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("create run: empty id")
	}
	plugins, err := json.Marshal(r.Plugins)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO runs (id, input, mapping, plugins, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	input=excluded.input,
	mapping=excluded.mapping,
	plugins=excluded.plugins,
	created_at=excluded.created_at;
`
	_, err = s.db.ExecContext(ctx, stmt,
		r.ID,
		r.Input,
		r.Mapping,
		string(plugins),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

const runColumns = `
SELECT r.id, r.input, r.mapping, r.plugins, r.created_at,
	(SELECT COUNT(*) FROM results WHERE run_id = r.id)
FROM runs r`

// GetRun returns a run by ID.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, runColumns+` WHERE r.id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// ListRuns returns runs newest first, at most limit when limit > 0.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := runColumns + ` ORDER BY r.id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendResults stores results for an existing run in one transaction.
func (s *sqliteStore) AppendResults(ctx context.Context, runID string, results []result.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO results (run_id, row_id, text, features, score, psych, music)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, row_id) DO UPDATE SET
	text=excluded.text,
	features=excluded.features,
	score=excluded.score,
	psych=excluded.psych,
	music=excluded.music`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		feats, err := json.Marshal(r.Features)
		if err != nil {
			return fmt.Errorf("encode features of row %d: %w", r.RowID(), err)
		}
		sc, err := json.Marshal(r.Score)
		if err != nil {
			return fmt.Errorf("encode score of row %d: %w", r.RowID(), err)
		}
		if _, err := stmt.ExecContext(ctx, runID, r.RowID(), r.Text, string(feats), string(sc), r.Score.Psych, r.Score.Music); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Results returns a run's results in row order.
func (s *sqliteStore) Results(ctx context.Context, runID string) ([]result.Result, error) {
	if _, found, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_id, text, features, score FROM results WHERE run_id = ? ORDER BY row_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []result.Result
	for rows.Next() {
		var (
			rowID          int
			text           string
			featsJSON, sco string
			f              features.Features
			sc             score.Score
		)
		if err := rows.Scan(&rowID, &text, &featsJSON, &sco); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(featsJSON), &f); err != nil {
			return nil, fmt.Errorf("decode features of row %d: %w", rowID, err)
		}
		if err := json.Unmarshal([]byte(sco), &sc); err != nil {
			return nil, fmt.Errorf("decode score of row %d: %w", rowID, err)
		}
		out = append(out, result.New(rowID, text, f, sc))
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var (
		r         store.Run
		mapping   sql.NullString
		plugins   sql.NullString
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Input, &mapping, &plugins, &createdAt, &r.Rows); err != nil {
		return store.Run{}, err
	}
	r.Mapping = mapping.String
	if plugins.Valid && plugins.String != "" {
		if err := json.Unmarshal([]byte(plugins.String), &r.Plugins); err != nil {
			return store.Run{}, fmt.Errorf("decode plugins of run %s: %w", r.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return store.Run{}, fmt.Errorf("decode created_at of run %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}
