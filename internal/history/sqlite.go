// internal/history/sqlite.go
//
// SQLite backend for round history.
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Round insert and the read queries behind the HTTP API.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	ms, err := defaultMigrations()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, ms); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// openDB ensures the parent directory exists, then opens the file with busy
// timeout and WAL journaling.
func openDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies each script not yet listed in _migrations. A script and
// its _migrations row commit together.
func migrate(ctx context.Context, db *sql.DB, ms []migration) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	for _, m := range ms {
		if err := applyOnce(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyOnce(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations WHERE name=?`, m.name).Scan(&n); err != nil {
		return fmt.Errorf("query _migrations: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("apply %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, m.name); err != nil {
		return fmt.Errorf("record %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.name, err)
	}
	log.Info().Str("migration", m.name).Msg("applied")
	return nil
}

// Record respects the (room_id, round_id) primary key; a repeat is ignored.
func (s *sqliteStore) Record(ctx context.Context, r Round) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO rounds
            (room_id, round_id, result, winner_id, winner_name,
             player_a, player_a_name, player_a_state, player_a_moves, player_a_score,
             player_b, player_b_name, player_b_state, player_b_moves, player_b_score,
             answer, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.RoundID, r.Result, nullable(r.WinnerID), nullable(r.WinnerName),
		r.A.ID, r.A.Name, r.A.State, r.A.Moves, r.A.Score,
		r.B.ID, r.B.Name, r.B.State, r.B.Moves, r.B.Score,
		r.Answer, formatTime(r.FinishedAt),
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, roomID string, limit int) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT room_id, round_id, result, COALESCE(winner_id,''), COALESCE(winner_name,''),
               player_a, player_a_name, player_a_state, player_a_moves, player_a_score,
               player_b, player_b_name, player_b_state, player_b_moves, player_b_score,
               answer, finished_at
        FROM rounds
        WHERE room_id=?
        ORDER BY finished_at DESC
        LIMIT ?`, roomID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT winner_name, COUNT(1) AS wins
        FROM rounds
        WHERE result=? AND winner_name IS NOT NULL
        GROUP BY winner_name
        ORDER BY wins DESC, winner_name ASC
        LIMIT ?`, ResultWin, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaderRow{}
	for rows.Next() {
		var r LeaderRow
		if err := rows.Scan(&r.Name, &r.Wins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (Round, error) {
	var r Round
	var finished string
	err := row.Scan(&r.RoomID, &r.RoundID, &r.Result, &r.WinnerID, &r.WinnerName,
		&r.A.ID, &r.A.Name, &r.A.State, &r.A.Moves, &r.A.Score,
		&r.B.ID, &r.B.Name, &r.B.State, &r.B.Moves, &r.B.Score,
		&r.Answer, &finished)
	if err != nil {
		return Round{}, err
	}
	r.FinishedAt = parseTime(finished)
	return r, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
