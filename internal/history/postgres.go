package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type postgresStore struct {
	db *pgxpool.Pool
}

// OpenPostgres connects a pool and applies the shared migrations.
func OpenPostgres(ctx context.Context, dsn string) (Store, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	ms, err := defaultMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migratePostgres(ctx, db, ms); err != nil {
		db.Close()
		return nil, err
	}
	return &postgresStore{db: db}, nil
}

func migratePostgres(ctx context.Context, db *pgxpool.Pool, ms []migration) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	for _, m := range ms {
		var done int
		err := db.QueryRow(ctx, `SELECT 1 FROM _migrations WHERE name=$1`, m.name).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := db.Begin(ctx)
		if err != nil {
			return err
		}
		// No arguments: pgx sends the script over the simple protocol, which
		// accepts several statements.
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO _migrations(name) VALUES ($1)`, m.name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s: %w", m.name, err)
		}
		log.Info().Str("migration", m.name).Msg("applied")
	}
	return nil
}

func (s *postgresStore) Record(ctx context.Context, r Round) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO rounds
            (room_id, round_id, result, winner_id, winner_name,
             player_a, player_a_name, player_a_state, player_a_moves, player_a_score,
             player_b, player_b_name, player_b_state, player_b_moves, player_b_score,
             answer, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (room_id, round_id) DO NOTHING`,
		r.RoomID, r.RoundID, r.Result, nullable(r.WinnerID), nullable(r.WinnerName),
		r.A.ID, r.A.Name, r.A.State, r.A.Moves, r.A.Score,
		r.B.ID, r.B.Name, r.B.State, r.B.Moves, r.B.Score,
		r.Answer, formatTime(r.FinishedAt),
	)
	return err
}

func (s *postgresStore) Recent(ctx context.Context, roomID string, limit int) ([]Round, error) {
	rows, err := s.db.Query(ctx, `
        SELECT room_id, round_id, result, COALESCE(winner_id,''), COALESCE(winner_name,''),
               player_a, player_a_name, player_a_state, player_a_moves, player_a_score,
               player_b, player_b_name, player_b_state, player_b_moves, player_b_score,
               answer, finished_at
        FROM rounds
        WHERE room_id = $1
        ORDER BY finished_at DESC
        LIMIT $2`, roomID, clampLimit(limit),
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

func (s *postgresStore) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	rows, err := s.db.Query(ctx, `
        SELECT winner_name, COUNT(1)::int AS wins
        FROM rounds
        WHERE result = $1 AND winner_name IS NOT NULL
        GROUP BY winner_name
        ORDER BY wins DESC, winner_name ASC
        LIMIT $2`, ResultWin, clampLimit(limit),
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

func (s *postgresStore) Close() error {
	s.db.Close()
	return nil
}
