// Package history keeps a record of resolved rounds.
//
// One row is written per round, by the coordinator whose conditional winner
// write applied, so a round is recorded exactly once even though both players
// evaluate it. Backends:
//   - SQLite (default, file path DSN)
//   - Postgres (postgres:// or postgresql:// DSN)
//
// Both backends share the migrations embedded in the assets package.
package history

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/assets"
)

// ErrDisabled is returned by Open for an empty DSN.
var ErrDisabled = errors.New("history disabled")

// Result values stored per round.
const (
	ResultWin  = "win"
	ResultDraw = "draw"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Player is one side of a recorded round.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"` // won | lost
	Moves int    `json:"moves"`
	Score int64  `json:"score"` // cumulative, after this round
}

// Round is one resolved round.
type Round struct {
	RoomID     string    `json:"roomId"`
	RoundID    string    `json:"roundId"`
	Result     string    `json:"result"`
	WinnerID   string    `json:"winnerId,omitempty"`
	WinnerName string    `json:"winnerName,omitempty"`
	A          Player    `json:"playerA"`
	B          Player    `json:"playerB"`
	Answer     string    `json:"answer"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LeaderRow is one line of the cross-room leaderboard.
type LeaderRow struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Store persists rounds.
type Store interface {
	// Record inserts a round; recording the same round twice is a no-op.
	Record(ctx context.Context, r Round) error
	// Recent returns the newest rounds of a room, newest first.
	Recent(ctx context.Context, roomID string, limit int) ([]Round, error)
	// Leaderboard counts wins per player name across rooms.
	Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error)
	Close() error
}

// Open picks a backend from the DSN and applies migrations.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, ErrDisabled
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// migration is one embedded script.
type migration struct {
	name string
	sql  string
}

// migrations lists *.sql scripts from fsys in lexical order.
func migrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]migration, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(fsys, n)
		if err != nil {
			return nil, err
		}
		out = append(out, migration{name: n, sql: string(b)})
	}
	return out, nil
}

func defaultMigrations() ([]migration, error) { return migrations(assets.Migrations()) }

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
