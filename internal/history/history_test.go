package history

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRound(room, round string, at time.Time, winner string) Round {
	r := Round{
		RoomID:     room,
		RoundID:    round,
		Result:     ResultDraw,
		A:          Player{ID: "p1", Name: "Ada", State: "lost", Moves: 6, Score: 0},
		B:          Player{ID: "p2", Name: "Bo", State: "lost", Moves: 6, Score: 0},
		Answer:     "crane",
		FinishedAt: at,
	}
	switch winner {
	case "p1":
		r.Result, r.WinnerID, r.WinnerName = ResultWin, "p1", "Ada"
		r.A.State, r.A.Moves, r.A.Score = "won", 3, 1
	case "p2":
		r.Result, r.WinnerID, r.WinnerName = ResultWin, "p2", "Bo"
		r.B.State, r.B.Moves, r.B.Score = "won", 4, 1
	}
	return r
}

// exerciseStore runs the same checks against any backend.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleRound("room1", "r1", base, "p1")))
	require.NoError(t, s.Record(ctx, sampleRound("room1", "r2", base.Add(time.Minute), "")))
	require.NoError(t, s.Record(ctx, sampleRound("room1", "r3", base.Add(2*time.Minute), "p1")))
	require.NoError(t, s.Record(ctx, sampleRound("room2", "r1", base, "p2")))

	// recording the same round again is ignored
	dup := sampleRound("room1", "r1", base.Add(time.Hour), "p2")
	require.NoError(t, s.Record(ctx, dup))

	rounds, err := s.Recent(ctx, "room1", 10)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.Equal(t, "r3", rounds[0].RoundID)
	assert.Equal(t, "r2", rounds[1].RoundID)
	assert.Equal(t, ResultDraw, rounds[1].Result)
	assert.Empty(t, rounds[1].WinnerID)
	assert.Equal(t, "r1", rounds[2].RoundID)
	assert.Equal(t, "Ada", rounds[2].WinnerName, "duplicate insert did not overwrite")
	assert.True(t, rounds[2].FinishedAt.Equal(base))
	assert.Equal(t, 3, rounds[2].A.Moves)

	limited, err := s.Recent(ctx, "room1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.Recent(ctx, "nope", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	lb, err := s.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, lb, 2)
	assert.Equal(t, LeaderRow{Name: "Ada", Wins: 2}, lb[0])
	assert.Equal(t, LeaderRow{Name: "Bo", Wins: 1}, lb[1])
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "history.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteReopenSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleRound("room", "r1", time.Now(), "p1")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	rounds, err := s.Recent(ctx, "room", 5)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}

func TestSQLiteFailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := openDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	good := migration{name: "001_a.sql", sql: "CREATE TABLE a (id INTEGER);"}
	bad := migration{name: "002_b.sql", sql: "CREATE TABLE b (id INTEGER); INSERT INTO missing VALUES (1);"}
	require.Error(t, migrate(ctx, db, []migration{good, bad}))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations`).Scan(&n))
	assert.Equal(t, 1, n, "only the script that committed is recorded")
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name='b'`).Scan(&n))
	assert.Zero(t, n, "the failed script left no table")

	fixed := migration{name: "002_b.sql", sql: "CREATE TABLE b (id INTEGER);"}
	require.NoError(t, migrate(ctx, db, []migration{good, fixed}))
	require.NoError(t, migrate(ctx, db, []migration{good, fixed}))
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpenEmptyDSNIsDisabled(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestMigrationsSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte("B")},
		"001_a.sql":  {Data: []byte("A")},
		"README.txt": {Data: []byte("ignored")},
	}
	ms, err := migrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "001_a.sql", ms[0].name)
	assert.Equal(t, "A", ms[0].sql)
	assert.Equal(t, "002_b.sql", ms[1].name)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	ms, err := defaultMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, "001_rounds.sql", ms[0].name)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0))
	assert.Equal(t, 5, clampLimit(5))
	assert.Equal(t, 200, clampLimit(1000))
}
