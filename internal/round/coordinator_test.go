package round

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/history"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
)

// recorder is an in-memory history.Store.
type recorder struct {
	mu     sync.Mutex
	rounds []history.Round
}

func (r *recorder) Record(_ context.Context, h history.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, h)
	return nil
}

func (r *recorder) Recent(context.Context, string, int) ([]history.Round, error) { return nil, nil }

func (r *recorder) Leaderboard(context.Context, int) ([]history.LeaderRow, error) { return nil, nil }

func (r *recorder) Close() error { return nil }

func (r *recorder) all() []history.Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.Round(nil), r.rounds...)
}

func fastTiming() Timing {
	return Timing{
		Settle:       20 * time.Millisecond,
		Release:      20 * time.Millisecond,
		LatchRelease: 10 * time.Millisecond,
		Failsafe:     2 * time.Second,
		Reconcile:    50 * time.Millisecond,
		InvalidWord:  50 * time.Millisecond,
		Shake:        20 * time.Millisecond,
	}
}

type duel struct {
	store room.Store
	hist  *recorder
	alice *Coordinator
	bob   *Coordinator
}

// startDuel runs two coordinators against one memory store.
func startDuel(t *testing.T) *duel {
	t.Helper()
	store := room.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.Create(ctx, "room1", room.Changes{
		room.FieldPlayers: room.Set("alice|bob"),
		room.FieldStatus:  room.Set(room.StatusReady),
	}))

	d := &duel{store: store, hist: &recorder{}}
	mk := func(id, name string) *Coordinator {
		return New(Config{
			RoomID:   "room1",
			PlayerID: id,
			Name:     name,
			Store:    store,
			History:  d.hist,
			Rules:    testRules(),
			Timing:   fastTiming(),
		})
	}
	d.alice, d.bob = mk("alice", "Alice"), mk("bob", "Bob")

	errs := make(chan error, 2)
	for _, c := range []*Coordinator{d.alice, d.bob} {
		go func(c *Coordinator) { errs <- c.Run(ctx) }(c)
	}
	t.Cleanup(func() {
		cancel()
		for i := 0; i < 2; i++ {
			assert.NoError(t, <-errs)
		}
	})

	waitFor(t, d.alice, "alice playing", func(v View) bool { return v.Phase == PhasePlaying })
	waitFor(t, d.bob, "bob playing", func(v View) bool { return v.Phase == PhasePlaying })
	return d
}

func waitFor(t *testing.T, c *Coordinator, what string, cond func(View) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.View()) }, 3*time.Second, 5*time.Millisecond, what)
}

func (d *duel) doc(t *testing.T) room.Doc {
	t.Helper()
	doc, err := d.store.Get(context.Background(), "room1")
	require.NoError(t, err)
	return doc
}

// aliceWins plays a round alice wins on her first guess.
func (d *duel) aliceWins(t *testing.T) {
	t.Helper()
	d.alice.Submit("crane")
	waitFor(t, d.alice, "alice waits for bob", func(v View) bool { return v.Phase == PhaseWaitingForPeer })
	for _, w := range misses {
		d.bob.Submit(w)
	}
	waitFor(t, d.alice, "alice sees result", func(v View) bool {
		return v.Phase == PhaseRoundOver && v.Winner == "alice"
	})
	waitFor(t, d.bob, "bob sees result", func(v View) bool {
		return v.Phase == PhaseRoundOver && v.Winner == "alice"
	})
}

func TestDuelStartsBothPlayersOnSameRound(t *testing.T) {
	d := startDuel(t)

	a, b := d.alice.View(), d.bob.View()
	assert.NotEmpty(t, a.Round)
	assert.Equal(t, a.Round, b.Round)
	assert.Equal(t, "Bob", a.Opponent.Name)
	assert.Equal(t, "Alice", b.Opponent.Name)

	doc := d.doc(t)
	assert.True(t, doc.Bool(room.FieldGameStarted))
	assert.Equal(t, room.StatusPlaying, doc.Str(room.FieldStatus))
}

func TestDuelWinIsScoredAndRecordedOnce(t *testing.T) {
	d := startDuel(t)
	d.aliceWins(t)

	a, b := d.alice.View(), d.bob.View()
	assert.Equal(t, "You Won!", a.Message)
	assert.True(t, a.EarnedPoint)
	assert.Equal(t, int64(1), a.You.Score)
	assert.Equal(t, "Alice Won!", b.Message)
	assert.Equal(t, "crane", b.Answer)

	doc := d.doc(t)
	assert.Equal(t, int64(1), doc.Int(room.ScoreField("alice")))
	assert.Zero(t, doc.Int(room.ScoreField("bob")))
	assert.Equal(t, room.ResultWin, doc.Str(room.FieldRoundResult))

	require.Eventually(t, func() bool { return len(d.hist.all()) == 1 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return len(d.hist.all()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	rec := d.hist.all()[0]
	assert.Equal(t, "alice", rec.WinnerID)
	assert.Equal(t, a.Round, rec.RoundID)
	assert.Equal(t, int64(1), rec.A.Score)
}

func TestDuelDraw(t *testing.T) {
	d := startDuel(t)
	for _, w := range misses {
		d.alice.Submit(w)
		d.bob.Submit(w)
	}
	for _, c := range []*Coordinator{d.alice, d.bob} {
		waitFor(t, c, "draw", func(v View) bool { return v.Winner == room.Draw })
		assert.Equal(t, "Draw - Both Failed!", c.View().Message)
	}

	doc := d.doc(t)
	assert.Zero(t, doc.Int(room.ScoreField("alice")))
	assert.Zero(t, doc.Int(room.ScoreField("bob")))
	require.Eventually(t, func() bool { return len(d.hist.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, history.ResultDraw, d.hist.all()[0].Result)
}

func TestDuelRepeatedVotesCountOnce(t *testing.T) {
	d := startDuel(t)
	d.aliceWins(t)

	for i := 0; i < 3; i++ {
		d.alice.Vote()
	}
	waitFor(t, d.alice, "vote counted", func(v View) bool { return v.Voted && v.Votes == 1 })
	require.Never(t, func() bool {
		return d.doc(t).Int(room.FieldPlayAgainVotes) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, PhaseAwaitingVotes, d.alice.View().Phase)
}

func TestDuelPlayAgainStartsFreshRound(t *testing.T) {
	d := startDuel(t)
	d.aliceWins(t)
	first := d.alice.View().Round

	d.alice.Vote()
	d.bob.Vote()

	next := func(v View) bool { return v.Round != first && v.Phase == PhasePlaying }
	waitFor(t, d.alice, "alice in next round", next)
	waitFor(t, d.bob, "bob in next round", next)

	a, b := d.alice.View(), d.bob.View()
	assert.Equal(t, a.Round, b.Round)
	for _, v := range []View{a, b} {
		assert.Empty(t, v.Winner)
		assert.Zero(t, v.Votes)
		assert.False(t, v.Voted)
		assert.False(t, v.Resetting)
		assert.Empty(t, v.Board[0][0].Letter)
		assert.Empty(t, v.Keyboard)
	}
	assert.Equal(t, int64(1), a.You.Score)
	assert.Equal(t, int64(1), b.Opponent.Score)

	doc := d.doc(t)
	assert.Equal(t, a.Round, doc.Str(room.FieldGameRound))
	assert.False(t, doc.Bool(room.FieldResetInProgress))
	assert.Zero(t, doc.Int(room.FieldPlayAgainVotes))
	for _, p := range []string{"alice", "bob"} {
		for _, f := range room.PerRoundFields(p) {
			assert.False(t, doc.Has(f), f)
		}
	}
	assert.False(t, doc.Has(room.FieldRoundWinner))

	// the new round is playable
	d.bob.Submit("crane")
	waitFor(t, d.bob, "bob plays next round", func(v View) bool {
		return v.Phase == PhaseWaitingForPeer && v.Board[0][0].Letter == "C"
	})
	waitFor(t, d.alice, "alice sees bob's row", func(v View) bool {
		return v.OpponentBoard[0][0].Mark != ""
	})
}

func TestCoordinatorStopsWithContext(t *testing.T) {
	store := room.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.Create(ctx, "solo", room.Changes{room.FieldPlayers: room.Set("p1")}))

	c := New(Config{RoomID: "solo", PlayerID: "p1", Name: "Solo", Store: store, Rules: testRules(), Timing: fastTiming()})
	errs := make(chan error, 1)
	go func() { errs <- c.Run(ctx) }()

	waitFor(t, c, "seeded round", func(v View) bool { return v.Round != "" })
	assert.Equal(t, PhaseWaiting, c.View().Phase)

	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	<-c.Done()

	// posting after shutdown does not block
	c.Press("a")
	c.Vote()
}

// runCoordinator runs c until the returned stop is called or the test ends.
func runCoordinator(t *testing.T, c *Coordinator) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.Run(ctx) }()
	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			assert.NoError(t, <-errs)
		})
	}
	t.Cleanup(stop)
	return stop
}

func player(store room.Store, id, name string, timing Timing) *Coordinator {
	return New(Config{
		RoomID:   "room1",
		PlayerID: id,
		Name:     name,
		Store:    store,
		Rules:    testRules(),
		Timing:   timing,
	})
}

func TestDuelReconnectAfterLossKeepsRound(t *testing.T) {
	store := room.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), "room1", room.Changes{
		room.FieldPlayers: room.Set("alice|bob"),
		room.FieldStatus:  room.Set(room.StatusReady),
	}))
	alice, bob := player(store, "alice", "Alice", fastTiming()), player(store, "bob", "Bob", fastTiming())
	stopAlice := runCoordinator(t, alice)
	runCoordinator(t, bob)
	waitFor(t, alice, "alice playing", func(v View) bool { return v.Phase == PhasePlaying })
	waitFor(t, bob, "bob playing", func(v View) bool { return v.Phase == PhasePlaying })
	round := alice.View().Round

	for _, w := range misses {
		alice.Submit(w)
	}
	require.Eventually(t, func() bool {
		doc, err := store.Get(context.Background(), "room1")
		return err == nil && doc.Str(room.GameStateField("alice")) == "lost"
	}, 3*time.Second, 5*time.Millisecond)
	stopAlice()

	again := player(store, "alice", "Alice", fastTiming())
	runCoordinator(t, again)
	waitFor(t, again, "alice back in the lost round", func(v View) bool {
		return v.Round == round && v.Phase == PhaseWaitingForPeer
	})
	v := again.View()
	assert.Equal(t, game.OutcomeLost, v.You.State)
	assert.Equal(t, "C", v.Board[0][0].Letter)
	assert.Equal(t, "B", v.Board[5][0].Letter)

	again.Submit("crane")
	require.Never(t, func() bool {
		doc, err := store.Get(context.Background(), "room1")
		return err != nil || doc.Str(room.GameStateField("alice")) != "lost" ||
			len(doc.List(room.GuessesField("alice"))) != len(misses)
	}, 150*time.Millisecond, 10*time.Millisecond)

	for _, w := range misses {
		bob.Submit(w)
	}
	waitFor(t, again, "draw", func(v View) bool { return v.Winner == room.Draw })
	doc, err := store.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Zero(t, doc.Int(room.ScoreField("alice")))
	assert.Zero(t, doc.Int(room.ScoreField("bob")))
}

// stuckStore loses every notification that clears the reset flag once it
// has announced one that sets it.
type stuckStore struct {
	room.Store
}

func (s stuckStore) Subscribe(ctx context.Context, id string) (<-chan room.Doc, error) {
	in, err := s.Store.Subscribe(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(chan room.Doc, 1)
	go func() {
		defer close(out)
		resetSeen := false
		for d := range in {
			if d.Bool(room.FieldResetInProgress) {
				resetSeen = true
			} else if resetSeen {
				continue
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// gatedStore holds the next Get after arm until release, then returns the
// document as it was when the read started.
type gatedStore struct {
	room.Store

	mu      sync.Mutex
	armed   bool
	held    chan struct{}
	release chan struct{}
}

func (s *gatedStore) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	s.held = make(chan struct{})
	s.release = make(chan struct{})
}

func (s *gatedStore) Get(ctx context.Context, id string) (room.Doc, error) {
	d, err := s.Store.Get(ctx, id)
	s.mu.Lock()
	hold := s.armed
	s.armed = false
	held, release := s.held, s.release
	s.mu.Unlock()
	if hold {
		close(held)
		<-release
	}
	return d, err
}

// soloRoom seeds a started room where bob is ready and alice has yet to
// connect.
func soloRoom(t *testing.T, store room.Store) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), "room1", room.Changes{
		room.FieldPlayers:         room.Set("alice|bob"),
		room.FieldStatus:          room.Set(room.StatusPlaying),
		room.NameField("bob"):     room.Set("Bob"),
		room.ReadyField("bob"):    room.SetBool(true),
		room.FieldGameStarted:     room.SetBool(true),
		room.FieldGameRound:       room.Set("r1"),
		room.FieldResetInProgress: room.SetBool(false),
	}))
}

// slowFailsafe keeps the failsafe out of the way so only reconciliation can
// move a held player.
func slowFailsafe() Timing {
	tm := fastTiming()
	tm.Failsafe = 30 * time.Second
	return tm
}

func TestReconcileRecoversMissedResetClear(t *testing.T) {
	mem := room.NewMemoryStore()
	soloRoom(t, mem)
	alice := player(stuckStore{mem}, "alice", "Alice", slowFailsafe())
	runCoordinator(t, alice)
	waitFor(t, alice, "alice playing", func(v View) bool { return v.Phase == PhasePlaying && v.Round == "r1" })

	ctx := context.Background()
	require.NoError(t, mem.Update(ctx, "room1", room.Changes{room.FieldResetInProgress: room.SetBool(true)}))
	waitFor(t, alice, "alice held", func(v View) bool { return v.Phase == PhaseResetting })

	require.NoError(t, mem.Update(ctx, "room1", room.Changes{
		room.FieldGameRound:       room.Set("r2"),
		room.FieldResetInProgress: room.SetBool(false),
	}))
	require.Eventually(t, func() bool {
		v := alice.View()
		return v.Phase == PhasePlaying && v.Round == "r2"
	}, time.Second, 5*time.Millisecond, "reconcile brings alice into r2")
	assert.False(t, alice.View().Resetting)
}

func TestReconcileDropsReadOverlappingPush(t *testing.T) {
	store := &gatedStore{Store: room.NewMemoryStore()}
	soloRoom(t, store)
	alice := player(store, "alice", "Alice", slowFailsafe())
	runCoordinator(t, alice)
	waitFor(t, alice, "alice playing", func(v View) bool { return v.Phase == PhasePlaying })

	store.arm()
	select {
	case <-store.held:
	case <-time.After(time.Second):
		t.Fatal("no reconcile read")
	}

	// the held read saw the room before this write
	require.NoError(t, store.Update(context.Background(), "room1", room.Changes{
		room.FieldResetInProgress: room.SetBool(true),
	}))
	waitFor(t, alice, "alice held", func(v View) bool { return v.Phase == PhaseResetting })

	close(store.release)
	require.Never(t, func() bool {
		return alice.View().Phase != PhaseResetting
	}, 200*time.Millisecond, 2*time.Millisecond, "a read older than the last push must not win")
}
