// internal/round/coordinator.go
//
// Coordinator drives one player's State machine.
// Responsibilities:
//   - Run a single event loop: store notifications, player input, write
//     results, timers and the reconciliation tick all go through Step in order.
//   - Execute effects: writes go to a sequential writer so a guess always
//     lands before the outcome it produced; reads and history records run
//     in their own goroutines and report back as events.
//   - Publish a fresh View after every step.
//
// Coordinators of the same room never talk to each other directly; the store
// is the only shared state.

package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/history"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
)

// ErrSubscriptionClosed is returned by Run when the store stops notifying.
var ErrSubscriptionClosed = errors.New("room subscription closed")

const writeTimeout = 5 * time.Second

// Config wires a coordinator to its room.
type Config struct {
	RoomID   string
	PlayerID string
	Name     string
	Store    room.Store
	History  history.Store // optional
	Rules    Rules
	Timing   Timing
	NewID    func() string // round ids; NewRoundID when nil
}

// Coordinator is safe for concurrent use; Run must be called exactly once.
type Coordinator struct {
	cfg    Config
	log    zerolog.Logger
	events chan Event
	done   chan struct{}
	views  chan View

	mu   sync.Mutex
	view View

	// writer queue
	wmu   sync.Mutex
	queue []Write
	wake  chan struct{}

	// loop goroutine only
	timers [numTimers]*time.Timer
	pushes uint64 // pushed snapshots seen
}

// reconciled is a polled document. It is dropped if a pushed snapshot
// arrived while the read was in flight, since the push may be newer.
type reconciled struct {
	doc room.Doc
	seq uint64
}

func (reconciled) isEvent() {}

// New returns a coordinator; it does nothing until Run.
func New(cfg Config) *Coordinator {
	if cfg.NewID == nil {
		cfg.NewID = NewRoundID
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	c := &Coordinator{
		cfg:    cfg,
		log:    log.With().Str("room", cfg.RoomID).Str("player", cfg.PlayerID).Logger(),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		views:  make(chan View, 1),
		wake:   make(chan struct{}, 1),
	}
	c.view = Render(c.initial())
	return c
}

func (c *Coordinator) initial() State {
	return NewState(c.cfg.RoomID, c.cfg.PlayerID, c.cfg.Name, c.cfg.Rules, c.cfg.Timing)
}

// Run blocks until ctx ends or the subscription closes.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := c.cfg.Store.Subscribe(ctx, c.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.RoomID, err)
	}

	liveCoordinators.Inc()
	defer liveCoordinators.Dec()
	defer c.stopTimers()

	go c.writeLoop(ctx)

	ticker := time.NewTicker(c.cfg.Timing.Reconcile)
	defer ticker.Stop()

	c.log.Info().Msg("coordinator started")
	defer c.log.Info().Msg("coordinator stopped")

	s := c.apply(ctx, c.initial(), Joined{NextRound: c.cfg.NewID()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-sub:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			c.pushes++
			s = c.apply(ctx, s, Snapshot{Doc: d, NextRound: c.cfg.NewID(), At: time.Now()})
		case ev := <-c.events:
			if r, ok := ev.(reconciled); ok {
				if r.seq != c.pushes {
					continue
				}
				ev = Snapshot{Doc: r.doc, NextRound: c.cfg.NewID(), Reconcile: true, At: time.Now()}
			}
			s = c.apply(ctx, s, ev)
		case <-ticker.C:
			s = c.apply(ctx, s, Tick{})
		}
	}
}

// Press feeds one key (a letter, "Backspace" or "Enter").
func (c *Coordinator) Press(key string) { c.post(KeyPressed{Key: key, At: time.Now()}) }

// Submit feeds a whole word.
func (c *Coordinator) Submit(word string) { c.post(GuessSubmitted{Word: word, At: time.Now()}) }

// Vote casts the play-again vote.
func (c *Coordinator) Vote() { c.post(VoteCast{}) }

// Views delivers the latest view; intermediate views may be skipped.
func (c *Coordinator) Views() <-chan View { return c.views }

// View returns the most recent view.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) apply(ctx context.Context, s State, ev Event) State {
	before := c.View()
	next, fx := Step(s, ev)
	c.observe(ev, fx)
	for _, e := range fx {
		c.exec(ctx, e)
	}
	v := Render(next)
	if snap, ok := ev.(Snapshot); ok && snap.Reconcile && changed(before, v) {
		reconcileCorrections.Inc()
		c.log.Debug().Str("phase", string(v.Phase)).Msg("reconciled from store")
	}
	c.publish(v)
	return next
}

// changed compares the parts of a view the store drives.
func changed(a, b View) bool {
	return a.Phase != b.Phase || a.Round != b.Round || a.Winner != b.Winner ||
		a.Votes != b.Votes || a.Resetting != b.Resetting ||
		a.You.Score != b.You.Score || a.Opponent.Score != b.Opponent.Score ||
		a.Opponent.State != b.Opponent.State || len(a.OpponentBoard) != len(b.OpponentBoard)
}

func (c *Coordinator) publish(v View) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	select {
	case c.views <- v:
		return
	default:
	}
	// single producer: drop the stale view and retry once
	select {
	case <-c.views:
	default:
	}
	select {
	case c.views <- v:
	default:
	}
}

// observe records metrics for a step.
func (c *Coordinator) observe(ev Event, fx []Effect) {
	switch e := ev.(type) {
	case KeyPressed, GuessSubmitted:
		for _, f := range fx {
			switch f := f.(type) {
			case Write:
				if f.Op == OpGuess {
					guessesTotal.WithLabelValues("accepted").Inc()
				}
			case StartTimer:
				if f.Timer == TimerShake {
					guessesTotal.WithLabelValues("rejected").Inc()
				}
			}
		}
	case WriteDone:
		if e.Err != nil {
			return
		}
		switch {
		case e.Op == OpVote && e.Applied:
			votesTotal.WithLabelValues("applied").Inc()
		case e.Op == OpVote:
			votesTotal.WithLabelValues("rejected").Inc()
		case e.Op == OpResetBegin && e.Applied:
			resetsTotal.WithLabelValues("started").Inc()
		case e.Op == OpResetRelease && e.Applied:
			resetsTotal.WithLabelValues("completed").Inc()
		}
	case TimerFired:
		if e.Timer != TimerFailsafe {
			return
		}
		for _, f := range fx {
			if w, ok := f.(Write); ok && w.Op == OpFailsafeRelease {
				resetsTotal.WithLabelValues("failsafe").Inc()
				c.log.Warn().Str("round", w.Round).Msg("reset failsafe fired")
			}
		}
	}
}

func (c *Coordinator) exec(ctx context.Context, e Effect) {
	switch e := e.(type) {
	case Write:
		c.enqueue(e)
	case Read:
		go c.read(ctx, e.Purpose, c.pushes)
	case StartTimer:
		if t := c.timers[e.Timer]; t != nil {
			t.Stop()
		}
		timer, gen := e.Timer, e.Gen
		c.timers[e.Timer] = time.AfterFunc(e.After, func() {
			c.post(TimerFired{Timer: timer, Gen: gen})
		})
	case StopTimer:
		if t := c.timers[e.Timer]; t != nil {
			t.Stop()
			c.timers[e.Timer] = nil
		}
	case Record:
		roundsResolved.WithLabelValues(e.Round.Result).Inc()
		c.log.Info().Str("round", e.Round.RoundID).Str("result", e.Round.Result).
			Str("winner", e.Round.WinnerID).Msg("round resolved")
		if c.cfg.History != nil {
			go c.record(ctx, e.Round)
		}
	}
}

func (c *Coordinator) stopTimers() {
	for i, t := range c.timers {
		if t != nil {
			t.Stop()
			c.timers[i] = nil
		}
	}
}

func (c *Coordinator) read(ctx context.Context, purpose ReadPurpose, seq uint64) {
	rctx, cancel := context.WithTimeout(ctx, writeTimeout)
	d, err := c.cfg.Store.Get(rctx, c.cfg.RoomID)
	cancel()
	switch purpose {
	case ReadVote:
		c.post(VoteChecked{Doc: d, Err: err})
	case ReadReconcile:
		if err != nil {
			c.log.Debug().Err(err).Msg("reconcile read failed")
			return
		}
		c.post(reconciled{doc: d, seq: seq})
	}
}

// record outlives the player's session so a round resolved just before
// disconnecting is still stored.
func (c *Coordinator) record(ctx context.Context, r history.Round) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := c.cfg.History.Record(rctx, r); err != nil {
		c.log.Warn().Err(err).Str("round", r.RoundID).Msg("history record failed")
	}
}

// ---------------------------------- writer -----------------------------------

func (c *Coordinator) enqueue(w Write) {
	c.wmu.Lock()
	c.queue = append(c.queue, w)
	c.wmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) writeLoop(ctx context.Context) {
	for {
		c.wmu.Lock()
		if len(c.queue) == 0 {
			c.wmu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			continue
		}
		w := c.queue[0]
		c.queue = c.queue[1:]
		c.wmu.Unlock()

		applied, err := c.write(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			storeWriteFailures.WithLabelValues(w.Op.String()).Inc()
			c.log.Warn().Err(err).Str("op", w.Op.String()).Str("round", w.Round).Msg("store write failed")
		}
		c.post(WriteDone{Op: w.Op, Round: w.Round, Applied: applied, Err: err})
	}
}

func (c *Coordinator) write(ctx context.Context, w Write) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if w.Conds == nil {
		if err := c.cfg.Store.Update(wctx, c.cfg.RoomID, w.Changes); err != nil {
			return false, err
		}
		return true, nil
	}
	return c.cfg.Store.UpdateIf(wctx, c.cfg.RoomID, w.Conds, w.Changes)
}
