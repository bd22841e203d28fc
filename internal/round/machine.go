// internal/round/machine.go
//
// Round lifecycle state machine for one player.
//
// Step is a pure transition: it reads nothing but its arguments and performs
// no I/O. Everything it wants done (store writes, reads, timers, history) is
// returned as effects for the Coordinator to execute; their results come back
// as events.
//
//	Playing --(local finishes)--> WaitingForPeer --(scoring resolves)--> RoundOver
//	RoundOver --(vote)--> AwaitingVotes --(2nd vote observed)--> Resetting
//	Resetting --(store releases, or failsafe)--> Playing(next round)
//	any --(store resetInProgress=true)--> Resetting
//
// Store writes that touch round data are conditional on gameRound, so a late
// write can never land in a newer round.

package round

import (
	"errors"
	"sort"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/history"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
	"github.com/robalobadob/wordle/apps/duel-server/internal/scoring"
)

// Phase is the player-facing state.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhasePlaying        Phase = "playing"
	PhaseWaitingForPeer Phase = "waiting_for_peer"
	PhaseRoundOver      Phase = "round_over"
	PhaseAwaitingVotes  Phase = "awaiting_votes"
	PhaseResetting      Phase = "resetting"
)

// Timing holds the handshake delays.
type Timing struct {
	Settle       time.Duration // new round id visible → clear round data
	Release      time.Duration // clear → resetInProgress=false
	LatchRelease time.Duration // release → local latch open
	Failsafe     time.Duration // forced exit from Resetting
	Reconcile    time.Duration // store poll period
	InvalidWord  time.Duration
	Shake        time.Duration
}

// DefaultTiming returns production delays.
func DefaultTiming() Timing {
	return Timing{
		Settle:       time.Second,
		Release:      time.Second,
		LatchRelease: 500 * time.Millisecond,
		Failsafe:     10 * time.Second,
		Reconcile:    8 * time.Second,
		InvalidWord:  1500 * time.Millisecond,
		Shake:        500 * time.Millisecond,
	}
}

// Rules supplies the vocabulary. Both must be deterministic.
type Rules struct {
	Target  func(roundID string) string
	Allowed func(word string) bool
}

// Timer identifies one of the machine's timers.
type Timer int

const (
	TimerSettle Timer = iota
	TimerRelease
	TimerLatch
	TimerFailsafe
	TimerInvalid
	TimerShake
	numTimers
)

func (t Timer) String() string {
	switch t {
	case TimerSettle:
		return "settle"
	case TimerRelease:
		return "release"
	case TimerLatch:
		return "latch"
	case TimerFailsafe:
		return "failsafe"
	case TimerInvalid:
		return "invalid"
	case TimerShake:
		return "shake"
	}
	return "unknown"
}

// Op names a store write.
type Op int

const (
	OpJoin Op = iota
	OpInitRound
	OpStart
	OpGuess
	OpFinish
	OpResult
	OpVote
	OpResetBegin
	OpResetClear
	OpResetRelease
	OpFailsafeRelease
)

var opNames = [...]string{
	"join", "init_round", "start", "guess", "finish", "result",
	"vote", "reset_begin", "reset_clear", "reset_release", "failsafe_release",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// ---------------------------------- effects ----------------------------------

// Effect is work requested by Step.
type Effect interface{ isEffect() }

// Write is a store write. With no Conds it is a blind Update.
type Write struct {
	Op      Op
	Round   string
	Conds   []room.Cond
	Changes room.Changes
}

// ReadPurpose says what a Read result is for.
type ReadPurpose int

const (
	ReadVote ReadPurpose = iota
	ReadReconcile
)

// Read asks for a fresh store snapshot.
type Read struct{ Purpose ReadPurpose }

// StartTimer (re)arms a timer; the Gen must come back in TimerFired.
type StartTimer struct {
	Timer Timer
	Gen   uint64
	After time.Duration
}

// StopTimer disarms a timer.
type StopTimer struct{ Timer Timer }

// Record persists a resolved round.
type Record struct{ Round history.Round }

func (Write) isEffect()      {}
func (Read) isEffect()       {}
func (StartTimer) isEffect() {}
func (StopTimer) isEffect()  {}
func (Record) isEffect()     {}

// ---------------------------------- events -----------------------------------

// Event is an input to Step.
type Event interface{ isEvent() }

// Joined starts the machine. NextRound seeds the room's first round id.
type Joined struct{ NextRound string }

// Snapshot is a store document, pushed or polled. NextRound is a fresh id the
// machine may use if this snapshot makes it start a reset. At is when the
// snapshot was taken.
type Snapshot struct {
	Doc       room.Doc
	NextRound string
	Reconcile bool
	At        time.Time
}

// KeyPressed is one key of input.
type KeyPressed struct {
	Key string
	At  time.Time
}

// GuessSubmitted is a whole word submitted at once.
type GuessSubmitted struct {
	Word string
	At   time.Time
}

// VoteCast is the play-again button.
type VoteCast struct{}

// VoteChecked carries the fresh read taken before voting.
type VoteChecked struct {
	Doc room.Doc
	Err error
}

// WriteDone reports a Write's outcome.
type WriteDone struct {
	Op      Op
	Round   string
	Applied bool
	Err     error
}

// TimerFired reports an expired timer.
type TimerFired struct {
	Timer Timer
	Gen   uint64
}

// Tick is the reconciliation poll.
type Tick struct{}

func (Joined) isEvent()         {}
func (Snapshot) isEvent()       {}
func (KeyPressed) isEvent()     {}
func (GuessSubmitted) isEvent() {}
func (VoteCast) isEvent()       {}
func (VoteChecked) isEvent()    {}
func (WriteDone) isEvent()      {}
func (TimerFired) isEvent()     {}
func (Tick) isEvent()           {}

// ----------------------------------- state -----------------------------------

// State is one player's view of the room plus local flags.
//
// The tracker is owned by the state; Step mutates it in place, so a State
// must not be reused after it has been passed to Step.
type State struct {
	RoomID   string
	Self     string
	SelfName string
	Peer     string
	PeerName string
	Timing   Timing
	Rules    Rules

	Started bool
	Round   string
	Tracker *game.Tracker

	PeerOutcome    game.Outcome
	PeerFinishedAt int64
	PeerColors     [][]game.Mark
	SelfScore      int64
	PeerScore      int64

	Winner      string // roundWinner for Round: a player id or room.Draw
	Votes       int64
	Voted       bool
	Resetting   bool
	InvalidWord bool
	Shake       bool

	storeResetting bool // last observed resetInProgress
	latch          bool // blocks re-entering the reset sequence
	owner          bool // this player is running the sequence
	resetFrom      string
	resetTo        string
	votePending    bool
	initSent       bool
	resultSent     bool
	pending        *history.Round // summary of the result write in flight

	gen    uint64
	timers [numTimers]uint64 // armed generation per timer, 0 when idle
}

// NewState returns the initial state for a player in a room.
func NewState(roomID, self, name string, rules Rules, timing Timing) State {
	return State{
		RoomID:      roomID,
		Self:        self,
		SelfName:    name,
		PeerName:    "Opponent",
		Timing:      timing,
		Rules:       rules,
		PeerOutcome: game.OutcomePlaying,
	}
}

// Phase derives the player-facing state.
func (s State) Phase() Phase {
	switch {
	case !s.Started || s.Tracker == nil:
		return PhaseWaiting
	case s.Resetting || s.latch:
		return PhaseResetting
	case s.Tracker.Outcome() == game.OutcomePlaying:
		return PhasePlaying
	case !s.RoundOver():
		return PhaseWaitingForPeer
	case s.Voted:
		return PhaseAwaitingVotes
	}
	return PhaseRoundOver
}

// RoundOver reports whether the round is decided for this player.
func (s State) RoundOver() bool {
	if s.Tracker == nil || !s.Tracker.Outcome().Finished() {
		return false
	}
	return s.Winner != "" || s.PeerOutcome.Finished()
}

// Latched reports whether the local reset latch is held.
func (s State) Latched() bool { return s.latch }

// Step applies one event.
func Step(s State, ev Event) (State, []Effect) {
	var fx []Effect
	switch e := ev.(type) {
	case Joined:
		fx = s.onJoined(e)
	case Snapshot:
		fx = s.onSnapshot(e)
	case KeyPressed:
		if s.canPlay() {
			g, err := s.Tracker.Press(e.Key, e.At)
			fx = s.afterInput(g, err)
		}
	case GuessSubmitted:
		if s.canPlay() {
			g, err := s.Tracker.Submit(e.Word, e.At)
			if err != nil {
				fx = s.afterInput(nil, err)
			} else {
				fx = s.afterInput(&g, nil)
			}
		}
	case VoteCast:
		fx = s.onVote()
	case VoteChecked:
		fx = s.onVoteChecked(e)
	case WriteDone:
		fx = s.onWriteDone(e)
	case TimerFired:
		fx = s.onTimer(e)
	case Tick:
		fx = []Effect{Read{Purpose: ReadReconcile}}
	}
	fx = append(fx, s.guardFailsafe()...)
	return s, fx
}

// ------------------------------- transitions ---------------------------------

func (s *State) onJoined(e Joined) []Effect {
	fx := []Effect{Write{
		Op: OpJoin,
		Changes: room.Changes{
			room.NameField(s.Self):  room.Set(s.SelfName),
			room.ReadyField(s.Self): room.SetBool(true),
		},
	}}
	if e.NextRound != "" {
		s.initSent = true
		fx = append(fx, initRound(e.NextRound))
	}
	return fx
}

func initRound(id string) Write {
	return Write{
		Op:      OpInitRound,
		Round:   id,
		Conds:   []room.Cond{room.Absent(room.FieldGameRound)},
		Changes: room.Changes{room.FieldGameRound: room.Set(id)},
	}
}

func (s *State) onSnapshot(e Snapshot) []Effect {
	d := e.Doc
	var fx []Effect

	if p := d.Peer(s.Self); p != "" {
		s.Peer = p
	}
	if s.Peer != "" {
		if n := d.Str(room.NameField(s.Peer)); n != "" {
			s.PeerName = n
		} else if d.Str(room.FieldCreatorID) == s.Peer && d.Str(room.FieldCreatorName) != "" {
			s.PeerName = d.Str(room.FieldCreatorName)
		}
	}

	if !s.Started {
		bothReady := s.Peer != "" && d.Bool(room.ReadyField(s.Peer)) && d.Bool(room.ReadyField(s.Self))
		if bothReady || d.Bool(room.FieldGameStarted) {
			s.Started = true
			if !d.Bool(room.FieldGameStarted) {
				fx = append(fx, Write{Op: OpStart, Changes: room.Changes{
					room.FieldStatus:      room.Set(room.StatusPlaying),
					room.FieldGameStarted: room.SetBool(true),
				}})
			}
		}
	}
	if !d.Has(room.FieldGameRound) && !s.initSent && e.NextRound != "" {
		s.initSent = true
		fx = append(fx, initRound(e.NextRound))
	}

	s.SelfScore = d.Int(room.ScoreField(s.Self))
	if s.Peer != "" {
		s.PeerScore = d.Int(room.ScoreField(s.Peer))
	}

	// The store's reset flag wins over local flags.
	s.storeResetting = d.Bool(room.FieldResetInProgress)
	if s.storeResetting {
		s.Resetting = true
		s.latch = true
	} else if !s.owner {
		s.Resetting = false
		s.latch = false
	}

	if r := d.Str(room.FieldGameRound); r != "" && r != s.Round {
		fx = append(fx, s.enterRound(d, r, e.At)...)
	}

	current := d.Str(room.FieldGameRound) == s.Round
	if s.Peer != "" && !s.storeResetting && current && d.Str(room.RoundField(s.Peer)) == s.Round {
		s.PeerOutcome = game.ParseOutcome(d.Str(room.GameStateField(s.Peer)))
		s.PeerFinishedAt = d.Int(room.FinishTimeField(s.Peer))
		entries := d.List(room.ColorsField(s.Peer))
		colors := make([][]game.Mark, len(entries))
		for i, c := range entries {
			colors[i] = game.DecodeColors(c)
		}
		s.PeerColors = colors
	} else {
		s.PeerOutcome = game.OutcomePlaying
		s.PeerFinishedAt = 0
		s.PeerColors = nil
	}

	if !s.storeResetting && current {
		s.Winner = d.Str(room.FieldRoundWinner)
		s.Votes = d.Int(room.FieldPlayAgainVotes)
		if d.Str(room.VotedField(s.Self)) == s.Round {
			s.Voted = true
		}
		if s.Votes >= 2 {
			s.Resetting = true
			if !s.latch && e.NextRound != "" {
				fx = append(fx, s.beginReset(e.NextRound))
			}
		}
	}

	return append(fx, s.evaluate()...)
}

// enterRound discards the previous round's local state. If the store already
// holds this player's fields for the round (a reconnect), the tracker resumes
// from them instead of starting over.
func (s *State) enterRound(d room.Doc, id string, at time.Time) []Effect {
	s.Round = id
	s.PeerOutcome = game.OutcomePlaying
	s.PeerFinishedAt = 0
	s.PeerColors = nil
	s.Winner = ""
	s.Votes = 0
	s.Voted = false
	s.votePending = false
	s.resultSent = false
	s.pending = nil
	s.InvalidWord = false
	s.Shake = false
	s.Resetting = s.storeResetting
	if !s.owner {
		s.latch = s.storeResetting
	}
	fx := []Effect{s.stopTimer(TimerInvalid), s.stopTimer(TimerShake)}

	target := ""
	if s.Rules.Target != nil {
		target = s.Rules.Target(id)
	}
	if d.Str(room.RoundField(s.Self)) != id {
		s.Tracker = game.NewTracker(target, s.Rules.Allowed)
		return fx
	}
	stored := game.ParseOutcome(d.Str(room.GameStateField(s.Self)))
	finished := at
	if ms := d.Int(room.FinishTimeField(s.Self)); ms > 0 {
		finished = time.UnixMilli(ms)
	}
	s.Tracker = game.Resume(target, s.Rules.Allowed, d.List(room.GuessesField(s.Self)), stored, finished)
	if o := s.Tracker.Outcome(); o.Finished() && !stored.Finished() {
		// the last guess landed but its outcome write did not
		fx = append(fx, s.finishWrite(o, finished))
	}
	return fx
}

func (s *State) canPlay() bool {
	return s.Started && s.Tracker != nil && !s.Resetting && !s.latch &&
		s.Tracker.Outcome() == game.OutcomePlaying
}

func (s *State) afterInput(g *game.Guess, err error) []Effect {
	var fx []Effect
	switch {
	case errors.Is(err, game.ErrNotInWordList):
		s.InvalidWord = true
		s.Shake = true
		return append(fx, s.startTimer(TimerInvalid, s.Timing.InvalidWord), s.startTimer(TimerShake, s.Timing.Shake))
	case errors.Is(err, game.ErrInvalidLength):
		s.Shake = true
		return append(fx, s.startTimer(TimerShake, s.Timing.Shake))
	case err != nil, g == nil:
		return nil
	}

	guesses := room.Append(g.Word)
	colors := room.Append(game.EncodeColors(g.Marks))
	if g.Attempt == 1 {
		// The first write of a round replaces anything a skipped clear left behind.
		guesses = room.Set(g.Word)
		colors = room.Set(game.EncodeColors(g.Marks))
	}
	fx = append(fx, Write{
		Op:    OpGuess,
		Round: s.Round,
		Conds: roundConds(s.Round),
		Changes: room.Changes{
			room.GuessesField(s.Self): guesses,
			room.ColorsField(s.Self):  colors,
			room.RoundField(s.Self):   room.Set(s.Round),
		},
	})
	if g.Finished {
		fx = append(fx, s.finishWrite(g.Outcome, g.FinishedAt))
		fx = append(fx, s.evaluate()...)
	}
	return fx
}

// finishWrite publishes the player's final outcome for the round.
func (s *State) finishWrite(o game.Outcome, at time.Time) Write {
	return Write{
		Op:    OpFinish,
		Round: s.Round,
		Conds: roundConds(s.Round),
		Changes: room.Changes{
			room.GameStateField(s.Self):  room.Set(string(o)),
			room.FinishTimeField(s.Self): room.SetInt(at.UnixMilli()),
			room.RoundField(s.Self):      room.Set(s.Round),
		},
	}
}

func roundConds(round string) []room.Cond {
	return []room.Cond{
		room.Equals(room.FieldGameRound, round),
		room.NotEquals(room.FieldResetInProgress, "true"),
	}
}

// evaluate runs the scoring table and, once final, asks for the single
// conditional result write.
func (s *State) evaluate() []Effect {
	if !s.Started || s.Tracker == nil || s.Resetting || s.storeResetting || s.Winner != "" || s.resultSent {
		return nil
	}
	local := scoring.Side{ID: s.Self, Outcome: s.Tracker.Outcome()}
	if t := s.Tracker.FinishedAt(); !t.IsZero() {
		local.FinishedAt = t.UnixMilli()
	}
	remote := scoring.Side{ID: s.Peer, Outcome: s.PeerOutcome, FinishedAt: s.PeerFinishedAt}
	d := scoring.Decide(local, remote)
	if !d.Final() {
		return nil
	}

	winner, result := d.Winner, room.ResultWin
	ch := room.Changes{}
	if d.Result == scoring.Draw {
		winner, result = room.Draw, room.ResultDraw
	} else {
		ch[room.ScoreField(d.Winner)] = room.Incr(1)
	}
	ch[room.FieldRoundWinner] = room.Set(winner)
	ch[room.FieldRoundResult] = room.Set(result)

	s.resultSent = true
	s.pending = s.summary(d)
	return []Effect{Write{
		Op:    OpResult,
		Round: s.Round,
		Conds: []room.Cond{
			room.Absent(room.FieldRoundWinner),
			room.Equals(room.FieldGameRound, s.Round),
			room.NotEquals(room.FieldResetInProgress, "true"),
		},
		Changes: ch,
	}}
}

// summary describes the round as it will stand once the result write applies.
func (s *State) summary(d scoring.Decision) *history.Round {
	self := history.Player{
		ID:    s.Self,
		Name:  s.SelfName,
		State: string(s.Tracker.Outcome()),
		Moves: s.Tracker.Attempts(),
		Score: s.SelfScore + d.Delta(s.Self),
	}
	peer := history.Player{
		ID:    s.Peer,
		Name:  s.PeerName,
		State: string(s.PeerOutcome),
		Moves: len(s.PeerColors),
		Score: s.PeerScore + d.Delta(s.Peer),
	}
	players := []history.Player{self, peer}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	r := &history.Round{
		RoomID:  s.RoomID,
		RoundID: s.Round,
		Result:  history.ResultDraw,
		A:       players[0],
		B:       players[1],
		Answer:  s.Tracker.Target(),
	}
	if d.Winner != "" {
		r.Result = history.ResultWin
		r.WinnerID = d.Winner
		r.WinnerName = self.Name
		if d.Winner == s.Peer {
			r.WinnerName = peer.Name
		}
	}
	finished := s.Tracker.FinishedAt()
	if s.PeerFinishedAt > 0 {
		if pt := time.UnixMilli(s.PeerFinishedAt); pt.After(finished) {
			finished = pt
		}
	}
	r.FinishedAt = finished
	return r
}

func (s *State) onVote() []Effect {
	if s.Voted || s.votePending || s.Resetting || s.latch || s.storeResetting || !s.RoundOver() {
		return nil
	}
	s.Voted = true
	s.votePending = true
	return []Effect{Read{Purpose: ReadVote}}
}

func (s *State) onVoteChecked(e VoteChecked) []Effect {
	if !s.votePending {
		return nil
	}
	if e.Err != nil || e.Doc.Bool(room.FieldResetInProgress) || e.Doc.Str(room.FieldGameRound) != s.Round {
		s.Voted = false
		s.votePending = false
		return nil
	}
	return []Effect{Write{
		Op:    OpVote,
		Round: s.Round,
		Conds: []room.Cond{
			room.Equals(room.FieldGameRound, s.Round),
			room.NotEquals(room.FieldResetInProgress, "true"),
			room.NotEquals(room.VotedField(s.Self), s.Round),
		},
		Changes: room.Changes{
			room.FieldPlayAgainVotes: room.Incr(1),
			room.VotedField(s.Self):  room.Set(s.Round),
		},
	}}
}

// beginReset is step (a): one compare-and-set moves the room to a new round
// and raises resetInProgress. Only one client's attempt can apply.
func (s *State) beginReset(next string) Write {
	s.latch = true
	s.owner = true
	s.Resetting = true
	s.resetFrom = s.Round
	s.resetTo = next
	return Write{
		Op:    OpResetBegin,
		Round: s.resetFrom,
		Conds: []room.Cond{
			room.Equals(room.FieldGameRound, s.resetFrom),
			room.NotEquals(room.FieldResetInProgress, "true"),
		},
		Changes: room.Changes{
			room.FieldGameRound:       room.Set(next),
			room.FieldPlayAgainVotes:  room.SetInt(0),
			room.FieldResetInProgress: room.SetBool(true),
			room.FieldRoundWinner:     room.Delete(),
			room.FieldRoundResult:     room.Delete(),
		},
	}
}

func (s *State) onWriteDone(e WriteDone) []Effect {
	switch e.Op {
	case OpInitRound:
		if e.Err != nil {
			s.initSent = false
		}
	case OpResult:
		pending := s.pending
		s.pending = nil
		if e.Err != nil && e.Round == s.Round {
			s.resultSent = false
			return nil
		}
		if e.Applied && pending != nil && pending.RoundID == e.Round {
			return []Effect{Record{Round: *pending}}
		}
	case OpVote:
		if e.Round != s.Round {
			return nil
		}
		s.votePending = false
		if e.Err != nil || !e.Applied {
			// A vote already recorded for this round comes back via the snapshot.
			s.Voted = false
		}
	case OpResetBegin:
		if !s.owner || e.Round != s.resetFrom {
			return nil
		}
		switch {
		case e.Err != nil:
			return s.abortReset(s.resetFrom)
		case !e.Applied:
			// Another client moved the round first; follow the store.
			s.follow()
		default:
			return []Effect{s.startTimer(TimerSettle, s.Timing.Settle)}
		}
	case OpResetClear:
		if !s.owner || e.Round != s.resetTo {
			return nil
		}
		switch {
		case e.Err != nil:
			return s.abortReset(s.resetTo)
		case !e.Applied:
			s.follow()
		default:
			return []Effect{s.startTimer(TimerRelease, s.Timing.Release)}
		}
	case OpResetRelease:
		if !s.owner || e.Round != s.resetTo {
			return nil
		}
		switch {
		case e.Err != nil:
			s.owner = false
			s.latch = false
			s.Resetting = false
		case !e.Applied:
			s.follow()
		default:
			s.Resetting = false
			return []Effect{s.startTimer(TimerLatch, s.Timing.LatchRelease)}
		}
	}
	return nil
}

// follow hands the sequence back to the store. If the store has already
// moved past the reset there is no later snapshot to release the flags.
func (s *State) follow() {
	s.owner = false
	if !s.storeResetting && s.Round != s.resetFrom {
		s.Resetting = false
		s.latch = false
	}
}

// abortReset drops local reset state after a failed write and asks the store
// to release the flag, but only for the round the sequence was working on.
func (s *State) abortReset(round string) []Effect {
	s.owner = false
	s.latch = false
	s.Resetting = false
	return []Effect{
		s.stopTimer(TimerSettle),
		s.stopTimer(TimerRelease),
		s.stopTimer(TimerLatch),
		releaseWrite(OpResetRelease, round),
	}
}

func releaseWrite(op Op, round string) Write {
	return Write{
		Op:      op,
		Round:   round,
		Conds:   []room.Cond{room.Equals(room.FieldGameRound, round)},
		Changes: room.Changes{room.FieldResetInProgress: room.SetBool(false)},
	}
}

func (s *State) onTimer(e TimerFired) []Effect {
	if e.Timer < 0 || e.Timer >= numTimers || e.Gen == 0 || s.timers[e.Timer] != e.Gen {
		return nil
	}
	s.timers[e.Timer] = 0

	switch e.Timer {
	case TimerSettle:
		if !s.owner {
			return nil
		}
		ch := room.Changes{
			room.FieldRoundWinner: room.Delete(),
			room.FieldRoundResult: room.Delete(),
		}
		for _, p := range []string{s.Self, s.Peer} {
			if p == "" {
				continue
			}
			for _, f := range room.PerRoundFields(p) {
				ch[f] = room.Delete()
			}
		}
		return []Effect{Write{
			Op:      OpResetClear,
			Round:   s.resetTo,
			Conds:   []room.Cond{room.Equals(room.FieldGameRound, s.resetTo)},
			Changes: ch,
		}}
	case TimerRelease:
		if !s.owner {
			return nil
		}
		return []Effect{releaseWrite(OpResetRelease, s.resetTo)}
	case TimerLatch:
		s.latch = false
		s.owner = false
	case TimerFailsafe:
		s.Resetting = false
		s.latch = false
		s.owner = false
		w := releaseWrite(OpFailsafeRelease, s.Round)
		w.Conds = append(w.Conds, room.Equals(room.FieldResetInProgress, "true"))
		return []Effect{
			s.stopTimer(TimerSettle),
			s.stopTimer(TimerRelease),
			s.stopTimer(TimerLatch),
			w,
		}
	case TimerInvalid:
		s.InvalidWord = false
	case TimerShake:
		s.Shake = false
	}
	return nil
}

// guardFailsafe keeps the failsafe armed exactly while the player is held in
// Resetting or the latch is closed.
func (s *State) guardFailsafe() []Effect {
	held := s.Resetting || s.latch
	armed := s.timers[TimerFailsafe] != 0
	switch {
	case held && !armed:
		return []Effect{s.startTimer(TimerFailsafe, s.Timing.Failsafe)}
	case !held && armed:
		return []Effect{s.stopTimer(TimerFailsafe)}
	}
	return nil
}

func (s *State) startTimer(t Timer, after time.Duration) Effect {
	s.gen++
	s.timers[t] = s.gen
	return StartTimer{Timer: t, Gen: s.gen, After: after}
}

func (s *State) stopTimer(t Timer) Effect {
	s.timers[t] = 0
	return StopTimer{Timer: t}
}
