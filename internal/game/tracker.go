// internal/game/tracker.go
//
// Per-player round tracker.
// Responsibilities:
//   - Hold one player's guesses, current input row and outcome for a round.
//   - Validate guesses (length, alphabetic, allowed list).
//   - Score guesses and keep keyboard hints.
//   - Track state transitions: playing → won/lost, exactly once per round.
//
// The tracker is not safe for concurrent use; the round coordinator owns it
// from a single goroutine.
package game

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidLength rejects guesses that are not exactly WordLength letters a–z.
	ErrInvalidLength = errors.New("invalid guess")
	// ErrNotInWordList rejects guesses outside the vocabulary.
	ErrNotInWordList = errors.New("not in word list")
	// ErrRoundOver rejects input once the outcome is final.
	ErrRoundOver = errors.New("round finished")
)

// Guess is the result of one accepted submission.
type Guess struct {
	Word    string // lowercase
	Marks   []Mark
	Attempt int // 1-based
	Outcome Outcome
	// Finished is true only for the guess that made the outcome final.
	Finished   bool
	FinishedAt time.Time
}

// Tracker owns one player's state for the current round.
type Tracker struct {
	target     string
	allowed    func(string) bool
	guesses    []string
	colors     [][]Mark
	current    string
	outcome    Outcome
	finishedAt time.Time
	keyboard   Keyboard
}

// NewTracker starts a round against target. allowed decides vocabulary
// membership; a nil allowed accepts every well-formed word.
func NewTracker(target string, allowed func(string) bool) *Tracker {
	return &Tracker{
		target:   strings.ToLower(target),
		allowed:  allowed,
		guesses:  []string{},
		outcome:  OutcomePlaying,
		keyboard: Keyboard{},
	}
}

// Resume rebuilds a tracker from guesses already published for the round,
// so a player who reconnects continues where they left off. A final stored
// outcome wins over the replay; finishedAt is its time, or the time to use
// if the replay itself finishes the round.
func Resume(target string, allowed func(string) bool, guesses []string, stored Outcome, finishedAt time.Time) *Tracker {
	t := NewTracker(target, nil)
	for _, w := range guesses {
		if _, err := t.Submit(w, finishedAt); err != nil {
			break
		}
	}
	t.allowed = allowed
	if stored.Finished() {
		t.finish(stored, finishedAt)
	}
	return t
}

// Submit validates and scores word, mutating the tracker.
//
// Validation rules:
//   - Outcome must still be Playing.
//   - word must be exactly WordLength letters a–z (case-insensitive).
//   - word must be in the vocabulary.
//
// State transitions:
//   - All marks Correct → Won.
//   - An accepted word clears the row being typed.
//   - Otherwise reaching MaxAttempts guesses → Lost.
func (t *Tracker) Submit(word string, now time.Time) (Guess, error) {
	if t.outcome.Finished() || len(t.guesses) >= MaxAttempts {
		return Guess{}, ErrRoundOver
	}
	word = strings.ToLower(strings.TrimSpace(word))
	if len(word) != WordLength || !isAlpha(word) {
		return Guess{}, ErrInvalidLength
	}
	if t.allowed != nil && !t.allowed(word) {
		return Guess{}, ErrNotInWordList
	}

	marks := CalculateColors(word, t.target)
	t.guesses = append(t.guesses, word)
	t.colors = append(t.colors, marks)
	t.keyboard.Apply(word, marks)
	t.current = ""

	g := Guess{Word: word, Marks: marks, Attempt: len(t.guesses)}
	switch {
	case AllCorrect(marks):
		t.finish(OutcomeWon, now)
		g.Finished = true
	case len(t.guesses) >= MaxAttempts:
		t.finish(OutcomeLost, now)
		g.Finished = true
	}
	g.Outcome = t.outcome
	g.FinishedAt = t.finishedAt
	return g, nil
}

func (t *Tracker) finish(o Outcome, now time.Time) {
	t.outcome = o
	t.finishedAt = now
}

// Press applies one key of input: a letter extends the current row, Backspace
// trims it, Enter submits it. A non-nil Guess is returned only when Enter
// produced an accepted submission. A rejected submission keeps the row.
func (t *Tracker) Press(key string, now time.Time) (*Guess, error) {
	if t.outcome.Finished() || len(t.guesses) >= MaxAttempts {
		return nil, ErrRoundOver
	}
	switch {
	case key == "Enter":
		if len(t.current) != WordLength {
			return nil, ErrInvalidLength
		}
		g, err := t.Submit(t.current, now)
		if err != nil {
			return nil, err
		}
		return &g, nil
	case key == "Backspace":
		if t.current != "" {
			t.current = t.current[:len(t.current)-1]
		}
	case len(key) == 1 && isAlpha(strings.ToLower(key)):
		if len(t.current) < WordLength {
			t.current += strings.ToUpper(key)
		}
	}
	return nil, nil
}

// Target returns the hidden word.
func (t *Tracker) Target() string { return t.target }

// Outcome returns the current outcome.
func (t *Tracker) Outcome() Outcome { return t.outcome }

// FinishedAt is zero until the outcome is final.
func (t *Tracker) FinishedAt() time.Time { return t.finishedAt }

// Attempts is the number of accepted guesses.
func (t *Tracker) Attempts() int { return len(t.guesses) }

// Current is the row being typed.
func (t *Tracker) Current() string { return t.current }

// Guesses returns a copy of the accepted guesses.
func (t *Tracker) Guesses() []string { return append([]string(nil), t.guesses...) }

// Colors returns a copy of the marks for each accepted guess.
func (t *Tracker) Colors() [][]Mark {
	out := make([][]Mark, len(t.colors))
	for i, m := range t.colors {
		out[i] = append([]Mark(nil), m...)
	}
	return out
}

// Keyboard returns a copy of the keyboard hints.
func (t *Tracker) Keyboard() Keyboard { return t.keyboard.Clone() }

// isAlpha checks that a string consists only of lowercase a–z.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
