// internal/game/types.go
//
// Core type definitions for one player's side of a round.
// Defines:
//   - Mark: per-letter result of a guess (correct/present/absent).
//   - Outcome: a player's state in the current round (playing/won/lost).

package game

const (
	// WordLength is the number of letters in a guess.
	WordLength = 5
	// MaxAttempts is the number of guesses a player gets per round.
	MaxAttempts = 6
)

// Mark represents the evaluation result for a single letter in a guess.
// Possible values:
//   - "correct": letter is in the answer at this position.
//   - "present": letter exists in the answer at a different position.
//   - "absent":  letter does not exist in the answer at all.
type Mark string

const (
	MarkCorrect Mark = "correct"
	MarkPresent Mark = "present"
	MarkAbsent  Mark = "absent"
)

// rank orders marks for keyboard hints: absent < present < correct.
func (m Mark) rank() int {
	switch m {
	case MarkCorrect:
		return 3
	case MarkPresent:
		return 2
	case MarkAbsent:
		return 1
	}
	return 0
}

// Outcome is a player's state within a round. Once Won or Lost it does not
// change until the next round.
type Outcome string

const (
	OutcomePlaying Outcome = "playing"
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
)

// Finished reports whether the outcome is terminal.
func (o Outcome) Finished() bool { return o == OutcomeWon || o == OutcomeLost }

// ParseOutcome maps a stored value to an Outcome. Unknown or empty values
// read as Playing, matching a player who has not published anything yet.
func ParseOutcome(s string) Outcome {
	switch Outcome(s) {
	case OutcomeWon:
		return OutcomeWon
	case OutcomeLost:
		return OutcomeLost
	}
	return OutcomePlaying
}
