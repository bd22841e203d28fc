// Package scoring decides a round from the two players' outcomes.
//
// Decide is a pure decision table over (local, remote):
//
//	local  remote   result
//	won    playing  pending
//	won    lost     local wins
//	won    won      earlier finish wins (ties: smaller player id)
//	lost   playing  pending
//	lost   won      remote wins
//	lost   lost     draw
//
// A local outcome of playing is always pending. Both clients evaluate the
// same table over the same published inputs, so they agree on the result;
// the store's conditional write decides which of them records it.
package scoring

import "github.com/robalobadob/wordle/apps/duel-server/internal/game"

// Result of evaluating a round.
type Result string

const (
	Pending    Result = "pending"
	LocalWins  Result = "local"
	RemoteWins Result = "remote"
	Draw       Result = "draw"
)

// Side is one player's published state.
type Side struct {
	ID         string
	Outcome    game.Outcome
	FinishedAt int64 // unix ms, 0 when not published
}

// Decision is the outcome of the table plus the score change it implies.
type Decision struct {
	Result Result
	Winner string // player id; empty for Pending and Draw
}

// Final reports whether the round is decided.
func (d Decision) Final() bool { return d.Result != Pending }

// Delta is the score change for player id: 1 for the winner, 0 otherwise.
func (d Decision) Delta(id string) int64 {
	if d.Winner != "" && d.Winner == id {
		return 1
	}
	return 0
}

// Decide evaluates the table.
func Decide(local, remote Side) Decision {
	switch local.Outcome {
	case game.OutcomeWon:
		switch remote.Outcome {
		case game.OutcomeLost:
			return localWin(local)
		case game.OutcomeWon:
			if faster(local, remote) {
				return localWin(local)
			}
			return Decision{Result: RemoteWins, Winner: remote.ID}
		}
	case game.OutcomeLost:
		switch remote.Outcome {
		case game.OutcomeWon:
			return Decision{Result: RemoteWins, Winner: remote.ID}
		case game.OutcomeLost:
			return Decision{Result: Draw}
		}
	}
	return Decision{Result: Pending}
}

func localWin(s Side) Decision { return Decision{Result: LocalWins, Winner: s.ID} }

// faster reports whether a finished strictly before b. An unpublished finish
// time sorts last; equal times fall back to the player id so both clients
// pick the same winner.
func faster(a, b Side) bool {
	at, bt := a.FinishedAt, b.FinishedAt
	switch {
	case at == bt:
		return a.ID < b.ID
	case at == 0:
		return false
	case bt == 0:
		return true
	}
	return at < bt
}
