package round

import (
	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
)

// Tile is one board cell. Opponent tiles never carry a letter.
type Tile struct {
	Letter string    `json:"letter,omitempty"`
	Mark   game.Mark `json:"mark,omitempty"`
}

// PlayerView is the scoreboard entry for one player.
type PlayerView struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Score int64        `json:"score"`
	State game.Outcome `json:"state"`
}

// View is what the client renders. It is rebuilt after every step and never
// shared with the state it was built from.
type View struct {
	Phase    Phase      `json:"phase"`
	Round    string     `json:"round,omitempty"`
	You      PlayerView `json:"you"`
	Opponent PlayerView `json:"opponent"`

	Board         [][]Tile      `json:"board"`
	OpponentBoard [][]Tile      `json:"opponentBoard"`
	Current       string        `json:"current"`
	Keyboard      game.Keyboard `json:"keyboard"`

	Winner      string `json:"winner,omitempty"`
	Message     string `json:"message,omitempty"`
	EarnedPoint bool   `json:"earnedPoint"`
	Answer      string `json:"answer,omitempty"`

	Votes       int64 `json:"votes"`
	Voted       bool  `json:"voted"`
	Resetting   bool  `json:"resetting"`
	InvalidWord bool  `json:"invalidWord"`
	Shake       bool  `json:"shake"`
}

// Render builds the view for s.
func Render(s State) View {
	v := View{
		Phase:       s.Phase(),
		Round:       s.Round,
		You:         PlayerView{ID: s.Self, Name: s.SelfName, Score: s.SelfScore, State: game.OutcomePlaying},
		Opponent:    PlayerView{ID: s.Peer, Name: s.PeerName, Score: s.PeerScore, State: s.PeerOutcome},
		Keyboard:    game.Keyboard{},
		Winner:      s.Winner,
		Votes:       s.Votes,
		Voted:       s.Voted,
		Resetting:   s.Resetting || s.Latched(),
		InvalidWord: s.InvalidWord,
		Shake:       s.Shake,
	}
	v.OpponentBoard = opponentBoard(s.PeerColors)
	if s.Tracker == nil {
		v.Board = emptyRows(0)
		return v
	}

	t := s.Tracker
	v.You.State = t.Outcome()
	v.Current = t.Current()
	v.Keyboard = t.Keyboard()
	v.Board = ownBoard(t)
	v.Message = message(s)
	v.EarnedPoint = s.Winner != "" && s.Winner == s.Self
	if t.Outcome() == game.OutcomeLost {
		v.Answer = t.Target()
	}
	return v
}

func ownBoard(t *game.Tracker) [][]Tile {
	guesses, colors := t.Guesses(), t.Colors()
	rows := make([][]Tile, 0, game.MaxAttempts)
	for i, g := range guesses {
		row := make([]Tile, game.WordLength)
		for j := range row {
			if j < len(g) {
				row[j].Letter = string(g[j] - 'a' + 'A')
			}
			if j < len(colors[i]) {
				row[j].Mark = colors[i][j]
			}
		}
		rows = append(rows, row)
	}
	if len(rows) < game.MaxAttempts && t.Outcome() == game.OutcomePlaying {
		row := make([]Tile, game.WordLength)
		for j, r := range t.Current() {
			row[j].Letter = string(r)
		}
		rows = append(rows, row)
	}
	return append(rows, emptyRows(len(rows))...)
}

func opponentBoard(colors [][]game.Mark) [][]Tile {
	rows := make([][]Tile, 0, game.MaxAttempts)
	for _, c := range colors {
		row := make([]Tile, game.WordLength)
		for j := range row {
			if j < len(c) {
				row[j].Mark = c[j]
			}
		}
		rows = append(rows, row)
	}
	return append(rows, emptyRows(len(rows))...)
}

func emptyRows(have int) [][]Tile {
	var rows [][]Tile
	for i := have; i < game.MaxAttempts; i++ {
		rows = append(rows, make([]Tile, game.WordLength))
	}
	return rows
}

// message is the round result line shown once the local player is finished.
func message(s State) string {
	t := s.Tracker
	switch t.Outcome() {
	case game.OutcomeWon:
		switch {
		case s.Winner == s.Self:
			return "You Won!"
		case s.Winner != "" && s.Winner != room.Draw:
			return s.PeerName + " was faster!"
		}
		return "You Guessed Correctly!"
	case game.OutcomeLost:
		switch {
		case s.Winner == room.Draw:
			return "Draw - Both Failed!"
		case s.Winner != "" && s.Winner != s.Self:
			return s.PeerName + " Won!"
		}
		return "Game Over!"
	}
	return ""
}
