package room

// Room-level fields.
const (
	FieldPlayers        = "players"
	FieldStatus         = "status"
	FieldGameStarted    = "gameStarted"
	FieldOpponentJoined = "opponentJoined"
	FieldOpponentID     = "opponentId"
	FieldCreatorID      = "creatorId"
	FieldCreatorName    = "creatorName"
	FieldCreatorReady   = "creatorReady"
	FieldCreatedAt      = "createdAt"
	FieldPasscodeHash   = "passcodeHash"

	// Round handshake fields.
	FieldGameRound       = "gameRound"
	FieldPlayAgainVotes  = "playAgainVotes"
	FieldResetInProgress = "resetInProgress"
	FieldRoundWinner     = "roundWinner"
	FieldRoundResult     = "roundResult"
)

// Room status values.
const (
	StatusWaiting = "waiting"
	StatusReady   = "ready"
	StatusPlaying = "playing"
)

// Draw is stored in FieldRoundWinner when neither player solved the word.
const Draw = "Draw"

// Values stored in FieldRoundResult.
const (
	ResultWin  = "win"
	ResultDraw = "draw"
)

// Per-player field names are the player id followed by a suffix.
func NameField(p string) string       { return p + "Name" }
func ReadyField(p string) string      { return p + "Ready" }
func GuessesField(p string) string    { return p + "Guesses" }
func ColorsField(p string) string     { return p + "Colors" }
func GameStateField(p string) string  { return p + "GameState" }
func FinishTimeField(p string) string { return p + "FinishTime" }
func ScoreField(p string) string      { return p + "Score" }

// RoundField records which round the player's per-round fields belong to.
func RoundField(p string) string { return p + "Round" }

// VotedField records the round the player last voted in.
func VotedField(p string) string { return p + "Voted" }

// PerRoundFields lists the fields cleared when a new round starts.
func PerRoundFields(p string) []string {
	return []string{
		GuessesField(p),
		ColorsField(p),
		GameStateField(p),
		FinishTimeField(p),
		RoundField(p),
	}
}

// Peer returns the other player listed in the room, or "".
func (d Doc) Peer(self string) string {
	for _, p := range d.List(FieldPlayers) {
		if p != self {
			return p
		}
	}
	return ""
}
