// internal/lobby/lobby.go
//
// Room bootstrap: creating a room and taking the second seat.
// Responsibilities:
//   - Allocate short url-safe room ids and random player ids.
//   - Normalize display names (trimmed, max MaxNameLen runes, Guest#### if empty).
//   - Optional room passcode, stored only as a bcrypt hash.
//   - Seat at most two players; the second seat is taken with a conditional
//     write so two concurrent joins cannot both succeed.
//
// Everything after the second seat (ready flags, rounds, scores) belongs to
// the round coordinators.

package lobby

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	mrand "math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
)

var (
	ErrRoomFull    = errors.New("room is full")
	ErrBadPasscode = errors.New("wrong passcode")
)

const (
	// MaxNameLen caps display names, in runes.
	MaxNameLen = 15
	roomIDLen  = 8
	playerLen  = 12
	maxTries   = 3
)

// Seat is one player's place in a room.
type Seat struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// Lobby creates and fills rooms in a room.Store.
type Lobby struct {
	store room.Store
	now   func() time.Time
	cost  int // bcrypt cost
}

// New returns a Lobby over st.
func New(st room.Store) *Lobby {
	return &Lobby{store: st, now: time.Now, cost: bcrypt.DefaultCost}
}

// Create opens a room with the caller as its first player.
func (l *Lobby) Create(ctx context.Context, name, passcode string) (Seat, error) {
	name = NormalizeName(name)
	pid := genID(playerLen)

	ch := room.Changes{
		room.FieldPlayers:        room.Set(pid),
		room.FieldStatus:         room.Set(room.StatusWaiting),
		room.FieldOpponentJoined: room.SetBool(false),
		room.FieldCreatedAt:      room.SetInt(l.now().UnixMilli()),
		room.FieldCreatorID:      room.Set(pid),
		room.FieldCreatorName:    room.Set(name),
		room.FieldCreatorReady:   room.SetBool(true),
		room.NameField(pid):      room.Set(name),
	}
	if passcode != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(passcode), l.cost)
		if err != nil {
			return Seat{}, fmt.Errorf("hash passcode: %w", err)
		}
		ch[room.FieldPasscodeHash] = room.Set(string(h))
	}

	for i := 0; i < maxTries; i++ {
		id := genID(roomIDLen)
		err := l.store.Create(ctx, id, ch)
		if errors.Is(err, room.ErrExists) {
			continue
		}
		if err != nil {
			return Seat{}, fmt.Errorf("create room: %w", err)
		}
		log.Info().Str("room", id).Str("player", pid).Msg("room created")
		return Seat{RoomID: id, PlayerID: pid, Name: name}, nil
	}
	return Seat{}, fmt.Errorf("create room: %w", room.ErrExists)
}

// Join takes the second seat of roomID.
func (l *Lobby) Join(ctx context.Context, roomID, name, passcode string) (Seat, error) {
	name = NormalizeName(name)
	pid := genID(playerLen)

	for i := 0; i < maxTries; i++ {
		d, err := l.store.Get(ctx, roomID)
		if err != nil {
			return Seat{}, fmt.Errorf("join %s: %w", roomID, err)
		}
		if h := d.Str(room.FieldPasscodeHash); h != "" && !checkPasscode(h, passcode) {
			return Seat{}, ErrBadPasscode
		}
		players := d.List(room.FieldPlayers)
		if len(players) >= 2 {
			return Seat{}, ErrRoomFull
		}

		applied, err := l.store.UpdateIf(ctx, roomID,
			[]room.Cond{room.NotEquals(room.FieldOpponentJoined, "true")},
			room.Changes{
				room.FieldPlayers:        room.Append(pid),
				room.FieldOpponentJoined: room.SetBool(true),
				room.FieldOpponentID:     room.Set(pid),
				room.FieldStatus:         room.Set(room.StatusReady),
				room.NameField(pid):      room.Set(name),
			})
		if err != nil {
			return Seat{}, fmt.Errorf("join %s: %w", roomID, err)
		}
		if applied {
			log.Info().Str("room", roomID).Str("player", pid).Msg("opponent joined")
			return Seat{RoomID: roomID, PlayerID: pid, Name: name}, nil
		}
	}
	return Seat{}, ErrRoomFull
}

// Member reports whether playerID holds a seat in roomID.
func (l *Lobby) Member(ctx context.Context, roomID, playerID string) (bool, error) {
	d, err := l.store.Get(ctx, roomID)
	if err != nil {
		return false, err
	}
	for _, p := range d.List(room.FieldPlayers) {
		if p == playerID {
			return true, nil
		}
	}
	return false, nil
}

// NormalizeName trims name, caps it at MaxNameLen runes and substitutes a
// random guest name when nothing is left.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("Guest%d", mrand.Intn(10000))
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLen]))
	}
	return name
}

// checkPasscode is a bcrypt verifier.
func checkPasscode(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// genID creates an n-char URL-safe, crypto-random identifier (no padding).
func genID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}
