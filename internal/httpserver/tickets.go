package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/wordle/apps/duel-server/internal/lobby"
)

// ticketCookie carries the ticket for browsers that cannot set headers on
// a websocket upgrade.
const ticketCookie = "duel_ticket"

var errBadTicket = errors.New("invalid ticket")

// Tickets signs and verifies player tickets: HS256 JWTs naming one seat.
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTickets returns a signer whose tickets live for days.
func NewTickets(secret string, days int) *Tickets {
	return &Tickets{
		secret: []byte(secret),
		ttl:    time.Duration(days) * 24 * time.Hour,
		now:    time.Now,
	}
}

// Sign issues a ticket for seat.
func (t *Tickets) Sign(seat lobby.Seat) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room": seat.RoomID,
		"id":   seat.PlayerID,
		"name": seat.Name,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	})
	ss, err := token.SignedString(t.secret)
	return ss, exp, err
}

// Parse verifies tok and returns the seat it names.
func (t *Tickets) Parse(tok string) (lobby.Seat, error) {
	if tok == "" {
		return lobby.Seat{}, errBadTicket
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return lobby.Seat{}, errBadTicket
	}
	roomID, _ := claims["room"].(string)
	id, _ := claims["id"].(string)
	name, _ := claims["name"].(string)
	if roomID == "" || id == "" {
		return lobby.Seat{}, errBadTicket
	}
	return lobby.Seat{RoomID: roomID, PlayerID: id, Name: name}, nil
}

// ticketFrom finds the ticket on r: ?ticket=, then Authorization: Bearer,
// then the ticket cookie.
func ticketFrom(r *http.Request) string {
	if q := r.URL.Query().Get("ticket"); q != "" {
		return q
	}
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(ticketCookie); err == nil {
		return c.Value
	}
	return ""
}

func setTicketCookie(w http.ResponseWriter, r *http.Request, token string, exp time.Time) {
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ticketCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}
