// internal/httpserver/ws.go
//
// Player websocket. One connection drives one round coordinator.
//
// Client → server (text frames, JSON):
//   {"type":"key","key":"A"}        one key: a letter, "Backspace" or "Enter"
//   {"type":"guess","word":"crane"} a whole word
//   {"type":"vote"}                 play again
//
// Server → client:
//   {"type":"view","view":{...}}    latest view; intermediate views may be skipped
//
// A player holds at most one live session per seat: a second connection
// with the same ticket closes the first.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/lobby"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
	"github.com/robalobadob/wordle/apps/duel-server/internal/round"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 4096
)

type inbound struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Word string `json:"word,omitempty"`
}

type outbound struct {
	Type string     `json:"type"`
	View round.View `json:"view"`
}

// ---------------------------------- sessions ---------------------------------

type session struct {
	cancel context.CancelFunc
}

// sessions tracks live connections per seat.
type sessions struct {
	mu sync.Mutex
	m  map[string]*session
}

func newSessions() *sessions { return &sessions{m: make(map[string]*session)} }

// open registers a session for key, closing any previous one.
func (ss *sessions) open(key string, cancel context.CancelFunc) *session {
	s := &session{cancel: cancel}
	ss.mu.Lock()
	prev := ss.m[key]
	ss.m[key] = s
	ss.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return s
}

func (ss *sessions) close(key string, s *session) {
	ss.mu.Lock()
	if ss.m[key] == s {
		delete(ss.m, key)
	}
	ss.mu.Unlock()
}

func (ss *sessions) count() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.m)
}

func (ss *sessions) closeAll() {
	ss.mu.Lock()
	all := make([]*session, 0, len(ss.m))
	for _, s := range ss.m {
		all = append(all, s)
	}
	ss.mu.Unlock()
	for _, s := range all {
		s.cancel()
	}
}

// ---------------------------------- handler ----------------------------------

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	seat, err := s.deps.Tickets.Parse(ticketFrom(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_ticket")
		return
	}
	ok, err := s.deps.Lobby.Member(r.Context(), seat.RoomID, seat.PlayerID)
	switch {
	case errors.Is(err, room.ErrNotFound):
		writeError(w, http.StatusNotFound, "room_not_found")
		return
	case err != nil:
		log.Error().Err(err).Str("room", seat.RoomID).Msg("ws member check")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	case !ok:
		writeError(w, http.StatusForbidden, "not_a_member")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	s.serveSeat(r.Context(), conn, seat)
}

// serveSeat runs a coordinator for seat until the connection or the
// session ends.
func (s *Server) serveSeat(parent context.Context, conn *websocket.Conn, seat lobby.Seat) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	key := seat.RoomID + "/" + seat.PlayerID
	sess := s.sessions.open(key, cancel)
	defer s.sessions.close(key, sess)

	logger := log.With().Str("room", seat.RoomID).Str("player", seat.PlayerID).Logger()
	logger.Info().Msg("player connected")
	defer logger.Info().Msg("player disconnected")

	c := round.New(round.Config{
		RoomID:   seat.RoomID,
		PlayerID: seat.PlayerID,
		Name:     seat.Name,
		Store:    s.deps.Store,
		History:  s.deps.History,
		Rules:    s.deps.Rules,
		Timing:   s.deps.Timing,
	})
	go func() {
		if err := c.Run(ctx); err != nil {
			logger.Warn().Err(err).Msg("coordinator exited")
		}
		cancel()
	}()

	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		writePump(ctx, conn, c, logger)
	}()

	readPump(conn, c, logger)
	cancel()
	<-wrote
	<-c.Done()
}

// readPump feeds player input to c until the connection fails.
func readPump(conn *websocket.Conn, c *round.Coordinator, logger zerolog.Logger) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("ws read")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			logger.Debug().Err(err).Msg("ws bad message")
			continue
		}
		switch in.Type {
		case "key":
			c.Press(in.Key)
		case "guess":
			c.Submit(in.Word)
		case "vote":
			c.Vote()
		default:
			logger.Debug().Str("type", in.Type).Msg("ws unknown message")
		}
	}
}

// writePump is the connection's only writer: views, pings and the final
// close frame.
func writePump(ctx context.Context, conn *websocket.Conn, c *round.Coordinator, logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	send := func(v round.View) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(outbound{Type: "view", View: v}); err != nil {
			logger.Debug().Err(err).Msg("ws write")
			return false
		}
		return true
	}

	if !send(c.View()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case v := <-c.Views():
			if !send(v) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
