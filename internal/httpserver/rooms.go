// internal/httpserver/rooms.go
//
// Room bootstrap and round history endpoints.
//   - POST /rooms               → create a room, take the first seat
//   - POST /rooms/{id}/join     → take the second seat
//   - GET  /rooms/{id}/qr       → invite link as a PNG QR code
//   - GET  /rooms/{id}/history  → recent rounds of a room
//   - GET  /leaderboard         → wins per player name across rooms
//
// Create and join answer with a ticket the client presents on /ws.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/robalobadob/wordle/apps/duel-server/internal/lobby"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
)

// seatReq is the body of create and join. Both fields are optional.
type seatReq struct {
	Name     string `json:"name"`
	Passcode string `json:"passcode"`
}

// seatRes is returned by create and join.
type seatRes struct {
	lobby.Seat
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expiresAt"`
	InviteURL string    `json:"inviteUrl"`
}

func decodeSeatReq(r *http.Request) (seatReq, error) {
	var p seatReq
	if r.Body == nil {
		return p, nil
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, err
	}
	return p, nil
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	p, err := decodeSeatReq(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	seat, err := s.deps.Lobby.Create(r.Context(), p.Name, p.Passcode)
	if err != nil {
		log.Error().Err(err).Msg("create room")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.issueSeat(w, r, http.StatusCreated, seat)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	p, err := decodeSeatReq(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	seat, err := s.deps.Lobby.Join(r.Context(), chi.URLParam(r, "id"), p.Name, p.Passcode)
	switch {
	case errors.Is(err, room.ErrNotFound):
		writeError(w, http.StatusNotFound, "room_not_found")
		return
	case errors.Is(err, lobby.ErrRoomFull):
		writeError(w, http.StatusConflict, "room_full")
		return
	case errors.Is(err, lobby.ErrBadPasscode):
		writeError(w, http.StatusForbidden, "bad_passcode")
		return
	case err != nil:
		log.Error().Err(err).Msg("join room")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.issueSeat(w, r, http.StatusOK, seat)
}

// issueSeat signs a ticket for seat, sets the cookie and writes seatRes.
func (s *Server) issueSeat(w http.ResponseWriter, r *http.Request, status int, seat lobby.Seat) {
	tok, exp, err := s.deps.Tickets.Sign(seat)
	if err != nil {
		log.Error().Err(err).Msg("sign ticket")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	setTicketCookie(w, r, tok, exp)
	writeJSON(w, status, seatRes{
		Seat:      seat,
		Ticket:    tok,
		ExpiresAt: exp,
		InviteURL: s.inviteURL(seat.RoomID),
	})
}

func (s *Server) inviteURL(roomID string) string {
	return s.deps.InviteBase + "/join/" + roomID
}

// handleRoomQR renders the invite link of an existing room.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.Get(r.Context(), id); err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	png, err := qrcode.Encode(s.inviteURL(id), qrcode.Medium, 320)
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("qr encode")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (s *Server) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
		return
	}
	id := chi.URLParam(r, "id")
	rounds, err := s.deps.History.Recent(r.Context(), id, queryLimit(r))
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("room history")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roomId": id, "rounds": rounds})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
		return
	}
	rows, err := s.deps.History.Leaderboard(r.Context(), queryLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"top": rows})
}

// queryLimit reads ?limit=; the history store clamps it.
func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}
