// internal/httpserver/server.go
//
// HTTP server wiring for the duel server.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Room bootstrap: POST /rooms, POST /rooms/{id}/join, GET /rooms/{id}/qr.
//   - Round history: GET /rooms/{id}/history, GET /leaderboard.
//   - Player websocket: GET /ws?ticket=… (one round coordinator per connection).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so ticket cookies work).
//   - The websocket route sits outside the request timeout; its lifetime is
//     the connection's.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/history"
	"github.com/robalobadob/wordle/apps/duel-server/internal/lobby"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
	"github.com/robalobadob/wordle/apps/duel-server/internal/round"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

// Deps are the server's collaborators.
type Deps struct {
	Store      room.Store
	Lobby      *lobby.Lobby
	History    history.Store // nil when history is disabled
	Tickets    *Tickets
	Rules      round.Rules
	Timing     round.Timing
	Origin     string // allowed CORS / websocket origin
	InviteBase string // join links point at InviteBase + "/join/<roomId>"
}

// Server bundles router and dependencies.
type Server struct {
	r        *chi.Mux
	deps     Deps
	upgrader websocket.Upgrader
	sessions *sessions
}

// New constructs a Server, installs middleware, and registers routes.
func New(deps Deps) *Server {
	s := &Server{r: chi.NewRouter(), deps: deps, sessions: newSessions()}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)      // add X-Request-ID
	s.r.Use(chimw.RealIP)         // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)      // recover from panics
	s.r.Use(corsFor(deps.Origin)) // credentials-friendly CORS

	// --- long-lived ---
	s.r.Get("/ws", s.handleWS)
	s.r.Handle("/metrics", promhttp.Handler())

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"duel-server","endpoints":["/health","POST /rooms","POST /rooms/{id}/join","GET /ws"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.sessions.count()})
		})
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			a, g := words.Stats()
			_ = json.NewEncoder(w).Encode(map[string]int{"answers": a, "allowed": g})
		})

		// --- rooms ---
		r.Post("/rooms", s.handleCreateRoom)
		r.Post("/rooms/{id}/join", s.handleJoinRoom)
		r.Get("/rooms/{id}/qr", s.handleRoomQR)
		r.Get("/rooms/{id}/history", s.handleRoomHistory)
		r.Get("/leaderboard", s.handleLeaderboard)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not_found")
		})
	})

	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.r }

// Start serves HTTP on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	s.sessions.closeAll()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFor enables credentialed CORS for a single origin.
func corsFor(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkOrigin admits same-origin tools (no Origin header) and the client app.
func (s *Server) checkOrigin(r *http.Request) bool {
	o := r.Header.Get("Origin")
	return o == "" || o == s.deps.Origin
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
