package srv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"
)

// Server wires the room manager, lobby, persistence adapter and HTTP
// surface together.
type Server struct {
	cfg         Config
	manager     *RoomManager
	lobby       *Lobby
	persister   *Persister
	forcedWords *ForcedWordLog
}

// NewServer builds a server around a result store. The store may be nil,
// which disables persistence (and with it daily challenges).
func NewServer(cfg Config, store ResultStore) *Server {
	s := &Server{
		cfg:         cfg,
		manager:     NewRoomManager(),
		lobby:       NewLobby(),
		persister:   NewPersister(store),
		forcedWords: NewForcedWordLog(cfg.ForcedWordLog),
	}
	s.manager.srv = s
	s.lobby.srv = s
	return s
}

// Config exposes the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// routes builds the HTTP surface: the WebSocket endpoint plus a few
// read-only helpers.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.HandleWS)
	mux.HandleFunc("GET /healthz", s.HandleHealthz)
	mux.HandleFunc("GET /room/{code}", s.HandleRoomInfo)
	mux.HandleFunc("GET /room/{code}/qr.png", s.HandleRoomQR)
	mux.HandleFunc("GET /results/{id}", s.HandleGameResult)
	return mux
}

// HandleHealthz answers liveness probes.
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK\n"))
}

// HandleRoomInfo returns a JSON summary of a room.
func (s *Server) HandleRoomInfo(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	room := s.manager.GetRoom(code)
	if room == nil {
		http.NotFound(w, r)
		return
	}

	room.mu.Lock()
	payload := map[string]any{
		"roomCode":    room.Code,
		"state":       room.state,
		"playerCount": len(room.players),
		"capacity":    MaxPlayers,
		"gameMode":    room.gameMode,
		"wordMode":    room.wordMode,
		"hardMode":    room.hardMode,
		"visibility":  room.visibility,
	}
	room.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// HandleRoomQR serves a QR code encoding the join link for a room, for
// same-couch joining.
func (s *Server) HandleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	room := s.manager.GetRoom(code)
	if room == nil {
		http.NotFound(w, r)
		return
	}

	joinURL := fmt.Sprintf("%s/?room=%s", s.cfg.PublicURL, room.Code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		slog.Error("encoding room QR", "room", room.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// HandleGameResult returns a persisted game record as JSON.
func (s *Server) HandleGameResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.persister.store == nil {
		http.NotFound(w, r)
		return
	}
	rec, err := s.persister.store.LoadGameResult(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// Run serves until the context is cancelled, then shuts down: pending
// room events finish, timers are cancelled, and the connections of
// players in rooms are closed with a normal-close reason. Connections
// that are only subscribed to the lobby are not closed here.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.manager.StartSweeper()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.lobby.Run()
		return nil
	})

	g.Go(func() error {
		slog.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.manager.Stop()
		s.manager.Shutdown()
		s.lobby.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
