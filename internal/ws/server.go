package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mathquest/backend/internal/config"
	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/mastery"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/progress"
	"github.com/mathquest/backend/internal/tracker"
)

const maxEventBytes = 64 << 10

type Server struct {
	tracker        *tracker.Tracker
	broadcaster    *Broadcaster
	limiter        *RateLimiter
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	started        time.Time
	procStats      *processStats
}

func NewServer(cfg config.ServerConfig, tr *tracker.Tracker, broadcaster *Broadcaster, limiter *RateLimiter) *Server {
	s := &Server{
		tracker:        tr,
		broadcaster:    broadcaster,
		limiter:        limiter,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.AuthToken,
		started:        time.Now(),
		procStats:      newProcessStats(),
	}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("POST /api/players", s.handleCreatePlayer)
	mux.HandleFunc("GET /api/players/{id}", s.handlePlayer)
	mux.HandleFunc("POST /api/players/{id}/events", s.handleEvent)
	mux.HandleFunc("GET /api/players/{id}/achievements", s.handleAchievements)
	mux.HandleFunc("GET /api/worlds", s.handleWorlds)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	player := r.URL.Query().Get("player")
	if player != "" && !profile.ValidID(player) {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn, player)
	if err != nil {
		log.Printf("WebSocket client rejected: %s: %v", r.RemoteAddr, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

// PlayerView is the response body for a single player.
type PlayerView struct {
	Profile        *profile.Profile `json:"profile"`
	Progress       progress.Level   `json:"progress"`
	ProgressPct    float64          `json:"progressPct"`
	NextWorld      *mastery.World   `json:"nextWorld,omitempty"`
	ShopBiasActive bool             `json:"shopBiasActive"`
}

func (s *Server) playerView(p *profile.Profile) PlayerView {
	lvl := p.Progress()
	v := PlayerView{
		Profile:        p,
		Progress:       lvl,
		ProgressPct:    lvl.Pct(),
		ShopBiasActive: p.ShopBiasActive(time.Now()),
	}
	if w, ok := s.tracker.Worlds().NextUnmastered(p); ok {
		v.NextWorld = &w
	}
	return v
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow(ipKey(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	p, err := s.tracker.Create()
	if err != nil {
		log.Printf("Failed to create player: %v", err)
		http.Error(w, "could not create player", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, s.playerView(p))
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := s.tracker.Profile(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.playerView(p))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")
	if !s.limiter.Allow(playerKey(id)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	ev, err := event.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.tracker.Submit(r.Context(), id, ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := s.tracker.Profile(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Badges().Progress(p))
}

func (s *Server) handleWorlds(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Worlds().Worlds())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode error: %v", err)
	}
}

// writeError maps tracker and store errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		http.Error(w, "player not found", http.StatusNotFound)
	case errors.Is(err, profile.ErrInvalidID):
		http.Error(w, "invalid player id", http.StatusBadRequest)
	case errors.Is(err, event.ErrInvalidEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tracker.ErrStopped):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-MathQuest-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := parsed.Hostname()
	return parsed.Host == r.Host || host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// NewHTTPServer returns an http.Server for mux on host:port.
func NewHTTPServer(host string, port int, mux *http.ServeMux) *http.Server {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
