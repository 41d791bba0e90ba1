package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/config"
	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/gorilla/websocket"
)

// gatewayProbeTimeout bounds a process scan made for /api/health.
const gatewayProbeTimeout = 2 * time.Second

// GatewayProbe reports whether the gateway process is running.
type GatewayProbe func(ctx context.Context) (GatewayStatus, error)

type Server struct {
	store           *session.Store
	broadcaster     *Broadcaster
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	authToken       string
	tailHealth      func() TailHealth
	gatewayProbe    GatewayProbe
}

func NewServer(cfg config.ServerConfig, store *session.Store, broadcaster *Broadcaster, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	s := &Server{
		store:           store,
		broadcaster:     broadcaster,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
		authToken:       cfg.AuthToken,
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

// SetTailHealth configures the source of the "tail" block in /api/health.
// Must be called before SetupRoutes.
func (s *Server) SetTailHealth(fn func() TailHealth) {
	s.tailHealth = fn
}

// SetGatewayProbe configures the process check behind /api/health.
// Must be called before SetupRoutes.
func (s *Server) SetGatewayProbe(probe GatewayProbe) {
	s.gatewayProbe = probe
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/agents", s.handleAgents)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/", s.handleAgentStats)
	mux.HandleFunc("/api/health", s.handleHealth)

	if s.dev && s.frontendDir != "" {
		log.Printf("[ws] serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("[ws] serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

// Handler returns the full route table wrapped in the security headers
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("[ws] rejecting client %s: %v", r.RemoteAddr, err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}
	log.Printf("[ws] client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("[ws] client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// guard applies the checks shared by every JSON endpoint. It writes the
// error response and returns false when the request must not proceed.
func (s *Server) guard(w http.ResponseWriter, r *http.Request) bool {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ws] encode response: %v", err)
	}
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.store.States())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Agents: s.store.States()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleAgentStats(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}

	// Parse: /api/stats/{id}
	raw := strings.TrimPrefix(r.URL.Path, "/api/stats/")
	if raw == "" || strings.Contains(raw, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	stats, ok := s.store.StatsByID(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Clients:   s.broadcaster.ClientCount(),
	}
	if s.tailHealth != nil {
		th := s.tailHealth()
		resp.Tail = &th
		if th.Status == StatusFailed {
			resp.Status = "degraded"
		}
	}
	if s.gatewayProbe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), gatewayProbeTimeout)
		gw, err := s.gatewayProbe(ctx)
		cancel()
		if err != nil {
			gw.Error = err.Error()
		}
		resp.Gateway = &gw
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-AgentOffice-Token") == s.authToken {
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
	host := parsed.Host
	if host == r.Host {
		return true
	}

	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
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

// ListenAndServe serves handler on host:port until ctx is cancelled, then
// shuts down gracefully.
func ListenAndServe(ctx context.Context, host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[ws] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
