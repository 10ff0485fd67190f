package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"qlcal/internal/config"
	appLog "qlcal/internal/log"
	"qlcal/internal/schedule"
	"qlcal/internal/store"
)

const maxAgendaDays = 366

// Server exposes a Schedule over a JSON API. Handlers are serialized with a
// RWMutex: queries share the lock, mutations hold it exclusively and persist
// the schedule before releasing it.
type Server struct {
	cfg   *config.Config
	loc   *time.Location
	store store.Store
	mux   *http.ServeMux
	now   func() time.Time

	mu    sync.RWMutex
	sched *schedule.Schedule
}

// NewServer constructs a new Server. A nil store keeps the schedule in
// memory only.
func NewServer(cfg *config.Config, sched *schedule.Schedule, st store.Store) *Server {
	if sched == nil {
		sched = schedule.New()
	}
	s := &Server{
		cfg:   cfg,
		loc:   cfg.Location(),
		store: st,
		mux:   http.NewServeMux(),
		now:   time.Now,
		sched: sched,
	}
	s.registerRoutes()
	return s
}

// View runs fn with shared access to the schedule.
func (s *Server) View(fn func(*schedule.Schedule)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.sched)
}

// Update runs fn with exclusive access on a copy of the schedule and swaps
// the copy in only once it is persisted. A failing fn or save leaves the
// schedule as it was.
func (s *Server) Update(ctx context.Context, fn func(*schedule.Schedule) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.sched.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.sched = next
	return nil
}

func (s *Server) persist(ctx context.Context, sched *schedule.Schedule) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, sched.Records()); err != nil {
		appLog.Error("persist schedule failed", err, "events", sched.Len())
		return err
	}
	return nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. A blank
// username or password disables it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="qlcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PATCH /api/events/{id}", s.handleEditEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleCancelEvent)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	s.mux.HandleFunc("GET /api/eval", s.handleEval)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
