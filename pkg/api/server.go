// Package api is the collaboration server's HTTP surface: the room
// directory, the autocomplete endpoint, and the per-room websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaryash/code-editor/pkg/autocomplete"
	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/hub"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/storage"
)

// RoomStore is the persistence surface the server needs.
type RoomStore interface {
	CreateRoom(language string) (*storage.Room, error)
	GetRoom(roomID string) (*storage.Room, error)
	UpdateRoomCode(roomID, code string) error
}

// ServerConfig configures the collaboration server.
type ServerConfig struct {
	// Bind is the listen address (default :8000).
	Bind string

	Store  RoomStore
	Engine *autocomplete.Engine
	Logger *logging.Logger

	// AllowedOrigins for CORS and websocket origin checks. Empty allows
	// any origin.
	AllowedOrigins []string
}

// Server serves the room directory, autocomplete, and session channels.
type Server struct {
	store   RoomStore
	engine  *autocomplete.Engine
	hub     *hub.Hub
	logger  *logging.Logger
	origins []string

	httpServer *http.Server
}

// NewServer wires the server and its router.
func NewServer(cfg ServerConfig) *Server {
	bind := cfg.Bind
	if bind == "" {
		bind = ":8000"
	}
	engine := cfg.Engine
	if engine == nil {
		engine = autocomplete.NewEngine()
	}

	s := &Server{
		store:   cfg.Store,
		engine:  engine,
		hub:     hub.New(cfg.Store, cfg.Logger),
		logger:  cfg.Logger,
		origins: cfg.AllowedOrigins,
	}

	s.httpServer = &http.Server{
		Addr:              bind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for httptest servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", handleMetrics)

	r.Post("/rooms", s.handleCreateRoom)
	r.Get("/rooms/{roomID}", s.handleGetRoom)
	r.Post("/autocomplete", s.handleAutocomplete)
	r.Get("/ws/{roomID}", s.handleSession)

	return r
}

// Start listens and serves until the context is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info(logging.CategoryRoom, "server_start", "collaboration server listening", map[string]any{"bind": s.httpServer.Addr})

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return cperrors.Wrap(err, cperrors.ErrCodeInternal, "http server failed")
		}
		return nil
	}
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.origins) == 0 {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Pair Programming API is running"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
