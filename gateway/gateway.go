// Package gateway is the HTTP surface: REST retrieval of stored spots, a
// live websocket stream per filter, health, and Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	apperrors "github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/storage"
)

const (
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 10 * time.Second
)

// spotsResponse is the retrieval payload: the spots after the cursor plus
// enough bookkeeping for the client to detect loss and resume.
type spotsResponse struct {
	Filter        string               `json:"filter"`
	Spots         []storage.StoredSpot `json:"spots"`
	LatestSeq     uint64               `json:"latest_seq"`
	OverflowCount uint64               `json:"overflow_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the HTTP API for a storage manager.
type Server struct {
	addr     string
	manager  *storage.Manager
	registry *metric.MetricsRegistry
	logger   *slog.Logger
	hub      *streamHub
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP server. The metrics registry may be nil, in
// which case /metrics is not served.
func NewServer(addr string, manager *storage.Manager, registry *metric.MetricsRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")
	return &Server{
		addr:     addr,
		manager:  manager,
		registry: registry,
		logger:   logger,
		hub:      newStreamHub(logger, registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SpotObserver returns the storage observer that feeds the websocket
// stream. Register it on the manager before ingestion starts.
func (s *Server) SpotObserver() storage.Observer {
	return s.hub.publish
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", s.registry.Handler())
	}
	r.Get("/spots/filters", s.handleListFilters)
	r.Get("/spots/filter/{name}", s.handleGetSpots)
	r.Get("/spots/stream/{name}", s.handleStream)

	return r
}

// Run serves until the context is cancelled, then drains with a short
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return apperrors.WrapFatal(err, "Server", "Run", "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.WrapTransient(err, "Server", "Run", "shutdown")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Names())
}

func (s *Server) handleGetSpots(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a non-negative integer"})
			return
		}
		since = parsed
	}

	spots, latest, overflow, err := s.manager.ListSince(name, since)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownQueue) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "filter '" + name + "' not found"})
			return
		}
		s.logger.Error("spot retrieval failed", "filter", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if spots == nil {
		spots = []storage.StoredSpot{}
	}
	writeJSON(w, http.StatusOK, spotsResponse{
		Filter:        name,
		Spots:         spots,
		LatestSeq:     latest,
		OverflowCount: overflow,
	})
}

// handleStream upgrades to a websocket and pushes every spot stored for the
// filter as a JSON StoredSpot. The subscriber is detached when it
// disconnects or can't keep up with writes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, _, _, err := s.manager.List(name); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "filter '" + name + "' not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "filter", name, "error", err)
		return
	}

	sub := s.hub.subscribe(name)
	defer s.hub.unsubscribe(sub)
	defer conn.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// what detects the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case stored := <-sub.ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(stored); err != nil {
				s.logger.Debug("subscriber write failed, detaching",
					"filter", name, "subscriber", sub.id, "error", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
