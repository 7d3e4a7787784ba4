package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/atoms/pkg/atom"
)

// DefaultEventBuffer is the number of events queued for WebSocket clients
// before new events are dropped.
const DefaultEventBuffer = 1024

// Server is an http.Handler exposing a store's state.
type Server struct {
	store       *atom.Store
	router      chi.Router
	hub         *hub
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	bufferSize  int
	stopObserve func()
	closeOnce   sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the registry served on /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithEventBuffer sets the event queue size.
func WithEventBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// New creates an inspector for store and starts streaming its events.
func New(store *atom.Store, opts ...Option) *Server {
	s := &Server{
		store:      store,
		logger:     slog.Default().With("component", "devtools"),
		gatherer:   prometheus.DefaultGatherer,
		bufferSize: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = newHub(s.bufferSize, s.logger)
	s.stopObserve = store.Observe(s.hub.publish)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/atoms", s.handleAtoms)
	r.Get("/atoms/{id}", s.handleAtom)
	r.Get("/graph.dot", s.handleDOT)
	r.Get("/graph.svg", s.handleSVG)
	r.Get("/events", s.hub.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ClientCount returns the number of connected event stream clients.
func (s *Server) ClientCount() int {
	return s.hub.clientCount()
}

// Close stops observing the store and disconnects event stream clients.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.stopObserve()
		s.hub.close()
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, if not nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("devtools listening", "addr", ln.Addr().String(), "store", s.store.ID())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Summary is the response of GET /.
type Summary struct {
	Store   string `json:"store"`
	Label   string `json:"label"`
	Atoms   int    `json:"atoms"`
	Mounted int    `json:"mounted"`
	Clients int    `json:"clients"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Summary{
		Store:   s.store.ID(),
		Label:   s.store.Label(),
		Atoms:   s.store.Len(),
		Mounted: s.store.MountedLen(),
		Clients: s.hub.clientCount(),
	})
}

func (s *Server) handleAtoms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleAtom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid atom id"})
		return
	}
	for _, n := range s.store.Snapshot() {
		if n.ID == id {
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "atom not found"})
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(DOT(s.store.Snapshot())))
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	svg, err := RenderSVG(r.Context(), DOT(s.store.Snapshot()))
	if err != nil {
		s.logger.Error("devtools: render graph", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
