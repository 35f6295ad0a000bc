// Package server exposes the compile middleware over HTTP: the dispatcher
// runs in front of a static file server over the destination roots, next to
// the health, metrics, backend listing and event stream endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/dispatch"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/events"
	"github.com/conneroisu/assetc/internal/logging"
	"github.com/conneroisu/assetc/internal/metrics"
	"github.com/conneroisu/assetc/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of a Server. Hub and Metrics are optional.
type Deps struct {
	Config     *config.Config
	Registry   *backend.Registry
	Dispatcher *dispatch.Dispatcher
	Hub        *events.Hub
	Metrics    *metrics.Recorder
	Logger     logging.Logger
}

// Server is the assetc HTTP server.
type Server struct {
	deps    Deps
	router  *chi.Mux
	logger  logging.Logger
	started time.Time

	mu           sync.Mutex
	httpServer   *http.Server
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the router.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Registry == nil || deps.Dispatcher == nil {
		return nil, errors.NewConfigError("server requires a config, a registry and a dispatcher")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}

	s := &Server{
		deps:    deps,
		logger:  deps.Logger.WithComponent("server"),
		started: time.Now(),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	cfg := s.deps.Config
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	if cfg.Tracing.Enabled {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "assetc")
		})
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/backends", s.handleBackends)
	if s.deps.Metrics != nil && cfg.Metrics.Enabled {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}
	if s.deps.Hub != nil {
		r.Handle("/ws", s.deps.Hub)
	}

	var files http.Handler = http.NotFoundHandler()
	if cfg.Server.Static {
		files = staticFiles{roots: cfg.DestRoots(), mount: cfg.Mount, index: cfg.ResolveIndex}
	}
	r.Handle("/*", s.deps.Dispatcher.Middleware(files))
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.deps.Config.Server.Host, strconv.Itoa(s.deps.Config.Server.Port))
}

// Start listens on the configured address until ctx is done or Shutdown is
// called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfiguration, "cannot listen on "+s.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.Shutdown(sctx)
	})
	defer stop()

	s.logger.Info(ctx, "assetc listening", "addr", ln.Addr().String(), "backends", s.deps.Registry.Len())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the event stream and gracefully stops the HTTP server. It
// is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down server")
		if s.deps.Hub != nil {
			if err := s.deps.Hub.Shutdown(ctx); err != nil {
				s.logger.Warn(ctx, err, "event hub shutdown failed")
			}
		}

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv != nil {
			s.shutdownErr = srv.Shutdown(ctx)
		}
	})
	return s.shutdownErr
}

type healthResponse struct {
	Status   string             `json:"status"`
	Version  string             `json:"version"`
	Uptime   string             `json:"uptime"`
	Backends int                `json:"backends"`
	Enabled  []string           `json:"enabled"`
	Roots    []config.RootPair  `json:"roots"`
	Build    *version.BuildInfo `json:"build_info"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.GetBuildInfo()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Version:  info.Short(),
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Backends: s.deps.Registry.Len(),
		Enabled:  s.deps.Config.Enabled,
		Roots:    s.deps.Config.Roots,
		Build:    info,
	})
}

type backendEntry struct {
	backend.Info
	Enabled bool `json:"enabled"`
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	enabled := make(map[string]bool, len(s.deps.Config.Enabled))
	for _, id := range s.deps.Config.Enabled {
		enabled[id] = true
	}

	infos := s.deps.Registry.Describe()
	out := make([]backendEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, backendEntry{Info: info, Enabled: enabled[info.ID]})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
