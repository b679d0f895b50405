// Package server implements the fractalglass preview server.
//
// The server hosts one page with an upload button, the effect preview and
// the control panel. Each browser tab owns a [session.Session]; control
// events PATCH the session's settings, the session's controller debounces
// them and renders, and the page learns about every render through a
// Server-Sent Events stream.
//
// Routes:
//
//	GET    /                                   preview page
//	GET    /api/defaults                       default settings and field table
//	GET    /api/version                        build information
//	POST   /api/sessions                       create (multipart "image" optional)
//	GET    /api/sessions/{id}                  session info
//	DELETE /api/sessions/{id}                  close
//	PUT    /api/sessions/{id}/image            replace the image
//	PATCH  /api/sessions/{id}/settings         {"key": value, ...}
//	GET    /api/sessions/{id}/preview          live HTML fragment
//	GET    /api/sessions/{id}/effect.{format}  export of the latest render
//	GET    /api/sessions/{id}/events           SSE "rendered" events
//	POST   /api/sessions/{id}/preset/{name}    apply a preset
//	GET    /api/presets                        list presets
//	POST   /api/presets                        save a preset
//	GET    /api/presets/{name}                 show a preset
//	DELETE /api/presets/{name}                 delete a preset
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/preset"
	"github.com/matzehuels/fractalglass/pkg/session"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/sink"
)

// shutdownTimeout bounds graceful shutdown after the context is canceled.
const shutdownTimeout = 5 * time.Second

// Server is the preview server. Create it with New.
type Server struct {
	cfg      config.Config
	logger   *log.Logger
	sessions session.Store
	presets  preset.Store
	runner   *pipeline.Runner
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionStore sets the live session store. Default is a MemoryStore.
func WithSessionStore(st session.Store) Option {
	return func(s *Server) {
		if st != nil {
			s.sessions = st
		}
	}
}

// WithPresets sets the preset store. Without one the preset routes
// answer 501.
func WithPresets(st preset.Store) Option {
	return func(s *Server) { s.presets = st }
}

// WithRunner sets the pipeline runner used for exports. Default renders
// without a cache.
func WithRunner(r *pipeline.Runner) Option {
	return func(s *Server) {
		if r != nil {
			s.runner = r
		}
	}
}

// New creates a server for cfg.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/defaults", s.handleDefaults)
		r.Get("/version", s.handleVersion)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/image", s.handleSetImage)
			r.Patch("/settings", s.handlePatchSettings)
			r.Get("/preview", s.handlePreview)
			r.Get("/effect.{format}", s.handleExport)
			r.Get("/events", s.handleEvents)
			r.Post("/preset/{name}", s.handleApplyPreset)
		})

		r.Get("/presets", s.handleListPresets)
		r.Post("/presets", s.handleSavePreset)
		r.Get("/presets/{name}", s.handleGetPreset)
		r.Delete("/presets/{name}", s.handleDeletePreset)
	})
	return r
}

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully and closes all sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session.StartCleanup(ctx, s.sessions, session.DefaultCleanupInterval, func(n int) {
		s.logger.Debug("reaped sessions", "count", n)
	})

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("serving", "addr", "http://"+ln.Addr().String())

	select {
	case err := <-errc:
		s.sessions.Close()
		return err
	case <-ctx.Done():
	}

	// Canceling the base context ends open event streams so Shutdown can
	// finish.
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.Close()
	if serveErr := <-errc; serveErr != nil && !stderrors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	s.logger.Info("server stopped")
	return err
}

// Close closes every live session.
func (s *Server) Close() error {
	return s.sessions.Close()
}

func (s *Server) newSession() *session.Session {
	var engineOpts []effect.Option
	if t := s.cfg.Render.Taper; t > 0 {
		engineOpts = append(engineOpts, effect.WithTaper(t))
	}
	engineOpts = append(engineOpts, effect.WithFilterID(s.cfg.Render.FilterID))
	engine := effect.New(engineOpts...)

	return session.NewWithSurface(s.cfg.Server.SessionTTL.Duration,
		sink.NewHTML(sink.WithHTMLFilterID(engine.FilterID())),
		controller.WithDelay(s.cfg.Controller.Debounce.Duration),
		controller.WithSettings(s.defaults()),
		controller.WithEngine(engine),
		controller.WithLogger(s.logger),
	)
}

func (s *Server) defaults() settings.Settings {
	if s.cfg.Defaults == (settings.Settings{}) {
		return settings.Defaults()
	}
	return s.cfg.Defaults.Clamp()
}

// exportOptions returns pipeline options for one session export.
func (s *Server) exportOptions(format string) pipeline.Options {
	rc := s.cfg.Render
	return pipeline.Options{
		Width:      rc.Width,
		Height:     rc.Height,
		Taper:      rc.Taper,
		FilterID:   rc.FilterID,
		Seed:       rc.Seed,
		Background: rc.Background,
		Formats:    []string{format},
		Logger:     s.logger,
	}
}
