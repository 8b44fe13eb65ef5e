// Package server exposes the handoff protocol over HTTP.
//
// Routes:
//
//	POST   /api/handoff                  store a design, return its id, URL and QR code
//	GET    /api/designs/{id}             design payload
//	DELETE /api/designs/{id}             forget a design
//	GET    /api/designs/{id}/texture.png composed design texture
//	GET    /api/designs/{id}/qr.png      handoff QR code
//	GET    /ar-view?designId={id}        AR viewer page
//	GET    /healthz                      liveness
//
// A design that is missing or expired is reported as unavailable: 404 with
// {"state":"unavailable"} on the API and the unavailable page in the viewer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/handoff"
	"github.com/gogpu/ggar/internal/config"
)

// MaxBodyBytes caps the size of a posted design.
const MaxBodyBytes = 1 << 20

// Server serves handoff requests.
type Server struct {
	svc    *handoff.Service
	comp   *compose.Compositor
	router chi.Router
}

// New returns a server for svc. Textures are composed with comp; nil means
// compose.New().
func New(svc *handoff.Service, comp *compose.Compositor) *Server {
	if comp == nil {
		comp = compose.New()
	}
	s := &Server{svc: svc, comp: comp}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get(handoff.ViewPath, s.viewer)
	r.Route("/api", func(r chi.Router) {
		r.Post("/handoff", s.createHandoff)
		r.Route("/designs/{id}", func(r chi.Router) {
			r.Get("/", s.getDesign)
			r.Delete("/", s.deleteDesign)
			r.Get("/texture.png", s.texturePNG)
			r.Get("/qr.png", s.qrPNG)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down within
// cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context, cfg config.Server) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.Server) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	ggar.Logger().Info("server: listening", "addr", ln.Addr().String(), "base_url", s.svc.Base())

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// logRequests logs one line per request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		ggar.Logger().Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
