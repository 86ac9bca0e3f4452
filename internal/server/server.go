// Package server is the thin HTTP transport over the file service.
// It wires routes and middleware, translates requests into service
// calls, and serializes results; no core logic lives here.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"fileserver/internal/service"
)

// BuildInfo identifies the running binary in health responses.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries the transport settings and the wired service.
type Config struct {
	Addr        string
	Build       BuildInfo
	Service     *service.Service
	Log         *logrus.Logger
	MaxFileSize int64

	// RateLimit requests per RateWindow per client IP; zero disables
	// the limiter.
	RateLimit  int
	RateWindow time.Duration
}

type Server struct {
	cfg        Config
	httpServer *http.Server
	handler    http.Handler
}

func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	// Only the password-checked endpoints are throttled; health, api,
	// and file reads stay open.
	gated := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.RateLimit > 0 {
		t := newIPThrottle(cfg.RateLimit, cfg.RateWindow)
		gated = func(h http.HandlerFunc) http.Handler { return t.guard(h) }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api", s.handleAPIInfo)
	mux.Handle("/upload", gated(s.handleUpload))
	mux.Handle("/list", gated(s.handleList))
	mux.Handle("/delete/", gated(s.handleDelete))
	mux.HandleFunc("/files/", s.handleRead)

	// Wrap middleware: requestID -> logging -> headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(cfg.Log, handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the composed handler for httptest servers.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
