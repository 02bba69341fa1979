// Package httpserver exposes deck sessions over a JSON API.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// Options configures the API server.
type Options struct {
	Addr     string
	DrawSize int                 // default size for new decks and redraws
	Verdicts model.VerdictReader // nil disables /api/verdicts
	Logger   *slog.Logger
}

// Server provides the deck HTTP API.
type Server struct {
	addr      string
	drawSize  int
	sessions  *Registry
	verdicts  model.VerdictReader
	logger    *slog.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	serveErr  chan error
}

// NewServer creates a new HTTP API server over the given sessions.
func NewServer(sessions *Registry, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:3000"
	}
	if opts.DrawSize < 1 {
		opts.DrawSize = model.DefaultDrawSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      opts.Addr,
		drawSize:  opts.DrawSize,
		sessions:  sessions,
		verdicts:  opts.Verdicts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		serveErr:  make(chan error, 1),
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.logger))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/verdicts", s.handleVerdicts)

	decks := api.Group("/decks")
	decks.POST("", s.handleCreateDeck)
	decks.GET("/:id", s.handleGetDeck)
	decks.DELETE("/:id", s.handleDeleteDeck)
	decks.POST("/:id/draw", s.handleDraw)
	decks.POST("/:id/cards/:card/flip", s.handleFlip)
	decks.POST("/:id/swipe", s.handleSwipe)
	decks.POST("/:id/pointer", s.handlePointer)
	return r
}

// Start begins serving HTTP requests. Idle sessions are reaped by
// Registry.RunReaper, which the caller runs.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
			s.serveErr <- err
		}
	}()
	s.logger.Info("http api listening", "addr", s.addr)
	return nil
}

// Err reports a serve failure after Start. A graceful Stop sends nothing.
func (s *Server) Err() <-chan error { return s.serveErr }

// Addr returns the listen address, resolved once Start has bound it.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server and closes every session.
func (s *Server) Stop() error {
	s.cancel()
	defer s.sessions.Close()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
