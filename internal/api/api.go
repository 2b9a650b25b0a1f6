// Package api provides the HTTP surface of CoachFlow: the inbound
// webhook the chat-automation platform posts DM events to, plus a small
// set of read-only admin endpoints for inspecting users, the action-item
// audit log, and usage counters.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coachflow/coachflow/internal/flow"
	"github.com/coachflow/coachflow/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (e.g. ":8080"). Defaults to the
	// COACHFLOW_API_ADDR environment variable, then DefaultAddr.
	Addr string
}

// Option configures API server options.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server routes webhook events into the debouncer and serves the admin
// read endpoints off the store.
type Server struct {
	addr      string
	store     store.Store
	debouncer *flow.Debouncer
	srv       *http.Server
}

// NewServer creates the API server. The debouncer owns all message
// processing; the server only validates and enqueues.
func NewServer(st store.Store, debouncer *flow.Debouncer, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("COACHFLOW_API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("NewServer created", "addr", cfg.Addr)
	return &Server{
		addr:      cfg.Addr,
		store:     st,
		debouncer: debouncer,
	}
}

// Handler builds the route table. Exposed separately so tests can drive
// the mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/users", s.usersHandler)
	mux.HandleFunc("/users/", s.userHandler)
	mux.HandleFunc("/action-items", s.actionItemsHandler)
	mux.HandleFunc("/tracker", s.trackerHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run listening", "addr", s.addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run shut down cleanly")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
