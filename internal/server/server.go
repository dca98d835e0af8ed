// Package server exposes the operational HTTP surface: health, conversation
// inspection, cache invalidation and the inbound webhook.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ireland-samantha/shopkeeper-bot/internal/dispatch"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// maxBodyBytes bounds inbound webhook payloads.
const maxBodyBytes = 64 << 10

// Handler queues an inbound message and returns the function that handles it.
type Handler interface {
	Accept(in dispatch.Inbound) func(ctx context.Context) string
}

// Invalidator drops cached backend reads.
type Invalidator interface {
	InvalidateAll()
}

// Server is the ops HTTP server.
type Server struct {
	addr    string
	handler Handler
	store   storage.ConversationStore
	cache   Invalidator
	logger  *slog.Logger
	router  chi.Router

	// base is the context inbound messages run under; it outlives requests.
	base     context.Context
	inflight sync.WaitGroup
}

// New creates a Server listening on addr.
func New(addr string, handler Handler, store storage.ConversationStore, cache Invalidator, logger *slog.Logger) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		store:   store,
		cache:   cache,
		logger:  logger,
		base:    context.Background(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/conversations", s.listConversations)
	r.Post("/cache/invalidate", s.invalidateCache)
	r.Post("/messages", s.receiveMessage)
	return r
}

// ServeHTTP lets the server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type conversationSummary struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Messages        int       `json:"messages"`
	ContextKeys     []string  `json:"context_keys"`
	LastInteraction time.Time `json:"last_interaction"`
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs := s.store.ListActive(r.Context())
	out := make([]conversationSummary, 0, len(convs))
	for _, c := range convs {
		keys := make([]string, 0, len(c.Context))
		for k := range c.Context {
			keys = append(keys, k)
		}
		out = append(out, conversationSummary{
			ID:              c.ID,
			State:           string(c.State),
			Messages:        len(c.Messages),
			ContextKeys:     keys,
			LastInteraction: c.LastInteraction,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	s.cache.InvalidateAll()
	s.logger.Info("cache invalidated", "request_id", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// receiveMessage accepts an inbound message and handles it in the
// background; the reply goes out through the configured transport.
func (s *Server) receiveMessage(w http.ResponseWriter, r *http.Request) {
	var in dispatch.Inbound
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" || strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customerId and text are required"})
		return
	}

	run := s.handler.Accept(in)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		run(s.base)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Run serves until ctx is cancelled, then shuts down and waits for inbound
// messages still being handled.
func (s *Server) Run(ctx context.Context) error {
	s.base = context.WithoutCancel(ctx)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	return err
}

// Wait blocks until every accepted inbound message has been handled.
func (s *Server) Wait() {
	s.inflight.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
