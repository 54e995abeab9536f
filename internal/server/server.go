// Package server exposes the aggregation pipeline over a small JSON HTTP API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/justchokingaround/vodhub/internal/aggregate"
	"github.com/justchokingaround/vodhub/internal/cms"
	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/imagepipe"
	"github.com/justchokingaround/vodhub/internal/metadata"
	"github.com/justchokingaround/vodhub/internal/sources"
)

// AccessKeyHeader carries the passphrase; the "key" query parameter is also accepted
const AccessKeyHeader = "X-Access-Key"

// Deps are the components the API serves
type Deps struct {
	Sources       *sources.Registry
	CMS           *cms.Client
	Metadata      *metadata.Resolver
	Engine        *aggregate.Engine
	History       *history.Service
	Images        *imagepipe.Resolver
	Passphrase    string
	HealthTimeout time.Duration
	Logger        *slog.Logger
}

// Server is the HTTP API
type Server struct {
	deps       Deps
	slots      *imagepipe.Instances
	passphrase atomic.Pointer[string]
	router     *mux.Router
	logger     *slog.Logger
}

// New builds the server and its routes
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HealthTimeout <= 0 {
		deps.HealthTimeout = 8 * time.Second
	}

	s := &Server{deps: deps, logger: deps.Logger}
	if deps.Images != nil {
		s.slots = deps.Images.NewInstances()
	}
	s.SetPassphrase(deps.Passphrase)
	s.router = s.routes()
	return s
}

// SetPassphrase replaces the access passphrase; empty disables the gate
func (s *Server) SetPassphrase(p string) {
	s.passphrase.Store(&p)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.slots != nil {
			s.slots.CloseAll()
		}
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(s.logMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.accessMiddleware)

	api.HandleFunc("/sources", s.listSources).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.addSource).Methods(http.MethodPost)
	api.HandleFunc("/sources/health", s.sourcesHealth).Methods(http.MethodGet)
	api.HandleFunc("/sources/sync", s.syncSources).Methods(http.MethodPost)
	api.HandleFunc("/sources/reset", s.resetSources).Methods(http.MethodPost)
	api.HandleFunc("/sources/{id}", s.deleteSource).Methods(http.MethodDelete)
	api.HandleFunc("/sources/{id}/toggle", s.toggleSource).Methods(http.MethodPost)

	api.HandleFunc("/search", s.search).Methods(http.MethodGet)
	api.HandleFunc("/detail", s.detail).Methods(http.MethodGet)
	api.HandleFunc("/hot", s.hot).Methods(http.MethodGet)
	api.HandleFunc("/image", s.image).Methods(http.MethodGet)

	api.HandleFunc("/history", s.listHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.addHistory).Methods(http.MethodPost)
	api.HandleFunc("/history", s.clearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/history/{id}", s.removeHistory).Methods(http.MethodDelete)
	api.HandleFunc("/progress", s.getProgress).Methods(http.MethodGet)
	api.HandleFunc("/progress", s.putProgress).Methods(http.MethodPut)
	api.HandleFunc("/session/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", s.putSession).Methods(http.MethodPut)

	// preflight for every api path
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AccessKeyHeader)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// accessMiddleware enforces the static passphrase when one is configured
func (s *Server) accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := *s.passphrase.Load()
		if want == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(AccessKeyHeader)
		if got == "" {
			got = r.URL.Query().Get("key")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "access key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
