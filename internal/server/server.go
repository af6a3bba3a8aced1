package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server hosts the dehazing HTTP API.
type Server struct {
	log     zerolog.Logger
	jobs    *registry
	workers int

	// maxUploadBytes bounds multipart request bodies.
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithWorkers sets the worker count for experiment batches. Zero or
// negative selects one worker per CPU.
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// WithMaxUploadBytes bounds the size of accepted uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUploadBytes = n }
}

// New creates a server. The logger is used for request-level logging;
// per-job progress goes to the job event streams instead.
func New(log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		log:            log,
		jobs:           newRegistry(),
		maxUploadBytes: 64 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process-image", s.handleProcessImage)
	mux.HandleFunc("POST /process-experiment", s.handleProcessExperiment)
	mux.HandleFunc("GET /stream-logs/{id}", s.handleStreamLogs)
	mux.HandleFunc("GET /default-config", s.handleDefaultConfig)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully with a short drain period for open SSE streams.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
