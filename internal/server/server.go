// Package server exposes the review pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
	"github.com/reposage/reposage/internal/review"
)

// Analyzer is the pipeline capability the server fronts. Satisfied by
// review.Service.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string, opts review.Options) (*review.Report, error)
}

// Server is the HTTP front end: one analysis endpoint plus a health
// check, rate limited per client.
type Server struct {
	cfg      config.ServerConfig
	analyzer Analyzer
	logger   *loggy.Logger
	limiter  *clientLimiter
	httpSrv  *http.Server
}

// New creates a server around the analyzer.
func New(cfg config.ServerConfig, analyzer Analyzer, logger *loggy.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   logger,
		limiter:  newClientLimiter(cfg.RequestsPerSec, cfg.Burst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /analyze", s.limiter.middleware(http.HandlerFunc(s.handleAnalyze)))

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withRequestID(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured grace
// period.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.limiter.stop()
	s.logger.Info("HTTP server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	PullRequestURL string `json:"pull_request_url"`
	Depth          string `json:"depth,omitempty"`
	PostComment    bool   `json:"post_comment,omitempty"`
}

// maxRequestBody caps the analyze request body. The payload is one URL
// plus two small options, so 64 KiB is already generous.
const maxRequestBody = 64 << 10

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := loggy.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	if req.PullRequestURL == "" {
		writeError(w, http.StatusBadRequest, "missing 'pull_request_url' in request body")
		return
	}

	depth, err := review.ParseDepth(req.Depth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("analysis requested", "url", req.PullRequestURL, "depth", depth)

	report, err := s.analyzer.Analyze(ctx, req.PullRequestURL, review.Options{
		Depth:       depth,
		PostComment: req.PostComment,
	})
	if err != nil {
		s.writeFault(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeFault maps the closed error taxonomy onto HTTP statuses. The
// response body never leaks transport detail beyond the fault message.
func (s *Server) writeFault(w http.ResponseWriter, logger *loggy.Logger, err error) {
	kind := fault.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case fault.KindInvalidURL:
		status = http.StatusBadRequest
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindEmptyDiff:
		status = http.StatusUnprocessableEntity
	case fault.KindAuth, fault.KindMalformedResponse:
		status = http.StatusBadGateway
	case fault.KindRateLimit:
		status = http.StatusTooManyRequests
		var fe *fault.Error
		if errors.As(err, &fe) && fe.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(fe.RetryAfter.Seconds())))
		}
	case fault.KindQuotaExceeded:
		status = http.StatusServiceUnavailable
	case fault.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	logger.Warn("analysis failed", "kind", kind, "status", status, "error", err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already written; nothing left to do but log
		loggy.Error("encoding response failed", "error", err)
	}
}
