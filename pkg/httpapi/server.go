// Copyright 2025 Certen Protocol
//
// Package httpapi serves each process's operational surface: liveness,
// readiness, Prometheus metrics, a JSON status summary, and the list of
// in-flight rows. /status and /pending carry operational detail, so both
// are gated behind a bearer token when one is configured; /health,
// /readyz, and /metrics stay open for orchestrators and scrapers.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// StatusResponse is the /status payload.
type StatusResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Queues        map[string]int `json:"queues"`
}

// PendingRow is one in-flight row in the /pending payload.
type PendingRow struct {
	Queue       string    `json:"queue"`
	TransferID  string    `json:"transfer_id"`
	SrcChain    string    `json:"src_chain"`
	DestChain   string    `json:"dest_chain"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	LastError   string    `json:"last_error,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Config configures a Server.
type Config struct {
	BindAddr        string
	APIToken        string // empty leaves /status and /pending open
	RateLimitPerSec int
	RateLimitBurst  int
	Logger          *log.Logger
}

// Server is the HTTP surface for one process.
type Server struct {
	cfg        Config
	startedAt  time.Time
	metricsH   http.Handler
	readyFn    func(ctx context.Context) bool
	statusFn   func(ctx context.Context) (StatusResponse, error)
	pendingFn  func(ctx context.Context) ([]PendingRow, error)
	logger     *log.Logger
	httpServer *http.Server
}

// New assembles a Server. metricsHandler serves /metrics; readyFn gates
// /readyz; statusFn and pendingFn back the JSON endpoints.
func New(cfg Config, metricsHandler http.Handler,
	readyFn func(ctx context.Context) bool,
	statusFn func(ctx context.Context) (StatusResponse, error),
	pendingFn func(ctx context.Context) ([]PendingRow, error)) *Server {

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	if cfg.RateLimitPerSec == 0 {
		cfg.RateLimitPerSec = 10
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	return &Server{
		cfg:       cfg,
		startedAt: time.Now(),
		metricsH:  metricsHandler,
		readyFn:   readyFn,
		statusFn:  statusFn,
		pendingFn: pendingFn,
		logger:    logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. It
// satisfies supervisor.Task.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if s.metricsH != nil {
		mux.Handle("/metrics", s.metricsH)
	}
	mux.Handle("/status", s.authGate(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/pending", s.authGate(http.HandlerFunc(s.handlePending)))

	bucket := newTokenBucket(s.cfg.RateLimitPerSec, s.cfg.RateLimitBurst)
	s.httpServer = &http.Server{
		Addr:         s.cfg.BindAddr,
		Handler:      rateLimit(bucket, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.BindAddr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("httpapi: listener failed: %w", err)
	}
}

// authGate enforces the bearer token on operational-detail endpoints
// when one is configured.
func (s *Server) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.cfg.APIToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.readyFn != nil && !s.readyFn(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.statusFn == nil {
		http.Error(w, "status unavailable", http.StatusNotImplemented)
		return
	}
	status, err := s.statusFn(r.Context())
	if err != nil {
		s.logger.Printf("status query failed: %v", err)
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	status.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
	if status.Status == "" {
		status.Status = "running"
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pendingFn == nil {
		http.Error(w, "pending unavailable", http.StatusNotImplemented)
		return
	}
	rows, err := s.pendingFn(r.Context())
	if err != nil {
		s.logger.Printf("pending query failed: %v", err)
		http.Error(w, "pending query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []PendingRow{}
	}
	json.NewEncoder(w).Encode(rows)
}
