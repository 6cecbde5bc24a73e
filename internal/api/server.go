// Package api serves a read-only HTTP view of the ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

// Ledger is the read side of the staking engine.
type Ledger interface {
	Pool() (model.Pool, bool)
	UserStake(user solana.PublicKey) (model.UserStakeInfo, bool)
	Accrued(ctx context.Context, user solana.PublicKey, tier uint8) (ledger.Accrual, error)
}

type Server struct {
	router *chi.Mux
	ledger Ledger
	logger *zap.Logger
	srv    *http.Server
}

func NewServer(addr string, l Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router: chi.NewRouter(),
		ledger: l,
		logger: logger,
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/pool", s.handlePool)
		r.Get("/users/{user}", s.handleUser)
		r.Get("/users/{user}/tiers/{tier}/accrued", s.handleAccrued)
	})
	s.router.Handle("/metrics", promhttp.Handler())
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, ok := s.ledger.Pool()
	if !ok {
		writeError(w, http.StatusNotFound, stakeerr.ErrNotInitialized)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := solana.PublicKeyFromBase58(chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, ok := s.ledger.UserStake(user)
	if !ok {
		writeError(w, http.StatusNotFound, stakeerr.ErrNothingStaked)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAccrued(w http.ResponseWriter, r *http.Request) {
	user, err := solana.PublicKeyFromBase58(chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tier, err := strconv.ParseUint(chi.URLParam(r, "tier"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, stakeerr.ErrInvalidTier)
		return
	}

	accrual, err := s.ledger.Accrued(r.Context(), user, uint8(tier))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, accrual)
	case errors.Is(err, stakeerr.ErrInvalidTier):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, stakeerr.ErrNotInitialized):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Warn("accrued lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
