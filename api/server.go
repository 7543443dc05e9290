// Package api provides the HTTP REST API for the briefing engine.
//
// It exposes endpoints for portfolio and holding management and for
// generating intelligence briefings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/folioiq/folioiq/internal/briefing"
	"github.com/folioiq/folioiq/internal/store"
	"github.com/folioiq/folioiq/pkg/models"
)

// BriefingService compiles a briefing for a portfolio.
type BriefingService interface {
	Compile(ctx context.Context, portfolio *models.Portfolio) (*models.BriefingResponse, error)
}

// Server is the HTTP API server.
type Server struct {
	router      chi.Router
	store       *store.Store
	briefings   BriefingService
	corsOrigins []string
	log         zerolog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithCORSOrigins sets the origins allowed by the CORS policy. An empty
// list keeps the default.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(st *store.Store, briefings BriefingService, opts ...ServerOption) *Server {
	srv := &Server{
		store:       st,
		briefings:   briefings,
		corsOrigins: []string{"*"},
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	s.log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))

	// Credentials must stay off for a wildcard origin.
	wildcard := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/portfolios", s.handleListPortfolios)
		r.Post("/portfolios", s.handleCreatePortfolio)
		r.Get("/portfolios/{id}", s.handleGetPortfolio)
		r.Post("/portfolios/{id}/holdings", s.handleAddHolding)
		r.Delete("/portfolios/{id}/holdings/{holdingID}", s.handleDeleteHolding)
		r.Post("/briefing", s.handleBriefing)
	})

	return r
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list portfolios failed")
		writeError(w, http.StatusInternalServerError, "failed to list portfolios")
		return
	}
	writeJSON(w, http.StatusOK, portfolios)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := s.store.CreatePortfolio(r.Context(), req.Name)
	if err != nil {
		s.log.Error().Err(err).Msg("create portfolio failed")
		writeError(w, http.StatusInternalServerError, "failed to create portfolio")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.store.GetPortfolio(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		s.log.Error().Err(err).Msg("get portfolio failed")
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Symbol   string          `json:"symbol"`
		Quantity decimal.Decimal `json:"quantity"`
		AvgCost  decimal.Decimal `json:"avg_cost"`
		Thesis   *string         `json:"thesis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h, err := s.store.AddHolding(r.Context(), id, req.Symbol, req.Quantity, req.AvgCost, req.Thesis)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	holdingID, ok := parseID(w, r, "holdingID")
	if !ok {
		return
	}

	if err := s.store.DeleteHolding(r.Context(), portfolioID, holdingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "holding not found")
			return
		}
		s.log.Error().Err(err).Msg("delete holding failed")
		writeError(w, http.StatusInternalServerError, "failed to delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortfolioID string `json:"portfolio_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := uuid.Parse(req.PortfolioID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio_id")
		return
	}

	p, err := s.store.GetPortfolio(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		s.log.Error().Err(err).Msg("get portfolio failed")
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	resp, err := s.briefings.Compile(r.Context(), p)
	if err != nil {
		s.writeBriefingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeBriefingError maps briefing errors onto HTTP status codes.
func (s *Server) writeBriefingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, briefing.ErrEmptyPortfolio):
		writeError(w, http.StatusBadRequest, "portfolio has no holdings to analyze")
	case errors.Is(err, briefing.ErrAnalysisTimeout):
		writeError(w, http.StatusGatewayTimeout, "analysis timed out, try again")
	case errors.Is(err, briefing.ErrAnalysisUnavailable):
		writeError(w, http.StatusBadGateway, "analysis service unavailable")
	case errors.Is(err, briefing.ErrMalformedOutput):
		writeError(w, http.StatusInternalServerError, "analysis service returned malformed output, try again")
	default:
		s.log.Error().Err(err).Msg("briefing generation failed")
		writeError(w, http.StatusInternalServerError, "briefing generation failed")
	}
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
