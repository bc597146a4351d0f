package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"coinbt/internal/domain"
	"coinbt/internal/ranking"
	"coinbt/internal/store"
	"coinbt/internal/strategy"
)

const maxLimit = 1000

// Server serves the coinbt HTTP API.
type Server struct {
	results  store.ResultStore
	signals  store.SignalStore
	registry *strategy.Registry
	hub      *Hub
	log      *slog.Logger
}

// NewServer creates a Server. hub may be nil to disable the websocket feed.
func NewServer(results store.ResultStore, signals store.SignalStore, registry *strategy.Registry, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		results:  results,
		signals:  signals,
		registry: registry,
		hub:      hub,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /api/results/{strategy}", s.handleResults)
	mux.HandleFunc("GET /api/picks", s.handlePicks)
	mux.HandleFunc("GET /api/best", s.handleBest)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit reads the "limit" query param, defaulting to 100.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 100, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	resp := StrategiesResponse{Strategies: []StrategyJSON{}}
	for _, e := range s.registry.Entries() {
		resp.Strategies = append(resp.Strategies, StrategyJSON{
			Name:      e.Name,
			Generator: e.Generator.Name(),
			Params:    e.Params.Map(),
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.PathValue("strategy")
	if name == "" {
		name = r.URL.Query().Get("strategy")
	}
	results, err := s.results.ListResults(r.Context(), name, limit)
	if err != nil {
		s.log.Error("listing results", "strategy", name, "error", err)
		writeError(w, http.StatusInternalServerError, "listing results failed")
		return
	}
	market := r.URL.Query().Get("market")
	resp := ResultsResponse{Results: []ResultJSON{}}
	for _, res := range results {
		if market != "" && res.Market != market {
			continue
		}
		resp.Results = append(resp.Results, toResultJSON(res))
	}
	writeJSON(w, resp)
}

func (s *Server) latestPicks(w http.ResponseWriter, r *http.Request) ([]domain.Pick, bool) {
	picks, err := s.results.LatestPicks(r.Context())
	if err != nil {
		s.log.Error("loading picks", "error", err)
		writeError(w, http.StatusInternalServerError, "loading picks failed")
		return nil, false
	}
	return picks, true
}

func (s *Server) handlePicks(w http.ResponseWriter, r *http.Request) {
	picks, ok := s.latestPicks(w, r)
	if !ok {
		return
	}
	resp := PicksResponse{Picks: []PickJSON{}}
	for _, p := range picks {
		resp.Picks = append(resp.Picks, toPickJSON(p))
	}
	writeJSON(w, resp)
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	picks, ok := s.latestPicks(w, r)
	if !ok {
		return
	}
	a := ranking.Assign(s.registry.List(), picks)
	writeJSON(w, BestResponse{Strategies: a.Order, Assets: a.Assets})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.URL.Query().Get("strategy")
	sigs, err := s.signals.ListSignals(r.Context(), name, limit)
	if err != nil {
		s.log.Error("listing signals", "strategy", name, "error", err)
		writeError(w, http.StatusInternalServerError, "listing signals failed")
		return
	}
	resp := SignalsResponse{Signals: []SignalJSON{}}
	for _, sig := range sigs {
		resp.Signals = append(resp.Signals, ToSignalJSON(sig))
	}
	writeJSON(w, resp)
}
