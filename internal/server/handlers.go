package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/portfolio"
)

const maxBodyBytes = 1 << 20

// PriceResponse is the body of GET /stocks/{symbol}/price.
type PriceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// MetricsResponse is the body of GET /stocks/{symbol}/metrics.
type MetricsResponse struct {
	Symbol         string `json:"symbol"`
	PERatio        string `json:"peRatio"`
	LatestEarnings string `json:"latestEarnings"`
}

type batchRequest struct {
	Symbols json.RawMessage `json:"symbols"`
}

type portfolioRequest struct {
	Sheet string          `json:"sheet"`
	Rows  []portfolio.Row `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			log := logging.Annotate(r.Context(), s.log)
			log.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "redis": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	price, err := s.fetcher.FetchPrice(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PriceResponse{Symbol: symbol, Price: price})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	m, err := s.fetcher.FetchMetrics(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MetricsResponse{
		Symbol:         symbol,
		PERatio:        m.PERatio,
		LatestEarnings: m.LatestEarnings,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var symbols []string
	if len(req.Symbols) == 0 || req.Symbols[0] != '[' || json.Unmarshal(req.Symbols, &symbols) != nil {
		writeMessage(w, http.StatusBadRequest, "Symbols must be an array of strings")
		return
	}

	writeJSON(w, http.StatusOK, s.fetcher.FetchBatch(r.Context(), symbols))
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	sheet, rows, err := portfolio.LoadSheet(s.portfolioPath)
	if err != nil {
		if errors.Is(err, portfolio.ErrSheetNotFound) {
			writeMessage(w, http.StatusNotFound, "Excel file not found")
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writePortfolio(w, r, portfolio.Build(sheet, rows))
}

func (s *Server) handlePostPortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Rows == nil {
		writeMessage(w, http.StatusBadRequest, "Rows must be an array")
		return
	}

	s.writePortfolio(w, r, portfolio.Build(req.Sheet, req.Rows))
}

func (s *Server) writePortfolio(w http.ResponseWriter, r *http.Request, p *portfolio.Portfolio) {
	if r.URL.Query().Get("live") == "true" && s.enricher != nil {
		s.enricher.Enrich(r.Context(), p)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResetCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Cache not configured")
		return
	}

	if err := s.cache.ResetAll(r.Context()); err != nil {
		log := logging.Annotate(r.Context(), s.log)
		log.Error().Err(err).Msg("Cache reset failed")
		writeMessage(w, http.StatusInternalServerError, "Failed to reset cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Cache cleared"})
}
