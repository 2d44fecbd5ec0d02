// Package server provides the HTTP API for quotegate.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/metrics"
	"github.com/Sternrassler/quotegate/pkg/portfolio"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

// StockFetcher runs the fetch pipelines. *fetcher.Fetcher satisfies it.
type StockFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	FetchMetrics(ctx context.Context, symbol string) (cache.MetricsValue, error)
	FetchBatch(ctx context.Context, symbols []string) []fetcher.BatchRecord
}

// InboundLimiter counts client requests. *ratelimit.Limiter satisfies it.
type InboundLimiter interface {
	CheckClient(ctx context.Context, ip string) ratelimit.Decision
	CheckSymbol(ctx context.Context, ticker string) ratelimit.Decision
	Rules() ratelimit.Rules
}

// CacheResetter clears cached data. *cache.Manager satisfies it.
type CacheResetter interface {
	ResetAll(ctx context.Context) error
}

// Pinger reports store reachability. store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Enricher refreshes portfolio items with live data. *portfolio.Enricher satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, p *portfolio.Portfolio)
}

// Config holds server dependencies and settings.
type Config struct {
	Log           zerolog.Logger
	Fetcher       StockFetcher
	Limiter       InboundLimiter
	Cache         CacheResetter
	Store         Pinger
	Enricher      Enricher
	PortfolioPath string
	CORSOrigins   []string
	Port          int
}

// Server is the HTTP server.
type Server struct {
	router        *chi.Mux
	server        *http.Server
	log           zerolog.Logger
	fetcher       StockFetcher
	limiter       InboundLimiter
	cache         CacheResetter
	store         Pinger
	enricher      Enricher
	portfolioPath string
	port          int
}

// New creates the server and its routes.
func New(cfg Config) *Server {
	if cfg.Fetcher == nil || cfg.Limiter == nil {
		panic("server requires a fetcher and a limiter")
	}

	s := &Server{
		router:        chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		fetcher:       cfg.Fetcher,
		limiter:       cfg.Limiter,
		cache:         cfg.Cache,
		store:         cfg.Store,
		enricher:      cfg.Enricher,
		portfolioPath: cfg.PortfolioPath,
		port:          cfg.Port,
	}

	s.setupMiddleware(cfg.CORSOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RealIP)
	s.router.Use(correlationID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", CorrelationHeader},
		ExposedHeaders:   []string{CorrelationHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", s.handlePing)

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/portfolio", s.handleGetPortfolio)
			r.Post("/portfolio", s.handlePostPortfolio)

			r.With(s.ipRateLimit).Post("/batch", s.handleBatch)

			r.With(s.ipRateLimit, s.symbolRateLimit).Get("/{symbol}/price", s.handlePrice)
			r.With(s.ipRateLimit, s.symbolRateLimit).Get("/{symbol}/metrics", s.handleMetrics)
		})

		r.Delete("/admin/cache", s.handleResetCache)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
