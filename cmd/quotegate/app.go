package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/internal/config"
	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/portfolio"
	"github.com/Sternrassler/quotegate/pkg/provider/yahoo"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
	"github.com/Sternrassler/quotegate/pkg/store"
)

// app wires every component over one Redis connection.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	redis    *redis.Client
	store    *store.RedisStore
	cache    *cache.Manager
	limiter  *ratelimit.Limiter
	fetcher  *fetcher.Fetcher
	enricher *portfolio.Enricher
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s := store.NewRedisStore(redisClient)

	provider, err := yahoo.New(cfg.YahooClientConfig(), logger)
	if err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("init provider: %w", err)
	}

	c := cache.NewManager(s, cfg.CacheTTLs(), logger)
	l := ratelimit.NewLimiter(s, cfg.Rules(), logger)
	f := fetcher.New(c, l, provider, cfg.FetcherConfig(), logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		redis:    redisClient,
		store:    s,
		cache:    c,
		limiter:  l,
		fetcher:  f,
		enricher: portfolio.NewEnricher(f, cfg.Fetch.BatchConcurrency, logger),
	}, nil
}

func (a *app) Close() error {
	return a.redis.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
