package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/store"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// TTLConfig holds the expiry for each entry kind.
// Zero or negative Price/Metrics TTLs disable storing that kind.
type TTLConfig struct {
	// Default applies to Set calls with a zero TTL
	Default time.Duration

	// Price applies to CachePrice
	Price time.Duration

	// Metrics applies to CacheMetrics
	Metrics time.Duration
}

// DefaultTTLConfig returns 15s for every kind.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Default: 15 * time.Second,
		Price:   15 * time.Second,
		Metrics: 15 * time.Second,
	}
}

// Manager is the look-aside cache. Store failures never reach callers:
// reads degrade to a miss and writes are dropped.
type Manager struct {
	store  store.Store
	ttl    TTLConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a cache manager over s.
func NewManager(s store.Store, ttl TTLConfig, logger zerolog.Logger) *Manager {
	if s == nil {
		panic("store cannot be nil")
	}
	return &Manager{
		store:  s,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}
}

// Get returns the entry stored under key. The second result is false on a
// missing key, an undecodable entry or a store error.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, bool) {
	entry, err := m.load(ctx, key)
	if err != nil {
		log := logging.Annotate(ctx, m.logger)
		switch {
		case errors.Is(err, ErrCacheMiss):
			CacheMisses.WithLabelValues(string(key.Kind)).Inc()
			log.Debug().Str("key", key.String()).Msg("cache miss")
		default:
			CacheMisses.WithLabelValues(string(key.Kind)).Inc()
			CacheErrors.WithLabelValues("get").Inc()
			log.Warn().Err(err).Str("key", key.String()).Msg("cache read failed, treating as miss")
		}
		return nil, false
	}

	CacheHits.WithLabelValues(string(key.Kind)).Inc()
	log := logging.Annotate(ctx, m.logger)
	log.Debug().
		Str("key", key.String()).
		Dur("age", entry.Age()).
		Msg("cache hit")

	return entry, true
}

func (m *Manager) load(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.store.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Kind != key.Kind {
		return nil, fmt.Errorf("%w: kind %q under %s", ErrInvalidEntry, entry.Kind, key)
	}

	return &entry, nil
}

// Set stores value under key. A zero ttl means the default TTL; a negative
// ttl skips the write. Failures are logged and swallowed.
func (m *Manager) Set(ctx context.Context, key CacheKey, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.ttl.Default
	}
	if ttl <= 0 {
		return
	}

	if err := m.write(ctx, key, value, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		log := logging.Annotate(ctx, m.logger)
		log.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("cache write failed")
	}
}

func (m *Manager) write(ctx context.Context, key CacheKey, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	data, err := json.Marshal(CacheEntry{
		Symbol:    key.Symbol,
		Kind:      key.Kind,
		Value:     raw,
		WrittenAt: m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.store.SetEX(ctx, key.String(), data, ttl); err != nil {
		return err
	}

	CacheWrittenBytes.WithLabelValues(string(key.Kind)).Add(float64(len(data)))
	return nil
}

// CachePrice stores the price for symbol with the price TTL.
// Non-finite or negative prices are refused.
func (m *Manager) CachePrice(ctx context.Context, symbol string, price float64) {
	if !ValidPrice(price) {
		log := logging.Annotate(ctx, m.logger)
		log.Warn().
			Str("symbol", symbol).
			Float64("price", price).
			Msg("refusing to cache invalid price")
		return
	}
	if m.ttl.Price <= 0 {
		return
	}
	m.Set(ctx, PriceKey(symbol), PriceValue{Symbol: symbol, Price: price}, m.ttl.Price)
}

// GetCachePrice returns the cached price for symbol.
func (m *Manager) GetCachePrice(ctx context.Context, symbol string) (PriceValue, bool) {
	entry, ok := m.Get(ctx, PriceKey(symbol))
	if !ok {
		return PriceValue{}, false
	}

	var v PriceValue
	if err := entry.Decode(&v); err != nil || !v.Valid() {
		CacheErrors.WithLabelValues("decode").Inc()
		return PriceValue{}, false
	}
	return v, true
}

// CacheMetrics stores the metrics pair for symbol with the metrics TTL.
func (m *Manager) CacheMetrics(ctx context.Context, symbol, peRatio, latestEarnings string) {
	if m.ttl.Metrics <= 0 {
		return
	}
	m.Set(ctx, MetricsKey(symbol), NewMetricsValue(symbol, peRatio, latestEarnings), m.ttl.Metrics)
}

// GetCacheMetrics returns the cached metrics for symbol. Fields missing from a
// stored entry come back as NotAvailable.
func (m *Manager) GetCacheMetrics(ctx context.Context, symbol string) (MetricsValue, bool) {
	entry, ok := m.Get(ctx, MetricsKey(symbol))
	if !ok {
		return MetricsValue{}, false
	}

	var v MetricsValue
	if err := entry.Decode(&v); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return MetricsValue{}, false
	}
	return NewMetricsValue(symbol, v.PERatio, v.LatestEarnings), true
}

// ResetAll flushes the whole store, rate counters and throttle guards included.
func (m *Manager) ResetAll(ctx context.Context) error {
	if err := m.store.FlushAll(ctx); err != nil {
		CacheErrors.WithLabelValues("reset").Inc()
		return fmt.Errorf("reset cache: %w", err)
	}
	log := logging.Annotate(ctx, m.logger)
	log.Info().Msg("cache reset")
	return nil
}
