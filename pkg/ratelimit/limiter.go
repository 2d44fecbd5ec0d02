package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/store"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_rate_limit_rejections_total",
		Help: "Total number of hits rejected by a rate limit domain",
	}, []string{"domain"})

	throttleCollapsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotegate_throttle_collapsed_total",
		Help: "Total number of upstream calls collapsed by the throttle guard",
	})

	rateLimitStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotegate_rate_limit_store_errors_total",
		Help: "Total number of store errors on fail-open rate limit paths",
	}, []string{"operation"})
)

// Limiter counts hits per domain in fixed windows and guards upstream calls
// with short throttle cooldowns.
type Limiter struct {
	store  store.Store
	rules  Rules
	logger zerolog.Logger
}

// NewLimiter creates a limiter over s with the given per-domain rules.
func NewLimiter(s store.Store, rules Rules, logger zerolog.Logger) *Limiter {
	if s == nil {
		panic("store cannot be nil")
	}
	return &Limiter{
		store:  s,
		rules:  rules,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Rules returns the configured rules.
func (l *Limiter) Rules() Rules {
	return l.rules
}

// CheckClient counts a hit for a client IP. The decision carries the
// remaining quota and window reset for response headers.
func (l *Limiter) CheckClient(ctx context.Context, ip string) Decision {
	if ip == "" {
		ip = "unknown"
	}
	return l.hit(ctx, DomainIP, ip, l.rules.IP, true)
}

// CheckSymbol counts a hit for a normalized ticker.
func (l *Limiter) CheckSymbol(ctx context.Context, ticker string) Decision {
	return l.hit(ctx, DomainSymbol, ticker, l.rules.Symbol, false)
}

// CheckExternalAPI counts an outbound call to provider and reports whether
// it may proceed.
func (l *Limiter) CheckExternalAPI(ctx context.Context, provider string) bool {
	return l.hit(ctx, DomainExternal, provider, l.rules.External, false).Allowed
}

// hit increments the domain counter. The first hit of a window sets its
// expiry. A counter found without expiry gets one again, checked on every
// hit when readTTL is set and otherwise only when the hit is rejected.
func (l *Limiter) hit(ctx context.Context, domain Domain, identity string, rule Rule, readTTL bool) Decision {
	key := Key(domain, identity)
	log := logging.Annotate(ctx, l.logger).With().
		Str("domain", string(domain)).
		Str("key", key).
		Logger()

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		rateLimitStoreErrorsTotal.WithLabelValues("incr").Inc()
		log.Warn().Err(err).Msg("rate limit store unavailable, allowing request")
		return openDecision(rule)
	}

	if count == 1 {
		if _, err := l.store.Expire(ctx, key, rule.Window); err != nil {
			rateLimitStoreErrorsTotal.WithLabelValues("expire").Inc()
			log.Warn().Err(err).Msg("failed to set rate limit window")
		}
	}

	resetAfter := rule.Window
	if readTTL || count > rule.Limit {
		resetAfter = l.windowRemaining(ctx, key, rule, log)
	}

	d := newDecision(rule, count, resetAfter)
	if !d.Allowed {
		rateLimitRejectionsTotal.WithLabelValues(string(domain)).Inc()
		log.Warn().
			Int64("count", count).
			Int64("limit", rule.Limit).
			Dur("reset_after", resetAfter).
			Msg("rate limit exceeded")
	}
	return d
}

// windowRemaining reads the counter TTL, restoring a lost expiry.
func (l *Limiter) windowRemaining(ctx context.Context, key string, rule Rule, log zerolog.Logger) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		rateLimitStoreErrorsTotal.WithLabelValues("ttl").Inc()
		log.Warn().Err(err).Msg("failed to read rate limit window")
		return rule.Window
	}
	if ttl == store.NoExpiry {
		restored, err := l.store.Expire(ctx, key, rule.Window)
		switch {
		case err != nil:
			rateLimitStoreErrorsTotal.WithLabelValues("expire").Inc()
			log.Warn().Err(err).Msg("failed to repair rate limit window")
		case restored:
			log.Warn().Msg("rate limit counter had no expiry, window restored")
		default:
			log.Debug().Msg("rate limit counter vanished before its window was read")
		}
		return rule.Window
	}
	return time.Duration(ttl) * time.Second
}

// Throttle reports whether an upstream call with this signature may proceed.
// It returns false while an earlier call's cooldown is still active; the
// caller must not wait for or reuse that call's result.
func (l *Limiter) Throttle(ctx context.Context, signature string, cooldown time.Duration) bool {
	if cooldown < MinCooldown {
		cooldown = MinCooldown
	}

	log := logging.Annotate(ctx, l.logger)
	acquired, err := l.store.SetNX(ctx, ThrottleKey(signature), []byte("1"), cooldown)
	if err != nil {
		rateLimitStoreErrorsTotal.WithLabelValues("setnx").Inc()
		log.Warn().
			Err(err).
			Str("signature", signature).
			Msg("throttle store unavailable, allowing call")
		return true
	}

	if !acquired {
		throttleCollapsedTotal.Inc()
		log.Debug().
			Str("signature", signature).
			Dur("cooldown", cooldown).
			Msg("call collapsed by throttle")
	}
	return acquired
}
