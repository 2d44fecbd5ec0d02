// Package ratelimit implements the fixed-window request limiters and the
// throttle guard shared by every instance through the counter store.
//
// Three domains are counted independently:
//
//	rate_limit:ip:<client-ip>        inbound, per client
//	rate_limit:symbol:<ticker>       inbound, per ticker
//	rate_limit:external:<provider>   outbound, per upstream provider
//
// All checks fail open: a store error lets the request through.
package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Domain names a rate-limit counter family.
type Domain string

const (
	DomainIP       Domain = "ip"
	DomainSymbol   Domain = "symbol"
	DomainExternal Domain = "external"
)

const (
	keyPrefix      = "rate_limit:"
	throttlePrefix = "throttle:"

	// MinCooldown is the shortest throttle window the store can represent.
	MinCooldown = time.Millisecond
)

// Key returns the counter key for identity within domain.
func Key(domain Domain, identity string) string {
	return keyPrefix + string(domain) + ":" + identity
}

// ThrottleKey returns the guard key for a call signature.
func ThrottleKey(signature string) string {
	return throttlePrefix + signature
}

// Rule is a fixed window: at most Limit hits per Window.
type Rule struct {
	Window time.Duration
	Limit  int64
}

// Validate rejects rules that would never admit a request or never reset.
func (r Rule) Validate() error {
	if r.Window < time.Second {
		return fmt.Errorf("window must be at least 1s (got %v)", r.Window)
	}
	if r.Limit <= 0 {
		return fmt.Errorf("limit must be positive (got %d)", r.Limit)
	}
	return nil
}

// Rules holds one Rule per domain.
type Rules struct {
	IP       Rule
	Symbol   Rule
	External Rule
}

// DefaultRules returns ip 30/min, symbol 10/min and external 50/min.
func DefaultRules() Rules {
	return Rules{
		IP:       Rule{Window: 60 * time.Second, Limit: 30},
		Symbol:   Rule{Window: 60 * time.Second, Limit: 10},
		External: Rule{Window: 60 * time.Second, Limit: 50},
	}
}

// Validate checks every domain rule.
func (r Rules) Validate() error {
	for _, d := range []struct {
		domain Domain
		rule   Rule
	}{
		{DomainIP, r.IP},
		{DomainSymbol, r.Symbol},
		{DomainExternal, r.External},
	} {
		if err := d.rule.Validate(); err != nil {
			return fmt.Errorf("rate limit %s: %w", d.domain, err)
		}
	}
	return nil
}

// Decision is the outcome of one counted hit.
type Decision struct {
	// Allowed is true when the hit fell within the limit, or the store failed
	Allowed bool

	// Limit is the rule limit
	Limit int64

	// Count is the hit number within the current window (0 when degraded)
	Count int64

	// Remaining is max(0, Limit-Count)
	Remaining int64

	// ResetAfter is the time until the window closes
	ResetAfter time.Duration

	// Degraded is true when the store failed and the check failed open
	Degraded bool
}

// ResetAt returns the absolute window end relative to now.
func (d Decision) ResetAt(now time.Time) time.Time {
	return now.Add(d.ResetAfter)
}

// RetryAfterSeconds returns ResetAfter rounded up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int64 {
	return CeilSeconds(d.ResetAfter)
}

// CeilSeconds rounds d up to whole seconds with a floor of 1.
func CeilSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func newDecision(rule Rule, count int64, resetAfter time.Duration) Decision {
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= rule.Limit,
		Limit:      rule.Limit,
		Count:      count,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}

func openDecision(rule Rule) Decision {
	return Decision{
		Allowed:    true,
		Limit:      rule.Limit,
		Remaining:  rule.Limit,
		ResetAfter: rule.Window,
		Degraded:   true,
	}
}
