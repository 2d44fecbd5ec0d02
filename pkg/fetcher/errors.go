package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure that crosses the fetcher boundary.
type Kind string

const (
	// KindClientRequest is malformed input. Not retryable.
	KindClientRequest Kind = "client_request"

	// KindRateLimited is a rejected request that may be retried after RetryAfter.
	KindRateLimited Kind = "rate_limited"

	// KindUpstreamUnavailable means no cached, primary or secondary value exists.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

var (
	// ErrEmptySymbol is returned for blank symbols.
	ErrEmptySymbol = errors.New("symbol is required")

	// ErrUpstreamRateLimited is returned when the outbound provider budget is spent.
	ErrUpstreamRateLimited = errors.New("external API rate limit exceeded, please try again later")

	// ErrThrottled is returned when an identical upstream call is cooling down
	// and nothing is cached.
	ErrThrottled = errors.New("please wait before fetching data again")

	// ErrPriceNotFound is returned when the upstream answered without a usable price.
	ErrPriceNotFound = errors.New("price not found")

	// ErrProviderFailed is returned when both upstream price sources failed.
	ErrProviderFailed = errors.New("price provider unavailable")
)

// Error is a classified fetch failure.
type Error struct {
	Kind       Kind
	Symbol     string
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Symbol, e.PublicMessage())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.PublicMessage())
}

// PublicMessage is the caller-facing description.
func (e *Error) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not a fetch Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func clientError(symbol string, err error) *Error {
	return &Error{Kind: KindClientRequest, Symbol: symbol, Err: err}
}
