// Package testutil provides testing utilities for the quote gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Yahoo endpoint paths served by MockYahoo.
const (
	QuotePath   = "/v7/finance/quote"
	ChartPath   = "/v8/finance/chart/"
	SummaryPath = "/v10/finance/quoteSummary/"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockYahoo is a configurable mock Yahoo Finance server for testing.
// Responses are keyed by endpoint and ticker; unknown tickers get an empty
// result set.
type MockYahoo struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	counts    map[string]int

	LastUserAgent string
}

// NewMockYahoo creates and starts a mock Yahoo server.
func NewMockYahoo() *MockYahoo {
	m := &MockYahoo{
		responses: make(map[string]MockResponse),
		counts:    make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockYahoo) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockYahoo) Close() {
	m.server.Close()
}

func responseKey(endpoint, ticker string) string {
	return endpoint + "|" + ticker
}

func (m *MockYahoo) serve(w http.ResponseWriter, r *http.Request) {
	endpoint, ticker := route(r)
	key := responseKey(endpoint, ticker)

	m.mu.Lock()
	m.counts[key]++
	m.counts[endpoint]++
	m.LastUserAgent = r.Header.Get("User-Agent")
	resp, ok := m.responses[key]
	m.mu.Unlock()

	if !ok {
		resp = MockResponse{StatusCode: http.StatusOK, Body: emptyResult(endpoint)}
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func route(r *http.Request) (endpoint, ticker string) {
	switch {
	case r.URL.Path == QuotePath:
		return "quote", r.URL.Query().Get("symbols")
	case strings.HasPrefix(r.URL.Path, ChartPath):
		return "chart", strings.TrimPrefix(r.URL.Path, ChartPath)
	case strings.HasPrefix(r.URL.Path, SummaryPath):
		return "quoteSummary", strings.TrimPrefix(r.URL.Path, SummaryPath)
	default:
		return "unknown", r.URL.Path
	}
}

func emptyResult(endpoint string) string {
	switch endpoint {
	case "quote":
		return `{"quoteResponse":{"result":[],"error":null}}`
	case "chart":
		return `{"chart":{"result":[],"error":null}}`
	case "quoteSummary":
		return `{"quoteSummary":{"result":[],"error":null}}`
	default:
		return `{}`
	}
}

// SetQuote configures the quote response for ticker.
func (m *MockYahoo) SetQuote(ticker string, resp MockResponse) {
	m.set("quote", ticker, resp)
}

// SetChart configures the chart response for ticker.
func (m *MockYahoo) SetChart(ticker string, resp MockResponse) {
	m.set("chart", ticker, resp)
}

// SetSummary configures the quoteSummary response for ticker.
func (m *MockYahoo) SetSummary(ticker string, resp MockResponse) {
	m.set("quoteSummary", ticker, resp)
}

func (m *MockYahoo) set(endpoint, ticker string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[responseKey(endpoint, ticker)] = resp
}

// Count returns the number of requests for endpoint ("quote", "chart",
// "quoteSummary"), optionally narrowed to one ticker.
func (m *MockYahoo) Count(endpoint string, ticker ...string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(ticker) > 0 {
		return m.counts[responseKey(endpoint, ticker[0])]
	}
	return m.counts[endpoint]
}

// TotalCount returns the number of requests across all endpoints.
func (m *MockYahoo) TotalCount() int {
	return m.Count("quote") + m.Count("chart") + m.Count("quoteSummary")
}

// Reset clears all tracking counters.
func (m *MockYahoo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.LastUserAgent = ""
}

// OK wraps body in a 200 response.
func OK(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusInternalServerError, Body: `{"error":"Internal server error"}`}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusTooManyRequests, Body: `Too Many Requests`}
}

// QuoteBody builds a v7 quote payload. Nil fields are omitted.
func QuoteBody(symbol string, fields map[string]any) string {
	result := map[string]any{"symbol": symbol}
	for k, v := range fields {
		result[k] = v
	}
	return mustJSON(map[string]any{
		"quoteResponse": map[string]any{"result": []any{result}, "error": nil},
	})
}

// ChartBody builds a v8 chart payload with the given meta fields.
func ChartBody(symbol string, meta map[string]any) string {
	m := map[string]any{"symbol": symbol}
	for k, v := range meta {
		m[k] = v
	}
	return mustJSON(map[string]any{
		"chart": map[string]any{"result": []any{map[string]any{"meta": m}}, "error": nil},
	})
}

// SummaryBody builds a v10 quoteSummary payload from module objects.
func SummaryBody(modules map[string]any) string {
	return mustJSON(map[string]any{
		"quoteSummary": map[string]any{"result": []any{modules}, "error": nil},
	})
}

// Raw builds Yahoo's {raw, fmt} number wrapper.
func Raw(v float64) map[string]any {
	return map[string]any{"raw": v, "fmt": fmt.Sprintf("%.2f", v)}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
