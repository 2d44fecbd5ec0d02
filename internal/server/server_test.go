package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/quotegate/internal/testutil"
	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/portfolio"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

type mockFetcher struct {
	mu       sync.Mutex
	prices   map[string]float64
	priceErr error
	metrics  cache.MetricsValue
	batches  [][]string
}

func (m *mockFetcher) FetchPrice(_ context.Context, symbol string) (float64, error) {
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	return m.prices[symbol], nil
}

func (m *mockFetcher) FetchMetrics(_ context.Context, symbol string) (cache.MetricsValue, error) {
	return m.metrics, nil
}

func (m *mockFetcher) FetchBatch(_ context.Context, symbols []string) []fetcher.BatchRecord {
	m.mu.Lock()
	m.batches = append(m.batches, symbols)
	m.mu.Unlock()

	out := make([]fetcher.BatchRecord, len(symbols))
	for i, s := range symbols {
		p := float64(i + 1)
		out[i] = fetcher.BatchRecord{Symbol: s, Price: &p, PERatio: "N/A", LatestEarnings: "N/A"}
	}
	return out
}

type mockCache struct {
	err   error
	calls int
}

func (m *mockCache) ResetAll(context.Context) error {
	m.calls++
	return m.err
}

type mockEnricher struct {
	called bool
}

func (m *mockEnricher) Enrich(_ context.Context, p *portfolio.Portfolio) {
	m.called = true
	p.Totals.PresentValue = 42
}

type testServer struct {
	server   *Server
	fetcher  *mockFetcher
	cache    *mockCache
	enricher *mockEnricher
}

func newTestServer(t *testing.T, rules ratelimit.Rules) *testServer {
	t.Helper()
	_, s := testutil.NewMiniRedis(t)

	ts := &testServer{
		fetcher:  &mockFetcher{prices: map[string]float64{}},
		cache:    &mockCache{},
		enricher: &mockEnricher{},
	}
	ts.server = New(Config{
		Log:           zerolog.Nop(),
		Fetcher:       ts.fetcher,
		Limiter:       ratelimit.NewLimiter(s, rules, zerolog.Nop()),
		Cache:         ts.cache,
		Store:         s,
		Enricher:      ts.enricher,
		PortfolioPath: "does-not-exist.xlsx",
		CORSOrigins:   []string{"http://localhost:3001"},
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestPing_CorrelationID(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("GET", "/api/v1/ping", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode[map[string]string](t, w)["message"])

	_, err := uuid.Parse(w.Header().Get(CorrelationHeader))
	assert.NoError(t, err, "generated correlation id should be a uuid")
}

func TestCorrelationID_Echoed(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	req := httptest.NewRequest("GET", "/api/v1/ping", nil)
	req.Header.Set(CorrelationHeader, "client-abc")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "client-abc", w.Header().Get(CorrelationHeader))
}

func TestPrice_OK(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())
	ts.fetcher.prices["reliance"] = 2500.5

	w := ts.do("GET", "/api/v1/stocks/reliance/price", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[PriceResponse](t, w)
	assert.Equal(t, "reliance", resp.Symbol)
	assert.Equal(t, 2500.5, resp.Price)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "29", w.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(time.Minute).UnixMilli(), reset, 5000)
}

func TestPrice_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		retryAfter string
	}{
		{
			name:       "not found",
			err:        &fetcher.Error{Kind: fetcher.KindUpstreamUnavailable, Message: "Price not found for X", Err: fetcher.ErrPriceNotFound},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Price not found for X",
		},
		{
			name:       "gate closed",
			err:        &fetcher.Error{Kind: fetcher.KindUpstreamUnavailable, Err: fetcher.ErrUpstreamRateLimited},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    fetcher.ErrUpstreamRateLimited.Error(),
		},
		{
			name:       "throttled",
			err:        &fetcher.Error{Kind: fetcher.KindRateLimited, RetryAfter: 500 * time.Millisecond, Err: fetcher.ErrThrottled},
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    fetcher.ErrThrottled.Error(),
			retryAfter: "1",
		},
		{
			name:       "client",
			err:        &fetcher.Error{Kind: fetcher.KindClientRequest, Err: fetcher.ErrEmptySymbol},
			wantStatus: http.StatusBadRequest,
			wantMsg:    fetcher.ErrEmptySymbol.Error(),
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, ratelimit.DefaultRules())
			ts.fetcher.priceErr = tt.err

			w := ts.do("GET", "/api/v1/stocks/x/price", "")

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
		})
	}
}

func TestMetrics_OK(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())
	ts.fetcher.metrics = cache.NewMetricsValue("TCS.NS", "28.1", "")

	w := ts.do("GET", "/api/v1/stocks/tcs/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"tcs","peRatio":"28.1","latestEarnings":"N/A"}`, w.Body.String())
}

func TestIPRateLimit(t *testing.T) {
	rules := ratelimit.DefaultRules()
	rules.IP.Limit = 2
	ts := newTestServer(t, rules)

	for i := 0; i < 2; i++ {
		w := ts.do("GET", "/api/v1/stocks/a/price", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do("GET", "/api/v1/stocks/b/price", "")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	body := decode[map[string]any](t, w)
	assert.Equal(t, "Too many requests", body["error"])
	assert.Equal(t, "Rate limit exceeded. Max 2 requests per minute.", body["message"])
	assert.Greater(t, body["retryAfter"].(float64), 0.0)
}

func TestSymbolRateLimit_NormalizedIdentity(t *testing.T) {
	rules := ratelimit.DefaultRules()
	rules.Symbol.Limit = 1
	ts := newTestServer(t, rules)

	w := ts.do("GET", "/api/v1/stocks/tcs/price", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do("GET", "/api/v1/stocks/TCS.NS/metrics", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "Too many requests for this symbol", body["error"])
	assert.Contains(t, body["message"], "TCS.NS")
	assert.NotContains(t, body, "retryAfter")

	w = ts.do("GET", "/api/v1/stocks/infy/price", "")
	assert.Equal(t, http.StatusOK, w.Code, "other symbols keep their own budget")
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("POST", "/api/v1/stocks/batch", `{"symbols":["A","B","C"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]fetcher.BatchRecord](t, w)
	require.Len(t, records, 3)
	assert.Equal(t, "A", records[0].Symbol)
	assert.Equal(t, "C", records[2].Symbol)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestBatch_BadPayload(t *testing.T) {
	tests := map[string]string{
		"not json":      `symbols`,
		"not array":     `{"symbols":"A"}`,
		"missing":       `{}`,
		"null":          `{"symbols":null}`,
		"mixed element": `{"symbols":["A", 1]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, ratelimit.DefaultRules())

			w := ts.do("POST", "/api/v1/stocks/batch", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, decode[ErrorResponse](t, w).Success)
			assert.Empty(t, ts.fetcher.batches)
		})
	}
}

func TestPortfolio_MissingSheet(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("GET", "/api/v1/stocks/portfolio", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Excel file not found", decode[ErrorResponse](t, w).Message)
}

func TestPortfolio_PostRows(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())
	body := `{"sheet":"Holdings","rows":[
		{"Particulars":"Banking"},
		{"No":1,"Particulars":"HDFC","Qty":"10","Investment":"1,000","NSE/BSE":"HDFCBANK"}
	]}`

	w := ts.do("POST", "/api/v1/stocks/portfolio", body)

	require.Equal(t, http.StatusOK, w.Code)
	p := decode[portfolio.Portfolio](t, w)
	assert.Equal(t, "Holdings", p.Sheet)
	require.Len(t, p.Sectors, 1)
	assert.Equal(t, "Banking", p.Sectors[0].Name)
	assert.Equal(t, 1000.0, p.Totals.Investment)
	assert.False(t, ts.enricher.called)

	w = ts.do("POST", "/api/v1/stocks/portfolio?live=true", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.enricher.called)
	assert.Equal(t, 42.0, decode[portfolio.Portfolio](t, w).Totals.PresentValue)
}

func TestPortfolio_PostBadBody(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("POST", "/api/v1/stocks/portfolio", `{"sheet":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("POST", "/api/v1/stocks/portfolio", `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetCache(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("DELETE", "/api/v1/admin/cache", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.cache.calls)

	ts.cache.err = errors.New("flush failed")
	w = ts.do("DELETE", "/api/v1/admin/cache", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to reset cache", decode[ErrorResponse](t, w).Message)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do("GET", "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, w)["status"])

	down := New(Config{
		Log:     zerolog.Nop(),
		Fetcher: ts.fetcher,
		Limiter: ratelimit.NewLimiter(testutil.FailingStore{}, ratelimit.DefaultRules(), zerolog.Nop()),
		Store:   testutil.FailingStore{},
	})
	w = httptest.NewRecorder()
	down.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStoreDown_RequestsStillServed(t *testing.T) {
	f := &mockFetcher{prices: map[string]float64{"a": 1}}
	s := New(Config{
		Log:     zerolog.Nop(),
		Fetcher: f,
		Limiter: ratelimit.NewLimiter(testutil.FailingStore{}, ratelimit.DefaultRules(), zerolog.Nop()),
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/stocks/a/price", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	w := ts.do("GET", "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t, ratelimit.DefaultRules())

	req := httptest.NewRequest("OPTIONS", "/api/v1/stocks/batch", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3001", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_Panics(t *testing.T) {
	assert.Panics(t, func() { New(Config{}) })
}
