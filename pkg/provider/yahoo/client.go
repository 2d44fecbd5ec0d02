// Package yahoo implements provider.Provider against the public Yahoo Finance
// JSON endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/provider"
)

const (
	// ProviderName is the identity used for the outbound rate limit.
	ProviderName = "yahoo"

	// DefaultBaseURL is the Yahoo Finance query host.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultUserAgent mimics a browser; the endpoints reject bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	maxErrorBody = 512
)

// Endpoint labels used in metrics and errors.
const (
	endpointQuote   = "quote"
	endpointChart   = "chart"
	endpointSummary = "quoteSummary"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API host (overridden in tests)
	BaseURL string

	// Timeout bounds each HTTP attempt
	Timeout time.Duration

	// UserAgent header sent with every request
	UserAgent string

	// Retry policy for server and network failures
	Retry RetryConfig
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
		Retry:     DefaultRetryConfig(),
	}
}

// Client is a Yahoo Finance API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retry      RetryConfig
	logger     zerolog.Logger
}

var _ provider.Provider = (*Client)(nil)

// New creates a new Yahoo Finance client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		retry:      cfg.Retry,
		logger:     logger.With().Str("component", "yahoo").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			PostMarketPrice    *float64 `json:"postMarketPrice"`
			PreMarketPrice     *float64 `json:"preMarketPrice"`
			TrailingPE         *float64 `json:"trailingPE"`
			ForwardPE          *float64 `json:"forwardPE"`
		} `json:"result"`
		Error *apiErrorBody `json:"error"`
	} `json:"quoteResponse"`
}

type apiErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Quote implements provider.Provider using the v7 quote endpoint.
func (c *Client) Quote(ctx context.Context, ticker string) (*provider.Quote, error) {
	params := url.Values{}
	params.Set("symbols", ticker)

	var resp quoteResponse
	if err := c.getJSON(ctx, endpointQuote, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}
	if e := resp.QuoteResponse.Error; e != nil {
		return nil, decodeError(endpointQuote, e)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("quote %s: %w", ticker, provider.ErrNoData)
	}

	r := resp.QuoteResponse.Result[0]
	return &provider.Quote{
		Symbol:             r.Symbol,
		RegularMarketPrice: r.RegularMarketPrice,
		PostMarketPrice:    r.PostMarketPrice,
		PreMarketPrice:     r.PreMarketPrice,
		TrailingPE:         r.TrailingPE,
		ForwardPE:          r.ForwardPE,
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"previousClose"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *apiErrorBody `json:"error"`
	} `json:"chart"`
}

// IntradayChart implements provider.Provider using the v8 chart endpoint with
// a one-day range at one-minute resolution.
func (c *Client) IntradayChart(ctx context.Context, ticker string) (*provider.Chart, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1m")

	var resp chartResponse
	if err := c.getJSON(ctx, endpointChart, "/v8/finance/chart/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		return nil, decodeError(endpointChart, e)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: %w", ticker, provider.ErrNoData)
	}

	meta := resp.Chart.Result[0].Meta
	prevClose := meta.PreviousClose
	if prevClose == nil {
		prevClose = meta.ChartPreviousClose
	}
	return &provider.Chart{
		Symbol:             meta.Symbol,
		RegularMarketPrice: meta.RegularMarketPrice,
		PreviousClose:      prevClose,
	}, nil
}

// rawValue is Yahoo's {raw, fmt} number wrapper.
type rawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type valuationModule struct {
	TrailingPE *rawValue `json:"trailingPE"`
	ForwardPE  *rawValue `json:"forwardPE"`
}

func (m *valuationModule) toValuation() *provider.Valuation {
	if m == nil {
		return nil
	}
	return &provider.Valuation{
		TrailingPE: m.TrailingPE.value(),
		ForwardPE:  m.ForwardPE.value(),
	}
}

func (v *rawValue) value() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail        *valuationModule `json:"summaryDetail"`
			DefaultKeyStatistics *valuationModule `json:"defaultKeyStatistics"`
			Price                *valuationModule `json:"price"`
			CalendarEvents       *struct {
				Earnings struct {
					EarningsDate []rawValue `json:"earningsDate"`
				} `json:"earnings"`
			} `json:"calendarEvents"`
			Earnings *struct {
				EarningsChart struct {
					CurrentQuarterDate         flexString `json:"currentQuarterDate"`
					CurrentQuarterEstimateDate flexString `json:"currentQuarterEstimateDate"`
				} `json:"earningsChart"`
			} `json:"earnings"`
		} `json:"result"`
		Error *apiErrorBody `json:"error"`
	} `json:"quoteSummary"`
}

// flexString accepts a JSON string and ignores any other type.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = flexString(v)
	return nil
}

// QuoteSummary implements provider.Provider using the v10 quoteSummary endpoint.
func (c *Client) QuoteSummary(ctx context.Context, ticker string, modules []string) (*provider.Summary, error) {
	if len(modules) == 0 {
		modules = provider.MetricsModules
	}
	params := url.Values{}
	params.Set("modules", strings.Join(modules, ","))

	var resp summaryResponse
	if err := c.getJSON(ctx, endpointSummary, "/v10/finance/quoteSummary/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, decodeError(endpointSummary, e)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quoteSummary %s: %w", ticker, provider.ErrNoData)
	}

	r := resp.QuoteSummary.Result[0]
	summary := &provider.Summary{
		SummaryDetail:        r.SummaryDetail.toValuation(),
		DefaultKeyStatistics: r.DefaultKeyStatistics.toValuation(),
		Price:                r.Price.toValuation(),
	}
	if r.CalendarEvents != nil {
		for _, d := range r.CalendarEvents.Earnings.EarningsDate {
			ed := provider.EarningsDate{Fmt: d.Fmt}
			if d.Raw != nil {
				ed.Raw = provider.Int(int64(*d.Raw))
			}
			summary.EarningsDates = append(summary.EarningsDates, ed)
		}
	}
	if r.Earnings != nil {
		summary.Earnings = &provider.EarningsChart{
			CurrentQuarterDate:         string(r.Earnings.EarningsChart.CurrentQuarterDate),
			CurrentQuarterEstimateDate: string(r.Earnings.EarningsChart.CurrentQuarterEstimateDate),
		}
	}
	return summary, nil
}

// getJSON performs a GET with retry and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	logger := logging.Annotate(ctx, c.logger).With().Str("endpoint", endpoint).Logger()

	start := time.Now()
	defer func() {
		providerRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	return retryWithBackoff(ctx, c.retry, logger, func() error {
		return c.do(ctx, endpoint, reqURL, out, logger)
	})
}

func (c *Client) do(ctx context.Context, endpoint, reqURL string, out any, logger zerolog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		providerErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		providerRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		logger.Warn().Err(err).Msg("Upstream request failed")
		return &APIError{Endpoint: endpoint, Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	providerRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		class := classifyStatus(resp.StatusCode)
		providerErrorsTotal.WithLabelValues(string(class)).Inc()

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream returned error status")

		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		providerErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
		}
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "parse response", Err: err}
	}

	logger.Debug().Int("status", resp.StatusCode).Msg("Upstream request succeeded")
	return nil
}

func decodeError(endpoint string, e *apiErrorBody) error {
	providerErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: http.StatusOK,
		Class:      ErrorClassDecode,
		Message:    strings.TrimSpace(e.Code + " " + e.Description),
	}
}
