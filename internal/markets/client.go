// Package markets provides read access to the Polymarket Gamma market
// catalog: a rate-limited, circuit-broken HTTP client plus a cached lookup
// layer used by the HTTP API and the CLI.
package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/polyhedge/polyhedge/pkg/types"
)

const (
	// DefaultBaseURL is the production Gamma API.
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	// MaxBatchSize is the maximum number of markets to fetch per API request.
	MaxBatchSize = 100

	// Gamma /markets allows 300 requests per 10s; run at 60% of that budget.
	gammaRatePerSec = 18
	gammaBurst      = 10
)

// ClientConfig holds Gamma API client configuration.
type ClientConfig struct {
	BaseURL string
	Logger  *zap.Logger
}

// Client is an HTTP client for the Polymarket Gamma API. Requests pass
// through a token-bucket limiter and a circuit breaker that trips on three
// consecutive failures or a sustained error rate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	settings := gobreaker.Settings{Name: "gamma-markets"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(gammaRatePerSec, gammaBurst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     cfg.Logger,
	}
}

// ActiveMarkets fetches active, open markets with automatic pagination.
// Batches of MaxBatchSize are aggregated until limit is reached; limit 0
// fetches everything available.
func (c *Client) ActiveMarkets(ctx context.Context, limit, offset int) ([]types.Market, error) {
	fetchAll := limit == 0
	if !fetchAll && limit <= MaxBatchSize {
		return c.fetchPage(ctx, limit, offset)
	}

	var (
		all     []types.Market
		page    = 0
		fetched = 0
	)

	for {
		batch := MaxBatchSize
		if !fetchAll {
			remaining := limit - fetched
			if remaining <= 0 {
				break
			}
			if remaining < batch {
				batch = remaining
			}
		}

		markets, err := c.fetchPage(ctx, batch, offset+page*MaxBatchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, markets...)
		fetched += len(markets)

		// A short page means the API ran out of markets.
		if len(markets) < batch {
			break
		}
		if !fetchAll && fetched >= limit {
			break
		}

		page++
	}

	c.logger.Debug("fetched-markets",
		zap.Int("count", len(all)),
		zap.Int("pages", page+1))

	return all, nil
}

// MarketByID fetches a single market by its Gamma id.
func (c *Client) MarketByID(ctx context.Context, id string) (*types.Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestURL := fmt.Sprintf("%s/markets/%s", c.baseURL, url.PathEscape(id))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, requestURL)
	})
	if err != nil {
		FetchErrorsTotal.Inc()
		return nil, err
	}

	var market types.Market
	if err := json.Unmarshal(result.([]byte), &market); err != nil {
		return nil, fmt.Errorf("unmarshal market: %w", err)
	}

	return &market, nil
}

// fetchPage fetches a single page of active markets.
func (c *Client) fetchPage(ctx context.Context, limit, offset int) ([]types.Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", "volume24hr")
	params.Add("ascending", "false")

	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())

	c.logger.Debug("fetching-markets",
		zap.String("url", requestURL),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, requestURL)
	})
	if err != nil {
		FetchErrorsTotal.Inc()
		return nil, err
	}

	// Gamma returns a direct array, not wrapped in an object.
	var markets []types.Market
	if err := json.Unmarshal(result.([]byte), &markets); err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}

	return markets, nil
}

// get performs one GET and returns the body, mapping non-200 statuses to
// types.APIError.
func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polyhedge/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	FetchDuration.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &types.APIError{
			Status:   resp.StatusCode,
			Endpoint: requestURL,
			Body:     string(body),
		}
	}

	return body, nil
}
