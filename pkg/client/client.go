// Package client provides the core ClinicalTrials.gov v2 HTTP client with
// request pacing, caching, retry, and error handling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trialscope/ctgov-client/pkg/cache"
	"github.com/trialscope/ctgov-client/pkg/ratelimit"
)

// DefaultBaseURL is the production ClinicalTrials.gov v2 API root.
const DefaultBaseURL = "https://clinicaltrials.gov/api/v2"

// Prometheus metrics for ClinicalTrials.gov client operations.
var (
	ctgovRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_requests_total",
		Help: "Total ClinicalTrials.gov requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ctgovRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctgov_request_duration_seconds",
		Help:    "ClinicalTrials.gov request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	ctgovErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_errors_total",
		Help: "Total ClinicalTrials.gov errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents responses whose body could not be parsed.
	ErrorClassDecode ErrorClass = "decode"
)

// Client is the ClinicalTrials.gov API client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	pacer      *ratelimit.Pacer
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration. The retry policy is fully
// caller-controlled; zero-delay policies are valid and useful in tests.
type Config struct {
	// BaseURL is the API root (default: DefaultBaseURL).
	BaseURL string

	// UserAgent identifies the application to the API.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// HTTPClient is the underlying transport. A 10s-timeout client is used
	// when nil; caller timeouts and cancellation go through the request context.
	HTTPClient *http.Client

	// Retry. MaxRetries is the TOTAL number of attempts per page request,
	// each separated by RetryDelay. A value of 1 disables retries.
	MaxRetries int
	RetryDelay time.Duration

	// Redis enables the optional response cache and cross-process request
	// pacing when set. The core fetch logic never requires it.
	Redis    *redis.Client
	CacheTTL time.Duration

	// MinRequestInterval throttles outbound requests. ClinicalTrials.gov
	// publishes no rate limit headers but asks clients to stay around one
	// request per second. Zero disables pacing.
	MinRequestInterval time.Duration
}

// DefaultConfig returns the production configuration: five attempts per page
// with a five second delay, one request per second, caching disabled.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		UserAgent:          userAgent,
		MaxRetries:         5,
		RetryDelay:         5 * time.Second,
		MinRequestInterval: 1 * time.Second,
	}
}

// New creates a new ClinicalTrials.gov client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("retry_delay must not be negative (got %s)", cfg.RetryDelay)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "ctgov-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	var pacer *ratelimit.Pacer
	if cfg.MinRequestInterval > 0 {
		pacer = ratelimit.NewPacer(cfg.MinRequestInterval, cfg.Redis, logger)
	}

	return &Client{
		httpClient: httpClient,
		cache:      cacheManager,
		pacer:      pacer,
		config:     cfg,
		logger:     logger,
	}, nil
}

// GetJSON performs one logical GET against an API endpoint and decodes the
// JSON body into out. The whole page request - transport, status check, and
// body decode - is wrapped in the retry policy, so a malformed body is
// retried the same way a 5xx or a connection reset is.
//
// Responses are served from the Redis cache when one is configured and the
// entry is still fresh; only successful responses are cached.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	startTime := time.Now()
	defer func() {
		ctgovRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Query values are cloned so cache keys stay stable when the caller
	// mutates them between pages.
	params := cloneValues(query)

	cacheKey := cache.Key{Endpoint: endpoint, Query: params}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil {
			if err := decodeInto(entry.Data, out); err == nil {
				c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
				ctgovRequestsTotal.WithLabelValues(endpoint, "cache").Inc()
				return nil
			}
			// Corrupt entry, drop it and fall through to the network.
			_ = c.cache.Delete(ctx, cacheKey)
		}
	}

	requestURL := c.config.BaseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	return c.retryFixedDelay(ctx, endpoint, func() error {
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("pacer wait: %w", err)
			}
		}

		body, err := c.doRequest(ctx, endpoint, requestURL)
		if err != nil {
			return err
		}

		if err := decodeInto(body, out); err != nil {
			ctgovErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return &APIError{
				StatusCode: http.StatusOK,
				ErrorClass: ErrorClassDecode,
				Message:    "malformed response body",
				Err:        err,
			}
		}

		if c.cache != nil {
			if err := c.cache.Set(ctx, cacheKey, body); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
			}
		}

		return nil
	})
}

// doRequest executes a single HTTP GET attempt and returns the response body.
func (c *Client) doRequest(ctx context.Context, endpoint, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", requestURL).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ctgovErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		ctgovRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	ctgovRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ctgovErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		ctgovErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// decodeInto unmarshals data into a fresh value of out's type and copies the
// result into out only when the whole body decodes. A body that fails partway
// through (valid JSON of the wrong shape) must not leave fields behind in
// out; a retried page attempt would otherwise leak a stale pagination token
// into the next successful decode.
func decodeInto(data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return json.Unmarshal(data, out)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}

	rv.Elem().Set(fresh.Elem())
	return nil
}

// cloneValues copies query parameters; nil maps to an empty set.
func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
