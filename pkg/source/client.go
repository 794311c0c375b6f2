// Package source adapts cursor-paginated JSON endpoints to the pagination
// fetch contract. Requests are rate limited, retried with backoff and
// guarded by a circuit breaker.
package source

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

	"github.com/Sternrassler/feed-pager/pkg/logging"
	"github.com/Sternrassler/feed-pager/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Prometheus metrics for upstream requests.
var (
	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_requests_total",
		Help: "Total upstream list requests by endpoint and status",
	}, []string{"endpoint", "status"})

	sourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "source_request_duration_seconds",
		Help:    "Upstream list request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	sourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	sourceCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "source_circuit_state",
		Help: "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
	})
)

// maxBodySize bounds the response body read from the upstream.
const maxBodySize = 10 << 20

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to every endpoint, e.g. "https://api.example.com".
	BaseURL string

	// UserAgent is sent with every request (REQUIRED).
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Rate Limiting
	RateLimit int // Requests per second, 0 disables client-side limiting

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration

	// Circuit Breaker
	BreakerThreshold int           // Consecutive failed requests that open the circuit
	BreakerTimeout   time.Duration // Time the circuit stays open before probing
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:          baseURL,
		UserAgent:        userAgent,
		Timeout:          30 * time.Second,
		RateLimit:        10,
		MaxRetries:       2,
		InitialBackoff:   500 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client fetches list pages from an upstream HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	retry      RetryConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// New creates a new source client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %d)", cfg.RateLimit)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	base.Path = strings.TrimSuffix(base.Path, "/")

	logger := logging.NewLogger(logging.ComponentSource).With().Str("upstream", base.Host).Logger()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	threshold := uint32(cfg.BreakerThreshold)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        base.Host,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			sourceCircuitState.Set(float64(to))
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		retry:      retry,
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// breakerSuccess reports whether err leaves the upstream's health untouched.
// Only failures that would have been retried count against the circuit.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrContextCancelled) || errors.Is(err, context.Canceled) {
		return true
	}
	return !shouldRetry(classOf(err))
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Get performs a GET request against endpoint with the given query and
// returns the body of a 200 response. Non-2xx responses are returned as
// *SourceError. Retriable failures are retried with backoff.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	target := *c.baseURL
	target.Path += endpoint
	target.RawQuery = query.Encode()

	startTime := time.Now()
	defer func() {
		sourceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", target.RawQuery).
		Msg("Executing upstream request")

	var body []byte
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, retryWithBackoff(ctx, c.retry, c.logger, func() error {
			var reqErr error
			body, reqErr = c.do(ctx, endpoint, target.String())
			if reqErr != nil {
				sourceErrorsTotal.WithLabelValues(string(classOf(reqErr))).Inc()
			}
			return reqErr
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		sourceErrorsTotal.WithLabelValues(string(ErrorClassCircuitOpen)).Inc()
		sourceRequestsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
		return nil, &SourceError{
			ErrorClass: ErrorClassCircuitOpen,
			Message:    "circuit breaker open",
			Err:        err,
		}
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, endpoint, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &SourceError{
				ErrorClass: ErrorClassNetwork,
				Message:    "rate limiter wait",
				Err:        err,
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sourceRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &SourceError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	sourceRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")
		return nil, &SourceError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &SourceError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}
	return body, nil
}

// Fetch returns a fetch function reading pages of T from endpoint.
// The endpoint may carry its own query string; count and cursor are added
// per call. An empty cursor is omitted from the request.
func Fetch[T any](c *Client, endpoint string) pagination.FetchFunc[T] {
	path, rawQuery, _ := strings.Cut(endpoint, "?")
	fixed, parseErr := url.ParseQuery(rawQuery)

	return func(ctx context.Context, cursor string, count int) (pagination.Page[T], error) {
		if parseErr != nil {
			return pagination.Page[T]{}, fmt.Errorf("parse endpoint query: %w", parseErr)
		}

		query := url.Values{}
		for k, v := range fixed {
			query[k] = append([]string(nil), v...)
		}
		query.Set("count", strconv.Itoa(count))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.Get(ctx, path, query)
		if err != nil {
			return pagination.Page[T]{}, err
		}

		var page pagination.Page[T]
		if err := json.Unmarshal(body, &page); err != nil {
			sourceErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return pagination.Page[T]{}, &SourceError{
				StatusCode: http.StatusOK,
				ErrorClass: ErrorClassDecode,
				Message:    "decode page",
				Err:        err,
			}
		}
		return page, nil
	}
}

// IsRetryExhausted reports whether err is the result of exhausted retries.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}
