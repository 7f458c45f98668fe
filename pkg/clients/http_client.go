package clients

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/metrics"
)

const defaultUserAgent = "comet/1.0"

// HTTPClient wraps net/http with the upstream conventions baked in:
// bearer auth, a tuned HTTP/2 transport, and rate limiting, all applied
// inside Do. Circuit breaking lives with the per-entity stream drivers,
// which wrap their calls in CircuitBreaker.Execute, so a shared client
// carries no breaker state of its own.
type HTTPClient struct {
	logger      *zap.Logger
	httpClient  *http.Client
	transport   *http.Transport
	token       string
	userAgent   string
	rateLimiter *RateLimiter
}

// NewHTTPClient builds a client from the API, timeout, and reliability
// sections of the configuration.
func NewHTTPClient(cfg *config.Config, logger *zap.Logger) *HTTPClient {
	c := &HTTPClient{
		logger:    logger.With(zap.String("component", "http_client")),
		token:     cfg.API.Token,
		userAgent: cfg.API.UserAgent,
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	c.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeouts.Connection,
			KeepAlive: cfg.Timeouts.KeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       cfg.Timeouts.Idle,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeouts.Request,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if err := http2.ConfigureTransport(c.transport); err != nil {
		c.logger.Warn("failed to configure HTTP/2, falling back to HTTP/1.1", zap.Error(err))
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   cfg.Timeouts.Request,
	}

	if cfg.Reliability.RateLimitPerSec > 0 {
		burst := int(cfg.Reliability.RateLimitPerSec)
		if burst < 1 {
			burst = 1
		}
		c.rateLimiter = NewRateLimiter(cfg.Reliability.RateLimitPerSec, burst)
	}

	return c
}

// Get performs a GET request against url.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}
	return c.Do(req)
}

// Do applies rate limiting, injects auth headers, and performs the
// request. Transport-level failures are classified as retriable
// connection or timeout errors.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "rate limiter wait interrupted")
		}
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	timer := metrics.NewTimer(req.Method)
	resp, err := c.httpClient.Do(req)
	duration := timer.Stop()

	if err != nil {
		errType := errors.ErrorTypeConnection
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			errType = errors.ErrorTypeTimeout
		}
		return nil, errors.Wrap(err, errType, "request failed").
			WithDetail("url", req.URL.String())
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	return resp, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() {
	c.transport.CloseIdleConnections()
}

// ClassifyStatus maps an unexpected HTTP status to the error taxonomy.
// Returns nil for 2xx. The Retry-After header, when parseable, is
// carried on 429 errors as a retry_after duration detail.
func ClassifyStatus(entity string, resp *http.Response) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.ErrorTypeAuthentication, "upstream rejected credentials with status %d", status).
			WithEntity(entity).
			WithStatus(status).
			WithHint("check the configured API token and its permissions")

	case status == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, "upstream resource not found").
			WithEntity(entity).
			WithStatus(status).
			WithHint("the entity may have been removed upstream")

	case status == http.StatusTooManyRequests:
		e := errors.New(errors.ErrorTypeRateLimit, "upstream rate limit exceeded").
			WithEntity(entity).
			WithStatus(status).
			WithHint("reduce rate_limit_per_sec or request a higher quota")
		if d, ok := retryAfter(resp); ok {
			e = e.WithDetail("retry_after", d)
		}
		return e

	case status >= 500:
		return errors.Newf(errors.ErrorTypeServer, "upstream server error %d", status).
			WithEntity(entity).
			WithStatus(status).
			WithHint("transient upstream failure; the request will be retried")

	default:
		return errors.Newf(errors.ErrorTypeInternal, "unexpected upstream status %d", status).
			WithEntity(entity).
			WithStatus(status)
	}
}

// RetryAfter extracts the retry_after duration detail from a rate limit
// error, if present.
func RetryAfter(err error) (time.Duration, bool) {
	var e *errors.Error
	if !errors.As(err, &e) {
		return 0, false
	}
	d, ok := e.Details["retry_after"].(time.Duration)
	return d, ok
}

// retryAfter parses the Retry-After response header, accepting both the
// delta-seconds and HTTP-date forms.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
