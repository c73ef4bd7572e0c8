package gateway

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
)

const (
	HeaderRequestID = "X-Request-ID"

	contentTypeJSON = "application/json"
)

type Option func(*HTTPClient)

func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *HTTPClient) {
		c.client.Dial = dial
	}
}

func WithMetrics(metrics types.MetricsManager) Option {
	return func(c *HTTPClient) {
		c.metrics = metrics
	}
}

func WithCredentials(credentials types.Credentials) Option {
	return func(c *HTTPClient) {
		c.credentials = credentials
	}
}

// HTTPClient sends requests to the backend. Every call carries the current
// bearer token, and a 401 triggers one refresh through Credentials before
// the call is repeated.
type HTTPClient struct {
	logger      types.Logger
	metrics     types.MetricsManager
	client      *fasthttp.Client
	baseURL     string
	config      *types.GatewayConfig
	breaker     *CircuitBreaker
	credentials types.Credentials
	credMu      sync.RWMutex
}

func NewHTTPClient(logger types.Logger, config *types.GatewayConfig, opts ...Option) *HTTPClient {
	httpClient := &fasthttp.Client{
		Name:         config.UserAgent,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	}

	client := &HTTPClient{
		logger:  logger,
		client:  httpClient,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		config:  config,
		breaker: NewCircuitBreaker(config.CircuitBreaker, logger),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *HTTPClient) SetCredentials(credentials types.Credentials) {
	c.credMu.Lock()
	defer c.credMu.Unlock()

	c.credentials = credentials
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// Call performs method on path and returns the body of a 2xx response.
// Any other outcome is an *APIError.
func (c *HTTPClient) Call(ctx context.Context, method, path string, body []byte, contentType string, opts *types.CallOptions) ([]byte, error) {
	if opts == nil {
		opts = &types.CallOptions{}
	}

	credentials := c.getCredentials()
	token := ""
	if credentials != nil {
		token = credentials.AccessToken()
	}

	respBody, status, err := c.executeWithRetries(ctx, method, path, body, contentType, token, opts)
	if err != nil {
		return nil, newNetworkError(err)
	}

	if status == fasthttp.StatusUnauthorized && credentials != nil && !opts.SkipAuthRetry {
		c.logger.Debug("Access token rejected, refreshing", zap.String("path", path))

		newToken, refreshErr := credentials.RefreshAccessToken(ctx)
		if refreshErr != nil {
			apiErr := newStatusError(status, respBody)
			apiErr.Err = refreshErr
			return nil, apiErr
		}

		respBody, status, err = c.executeWithRetries(ctx, method, path, body, contentType, newToken, opts)
		if err != nil {
			return nil, newNetworkError(err)
		}
	}

	if status < 200 || status >= 300 {
		return nil, newStatusError(status, respBody)
	}

	return respBody, nil
}

func (c *HTTPClient) executeWithRetries(ctx context.Context, method, path string, body []byte, contentType, token string, opts *types.CallOptions) ([]byte, int, error) {
	retries := c.config.Retries
	if opts.Retry > 0 {
		retries = opts.Retry
	}
	if !isIdempotent(method) {
		retries = 0
	}

	requestID := uuid.New().String()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, types.WrapError(err, "request aborted")
		}

		if !c.breaker.CanExecute() {
			return nil, 0, types.ErrCircuitBreakerOpen
		}

		start := time.Now()
		respBody, status, err := c.do(ctx, method, path, body, contentType, token, requestID, opts)
		c.recordRequest(method, status, err, start)

		if isBreakerFailure(status, err) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}

		if !isRetryable(status, err) {
			return respBody, status, nil
		}

		lastErr = err
		if err == nil {
			lastErr = types.Errorf(types.ErrClientResponseInvalid, "HTTP %d", status)
		}

		if attempt == retries {
			if err == nil {
				return respBody, status, nil
			}
			break
		}

		backoff := c.config.RetryBackoff * time.Duration(attempt+1)
		c.logger.Debug("Retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, 0, types.WrapError(ctx.Err(), "request aborted during retry")
		}
	}

	return nil, 0, types.Errorf(types.ErrClientRequestFailed, "all %d attempts failed for %s %s: %v", retries+1, method, path, lastErr)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, contentType, token, requestID string, opts *types.CallOptions) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(HeaderRequestID, requestID)

	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	if body != nil {
		req.SetBody(body)
		if contentType == "" {
			contentType = contentTypeJSON
		}
		req.Header.SetContentType(contentType)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else if c.config.Timeout > 0 {
		err = c.client.DoTimeout(req, resp, c.config.Timeout)
	} else {
		err = c.client.Do(req, resp)
	}

	if err != nil {
		return nil, 0, err
	}

	respBody := make([]byte, len(resp.Body()))
	copy(respBody, resp.Body())

	return respBody, resp.StatusCode(), nil
}

func (c *HTTPClient) getCredentials() types.Credentials {
	c.credMu.RLock()
	defer c.credMu.RUnlock()

	return c.credentials
}

func (c *HTTPClient) recordRequest(method string, status int, err error, start time.Time) {
	if c.metrics == nil {
		return
	}

	code := strconv.Itoa(status)
	if err != nil {
		code = "error"
	}

	c.metrics.Counter("gateway_requests_total", map[string]string{
		"method": method,
		"status": code,
	}).Inc()

	c.metrics.Histogram("gateway_request_duration_seconds",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		map[string]string{"method": method},
	).ObserveDuration(start)
}
