package wmsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/metrics"
	"github.com/wms-platform/scan-console/pkg/resilience"
	"github.com/wms-platform/scan-console/pkg/tracing"
)

var tracer = otel.Tracer("scan-console/wmsclient")

const (
	// BreakerName labels the backend circuit breaker in logs and metrics
	BreakerName = "wms-backend"

	headerRequestID = "X-Request-ID"
	maxErrorBody    = 512
)

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retry applies to idempotent reads only. nil disables retries.
	Retry *resilience.RetryConfig
}

// Client calls the WMS backend over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// BreakerConfig returns the breaker settings for the backend. Only transport
// failures and 5xx responses count against the circuit.
func BreakerConfig() *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(BreakerName)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || !IsBackendFailure(err)
	}
	return cfg
}

// DefaultRetryConfig retries reads on transport failures and 5xx responses
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 2
	cfg.RetryableErrors = func(err error) bool {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return false
		}
		return IsBackendFailure(err)
	}
	return cfg
}

// New creates a backend client. breaker, logger and m may be nil.
func New(cfg Config, breaker *resilience.CircuitBreaker, logger *logging.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(BreakerConfig(), logger.Logger)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		breaker:    breaker,
		retry:      cfg.Retry,
		logger:     logger.WithComponent("wmsclient"),
		metrics:    m,
	}
}

// Ready reports an error while the backend circuit is open
func (c *Client) Ready() error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("%w for %s", resilience.ErrCircuitOpen, c.breaker.Name())
	}
	return nil
}

// BreakerStatus returns a snapshot of the backend circuit breaker
func (c *Client) BreakerStatus() resilience.CircuitBreakerStatus {
	return c.breaker.Status()
}

// get runs an idempotent read, retried per the client retry config
func (c *Client) get(ctx context.Context, operation, path string, result any) error {
	if c.retry == nil {
		return c.execute(ctx, operation, http.MethodGet, path, nil, result)
	}

	_, err := resilience.RetryWithResult(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.execute(ctx, operation, http.MethodGet, path, nil, result)
	})
	return err
}

func (c *Client) post(ctx context.Context, operation, path string, body, result any) error {
	return c.execute(ctx, operation, http.MethodPost, path, body, result)
}

// execute sends one request through the circuit breaker
func (c *Client) execute(ctx context.Context, operation, method, path string, body, result any) error {
	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.doRequest(ctx, operation, method, path, body, result)
	})

	if c.metrics != nil {
		c.metrics.SetCircuitBreakerState(c.breaker.Name(), int(c.breaker.State()))
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, operation, method, path string, body, result any) error {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "wms."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", c.baseURL+path),
			attribute.String("service", "wms-backend"),
		),
	)
	defer span.End()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			err = fmt.Errorf("failed to marshal request body: %w", err)
			c.record(ctx, operation, method, path, 0, start, err)
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		c.record(ctx, operation, method, path, 0, start, err)
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID(ctx))

	tracing.InjectTraceContext(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = &TransportError{Operation: operation, Err: err}
		c.record(ctx, operation, method, path, 0, start, err)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		httpErr := newHTTPError(operation, resp.StatusCode, bodyBytes)
		span.RecordError(httpErr)
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, httpErr.Error())
		}
		c.record(ctx, operation, method, path, resp.StatusCode, start, httpErr)
		return httpErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			err = &DecodeError{Operation: operation, Err: err}
			span.RecordError(err)
			c.record(ctx, operation, method, path, resp.StatusCode, start, err)
			return err
		}
	}

	c.record(ctx, operation, method, path, resp.StatusCode, start, nil)
	return nil
}

func (c *Client) record(ctx context.Context, operation, method, path string, status int, start time.Time, err error) {
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordDownstream(operation, status, duration)
	}
	c.logger.DownstreamCall(ctx, operation, method, path, status, duration, err)
}

// requestID forwards the inbound request id, or mints one for calls made
// outside a request (CLI, background work).
func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(logging.RequestIDKey).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}
