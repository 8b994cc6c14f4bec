// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type clientConfig struct {
	provider   string
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	tracer     trace.Tracer
	recordBody bool
}

// ClientOption configures NewInstrumentedClient.
type ClientOption func(*clientConfig)

// WithProviderName tags metrics and spans with the upstream name.
func WithProviderName(name string) ClientOption {
	return func(c *clientConfig) { c.provider = name }
}

// WithBaseURL is prefixed to every request path.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithRequestTimeout bounds each request, including reading the body.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = timeout }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *clientConfig) { c.headers = headers }
}

// WithTracer sets the tracer. recordBody adds the response body as a span event.
func WithTracer(tracer trace.Tracer, recordBody bool) ClientOption {
	return func(c *clientConfig) {
		c.tracer = tracer
		c.recordBody = recordBody
	}
}

type requestConfig struct {
	errorHandler ResponseErrorHandler
	labels       []attribute.KeyValue
}

// RequestOption configures a single request.
type RequestOption func(*requestConfig)

// ResponseErrorHandler maps a status code and body to an error, or nil when the
// response is usable.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler replaces the default 4xx/5xx handling.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(c *requestConfig) { c.errorHandler = handler }
}

// WithLabels adds attributes to the request counter.
func WithLabels(labels ...attribute.KeyValue) RequestOption {
	return func(c *requestConfig) { c.labels = labels }
}
