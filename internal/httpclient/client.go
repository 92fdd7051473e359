package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTransport is the base transport used by the instrumented client.
var DefaultTransport = http.DefaultTransport

type contextKey string

const (
	upstreamKey  contextKey = "httpclient.upstream"
	operationKey contextKey = "httpclient.operation"
)

// WithUpstream tags outgoing requests with the upstream service name and the pipeline
// operation they serve, for span names and attributes.
func WithUpstream(ctx context.Context, upstream, operation string) context.Context {
	ctx = context.WithValue(ctx, upstreamKey, upstream)
	return context.WithValue(ctx, operationKey, operation)
}

// upstreamTransport is a RoundTripper that adds upstream attributes to the current span.
type upstreamTransport struct {
	base http.RoundTripper
}

func (t *upstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := trace.SpanFromContext(req.Context())
	if upstream, ok := req.Context().Value(upstreamKey).(string); ok {
		span.SetAttributes(attribute.String("upstream", upstream))
	}
	if op, ok := req.Context().Value(operationKey).(string); ok {
		span.SetAttributes(attribute.String("synthesis.operation", op))
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}
	return resp, nil
}

func newOtelTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(&upstreamTransport{base: base},
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			upstream, _ := r.Context().Value(upstreamKey).(string)
			if upstream != "" {
				return fmt.Sprintf("%s: %s %s", upstream, r.Method, r.URL.Path)
			}
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// New returns an http.Client with OpenTelemetry instrumentation and the given timeout.
// Image synthesis and long thinking budgets can take minutes, so callers pick the timeout.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport),
		Timeout:   timeout,
	}
}

// WrapClient wraps an existing http.Client's transport with OpenTelemetry instrumentation.
func WrapClient(client *http.Client) *http.Client {
	if client.Transport == nil {
		client.Transport = DefaultTransport
	}
	client.Transport = newOtelTransport(client.Transport)
	return client
}
