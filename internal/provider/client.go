// Package provider is the HTTP client for the upstream facility-management
// API. It owns transport concerns: authentication header, per-call timeout,
// outbound rate limiting, tracing and call accounting.
package provider

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/iliamunaev/facility-gateway/internal/service/tracker"
)

const maxBodyBytes = 1 << 20

// Response is the outcome of one provider call.
type Response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	// Unreadable is set when the status arrived but the body could not be
	// read in full. Data then holds whatever was read.
	Unreadable bool `json:"unreadable,omitempty"`
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Data, v)
}

// Observer receives one notification per completed provider call.
// status is 0 when no response was received.
type Observer interface {
	ObserveProviderCall(op string, status int, d time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// Client calls the provider API.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	hc      *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	obs     Observer
	tr      *tracker.Tracker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithObserver reports every call to obs.
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.obs = obs }
}

// WithTracker counts in-flight calls on tr.
func WithTracker(tr *tracker.Tracker) Option {
	return func(c *Client) { c.tr = tr }
}

// New returns a Client for cfg.
//
// It panics if cfg.BaseURL is empty. A non-positive timeout defaults to 10s.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		panic("provider.New: empty base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		hc:      &http.Client{},
		tracer:  otel.Tracer("github.com/iliamunaev/facility-gateway/internal/provider"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one call. Any received status, including 4xx and 5xx, is a
// Response. A returned error with a zero Status means no HTTP response was
// received; with a non-zero Status the body could not be read.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "provider."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	start := time.Now()
	resp, err := c.roundTrip(ctx, method, path, body)
	if c.obs != nil {
		c.obs.ObserveProviderCall(op, resp.Status, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, fmt.Errorf("%s %s: %w", method, path, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if resp.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}

	end := c.tr.Begin()
	defer end()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{Status: res.StatusCode, Data: data, Unreadable: true}, fmt.Errorf("read body: %w", err)
	}
	return Response{Status: res.StatusCode, Data: data}, nil
}
