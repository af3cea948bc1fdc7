package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/campus-gateway/internal/metrics"
	"github.com/angeloszaimis/campus-gateway/pkg/tokenstore"
)

// maxAttempts bounds every logical request to the primary attempt plus one
// retry against a newly detected endpoint.
const maxAttempts = 2

// RequestIDHeader carries the id shared by an attempt and its retry.
const RequestIDHeader = "X-Request-ID"

// Resolver provides the backend base URL.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
	ForceRedetect(ctx context.Context) (string, error)
}

// HealthTracker receives request outcomes and gates redetection.
// TryBeginDetection reports whether a redetection is warranted now and, if
// so, stamps the attempt in the same step.
type HealthTracker interface {
	ReportSuccess()
	ReportFailure()
	TryBeginDetection() bool
}

// Request is one logical call. Path is relative to the API root and may carry
// a query string. Header values are sent as given; Authorization set here
// takes precedence over the stored token.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Client sends requests to the discovered backend and retries once after a
// redetection moves it.
type Client struct {
	resolver   Resolver
	tracker    HealthTracker
	httpClient *http.Client
	timeout    time.Duration
	tokens     tokenstore.Store
	classifier Classifier
	collector  *metrics.Collector
	logger     *slog.Logger
}

// New returns a Client that resolves endpoints through resolver and reports
// outcomes to tracker.
func New(resolver Resolver, tracker HealthTracker, opts ...Option) (*Client, error) {
	if resolver == nil || tracker == nil {
		return nil, errors.New("resolver and health tracker are required")
	}

	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		resolver:   resolver,
		tracker:    tracker,
		httpClient: o.HTTPClient,
		timeout:    o.Timeout,
		tokens:     o.Tokens,
		classifier: Classifier{NotFoundIsStale: o.NotFoundIsStale},
		collector:  o.Collector,
		logger:     o.Logger,
	}, nil
}

// Do sends a request and returns the raw JSON body of a 2xx response. An
// empty body yields nil.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return c.Send(ctx, &Request{Method: method, Path: path, Body: body})
}

// DoJSON is Do followed by decoding the response into out, when out is
// non-nil and the response has a body.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.Do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response for %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Send executes req. The request is attempted against the resolved endpoint;
// a retryable failure may trigger one redetection and, if that produced a
// different endpoint, exactly one retry whose outcome is final.
func (c *Client) Send(ctx context.Context, r *Request) (json.RawMessage, error) {
	req := *r
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		req.Path = "/" + req.Path
	}

	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding body for %s %s: %w", req.Method, req.Path, err)
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	endpoint, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		data, err := c.attempt(ctx, endpoint, &req, payload, requestID)

		// The caller gave up; that says nothing about the backend.
		if err != nil && ctx.Err() != nil {
			return nil, err
		}

		switch c.classifier.Classify(err) {
		case OutcomeSuccess:
			c.tracker.ReportSuccess()
			return decodeBody(data)

		case OutcomeFatal:
			c.tracker.ReportFailure()
			c.logFailure(endpoint, &req, requestID, attempt, err, OutcomeFatal)
			return nil, err

		case OutcomeRetryable:
			c.tracker.ReportFailure()
			c.logFailure(endpoint, &req, requestID, attempt, err, OutcomeRetryable)

			if attempt >= maxAttempts {
				return nil, err
			}

			next, ok := c.redetect(ctx, endpoint, requestID)
			if !ok {
				return nil, err
			}
			endpoint = next
		}
	}
}

// redetect asks for a new endpoint if the tracker allows it. It returns
// false when no redetection was warranted, it failed, or it found the same
// endpoint again.
func (c *Client) redetect(ctx context.Context, used, requestID string) (string, bool) {
	if !c.tracker.TryBeginDetection() {
		return "", false
	}

	c.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventRedetection,
		Endpoint: used,
	})

	next, err := c.resolver.ForceRedetect(ctx)
	if err != nil {
		c.logger.Warn("Endpoint redetection failed",
			slog.String("endpoint", used),
			slog.String("request_id", requestID),
			slog.Any("err", err))
		return "", false
	}

	if next == used {
		c.logger.Info("Endpoint redetection kept the same endpoint, not retrying",
			slog.String("endpoint", used),
			slog.String("request_id", requestID))
		return "", false
	}

	c.logger.Info("Endpoint changed, retrying request",
		slog.String("from", used),
		slog.String("endpoint", next),
		slog.String("request_id", requestID))
	return next, true
}

func (c *Client) attempt(ctx context.Context, endpoint string, req *Request, payload []byte, requestID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", req.Method, req.Path, err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if httpReq.Header.Get("Authorization") == "" {
		if token, ok := c.tokens.Get(tokenstore.AccessTokenKey); ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Method: req.Method, Path: req.Path, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Method: req.Method, Path: req.Path, Err: err}
	}

	c.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventRequestCompleted,
		Endpoint:   endpoint,
		Duration:   time.Since(start),
		StatusCode: res.StatusCode,
	})

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := newAPIError(res.StatusCode, data)
		apiErr.Endpoint = endpoint
		apiErr.Method = req.Method
		apiErr.Path = req.Path
		return nil, apiErr
	}

	return data, nil
}

func (c *Client) logFailure(endpoint string, req *Request, requestID string, attempt int, err error, outcome Outcome) {
	kind := kindOf(err)

	status := 0
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
	}

	c.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventRequestFailed,
		Endpoint:   endpoint,
		Kind:       kind,
		StatusCode: status,
	})

	attrs := []any{
		slog.String("endpoint", endpoint),
		slog.String("kind", kind),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("request_id", requestID),
		slog.Int("attempt", attempt),
		slog.String("outcome", outcome.String()),
		slog.Any("err", err),
	}
	if status != 0 {
		attrs = append(attrs, slog.Int("status", status))
	}

	if status == http.StatusNotFound && outcome == OutcomeRetryable {
		c.logger.Warn("404 counted as connectivity failure; check the route if this repeats", attrs...)
		return
	}
	c.logger.Warn("Request failed", attrs...)
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func decodeBody(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(trimmed), nil
}
