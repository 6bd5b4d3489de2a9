package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"BuyBuddy/internal/cache"
	"BuyBuddy/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatPath          = "/api/v1/chat"
	conversationsPath = "/api/v1/history/conversations"
	searchesPath      = "/api/v1/history/searches"

	// maxErrorBody bounds how much of an error body ends up in APIError
	maxErrorBody = 2048
)

// Client talks to the shopping assistant backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	cache      *cache.Store
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTracer sets the tracer used for request spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter used for the request duration histogram
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.duration = newDurationHistogram(meter)
	}
}

// WithCache enables caching of the session-less conversation listing
func WithCache(store *cache.Store) Option {
	return func(c *Client) {
		c.cache = store
	}
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		tracer:     otel.Tracer("buybuddy/api"),
		duration:   newDurationHistogram(otel.Meter("buybuddy/api")),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newDurationHistogram(meter metric.Meter) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil
	}
	return histogram
}

// Chat sends one user message. Transport failures and non-2xx answers are
// returned as errors; anything the backend managed to answer is classified
// into a Reply, including structured errors.
func (c *Client) Chat(ctx context.Context, message string, sessionID string) (Reply, error) {
	req := ChatRequest{Message: message}
	if sessionID != "" {
		req.SessionID = &sessionID
	}

	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, chatPath, nil, req, &resp); err != nil {
		return nil, err
	}

	// A new exchange changes what the conversation listing returns.
	c.cache.Invalidate()

	return resp.Reply(), nil
}

// ConversationHistory lists recorded exchanges. With an empty sessionID the
// backend returns recent exchanges across sessions. Entries come back in the
// order the backend chose, which is newest first.
func (c *Client) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}

	var cacheKey string
	if sessionID == "" {
		cacheKey = cache.GenerateCacheKey(conversationsPath, query.Encode())
		if body, ok := c.cache.Load(cacheKey); ok {
			var entries []HistoryEntry
			if err := json.Unmarshal(body, &entries); err == nil {
				c.logger.Debug("cache hit", "path", conversationsPath, "key", cacheKey[:16])
				return entries, nil
			}
		}
	}

	var entries []HistoryEntry
	body, err := c.doRaw(ctx, http.MethodGet, conversationsPath, query, nil)
	if err != nil {
		return nil, err
	}
	if err := decode(body, &entries, c.baseURL+conversationsPath); err != nil {
		return nil, err
	}
	if cacheKey != "" {
		c.cache.Store(cacheKey, body)
	}

	return entries, nil
}

// ConversationProducts returns every product found during a session, each
// tagged with the search query that produced it.
func (c *Client) ConversationProducts(ctx context.Context, sessionID string) ([]session.Product, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	path := "/api/v1/history/conversation/" + url.PathEscape(sessionID) + "/products"

	var products []session.Product
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchHistory lists searches the backend ran, optionally for one session
func (c *Client) SearchHistory(ctx context.Context, sessionID string, limit int) ([]SearchEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}

	var searches []SearchEntry
	if err := c.do(ctx, http.MethodGet, searchesPath, query, nil, &searches); err != nil {
		return nil, err
	}
	return searches, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.doRaw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	return decode(body, out, c.baseURL+path)
}

// doRaw performs one request and returns the body of a 2xx answer
func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+routeName(path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("request.id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return nil, &TransportError{Op: "send", URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, &TransportError{Op: "read", URL: target, Err: err}
	}

	c.recordDuration(ctx, start, method, path, resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), maxErrorBody),
		}
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Warn("backend request failed",
			"method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return nil, apiErr
	}

	c.logger.Debug("backend request completed",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration_ms", time.Since(start).Milliseconds())

	return body, nil
}

func (c *Client) recordDuration(ctx context.Context, start time.Time, method, path string, status int) {
	if c.duration == nil {
		return
	}
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", routeName(path)),
			attribute.Int("http.response.status_code", status),
		))
}

func decode(body []byte, out any, target string) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: "decode", URL: target, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}

// routeName collapses session ids out of paths so spans and metrics keep a
// bounded set of names.
func routeName(path string) string {
	const prefix = "/api/v1/history/conversation/"
	if strings.HasPrefix(path, prefix) && strings.HasSuffix(path, "/products") {
		return prefix + "{session_id}/products"
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
