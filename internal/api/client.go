// Package api is the REST client for the MealLens backend. It owns request
// construction, auth header attachment, timeout enforcement, and the
// classification of every failure into a single typed error callers can
// render or branch on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meallensai/meallens-go/internal/telemetry"
)

const (
	// DefaultTimeout applies to generic calls.
	DefaultTimeout = 10 * time.Second

	// SlowTimeout applies to history and settings endpoints, which are known
	// to be slower on the backend.
	SlowTimeout = 30 * time.Second
)

// TokenSource supplies the current bearer token, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend REST API base.
	BaseURL string

	// AIBaseURL is the inference service base, used for detection calls.
	// Falls back to BaseURL when empty.
	AIBaseURL string

	// Timeout overrides DefaultTimeout when set.
	Timeout time.Duration

	// ClientID is the per-install identifier attached to every request.
	ClientID string
}

// Client issues requests against the MealLens backend. The underlying HTTP
// client carries a cookie jar so httpOnly session cookies ride alongside the
// bearer token (the backend runs a dual cookie/bearer auth model).
type Client struct {
	cfg       Config
	http      *http.Client
	tokens    TokenSource
	onExpired func()
	tracer    trace.Tracer
}

// New creates a client. tokens may be nil for unauthenticated use.
func New(cfg Config, tokens TokenSource) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Jar:       jar,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		tokens: tokens,
		tracer: otel.Tracer("meallens/api"),
	}
}

// OnSessionExpired registers the handler invoked when a non-exempt request
// fails with 401. The handler owns clearing the session and whatever
// transition the frontend wants; the request itself still fails with an
// authentication error.
func (c *Client) OnSessionExpired(fn func()) {
	c.onExpired = fn
}

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string

	// Body is sent as-is for []byte and string, JSON-marshaled otherwise.
	Body   any
	Header http.Header

	// SkipAuth suppresses the Authorization header (login, register).
	SkipAuth bool

	// Timeout overrides the client default for this call.
	Timeout time.Duration

	// SuppressAuthRedirect keeps a 401 from triggering the session-expired
	// handler, for calls expected to fail with 401 as normal user feedback
	// (wrong password, stale invitation).
	SuppressAuthRedirect bool

	// AI routes the call to the inference service base URL.
	AI bool
}

// Do executes the request and returns the raw response body for 2xx
// responses. Every failure is an *Error.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, req)

	m := telemetry.Get()
	attrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.Path),
	)
	m.RequestsTotal.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		kind := KindUnexpected
		var apiErr *Error
		if errors.As(err, &apiErr) {
			kind = apiErr.Kind
		}
		m.RequestErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind.String()),
		))
	}
	return body, err
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		))
	defer span.End()

	httpReq, err := c.build(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		classified := classifyTransport(err)
		span.SetStatus(codes.Error, classified.Message)
		log.Debug().Str("method", req.Method).Str("path", req.Path).
			Dur("elapsed", time.Since(start)).Err(err).Msg("request failed")
		return nil, classified
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, "read failed")
		return nil, classifyTransport(err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	log.Debug().Str("method", req.Method).Str("path", req.Path).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).
		Msg("request complete")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	classified := c.classifyStatus(req, resp.StatusCode, body)
	span.SetStatus(codes.Error, classified.Message)
	return nil, classified
}

// DoJSON executes the request and unmarshals the response body into v.
// A nil v discards the body.
func (c *Client) DoJSON(ctx context.Context, req Request, v any) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if v == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{
			Kind:    KindUnexpected,
			Message: "Unexpected response from server.",
			Raw:     body,
		}
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	base := c.cfg.BaseURL
	if req.AI && c.cfg.AIBaseURL != "" {
		base = c.cfg.AIBaseURL
	}
	target := strings.TrimRight(base, "/") + req.Path

	var bodyReader io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		bodyReader = bytes.NewReader(b)
	case string:
		bodyReader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, newError(KindUnexpected, 0, "Unexpected error: "+err.Error())
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, newError(KindUnexpected, 0, "Unexpected error: "+err.Error())
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if c.cfg.ClientID != "" {
		httpReq.Header.Set("X-Client-Id", c.cfg.ClientID)
	}

	if !req.SkipAuth && c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}

// classifyTransport maps a fetch-level failure to a typed error. Context
// cancellation and deadline expiry are indistinguishable on purpose: both
// surface as the timeout error.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTimeout, 0, msgTimeout)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return newError(KindTimeout, 0, msgTimeout)
		}
		return newError(KindNetwork, 0, msgNetwork)
	}

	return newError(KindUnexpected, 0, "Unexpected error: "+err.Error())
}

// classifyStatus maps a non-2xx response to a typed error and drives the
// forced-logout path for session-breaking 401s.
func (c *Client) classifyStatus(req Request, status int, body []byte) *Error {
	switch {
	case status == http.StatusUnauthorized:
		if req.SuppressAuthRedirect || isAuthEndpoint(req.Path) {
			msg := backendMessage(body)
			if msg == "" {
				msg = genericHTTPMessage(status, http.StatusText(status))
			}
			return &Error{Kind: KindAuthentication, Status: status, Message: msg, Raw: body}
		}
		log.Info().Str("path", req.Path).Msg("session rejected by backend, forcing sign-out")
		if c.onExpired != nil {
			c.onExpired()
		}
		return &Error{Kind: KindAuthentication, Status: status, Message: msgAuthRequired, Raw: body}

	case status == http.StatusForbidden:
		return &Error{Kind: KindAuthorization, Status: status, Message: msgForbidden, Raw: body}

	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Message: notFoundMessage(req.Path), Raw: body}

	case status >= 500:
		// Server faults never clear the session.
		return &Error{Kind: KindServer, Status: status, Message: serverErrorMessage(req.Path), Raw: body}

	default:
		msg := backendMessage(body)
		if msg == "" {
			msg = genericHTTPMessage(status, http.StatusText(status))
		}
		return &Error{Kind: KindHTTP, Status: status, Message: msg, Raw: body}
	}
}

// isAuthEndpoint reports whether the path is one of the credential endpoints
// whose 401s are normal user-facing feedback rather than session expiry.
func isAuthEndpoint(path string) bool {
	return strings.HasSuffix(path, "/login") || strings.HasSuffix(path, "/register")
}
