// Package supabase provides a client for Supabase (PostgREST + Auth).
// Every data call runs with the signed-in user's access token so row-level
// security scopes it to that user.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST and GoTrue APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Supabase client. apiKey is the project's anon key.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// statusError is a non-2xx answer from Supabase.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Code, e.Body)
}

// classify turns a raw failure into something the retry loop and the
// breaker understand: auth rejections become ErrUnauthorized, other 4xx
// answers are not retried.
func classify(err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "supabase rejected the session token"})
	case se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests:
		return err
	case se.Code >= 400 && se.Code < 500:
		return resilience.Permanent(&domain.ErrValidation{Field: "row", Message: se.Body})
	}
	return err
}

// read runs a GET-style call through the breaker with retries.
func (c *Client) read(ctx context.Context, service string, fn func() error) error {
	err := resilience.Execute(c.cb, service, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	return wrap(service, err)
}

// write runs a mutating call through the breaker once. Failed writes are
// replayed by the caller's outbox, not here.
func (c *Client) write(service string, fn func() error) error {
	err := resilience.Execute(c.cb, service, func() error {
		return resilience.Unmark(fn())
	})
	return wrap(service, err)
}

func wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	var (
		open *domain.ErrCircuitOpen
		un   *domain.ErrUnauthorized
		nf   *domain.ErrNotFound
	)
	if errors.As(err, &open) || errors.As(err, &un) || errors.As(err, &nf) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// doRequest executes a request to Supabase PostgREST as the given user.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	c.setHeaders(req, accessToken)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	bearer := accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
}
