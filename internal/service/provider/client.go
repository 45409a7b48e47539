// Package provider talks to the Omnidimension conversational-agent API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/captain-focus/backend/internal/config"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/persona"
)

const maxResponseBytes = 1 << 20

// Client issues authenticated calls to the provider. It never retries.
type Client struct {
	cfg     config.ProviderConfig
	persona persona.Persona
	http    *http.Client
	logger  zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a provider client. A missing API key is allowed here; calls
// that need it fail with a configuration error.
func New(cfg config.ProviderConfig, p persona.Persona, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		persona: p,
		http:    &http.Client{},
		logger:  logger.With().Str("component", "provider").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

func (c *Client) requireKey(op string) error {
	if !c.cfg.Configured() {
		return errs.E(errs.Configuration, op, "OMNIDIMENSION_API_KEY is not set")
	}
	return nil
}

// do sends one request and returns the body of a 2xx response. Every other
// outcome is translated into an *errs.Error here and nowhere else.
func (c *Client) do(ctx context.Context, op, method, path string, payload any, timeout time.Duration) (RawResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, op, err)
		}
		body = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("op", op).Str("method", method).Str("target", path).
			Dur("duration", time.Since(start)).
			Str("outcome", "transport_error").
			Msg("provider call failed")
		return nil, errs.Wrap(errs.ServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	event := c.logger.Info()
	outcome := "ok"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		event = c.logger.Warn()
		outcome = "http_error"
	}
	event.Str("op", op).Str("method", method).Str("target", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("outcome", outcome).
		Msg("provider call")

	if outcome != "ok" {
		return nil, &errs.Error{
			Kind:   errs.FromStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Err:    errors.New(snippet(raw)),
		}
	}
	if readErr != nil {
		return nil, &errs.Error{Kind: errs.ServiceUnavailable, Op: op, Status: resp.StatusCode, Err: readErr}
	}
	return raw, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := string(bytes.TrimSpace(body))
	if s == "" {
		return "empty response body"
	}
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// idString accepts a JSON string or number id.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
