// Package client talks to the Captain Focus backend over HTTP.
package client

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

	"github.com/rs/zerolog"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/service/voice"
)

const maxResponseBytes = 1 << 20

// Client calls the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New returns a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "backend_client").Logger(),
	}
}

// ChatResponse is the body of POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	Status    string `json:"status"`
	TierUsed  string `json:"tierUsed"`
	AgentID   string `json:"agentId,omitempty"`
	Mood      string `json:"mood"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Chat sends one message with the prior turns as conversation history.
func (c *Client) Chat(ctx context.Context, userID, message string, prior []chat.Turn) (ChatResponse, error) {
	history := make([]chat.HistoryEntry, 0, len(prior))
	for _, turn := range prior {
		history = append(history, chat.HistoryEntry{Role: string(turn.Role), Content: turn.Content})
	}
	payload := map[string]any{
		"message":             message,
		"conversationHistory": history,
	}
	if userID != "" {
		payload["userId"] = userID
	}

	var resp ChatResponse
	if err := c.do(ctx, "backend.chat", http.MethodPost, "/api/chat", payload, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// Reply adapts Chat to the voice machine.
func (c *Client) Reply(ctx context.Context, userID, message string, prior []chat.Turn) (voice.Reply, error) {
	resp, err := c.Chat(ctx, userID, message, prior)
	if err != nil {
		return voice.Reply{}, err
	}
	label := mood.Label(resp.Mood)
	if !mood.Valid(resp.Mood) {
		label = mood.Classify(message)
	}
	return voice.Reply{Text: resp.Response, Tier: resp.TierUsed, Mood: label, AgentID: resp.AgentID}, nil
}

// HealthReport combines the service and upstream health endpoints.
type HealthReport struct {
	Service struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		Environment struct {
			Env    string `json:"env"`
			APIKey string `json:"omnidimensionApiKey"`
		} `json:"environment"`
	}
	Upstream struct {
		Status           string `json:"status"`
		Message          string `json:"message"`
		APIKeyConfigured bool   `json:"apiKeyConfigured"`
	}
}

// Health queries /api/health and then /api/agent/health.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport
	if err := c.do(ctx, "backend.health", http.MethodGet, "/api/health", nil, &report.Service); err != nil {
		return report, err
	}
	if err := c.do(ctx, "backend.agent_health", http.MethodGet, "/api/agent/health", nil, &report.Upstream); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errs.Wrap(errs.Configuration, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Debug().Err(err).Str("op", op).Msg("backend unreachable")
		return errs.Wrap(errs.ServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errs.Wrap(errs.ServiceUnavailable, op, err)
	}
	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.Protocol, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError keeps the backend's error code and message when present.
func statusError(op string, status int, body []byte) error {
	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &decoded) == nil && decoded.Code != "" {
		detail = decoded.Code + ": " + decoded.Error
		if decoded.Message != "" {
			detail += " (" + decoded.Message + ")"
		}
	}
	if detail == "" {
		detail = http.StatusText(status)
	}

	kind := errs.FromStatus(status)
	switch status {
	case http.StatusBadRequest:
		kind = errs.InvalidInput
	case http.StatusRequestEntityTooLarge:
		kind = errs.PayloadTooLarge
	}
	return &errs.Error{Kind: kind, Op: op, Status: status, Err: errors.New(detail)}
}
