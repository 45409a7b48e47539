// Package dispatch turns a user message into a reply, degrading from the
// user's agent to the generic completion endpoint to a local canned reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/model/persona"
	"github.com/captain-focus/backend/internal/service/provider"
)

// Tier names the stage that produced a reply.
type Tier string

const (
	TierAgent   Tier = "agent"
	TierGeneric Tier = "generic"
	TierMock    Tier = "mock"
)

// Status values reported to clients.
const (
	StatusSuccess = "success"
	StatusMock    = "mock"
)

// DefaultMaxMessageBytes bounds the size of a single inbound message.
const DefaultMaxMessageBytes = 8192

var errUnrecognisedReply = errors.New("provider reply has no recognisable text")

// SessionResolver resolves the agent bound to a user.
type SessionResolver interface {
	ResolveOrCreate(ctx context.Context, userID string) (agentID string, created bool, err error)
}

// ChatProvider is the subset of the provider client used for replies.
type ChatProvider interface {
	ChatWithAgent(ctx context.Context, agentID string, turns []chat.Turn) (provider.RawResponse, error)
	ChatGeneric(ctx context.Context, turns []chat.Turn, systemPrompt string) (provider.RawResponse, error)
}

// Request is one inbound message.
type Request struct {
	UserID     string
	Message    string
	PriorTurns []chat.Turn
}

// Result is the reply for a Request.
type Result struct {
	Text    string
	AgentID string
	Tier    Tier
	Mood    mood.Label
}

// Status is "mock" for the local fallback and "success" otherwise.
func (r Result) Status() string {
	if r.Tier == TierMock {
		return StatusMock
	}
	return StatusSuccess
}

// Pipeline runs the reply tiers strictly in order.
type Pipeline struct {
	sessions SessionResolver
	provider ChatProvider
	persona  persona.Persona
	maxBytes int
	logger   zerolog.Logger
}

// New builds a Pipeline. maxMessageBytes <= 0 selects DefaultMaxMessageBytes.
func New(sessions SessionResolver, prov ChatProvider, p persona.Persona, maxMessageBytes int, logger zerolog.Logger) *Pipeline {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	return &Pipeline{
		sessions: sessions,
		provider: prov,
		persona:  p,
		maxBytes: maxMessageBytes,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Validate checks a message before any tier runs.
func (p *Pipeline) Validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return errs.E(errs.InvalidInput, "dispatch", "message must be a non-empty string")
	}
	if len(message) > p.maxBytes {
		return errs.E(errs.PayloadTooLarge, "dispatch", "message is %d bytes, limit is %d", len(message), p.maxBytes)
	}
	return nil
}

// Dispatch always yields a reply for a valid message. The only errors are
// InvalidInput and PayloadTooLarge; provider failures are absorbed by the
// next tier.
func (p *Pipeline) Dispatch(ctx context.Context, req Request) (Result, error) {
	if err := p.Validate(req.Message); err != nil {
		return Result{}, err
	}

	start := time.Now()
	result := Result{Mood: mood.Classify(req.Message)}

	turns := make([]chat.Turn, 0, len(req.PriorTurns)+1)
	turns = append(turns, req.PriorTurns...)
	turns = append(turns, chat.Turn{Role: chat.RoleUser, Content: req.Message})

	userID := strings.TrimSpace(req.UserID)
	if userID != "" {
		agentID, text, err := p.agentTier(ctx, userID, turns)
		result.AgentID = agentID
		if err == nil {
			return p.finish(result, TierAgent, text, start), nil
		}
		p.logger.Warn().Err(err).Str("user_id", userID).Str("tier", string(TierAgent)).Msg("tier failed, falling through")
	}

	text, err := p.genericTier(ctx, turns)
	if err == nil {
		return p.finish(result, TierGeneric, text, start), nil
	}
	p.logger.Warn().Err(err).Str("tier", string(TierGeneric)).Msg("tier failed, falling through")

	return p.finish(result, TierMock, p.persona.MockReply(req.Message), start), nil
}

func (p *Pipeline) agentTier(ctx context.Context, userID string, turns []chat.Turn) (string, string, error) {
	agentID, _, err := p.sessions.ResolveOrCreate(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("resolve agent: %w", err)
	}

	raw, err := p.provider.ChatWithAgent(ctx, agentID, turns)
	if err != nil {
		return agentID, "", err
	}
	text, err := recognised(raw)
	return agentID, text, err
}

func (p *Pipeline) genericTier(ctx context.Context, turns []chat.Turn) (string, error) {
	raw, err := p.provider.ChatGeneric(ctx, turns, p.persona.SystemPrompt)
	if err != nil {
		return "", err
	}
	return recognised(raw)
}

// recognised treats an unknown payload shape as a tier failure.
func recognised(raw provider.RawResponse) (string, error) {
	reply := provider.Decode(raw)
	if !reply.Known() {
		return "", errUnrecognisedReply
	}
	return reply.Text, nil
}

func (p *Pipeline) finish(result Result, tier Tier, text string, start time.Time) Result {
	result.Tier = tier
	result.Text = text
	p.logger.Info().
		Str("tier", string(tier)).
		Str("mood", string(result.Mood)).
		Int("reply_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("message dispatched")
	return result
}
