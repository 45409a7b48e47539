package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/model/persona"
)

// AgentSpec is the agent definition sent on creation.
type AgentSpec struct {
	Name             string           `json:"name"`
	WelcomeMessage   string           `json:"welcome_message"`
	ContextBreakdown []ContextSection `json:"context_breakdown"`
	Transcriber      Transcriber      `json:"transcriber"`
	Model            ModelSettings    `json:"model"`
	Voice            VoiceSettings    `json:"voice"`
	PostCallActions  PostCallActions  `json:"post_call_actions"`
}

type ContextSection struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	IsEnabled bool   `json:"is_enabled"`
}

type Transcriber struct {
	Provider         string `json:"provider"`
	SilenceTimeoutMS int    `json:"silence_timeout_ms"`
	Model            string `json:"model"`
	Numerals         bool   `json:"numerals"`
	Punctuate        bool   `json:"punctuate"`
	SmartFormat      bool   `json:"smart_format"`
	Diarize          bool   `json:"diarize"`
}

type ModelSettings struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type VoiceSettings struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voice_id"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type PostCallActions struct {
	Email              EmailAction         `json:"email"`
	ExtractedVariables []ExtractedVariable `json:"extracted_variables"`
}

type EmailAction struct {
	Enabled bool `json:"enabled"`
}

type ExtractedVariable struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

// BuildAgentSpec renders the persona into an agent definition.
func BuildAgentSpec(p persona.Persona, model ModelSettings) AgentSpec {
	sections := make([]ContextSection, 0, len(p.Sections))
	for _, s := range p.Sections {
		sections = append(sections, ContextSection{Title: s.Title, Body: s.Body, IsEnabled: true})
	}

	return AgentSpec{
		Name:             p.Name,
		WelcomeMessage:   p.WelcomeMessage,
		ContextBreakdown: sections,
		Transcriber: Transcriber{
			Provider:         "deepgram_stream",
			SilenceTimeoutMS: 600,
			Model:            "nova-2",
			Numerals:         true,
			Punctuate:        true,
			SmartFormat:      true,
		},
		Model: model,
		Voice: VoiceSettings{
			Provider:        "eleven_labs",
			VoiceID:         p.VoiceID,
			Stability:       0.7,
			SimilarityBoost: 0.8,
		},
		PostCallActions: PostCallActions{
			ExtractedVariables: []ExtractedVariable{
				{Key: "user_emotion", Prompt: "Determine the user's emotional state (Happy, Confused, Tired, Frustrated, Excited, Neutral)"},
				{Key: "subject_topic", Prompt: "Extract the main subject or topic discussed (Math, Science, History, etc.)"},
				{Key: "learning_mode", Prompt: "Identify the learning approach (Deep Dive, Quick Review, Homework Help, Concept Explanation)"},
				{Key: "difficulty_level", Prompt: "Assess the difficulty level of questions asked (Beginner, Intermediate, Advanced)"},
			},
		},
	}
}

func (c *Client) modelSettings() ModelSettings {
	return ModelSettings{Model: c.cfg.Model, Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens}
}

// CreateAgent provisions a new agent and returns its id.
func (c *Client) CreateAgent(ctx context.Context) (string, error) {
	const op = "provider.create_agent"
	if err := c.requireKey(op); err != nil {
		return "", err
	}

	raw, err := c.do(ctx, op, http.MethodPost, "/v1/agents", BuildAgentSpec(c.persona, c.modelSettings()), c.cfg.Timeout)
	if err != nil {
		return "", err
	}

	// The provider wraps the agent in {"status":..,"json":{"id":..}}.
	var envelope struct {
		ID   json.RawMessage `json:"id"`
		JSON struct {
			ID json.RawMessage `json:"id"`
		} `json:"json"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", errs.E(errs.Protocol, op, "decode agent response: %v", err)
	}

	id := idString(envelope.JSON.ID)
	if id == "" {
		id = idString(envelope.ID)
	}
	if id == "" {
		return "", errs.E(errs.Protocol, op, "agent id missing from response")
	}

	c.logger.Info().Str("agent_id", id).Msg("agent created")
	return id, nil
}

type agentChatRequest struct {
	Message             string      `json:"message"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
	Stream              bool        `json:"stream"`
}

// ChatWithAgent sends turns to an existing agent. The last turn is the
// message; earlier turns are sent as history. Non-2xx responses are errors.
func (c *Client) ChatWithAgent(ctx context.Context, agentID string, turns []chat.Turn) (RawResponse, error) {
	const op = "provider.agent_chat"
	if err := c.requireKey(op); err != nil {
		return nil, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, errs.E(errs.InvalidInput, op, "agent id is required")
	}
	if err := chat.ValidateTurns(turns); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}

	last := len(turns) - 1
	history := make([]chat.Turn, last)
	copy(history, turns[:last])

	payload := agentChatRequest{
		Message:             turns[last].Content,
		ConversationHistory: history,
	}
	return c.do(ctx, op, http.MethodPost, "/v1/agents/"+url.PathEscape(agentID)+"/chat", payload, c.cfg.Timeout)
}
