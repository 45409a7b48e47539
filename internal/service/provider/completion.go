package provider

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"

	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
)

var completionTemplate = prompt.FromMessages(
	schema.FString,
	schema.SystemMessage("{system}"),
	schema.MessagesPlaceholder("history", true),
	schema.UserMessage("{query}"),
)

// ChatGeneric calls the OpenAI-compatible completion endpoint with the
// system prompt prepended to turns.
func (c *Client) ChatGeneric(ctx context.Context, turns []chat.Turn, systemPrompt string) (RawResponse, error) {
	const op = "provider.generic_chat"
	if err := c.requireKey(op); err != nil {
		return nil, err
	}
	if err := chat.ValidateTurns(turns); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}

	messages, err := renderMessages(ctx, systemPrompt, turns)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	return c.do(ctx, op, http.MethodPost, "/v1/chat/completions", req, c.cfg.Timeout)
}

// renderMessages formats [system] + history + [query] through the chat
// template and converts the result to the wire message type.
func renderMessages(ctx context.Context, systemPrompt string, turns []chat.Turn) ([]openai.ChatCompletionMessage, error) {
	last := len(turns) - 1
	history := make([]*schema.Message, 0, last)
	for _, t := range turns[:last] {
		switch t.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(t.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(t.Content))
		}
	}

	formatted, err := completionTemplate.Format(ctx, map[string]any{
		"system":  systemPrompt,
		"history": history,
		"query":   turns[last].Content,
	})
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(formatted))
	for _, m := range formatted {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return messages, nil
}
