package provider

import (
	"bytes"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// RawResponse is an unparsed provider response body.
type RawResponse []byte

// Shape identifies which known payload layout a response matched.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeChatCompletion
	ShapeResponseField
	ShapeMessageField
	ShapePlainText
)

func (s Shape) String() string {
	switch s {
	case ShapeChatCompletion:
		return "chat_completion"
	case ShapeResponseField:
		return "response_field"
	case ShapeMessageField:
		return "message_field"
	case ShapePlainText:
		return "plain_text"
	default:
		return "unknown"
	}
}

// FormatPlaceholder is returned when no known shape matches.
const FormatPlaceholder = "I received your message but had trouble with the response format. Let me try again! 🔄"

// Reply is a decoded provider response.
type Reply struct {
	Shape Shape
	Text  string
}

// Known reports whether the payload matched a known shape.
func (r Reply) Known() bool { return r.Shape != ShapeUnknown }

type decoder struct {
	shape  Shape
	decode func(body []byte) (string, bool)
}

// Tried in order; the first decoder producing non-empty text wins.
var decoders = []decoder{
	{ShapeChatCompletion, decodeChatCompletion},
	{ShapeResponseField, stringField("response")},
	{ShapeMessageField, stringField("message")},
	{ShapePlainText, decodePlainText},
}

// Decode maps a raw body to its shape and trimmed text. It never fails:
// unrecognised payloads yield ShapeUnknown with FormatPlaceholder.
func Decode(raw RawResponse) Reply {
	body := bytes.TrimSpace(raw)
	if len(body) > 0 {
		for _, d := range decoders {
			if text, ok := d.decode(body); ok {
				return Reply{Shape: d.shape, Text: text}
			}
		}
	}
	return Reply{Shape: ShapeUnknown, Text: FormatPlaceholder}
}

// Normalize returns only the text of Decode.
func Normalize(raw RawResponse) string {
	return Decode(raw).Text
}

func decodeChatCompletion(body []byte) (string, bool) {
	if body[0] != '{' {
		return "", false
	}
	// Only choices[0].message.content matters; other fields may be any type.
	var resp struct {
		Choices []struct {
			Message openai.ChatCompletionMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Choices) == 0 {
		return "", false
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}

func stringField(name string) func([]byte) (string, bool) {
	return func(body []byte) (string, bool) {
		if body[0] != '{' {
			return "", false
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return "", false
		}
		raw, ok := fields[name]
		if !ok {
			return "", false
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false
		}
		return nonEmpty(text)
	}
}

// decodePlainText accepts bodies that are not JSON at all, plus bare JSON
// string literals. Other JSON values are not text.
func decodePlainText(body []byte) (string, bool) {
	if !json.Valid(body) {
		return nonEmpty(string(body))
	}
	if body[0] != '"' {
		return "", false
	}
	var text string
	if err := json.Unmarshal(body, &text); err != nil {
		return "", false
	}
	return nonEmpty(text)
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
