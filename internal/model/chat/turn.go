package chat

import (
	"errors"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of a conversation as exchanged with the provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var (
	ErrEmptyTurns   = errors.New("turn sequence is empty")
	ErrLastTurnRole = errors.New("last turn must come from the user")
	ErrEmptyContent = errors.New("turn content is empty")
	ErrUnknownRole  = errors.New("unknown turn role")
)

// ValidateTurns checks that turns is non-empty, every turn has content and a
// known role, and the sequence ends with a user turn.
func ValidateTurns(turns []Turn) error {
	if len(turns) == 0 {
		return ErrEmptyTurns
	}
	for _, t := range turns {
		switch t.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return ErrUnknownRole
		}
		if strings.TrimSpace(t.Content) == "" {
			return ErrEmptyContent
		}
	}
	if turns[len(turns)-1].Role != RoleUser {
		return ErrLastTurnRole
	}
	return nil
}

// History converts loosely typed role/content pairs, as sent by browsers,
// into turns. Entries with an unknown role or no content are dropped.
func History(raw []HistoryEntry) []Turn {
	turns := make([]Turn, 0, len(raw))
	for _, entry := range raw {
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			continue
		}
		switch Role(strings.ToLower(strings.TrimSpace(entry.Role))) {
		case RoleUser:
			turns = append(turns, Turn{Role: RoleUser, Content: content})
		case RoleAssistant, "captain", "bot":
			turns = append(turns, Turn{Role: RoleAssistant, Content: content})
		}
	}
	return turns
}

// HistoryEntry is the wire form of a prior turn in request bodies.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
