package chat

import "time"

// Sender values used in client transcripts.
const (
	SenderUser    = "user"
	SenderCaptain = "captain"
)

// Message is one line of a client-side transcript.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Mood      string    `json:"mood,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn converts a transcript line into the turn shape sent upstream.
func (m Message) Turn() Turn {
	if m.Sender == SenderUser {
		return Turn{Role: RoleUser, Content: m.Text}
	}
	return Turn{Role: RoleAssistant, Content: m.Text}
}
