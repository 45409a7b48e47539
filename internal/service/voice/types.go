// Package voice drives the client side of a spoken conversation with the
// tutor: capture, a short thinking pause, the backend reply and synthesis.
package voice

import (
	"context"
	"errors"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/model/chat"
)

// State is the interaction state shown to the user.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

// TierLocal marks replies produced from the local reply bank when the
// backend could not be reached.
const TierLocal = "local"

var (
	// ErrClosed is returned by operations on a closed Machine.
	ErrClosed = errors.New("voice: machine closed")
	// ErrInterrupted is returned when a newer operation cancelled this one.
	ErrInterrupted = errors.New("voice: interrupted")
)

// Voice describes one synthesizer voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// Utterance is a single synthesis request.
type Utterance struct {
	Text   string
	Voice  Voice
	Pitch  float64
	Rate   float64
	Volume float64
}

// Recognizer captures one spoken phrase and returns its transcript.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Synthesizer speaks utterances. Speak must return promptly once ctx is
// cancelled.
type Synthesizer interface {
	Voices() []Voice
	Speak(ctx context.Context, u Utterance) error
}

// Reply is what a Replier produced for one user message.
type Reply struct {
	Text    string
	Tier    string
	Mood    mood.Label
	AgentID string
}

// Replier obtains the tutor's reply, usually from the backend.
type Replier interface {
	Reply(ctx context.Context, userID, message string, prior []chat.Turn) (Reply, error)
}

// Exchange is one completed user → captain round trip.
type Exchange struct {
	User    chat.Message
	Captain chat.Message
	Tier    string
	Mood    mood.Label
}
