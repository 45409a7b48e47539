package voice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/model/persona"
)

const (
	// Volume is applied to every utterance.
	Volume = 0.8

	defaultThinkBase   = time.Second
	defaultThinkJitter = time.Second
	maxTranscript      = 40
)

// preferredVoiceHints pick a fallback voice when the saved index is stale.
var preferredVoiceHints = []string{"female", "woman", "zira", "samantha"}

// Option configures a Machine.
type Option func(*Machine)

// WithThinkingWindow sets the pause before a reply is spoken: base plus a
// random amount below jitter.
func WithThinkingWindow(base, jitter time.Duration) Option {
	return func(m *Machine) {
		m.thinkBase = base
		m.thinkJitter = jitter
	}
}

// WithObserver registers fn for every state transition. fn runs with the
// machine lock held and must not call back into the Machine.
func WithObserver(fn func(State)) Option {
	return func(m *Machine) { m.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithUserID sets the user id passed to the Replier.
func WithUserID(userID string) Option {
	return func(m *Machine) { m.userID = userID }
}

// operation is the single in-flight listening, thinking or speaking task.
type operation struct {
	kind   State
	cancel context.CancelFunc
	done   chan struct{}
}

// Machine serializes listening, thinking and speaking. Starting a new
// operation cancels the current one and waits for it to finish first.
type Machine struct {
	recognizer Recognizer
	synth      Synthesizer
	replier    Replier
	prefs      PreferenceStore
	logger     zerolog.Logger
	userID     string

	thinkBase   time.Duration
	thinkJitter time.Duration
	observer    func(State)

	mu         sync.Mutex
	state      State
	active     *operation
	transcript []chat.Message
	closed     bool

	// prefsMu serializes read-modify-write cycles on the store.
	prefsMu sync.Mutex
}

// NewMachine wires the capabilities together. recognizer may be nil when
// only typed input is used.
func NewMachine(recognizer Recognizer, synth Synthesizer, replier Replier, prefs PreferenceStore, opts ...Option) *Machine {
	if prefs == nil {
		prefs = NewMemoryStore()
	}
	m := &Machine{
		recognizer:  recognizer,
		synth:       synth,
		replier:     replier,
		prefs:       prefs,
		logger:      zerolog.Nop(),
		thinkBase:   defaultThinkBase,
		thinkJitter: defaultThinkJitter,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "voice").Logger()
	return m
}

// State returns the current interaction state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transcript returns a copy of the conversation so far.
func (m *Machine) Transcript() []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Message(nil), m.transcript...)
}

// StartListening stops any speech, captures one phrase and submits it.
func (m *Machine) StartListening(ctx context.Context) (Exchange, error) {
	if m.recognizer == nil {
		return Exchange{}, errs.E(errs.Configuration, "voice.listen", "speech recognition is not available")
	}

	op, opCtx, err := m.acquire(ctx, StateListening)
	if err != nil {
		return Exchange{}, err
	}
	text, err := m.recognizer.Listen(opCtx)
	interrupted := opCtx.Err() != nil && ctx.Err() == nil
	m.release(op)

	switch {
	case interrupted:
		return Exchange{}, ErrInterrupted
	case ctx.Err() != nil:
		return Exchange{}, ctx.Err()
	case err != nil:
		m.logger.Warn().Err(err).Msg("speech recognition failed")
		return Exchange{}, fmt.Errorf("voice: recognition failed: %w", err)
	}
	return m.Submit(ctx, text)
}

// StopListening cancels capture and waits for the state to settle. It is
// a no-op unless the machine is listening.
func (m *Machine) StopListening() {
	m.mu.Lock()
	op := m.active
	if op == nil || op.kind != StateListening {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	op.cancel()
	<-op.done
}

// Submit sends text to the tutor and speaks the reply.
func (m *Machine) Submit(ctx context.Context, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, errs.E(errs.InvalidInput, "voice.submit", "message must be a non-empty string")
	}
	label := mood.Classify(text)

	op, opCtx, err := m.acquire(ctx, StateThinking)
	if err != nil {
		return Exchange{}, err
	}
	defer m.release(op)

	started := time.Now()
	prior := m.priorTurns()
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderUser,
		Text:      text,
		Mood:      string(label),
		CreatedAt: started.UTC(),
	}
	m.record(userMsg)

	reply, err := m.replier.Reply(opCtx, m.userID, text, prior)
	if opCtx.Err() != nil {
		return Exchange{}, m.cancelCause(ctx)
	}
	if err != nil || strings.TrimSpace(reply.Text) == "" {
		m.logger.Warn().Err(err).Str("mood", string(label)).Msg("backend unavailable, using local reply")
		reply = Reply{Text: mood.RandomReply(label), Tier: TierLocal, Mood: label}
	}
	if !mood.Valid(string(reply.Mood)) {
		reply.Mood = label
	}

	if err := m.think(opCtx, time.Since(started)); err != nil {
		return Exchange{}, m.cancelCause(ctx)
	}

	captainMsg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderCaptain,
		Text:      reply.Text,
		Mood:      string(reply.Mood),
		Tier:      reply.Tier,
		CreatedAt: time.Now().UTC(),
	}
	m.record(captainMsg)

	ex := Exchange{User: userMsg, Captain: captainMsg, Tier: reply.Tier, Mood: reply.Mood}
	m.transition(op, StateSpeaking)
	if err := m.speak(opCtx, reply.Text); err != nil {
		if opCtx.Err() != nil {
			return ex, m.cancelCause(ctx)
		}
		return ex, err
	}
	return ex, nil
}

// Speak says text with the current settings, interrupting anything in
// progress.
func (m *Machine) Speak(ctx context.Context, text string) error {
	op, opCtx, err := m.acquire(ctx, StateSpeaking)
	if err != nil {
		return err
	}
	defer m.release(op)

	if err := m.speak(opCtx, text); err != nil {
		if opCtx.Err() != nil {
			return m.cancelCause(ctx)
		}
		return err
	}
	return nil
}

// TestVoice plays the sample sentence.
func (m *Machine) TestVoice(ctx context.Context) error {
	return m.Speak(ctx, persona.TestVoiceSentence)
}

// Close cancels the active operation and waits for it. Later calls fail
// with ErrClosed.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	op := m.active
	m.mu.Unlock()

	if op != nil {
		op.cancel()
		<-op.done
	}
}

// Preferences returns the stored settings.
func (m *Machine) Preferences() (Preferences, error) {
	m.prefsMu.Lock()
	defer m.prefsMu.Unlock()
	return m.prefs.Load()
}

// SetPitch stores a new pitch, clamped to [MinPitch, MaxPitch].
func (m *Machine) SetPitch(pitch float64) (Preferences, error) {
	return m.updatePreferences(func(p *Preferences) { p.Pitch = pitch })
}

// SetRate stores a new rate, clamped to [MinRate, MaxRate].
func (m *Machine) SetRate(rate float64) (Preferences, error) {
	return m.updatePreferences(func(p *Preferences) { p.Rate = rate })
}

// SelectVoice stores the index of the voice to use.
func (m *Machine) SelectVoice(index int) (Preferences, error) {
	if voices := m.synth.Voices(); len(voices) > 0 && index >= len(voices) {
		return Preferences{}, errs.E(errs.InvalidInput, "voice.select", "voice index %d out of range (0-%d)", index, len(voices)-1)
	}
	return m.updatePreferences(func(p *Preferences) { p.SelectedVoice = index })
}

// ResetPreferences restores and stores the defaults.
func (m *Machine) ResetPreferences() (Preferences, error) {
	return m.updatePreferences(func(p *Preferences) { *p = DefaultPreferences() })
}

// Voices lists the synthesizer's voices.
func (m *Machine) Voices() []Voice {
	return m.synth.Voices()
}

func (m *Machine) updatePreferences(mutate func(*Preferences)) (Preferences, error) {
	m.prefsMu.Lock()
	defer m.prefsMu.Unlock()

	prefs, err := m.prefs.Load()
	if err != nil {
		return Preferences{}, err
	}
	mutate(&prefs)
	prefs = prefs.Clamp()
	if err := m.prefs.Save(prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

// resolveVoice maps the saved index onto the synthesizer's voices and
// persists a corrected index when the saved one is out of range.
func (m *Machine) resolveVoice(prefs Preferences) Voice {
	voices := m.synth.Voices()
	if len(voices) == 0 {
		return Voice{}
	}
	if prefs.SelectedVoice >= 0 && prefs.SelectedVoice < len(voices) {
		return voices[prefs.SelectedVoice]
	}

	index := fallbackVoice(voices)
	if _, err := m.updatePreferences(func(p *Preferences) { p.SelectedVoice = index }); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist corrected voice index")
	}
	return voices[index]
}

func fallbackVoice(voices []Voice) int {
	for i, v := range voices {
		name := strings.ToLower(v.Name)
		for _, hint := range preferredVoiceHints {
			if strings.Contains(name, hint) {
				return i
			}
		}
	}
	return 0
}

func (m *Machine) speak(ctx context.Context, text string) error {
	text = StripEmoji(text)
	if text == "" {
		return nil
	}

	prefs, err := m.Preferences()
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load voice preferences, using defaults")
		prefs = DefaultPreferences()
	}
	u := Utterance{
		Text:   text,
		Voice:  m.resolveVoice(prefs),
		Pitch:  prefs.Pitch,
		Rate:   prefs.Rate,
		Volume: Volume,
	}

	m.logger.Debug().
		Str("voice", u.Voice.Name).
		Float64("pitch", u.Pitch).
		Float64("rate", u.Rate).
		Int("textLen", len(text)).
		Msg("speaking")
	if err := m.synth.Speak(ctx, u); err != nil {
		return fmt.Errorf("voice: synthesis failed: %w", err)
	}
	return nil
}

// think waits out whatever remains of the thinking window after elapsed.
func (m *Machine) think(ctx context.Context, elapsed time.Duration) error {
	window := m.thinkBase
	if m.thinkJitter > 0 {
		window += rand.N(m.thinkJitter)
	}
	remaining := window - elapsed
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire cancels the active operation, waits for it to finish and installs
// a new one of the given kind.
func (m *Machine) acquire(ctx context.Context, kind State) (*operation, context.Context, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, nil, ErrClosed
		}
		prev := m.active
		if prev == nil {
			opCtx, cancel := context.WithCancel(ctx)
			op := &operation{kind: kind, cancel: cancel, done: make(chan struct{})}
			m.active = op
			m.setStateLocked(kind)
			m.mu.Unlock()
			return op, opCtx, nil
		}
		m.mu.Unlock()

		prev.cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (m *Machine) release(op *operation) {
	m.mu.Lock()
	if m.active == op {
		m.active = nil
		m.setStateLocked(StateIdle)
	}
	m.mu.Unlock()
	op.cancel()
	close(op.done)
}

func (m *Machine) transition(op *operation, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == op {
		op.kind = state
		m.setStateLocked(state)
	}
}

func (m *Machine) setStateLocked(state State) {
	if m.state == state {
		return
	}
	m.state = state
	if m.observer != nil {
		m.observer(state)
	}
}

// cancelCause reports why an operation stopped early: the caller's own
// context, or a newer operation taking over.
func (m *Machine) cancelCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrInterrupted
}

func (m *Machine) record(msg chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript = append(m.transcript, msg)
	if over := len(m.transcript) - maxTranscript; over > 0 {
		m.transcript = append([]chat.Message(nil), m.transcript[over:]...)
	}
}

func (m *Machine) priorTurns() []chat.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := make([]chat.Turn, 0, len(m.transcript))
	for _, msg := range m.transcript {
		turns = append(turns, msg.Turn())
	}
	return turns
}
