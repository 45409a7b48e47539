package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/model/persona"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// events is an ordered log shared by the fakes.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeRecognizer struct {
	ev   *events
	text string
	err  error
	// block makes Listen wait for cancellation.
	block bool
}

func (r *fakeRecognizer) Listen(ctx context.Context) (string, error) {
	r.ev.add("listen")
	if r.block {
		<-ctx.Done()
		r.ev.add("listen-stop")
		return "", ctx.Err()
	}
	return r.text, r.err
}

type fakeSynth struct {
	ev     *events
	voices []Voice
	// hold, when non-nil, keeps Speak running until it is closed or the
	// context is cancelled.
	hold chan struct{}

	mu         sync.Mutex
	utterances []Utterance
}

func (s *fakeSynth) Voices() []Voice { return s.voices }

func (s *fakeSynth) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	s.utterances = append(s.utterances, u)
	hold := s.hold
	s.mu.Unlock()

	s.ev.add("speak")
	if hold == nil {
		return nil
	}
	select {
	case <-hold:
		return nil
	case <-ctx.Done():
		s.ev.add("speak-stop")
		return ctx.Err()
	}
}

func (s *fakeSynth) spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.utterances...)
}

type fakeReplier struct {
	reply Reply
	err   error

	mu     sync.Mutex
	priors [][]chat.Turn
	users  []string
}

func (r *fakeReplier) Reply(_ context.Context, userID, message string, prior []chat.Turn) (Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priors = append(r.priors, prior)
	r.users = append(r.users, userID)
	if r.err != nil {
		return Reply{}, r.err
	}
	reply := r.reply
	if reply.Text == "" {
		reply.Text = "reply to " + message
	}
	return reply, nil
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestMachine(rec Recognizer, synth Synthesizer, replier Replier, store PreferenceStore, opts ...Option) *Machine {
	opts = append([]Option{WithThinkingWindow(0, 0)}, opts...)
	return NewMachine(rec, synth, replier, store, opts...)
}

func waitForState(t *testing.T, m *Machine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, 2*time.Second, time.Millisecond)
}

func TestSubmitSpeaksBackendReply(t *testing.T) {
	ev := &events{}
	synth := &fakeSynth{ev: ev, voices: []Voice{{ID: "v0", Name: "Alex"}}}
	replier := &fakeReplier{reply: Reply{Text: "🎉 Great job, scholar! ⚔️", Tier: "agent", Mood: mood.Happy, AgentID: "a1"}}
	states := &stateLog{}
	m := newTestMachine(nil, synth, replier, nil, WithObserver(states.observe), WithUserID("u1"))
	defer m.Close()

	ex, err := m.Submit(context.Background(), "  thanks, got it ")
	require.NoError(t, err)

	assert.Equal(t, "agent", ex.Tier)
	assert.Equal(t, mood.Happy, ex.Mood)
	assert.Equal(t, "thanks, got it", ex.User.Text)
	assert.Equal(t, chat.SenderUser, ex.User.Sender)
	assert.Equal(t, chat.SenderCaptain, ex.Captain.Sender)
	assert.NotEmpty(t, ex.User.ID)
	assert.NotEqual(t, ex.User.ID, ex.Captain.ID)

	spoken := synth.spoken()
	require.Len(t, spoken, 1)
	assert.Equal(t, "Great job, scholar!", spoken[0].Text)
	assert.Equal(t, Volume, spoken[0].Volume)
	assert.Equal(t, 1.1, spoken[0].Pitch)
	assert.Equal(t, 0.9, spoken[0].Rate)
	assert.Equal(t, "Alex", spoken[0].Voice.Name)

	assert.Equal(t, []State{StateThinking, StateSpeaking, StateIdle}, states.snapshot())
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []string{"u1"}, replier.users)
}

func TestSubmitPassesTranscriptAsPriorTurns(t *testing.T) {
	synth := &fakeSynth{ev: &events{}}
	replier := &fakeReplier{reply: Reply{Tier: "generic"}}
	m := newTestMachine(nil, synth, replier, nil)
	defer m.Close()

	_, err := m.Submit(context.Background(), "hello")
	require.NoError(t, err)
	_, err = m.Submit(context.Background(), "again")
	require.NoError(t, err)

	require.Len(t, replier.priors, 2)
	assert.Empty(t, replier.priors[0])
	assert.Equal(t, []chat.Turn{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "reply to hello"},
	}, replier.priors[1])
	assert.Len(t, m.Transcript(), 4)
}

func TestSubmitFallsBackToLocalReply(t *testing.T) {
	synth := &fakeSynth{ev: &events{}}
	replier := &fakeReplier{err: errors.New("connection refused")}
	m := newTestMachine(nil, synth, replier, nil)
	defer m.Close()

	ex, err := m.Submit(context.Background(), "I'm so tired")
	require.NoError(t, err)

	assert.Equal(t, TierLocal, ex.Tier)
	assert.Equal(t, mood.Tired, ex.Mood)
	assert.Contains(t, []string{
		mood.Reply(mood.Tired, 0),
		mood.Reply(mood.Tired, 1),
		mood.Reply(mood.Tired, 2),
	}, ex.Captain.Text)
	require.Len(t, synth.spoken(), 1)
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	m := newTestMachine(nil, &fakeSynth{ev: &events{}}, &fakeReplier{}, nil)
	defer m.Close()

	_, err := m.Submit(context.Background(), " \t\n")
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
	assert.Empty(t, m.Transcript())
	assert.Equal(t, StateIdle, m.State())
}

func TestThinkingWindowDelaysSpeech(t *testing.T) {
	synth := &fakeSynth{ev: &events{}}
	m := NewMachine(nil, synth, &fakeReplier{}, nil, WithThinkingWindow(60*time.Millisecond, 0))
	defer m.Close()

	start := time.Now()
	_, err := m.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestStartListeningStopsSpeechFirst(t *testing.T) {
	ev := &events{}
	synth := &fakeSynth{ev: ev, hold: make(chan struct{})}
	rec := &fakeRecognizer{ev: ev, text: "I'm stuck on fractions"}
	m := newTestMachine(rec, synth, &fakeReplier{}, nil)
	defer m.Close()

	speakErr := make(chan error, 1)
	go func() { speakErr <- m.Speak(context.Background(), "a long story") }()
	require.Eventually(t, func() bool { return len(synth.spoken()) == 1 }, 2*time.Second, time.Millisecond)

	// later utterances finish immediately
	synth.mu.Lock()
	hold := synth.hold
	synth.hold = nil
	synth.mu.Unlock()
	defer close(hold)

	ex, err := m.StartListening(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mood.Confused, ex.Mood)
	assert.ErrorIs(t, <-speakErr, ErrInterrupted)

	assert.Equal(t, []string{"speak", "speak-stop", "listen", "speak"}, ev.snapshot())
	assert.Equal(t, StateIdle, m.State())
}

func TestStopListeningReturnsToIdle(t *testing.T) {
	ev := &events{}
	rec := &fakeRecognizer{ev: ev, block: true}
	replier := &fakeReplier{}
	m := newTestMachine(rec, &fakeSynth{ev: ev}, replier, nil)
	defer m.Close()

	listenErr := make(chan error, 1)
	go func() {
		_, err := m.StartListening(context.Background())
		listenErr <- err
	}()
	waitForState(t, m, StateListening)

	m.StopListening()
	assert.Equal(t, StateIdle, m.State())
	assert.ErrorIs(t, <-listenErr, ErrInterrupted)
	assert.Empty(t, replier.priors)
}

func TestStopListeningIgnoresSpeech(t *testing.T) {
	synth := &fakeSynth{ev: &events{}, hold: make(chan struct{})}
	m := newTestMachine(nil, synth, &fakeReplier{}, nil)
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Speak(context.Background(), "hello") }()
	waitForState(t, m, StateSpeaking)

	m.StopListening()
	assert.Equal(t, StateSpeaking, m.State())

	close(synth.hold)
	assert.NoError(t, <-done)
}

func TestListeningFailureReturnsToIdle(t *testing.T) {
	ev := &events{}
	rec := &fakeRecognizer{ev: ev, err: errors.New("microphone unavailable")}
	states := &stateLog{}
	m := newTestMachine(rec, &fakeSynth{ev: ev}, &fakeReplier{}, nil, WithObserver(states.observe))
	defer m.Close()

	_, err := m.StartListening(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "microphone unavailable")
	assert.Equal(t, []State{StateListening, StateIdle}, states.snapshot())
}

func TestStartListeningWithoutRecognizer(t *testing.T) {
	m := newTestMachine(nil, &fakeSynth{ev: &events{}}, &fakeReplier{}, nil)
	defer m.Close()

	_, err := m.StartListening(context.Background())
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
}

func TestSpeakCancelledByCaller(t *testing.T) {
	synth := &fakeSynth{ev: &events{}, hold: make(chan struct{})}
	defer close(synth.hold)
	m := newTestMachine(nil, synth, &fakeReplier{}, nil)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Speak(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateIdle, m.State())
}

func TestTestVoiceUsesCurrentSettings(t *testing.T) {
	synth := &fakeSynth{ev: &events{}}
	m := newTestMachine(nil, synth, &fakeReplier{}, nil)
	defer m.Close()

	_, err := m.SetPitch(1.7)
	require.NoError(t, err)
	require.NoError(t, m.TestVoice(context.Background()))

	spoken := synth.spoken()
	require.Len(t, spoken, 1)
	assert.Equal(t, persona.TestVoiceSentence, spoken[0].Text)
	assert.Equal(t, 1.7, spoken[0].Pitch)
}

func TestPreferenceUpdatesAreClamped(t *testing.T) {
	store := NewMemoryStore()
	m := newTestMachine(nil, &fakeSynth{ev: &events{}}, &fakeReplier{}, store)
	defer m.Close()

	prefs, err := m.SetPitch(5)
	require.NoError(t, err)
	assert.Equal(t, MaxPitch, prefs.Pitch)

	prefs, err = m.SetRate(0.1)
	require.NoError(t, err)
	assert.Equal(t, MinRate, prefs.Rate)
	assert.Equal(t, MaxPitch, prefs.Pitch)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Preferences{SelectedVoice: 0, Pitch: MaxPitch, Rate: MinRate}, saved)

	prefs, err = m.ResetPreferences()
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
}

func TestSelectVoiceValidatesIndex(t *testing.T) {
	synth := &fakeSynth{ev: &events{}, voices: []Voice{{Name: "Alex"}, {Name: "Daniel"}}}
	m := newTestMachine(nil, synth, &fakeReplier{}, nil)
	defer m.Close()

	prefs, err := m.SelectVoice(1)
	require.NoError(t, err)
	assert.Equal(t, 1, prefs.SelectedVoice)

	_, err = m.SelectVoice(2)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestStaleVoiceIndexFallsBackAndPersists(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(Preferences{SelectedVoice: 7, Pitch: 1, Rate: 1}))
	synth := &fakeSynth{ev: &events{}, voices: []Voice{{Name: "Alex"}, {Name: "Microsoft Zira Desktop"}, {Name: "Samantha"}}}
	m := newTestMachine(nil, synth, &fakeReplier{}, store)
	defer m.Close()

	require.NoError(t, m.Speak(context.Background(), "hello"))
	assert.Equal(t, "Microsoft Zira Desktop", synth.spoken()[0].Voice.Name)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, saved.SelectedVoice)
}

func TestFallbackVoiceDefaultsToFirst(t *testing.T) {
	assert.Equal(t, 0, fallbackVoice([]Voice{{Name: "Alex"}, {Name: "Daniel"}}))
	assert.Equal(t, 1, fallbackVoice([]Voice{{Name: "Alex"}, {Name: "Google UK English Female"}}))
}

func TestCloseCancelsActiveOperation(t *testing.T) {
	synth := &fakeSynth{ev: &events{}, hold: make(chan struct{})}
	defer close(synth.hold)
	m := newTestMachine(nil, synth, &fakeReplier{}, nil)

	done := make(chan error, 1)
	go func() { done <- m.Speak(context.Background(), "a long story") }()
	waitForState(t, m, StateSpeaking)

	m.Close()
	assert.ErrorIs(t, <-done, ErrInterrupted)
	assert.ErrorIs(t, m.Speak(context.Background(), "again"), ErrClosed)
	_, err := m.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrClosed)
}
