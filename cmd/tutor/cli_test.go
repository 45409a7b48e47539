package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain-focus/backend/internal/service/voice"
)

func runTutor(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TUTOR_TTS_COMMAND", "")
	t.Setenv("TUTOR_USER_ID", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--thinking", "0", "--pace", "0", "--log-level", "disabled"))
	err := root.Execute()
	return out.String(), err
}

func fakeBackend(t *testing.T) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			bodies = append(bodies, body)
			_, _ = io.WriteString(w, `{"response":"🎯 Let's crack it together!","status":"success","tierUsed":"agent","mood":"confused"}`)
		case "/api/health":
			_, _ = io.WriteString(w, `{"status":"healthy","message":"Server is running perfectly!","environment":{"omnidimensionApiKey":"configured"}}`)
		case "/api/agent/health":
			_, _ = io.WriteString(w, `{"status":"healthy","message":"Omnidimension API is accessible","apiKeyConfigured":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestChatSession(t *testing.T) {
	srv, bodies := fakeBackend(t)
	prefs := filepath.Join(t.TempDir(), "voice.json")

	out, err := runTutor(t, "I'm stuck\n\n/listen\nhelp please\n/quit\n",
		"chat", "--backend", srv.URL, "--prefs", prefs, "--user", "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "Captain Focus, AI study companion")
	assert.Contains(t, out, "Let's crack it together!")
	assert.NotContains(t, out, "🎯")
	assert.Contains(t, out, "mood: confused · via agent")
	assert.Contains(t, out, "Quest paused")

	require.Len(t, *bodies, 2)
	assert.Equal(t, "I'm stuck", (*bodies)[0]["message"])
	assert.Equal(t, "u1", (*bodies)[0]["userId"])
	assert.Equal(t, "help please", (*bodies)[1]["message"])
	assert.Len(t, (*bodies)[1]["conversationHistory"], 2)
}

func TestChatFallsBackWhenBackendDown(t *testing.T) {
	srv, _ := fakeBackend(t)
	srv.Close()

	out, err := runTutor(t, "so tired today\n", "chat", "--backend", srv.URL, "--prefs", filepath.Join(t.TempDir(), "v.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "mood: tired · via local")
}

func TestVoiceSettingsCommands(t *testing.T) {
	prefs := filepath.Join(t.TempDir(), "voice.json")

	out, err := runTutor(t, "", "voice", "set", "--pitch", "3", "--rate", "1.2", "--prefs", prefs)
	require.NoError(t, err)
	assert.Contains(t, out, "pitch: 2.00")
	assert.Contains(t, out, "rate:  1.20")

	saved, err := voice.NewFileStore(prefs).Load()
	require.NoError(t, err)
	assert.Equal(t, voice.Preferences{SelectedVoice: 0, Pitch: 2, Rate: 1.2}, saved)

	out, err = runTutor(t, "", "voice", "show", "--prefs", prefs)
	require.NoError(t, err)
	assert.Contains(t, out, "* 0  Console")

	_, err = runTutor(t, "", "voice", "set", "--voice", "4", "--prefs", prefs)
	assert.Error(t, err)

	_, err = runTutor(t, "", "voice", "set", "--prefs", prefs)
	assert.Error(t, err)

	out, err = runTutor(t, "", "voice", "reset", "--prefs", prefs)
	require.NoError(t, err)
	assert.Contains(t, out, "pitch: 1.10")
	assert.Contains(t, out, "rate:  0.90")
}

func TestVoiceTestSpeaksSample(t *testing.T) {
	out, err := runTutor(t, "", "voice", "test", "--prefs", filepath.Join(t.TempDir(), "voice.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "This is how Captain Focus sounds")
}

func TestHealthCommand(t *testing.T) {
	srv, _ := fakeBackend(t)

	out, err := runTutor(t, "", "health", "--backend", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "backend:  healthy")
	assert.Contains(t, out, "api key:  configured")
	assert.Contains(t, out, "upstream: healthy")
}

func TestMissingSpeechCommand(t *testing.T) {
	t.Setenv("TUTOR_TTS_COMMAND", "")
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"voice", "test", "--tts-command", "captain-focus-no-such-tts", "--prefs", filepath.Join(t.TempDir(), "v.json")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
