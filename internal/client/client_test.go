package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second, zerolog.Nop())
}

func TestChatSendsHistory(t *testing.T) {
	var payload struct {
		Message             string              `json:"message"`
		UserID              string              `json:"userId"`
		ConversationHistory []chat.HistoryEntry `json:"conversationHistory"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{"response":"Four!","status":"success","tierUsed":"agent","agentId":"a1","mood":"happy"}`)
	})

	resp, err := c.Chat(context.Background(), "u1", "what is 2+2?", []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "Welcome!"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Four!", resp.Response)
	assert.Equal(t, "agent", resp.TierUsed)
	assert.Equal(t, "a1", resp.AgentID)

	assert.Equal(t, "what is 2+2?", payload.Message)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, []chat.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Welcome!"},
	}, payload.ConversationHistory)
}

func TestReplyMapsResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"Mock hello","status":"mock","tierUsed":"mock","mood":"sleepy"}`)
	})

	reply, err := c.Reply(context.Background(), "", "I'm stuck", nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock hello", reply.Text)
	assert.Equal(t, "mock", reply.Tier)
	assert.Equal(t, mood.Confused, reply.Mood)
}

func TestErrorsCarryBackendCode(t *testing.T) {
	cases := []struct {
		status int
		kind   errs.Kind
	}{
		{http.StatusBadRequest, errs.InvalidInput},
		{http.StatusRequestEntityTooLarge, errs.PayloadTooLarge},
		{http.StatusTooManyRequests, errs.RateLimited},
		{http.StatusInternalServerError, errs.ServiceUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"success":false,"error":"nope","code":"SOME_CODE"}`)
		})

		_, err := c.Chat(context.Background(), "", "hi", nil)
		require.Error(t, err)
		assert.Equal(t, tc.kind, errs.KindOf(err), "status %d", tc.status)
		assert.Contains(t, err.Error(), "SOME_CODE")
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(srv.URL, time.Second, zerolog.Nop())
	srv.Close()

	_, err := c.Reply(context.Background(), "u1", "hi", nil)
	assert.Equal(t, errs.ServiceUnavailable, errs.KindOf(err))
}

func TestMalformedBodyIsProtocolError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.Chat(context.Background(), "", "hi", nil)
	assert.Equal(t, errs.Protocol, errs.KindOf(err))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			_, _ = io.WriteString(w, `{"status":"healthy","message":"Server is running perfectly!","environment":{"env":"development","omnidimensionApiKey":"missing"}}`)
		case "/api/agent/health":
			_, _ = io.WriteString(w, `{"status":"unhealthy","message":"Omnidimension API is not responding","apiKeyConfigured":false}`)
		default:
			http.NotFound(w, r)
		}
	})

	report, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", report.Service.Status)
	assert.Equal(t, "missing", report.Service.Environment.APIKey)
	assert.Equal(t, "unhealthy", report.Upstream.Status)
	assert.False(t, report.Upstream.APIKeyConfigured)
}
