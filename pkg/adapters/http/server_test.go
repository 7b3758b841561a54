package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwalk/chatwalk/internal/runtime"
	httpAdapter "github.com/chatwalk/chatwalk/pkg/adapters/http"
	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := memory.NewRegistry()
	registry.Register(&domain.Graph{
		ID: "greeter",
		Groups: []domain.Group{
			{ID: "welcome", Blocks: []domain.Block{
				{ID: "hi", Type: domain.BlockText, Content: map[string]any{"markdown": "Hi!"}},
				{ID: "ask", Type: domain.BlockEmailInput, Options: map[string]any{"variable": "email"}},
			}},
			{ID: "bye", Blocks: []domain.Block{
				{ID: "b", Type: domain.BlockText, Content: map[string]any{"markdown": "Bye {{email}}"}},
			}},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: domain.EdgeSource{GroupID: "welcome", BlockID: "ask"}, To: domain.EdgeTarget{GroupID: "bye"}},
		},
	})

	engine := runtime.NewEngine(memory.NewStore(), runtime.WithBotLoader(registry))
	srv := httptest.NewServer(httpAdapter.NewHandler(engine))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestServer_ChatRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	var start domain.StartChatResponse
	resp := postJSON(t, srv.URL+"/api/v1/chats/start", map[string]any{"botId": "greeter"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &start)

	require.NotEmpty(t, start.SessionID)
	require.Len(t, start.Messages, 1)
	assert.Equal(t, "Hi!", start.Messages[0].Content["markdown"])
	require.NotNil(t, start.Input)

	t.Run("Object Body", func(t *testing.T) {
		var reply domain.Reply
		resp := postJSON(t, fmt.Sprintf("%s/api/v1/chats/%s/continue", srv.URL, start.SessionID),
			map[string]any{"message": map[string]any{"type": "text", "text": "ada@example.com"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &reply)

		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "Bye ada@example.com", reply.Messages[0].Content["markdown"])
		assert.Nil(t, reply.Input)
	})

	t.Run("Terminated Session Maps To 404", func(t *testing.T) {
		resp := postJSON(t, fmt.Sprintf("%s/api/v1/chats/%s/continue", srv.URL, start.SessionID), "hello")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_BareStringShorthand(t *testing.T) {
	srv := newTestServer(t)

	var start domain.StartChatResponse
	resp := postJSON(t, srv.URL+"/api/v1/chats/start", map[string]any{"botId": "greeter"})
	decodeBody(t, resp, &start)

	var reply domain.Reply
	resp = postJSON(t, fmt.Sprintf("%s/api/v1/chats/%s/continue", srv.URL, start.SessionID), "grace@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &reply)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Bye grace@example.com", reply.Messages[0].Content["markdown"])
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Unknown Session Is 404", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/chats/does-not-exist/continue", "hi")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Unknown Bot Is 500", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/chats/start", map[string]any{"botId": "ghost"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("Malformed Body Is 400", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/chats/start", "application/json", bytes.NewReader([]byte("{nope")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
