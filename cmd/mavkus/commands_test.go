package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/mavkus/internal/config"
	"github.com/kalambet/mavkus/internal/engine"
	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useClient points the commands at ts for the duration of the test.
func useClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

var ctx = context.Background()

func TestSendChat(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat": `{"success":true,"response":"Ciao!","conversation_id":"c1","metadata":{"routed_to_gemini":true,"gemini_used":false}}`,
	})

	res, err := sendChat(ctx, ts.client(), "u1", "ciao", false)
	require.NoError(t, err)
	assert.Equal(t, "Ciao!", res.Response)
	assert.Equal(t, "c1", res.ConversationID)
	assert.True(t, res.Metadata.RoutedToGemini)
	assert.False(t, res.Metadata.GeminiUsed)

	require.Len(t, ts.requests, 1)
	r := ts.requests[0]
	assert.Equal(t, "Bearer test-token", r.Auth)
	assert.JSONEq(t, `{"user_id":"u1","message":"ciao","enable_critique":false}`, r.Body)
}

func TestChatCommand_JoinsMessage(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat": `{"success":true,"response":"ok"}`,
	})
	useClient(t, ts)

	require.NoError(t, runCommand(t, "chat", "u1", "come", "stai?"))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(ts.requests[0].Body), &body))
	assert.Equal(t, "come stai?", body["message"])
	assert.Equal(t, true, body["enable_critique"])
}

func TestChatCommand_MissingArgs(t *testing.T) {
	assert.Error(t, runCommand(t, "chat", "u1"))
}

func TestClearCommand_RequiresConfirm(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /api/memory/u1": `{"success":true}`,
	})
	useClient(t, ts)

	require.NoError(t, runCommand(t, "clear", "u1"))
	require.Empty(t, ts.requests, "no request without --confirm")

	require.NoError(t, runCommand(t, "clear", "u1", "--confirm"))
	require.Len(t, ts.requests, 1)
	assert.Equal(t, http.MethodDelete, ts.requests[0].Method)
}

func TestKeysSetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/auth/save-keys": `{"success":true,"keys_saved":["gemini_api_key"]}`,
	})
	useClient(t, ts)

	require.NoError(t, runCommand(t, "keys", "set", "u1", "--gemini", "AIza-test"))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(ts.requests[0].Body), &body))
	assert.Equal(t, "AIza-test", body["gemini_api_key"])
	assert.Equal(t, "", body["groq_api_key"])
}

func TestKeysSetCommand_MissingFlags(t *testing.T) {
	// Flag values persist on the shared command between Execute calls.
	keysSetCmd.Flags().Set("groq", "")
	keysSetCmd.Flags().Set("gemini", "")

	err := runCommand(t, "keys", "set", "u1")
	assert.ErrorContains(t, err, "required")
}

func TestKeysShowCommand_Reveal(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/auth/get-keys/u1": `{"success":true,"api_keys":{"groq_api_key":"gsk_1"}}`,
	})
	useClient(t, ts)

	require.NoError(t, runCommand(t, "keys", "show", "u1", "--reveal"))
	assert.Equal(t, "/api/auth/get-keys/u1?reveal=true", ts.requests[0].Path)
}

func TestConversationsList_URLEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/conversations/user a": `{"success":true,"conversations":[]}`,
	})
	useClient(t, ts)

	require.NoError(t, runCommand(t, "conversations", "list", "user a", "--limit", "5"))
	assert.Equal(t, "/api/conversations/user%20a?limit=5", ts.requests[0].Path)
}

func TestAPIClientAuth_EmptyToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"healthy"}`,
	})

	client := ts.client()
	client.token = ""

	require.NoError(t, client.get(ctx, "/health", nil))
	assert.Empty(t, ts.requests[0].Auth)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"user not found","type":"not_found_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	var result any
	err := client.get(ctx, "/api/stats/ghost", &result)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.EqualError(t, err, "server returned 404: user not found")
}

func TestAPIClient_PlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	err := client.get(ctx, "/api/stats/u1", nil)
	assert.EqualError(t, err, "server returned 502: bad gateway")
}

func TestAPIClient_ServerDown(t *testing.T) {
	client := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: &http.Client{Timeout: time.Second}}

	err := client.get(ctx, "/health", nil)
	assert.ErrorContains(t, err, "not reachable")
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	assert.Equal(t, "test message", colorize(colorGreen, "test message"))

	noColor = false
	assert.Contains(t, colorize(colorGreen, "test message"), "\033[")
}

func TestNewMemoryStore(t *testing.T) {
	st, err := storage.Open(storage.MemoryDSN)
	require.NoError(t, err)
	defer st.Close()

	for _, backend := range []string{config.BackendSQLite, config.BackendMemory} {
		mem, closer, err := newMemoryStore(config.MemoryConfig{Backend: backend}, st)
		require.NoError(t, err, backend)

		state := memory.NewState("u1")
		state.Profile.ConversationCount = 3
		require.NoError(t, mem.Save(ctx, state), backend)

		got, ok := mem.Load(ctx, "u1")
		require.True(t, ok, backend)
		assert.Equal(t, 3, got.Profile.ConversationCount, backend)
		assert.NoError(t, closer.Close(), backend)
	}
}

func TestNewMemoryStore_RedisUnreachable(t *testing.T) {
	_, _, err := newMemoryStore(config.MemoryConfig{Backend: config.BackendRedis, RedisURL: "redis://127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

func TestEngineConfig_Ollama(t *testing.T) {
	var cfg config.Config
	cfg.Generalist.Provider = engine.ProviderOllama
	cfg.Generalist.Model = "llama-3.3-70b-versatile"
	cfg.Ollama.BaseURL = "http://ollama:11434"
	cfg.Ollama.Model = "llama3.2"
	cfg.Specialist.Timeout = "5s"

	ec := engineConfig(cfg)
	assert.Equal(t, "llama3.2", ec.Generalist.Model)
	assert.Equal(t, "http://ollama:11434", ec.Generalist.BaseURL)
	assert.Equal(t, 5*time.Second, ec.SpecialistTimeout)
}

func TestServiceConfig(t *testing.T) {
	var cfg config.Config
	cfg.Generalist.Timeout = "45s"
	cfg.Critic.Timeout = "bogus"
	cfg.Memory.SaveEvery = 3
	cfg.Cache.Size = 7

	sc := serviceConfig(cfg)
	assert.Equal(t, 45*time.Second, sc.Orchestrator.GenerationTimeout)
	assert.Equal(t, 30*time.Second, sc.Orchestrator.CritiqueTimeout, "default for an invalid duration")
	assert.Equal(t, 3, sc.Orchestrator.SaveEvery)
	assert.Equal(t, 7, sc.CacheSize)
	assert.True(t, sc.AsyncPersistence)
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Generalist.APIKey = "gsk_secret"

	shown := map[string]string{}
	for _, k := range config.ShowAll(cfg) {
		shown[k.Key] = k.Value
	}
	assert.Equal(t, "4000", shown["server.port"])
	assert.Equal(t, "(set)", shown["generalist.api_key"])
}
