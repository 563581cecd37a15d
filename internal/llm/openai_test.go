package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "upstream unavailable", "type": "server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
}

func TestOpenAIClient_GenerateJSON(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, "```json\n{\"score\": 8, \"reasoning\": \"solid\"}\n```")
	defer srv.Close()

	client, err := NewOpenAIClient(ConfigFor("openai", "", srv.URL), "test-key")
	require.NoError(t, err)

	out, err := client.GenerateJSON(context.Background(), "score this", TierLite)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 8, "reasoning": "solid"}`, out)
}

func TestOpenAIClient_GenerateContent(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, "\n- Own the deploy pipeline\n- Mentor engineers\n")
	defer srv.Close()

	client, err := NewOpenAIClient(ConfigFor("openai", "", srv.URL), "test-key")
	require.NoError(t, err)

	out, err := client.GenerateContent(context.Background(), "list responsibilities", TierLite)
	require.NoError(t, err)
	assert.Equal(t, "- Own the deploy pipeline\n- Mentor engineers", out)
}

func TestOpenAIClient_UpstreamError(t *testing.T) {
	srv := newChatServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	client, err := NewOpenAIClient(ConfigFor("openai", "", srv.URL), "test-key")
	require.NoError(t, err)

	_, err = client.GenerateJSON(context.Background(), "score this", TierLite)
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	_, err := NewOpenAIClient(DefaultOpenAIConfig(), "")
	assert.Error(t, err)

	_, err = NewClient(context.Background(), &Config{Provider: "anthropic"}, "key")
	assert.Error(t, err)

	c, err := NewClient(context.Background(), DefaultOpenAIConfig(), "key")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.GetModel(TierLite))
	assert.NoError(t, c.Close())
}

func TestIsAzureEndpoint(t *testing.T) {
	assert.True(t, isAzureEndpoint("https://contoso.openai.azure.com/"))
	assert.False(t, isAzureEndpoint("https://api.openai.com/v1"))
	assert.False(t, isAzureEndpoint(""))
}
