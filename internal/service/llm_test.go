package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
)

func newChatServer(t *testing.T, status int, content string, inspect func(*http.Request, map[string]interface{})) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(server.Close)
	return NewOpenAIClient(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: server.URL + "/"}, server.Client())
}

func TestCompleteJSONSendsJSONMode(t *testing.T) {
	client := newChatServer(t, http.StatusOK, `{"category":"Dairy"}`, func(r *http.Request, body map[string]interface{}) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-test", body["model"])
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])
	})

	var out struct {
		Category string `json:"category"`
	}
	err := client.CompleteJSON(context.Background(), "gpt-test", []ChatMessage{{Role: "user", Content: "milk"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Dairy", out.Category)
}

func TestCompleteJSONStripsCodeFence(t *testing.T) {
	client := newChatServer(t, http.StatusOK, "```json\n{\"ok\":true}\n```", nil)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.CompleteJSON(context.Background(), "m", nil, &out))
	assert.True(t, out.OK)
}

func TestCompleteJSONUpstreamErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		client := newChatServer(t, http.StatusTooManyRequests, "", nil)
		err := client.CompleteJSON(context.Background(), "m", nil, &struct{}{})

		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
		assert.Contains(t, upstream.Payload, "boom")
	})

	t.Run("invalid json content", func(t *testing.T) {
		client := newChatServer(t, http.StatusOK, "sorry, I cannot", nil)
		err := client.CompleteJSON(context.Background(), "m", nil, &struct{}{})

		var upstream *UpstreamError
		assert.True(t, errors.As(err, &upstream))
	})
}
