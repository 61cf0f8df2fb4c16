package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlens/internal/core"
)

func sseChunk(content string) string {
	chunk := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"delta": map[string]string{"content": content}, "index": 0},
		},
	}
	data, _ := json.Marshal(chunk)
	return fmt.Sprintf("data: %s\n\n", data)
}

func TestOpenAIStreamCompletion(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk(`{"expense":{"category":"ME`))
		fmt.Fprint(w, sseChunk(`ALS","amount":12.5,"date":"01-Jan","details":"lunch","participants":""}}`))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	var chunks []string
	content, err := client.StreamCompletion(context.Background(), Request{
		System: "system instruction",
		Prompt: "lunch 12.50",
		Schema: core.ExpenseSchema(),
	}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Len(t, chunks, 2)
	assert.JSONEq(t, `{"expense":{"category":"MEALS","amount":12.5,"date":"01-Jan","details":"lunch","participants":""}}`, content)

	assert.Equal(t, true, gotBody["stream"])
	rf, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok, "request must carry a response_format")
	assert.Equal(t, "json_schema", rf["type"])
}

func TestOpenAIRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.StreamCompletion(context.Background(), Request{Prompt: "x"}, nil)
	assert.ErrorIs(t, err, core.ErrRateLimited)
}

func TestOpenAIServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.StreamCompletion(context.Background(), Request{Prompt: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOpenAIEmptyStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.StreamCompletion(context.Background(), Request{Prompt: "x"}, nil)
	assert.Error(t, err)
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := newOpenAIClient(Config{})
	assert.Error(t, err)
}

func TestNewClientFactory(t *testing.T) {
	client, err := NewClient(Config{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, client)

	_, err = NewClient(Config{Provider: "openai", APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewClient(Config{Provider: "anthropic", APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewClient(Config{Provider: "gemini"})
	assert.Error(t, err)
}
