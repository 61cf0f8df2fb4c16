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

func TestAnthropicStreamCompletion(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := map[string]any{
			"id":   "msg_test",
			"type": "message",
			"content": []map[string]string{
				{"type": "text", "text": "```json\n{\"expense\":{\"category\":\"TRAVEL\",\"amount\":32,\"date\":\"09-Jun\",\"details\":\"Uber\",\"participants\":\"\"}}\n```"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	var chunks []string
	content, err := client.StreamCompletion(context.Background(), Request{
		System: "system instruction",
		Prompt: "Uber $32",
		Schema: core.ExpenseSchema(),
	}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Len(t, chunks, 1, "non-streaming provider emits the whole content once")
	assert.JSONEq(t, `{"expense":{"category":"TRAVEL","amount":32,"date":"09-Jun","details":"Uber","participants":""}}`, content)

	system, ok := gotBody["system"].(string)
	require.True(t, ok)
	assert.Contains(t, system, "system instruction")
	assert.Contains(t, system, "JSON schema", "schema travels inside the system text")
}

func TestAnthropicRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"rate_limit_error"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.StreamCompletion(context.Background(), Request{Prompt: "x"}, nil)
	assert.ErrorIs(t, err, core.ErrRateLimited)
}

func TestAnthropicEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"msg_test","type":"message","content":[]}`)
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.StreamCompletion(context.Background(), Request{Prompt: "x"}, nil)
	assert.Error(t, err)
}

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no wrapper", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMarkdownWrapper(tt.input))
		})
	}
}
