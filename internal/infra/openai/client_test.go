package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

type chatRequest struct {
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	TopP                float64 `json:"top_p"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	ReasoningEffort     string  `json:"reasoning_effort"`
	Stream              bool    `json:"stream"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newSSEServer は deltas を Server-Sent Events で返す /chat/completions を作成する
func newSSEServer(t *testing.T, deltas []string, got *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		for i, delta := range deltas {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1700000000,
				"model":   got.Model,
				"choices": []map[string]any{{
					"index":         0,
					"delta":         map[string]any{"content": delta},
					"finish_reason": nil,
				}},
			}
			if i == 0 {
				chunk["choices"].([]map[string]any)[0]["delta"].(map[string]any)["role"] = "assistant"
			}
			b, err := json.Marshal(chunk)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", b)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestNewClientWithAPIKey_RequiresAPIKey(t *testing.T) {
	_, err := NewClientWithAPIKey("", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestClient_StreamCompletion(t *testing.T) {
	var got chatRequest
	server := newSSEServer(t, []string{"The answer ", "is 42.", "\n(line 6)"}, &got)
	defer server.Close()

	client, err := NewClientWithAPIKey("test-key", "", WithBaseURL(server.URL))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.ModelName())

	stream, err := client.StreamCompletion(context.Background(), "prompt text")
	require.NoError(t, err)
	defer stream.Close()

	var parts []string
	for stream.Next() {
		parts = append(parts, stream.Delta())
	}
	require.NoError(t, stream.Err())

	assert.Equal(t, "The answer is 42.\n(line 6)", strings.Join(parts, ""))

	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, DefaultTemperature, got.Temperature, 1e-9)
	assert.InDelta(t, DefaultTopP, got.TopP, 1e-9)
	assert.Equal(t, DefaultMaxCompletionTokens, got.MaxCompletionTokens)
	assert.Equal(t, "medium", got.ReasoningEffort)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "prompt text", got.Messages[0].Content)
}

func TestClient_StreamCompletionOptions(t *testing.T) {
	var got chatRequest
	server := newSSEServer(t, []string{"ok"}, &got)
	defer server.Close()

	client, err := NewClientWithAPIKey("test-key", "llama-3.1-8b",
		WithBaseURL(server.URL),
		WithTemperature(0.2),
		WithTopP(0.9),
		WithMaxCompletionTokens(128),
		WithReasoningEffort(""),
	)
	require.NoError(t, err)

	stream, err := client.StreamCompletion(context.Background(), "p")
	require.NoError(t, err)
	for stream.Next() {
	}
	require.NoError(t, stream.Err())
	require.NoError(t, stream.Close())

	assert.Equal(t, "llama-3.1-8b", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.InDelta(t, 0.9, got.TopP, 1e-9)
	assert.Equal(t, 128, got.MaxCompletionTokens)
	assert.Empty(t, got.ReasoningEffort)
}

func TestClient_StreamCompletionErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{name: "レート制限", status: http.StatusTooManyRequests, want: "rate limited"},
		{name: "サーバーエラー", status: http.StatusInternalServerError, want: "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			}))
			defer server.Close()

			client, err := NewClientWithAPIKey("test-key", "", WithBaseURL(server.URL))
			require.NoError(t, err)

			_, err = client.StreamCompletion(context.Background(), "p")
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrSynthesis)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
