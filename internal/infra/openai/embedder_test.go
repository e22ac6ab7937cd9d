package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

type embeddingRequest struct {
	Model      string          `json:"model"`
	Input      json.RawMessage `json:"input"`
	Dimensions int             `json:"dimensions"`
}

// newEmbeddingServer はテキスト長をベクトルにする /embeddings を返す（index は逆順）
func newEmbeddingServer(t *testing.T, requests *[]embeddingRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		var inputs []string
		if err := json.Unmarshal(req.Input, &inputs); err != nil {
			var single string
			require.NoError(t, json.Unmarshal(req.Input, &single))
			inputs = []string{single}
		}

		data := make([]map[string]any, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(inputs[i])), 0.5},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder, err := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)
	require.NoError(t, err)

	meta := embedder.Metadata()
	assert.Equal(t, "custom-model", meta.ModelName)
	assert.Equal(t, 42, meta.Dimension)
	assert.Equal(t, MaxEmbeddingBatchSize, embedder.MaxBatchSize())
}

func TestNewEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestEmbedder_BatchEmbedPreservesInputOrder(t *testing.T) {
	var requests []embeddingRequest
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	embedder, err := NewEmbedder("test-key",
		WithEmbeddingBaseURL(server.URL),
		WithEmbeddingModel("nomic-embed-text"),
		WithEmbeddingDimension(0),
		WithEmbeddingRateLimit(1000),
	)
	require.NoError(t, err)

	vectors, err := embedder.BatchEmbed(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 0.5}, vectors[0])
	assert.Equal(t, []float32{3, 0.5}, vectors[1])
	assert.Equal(t, []float32{2, 0.5}, vectors[2])

	require.Len(t, requests, 1)
	assert.Equal(t, "nomic-embed-text", requests[0].Model)
	assert.Zero(t, requests[0].Dimensions)
}

func TestEmbedder_EmbedIsDeterministic(t *testing.T) {
	var requests []embeddingRequest
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	embedder, err := NewEmbedder("test-key", WithEmbeddingBaseURL(server.URL))
	require.NoError(t, err)

	first, err := embedder.Embed(context.Background(), "same text")
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, requests, 2)
	assert.Equal(t, DefaultEmbeddingDimension, requests[0].Dimensions)
}

func TestEmbedder_BatchEmbedErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"model is loading","type":"server_error"}}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder("test-key", WithEmbeddingBaseURL(server.URL))
	require.NoError(t, err)

	t.Run("APIエラー", func(t *testing.T) {
		_, err := embedder.BatchEmbed(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrEmbedding)
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("空の入力", func(t *testing.T) {
		_, err := embedder.BatchEmbed(context.Background(), nil)
		assert.ErrorIs(t, err, failure.ErrInvalidInput)
	})

	t.Run("上限超過", func(t *testing.T) {
		_, err := embedder.BatchEmbed(context.Background(), make([]string, MaxEmbeddingBatchSize+1))
		assert.ErrorIs(t, err, failure.ErrInvalidInput)
	})
}
