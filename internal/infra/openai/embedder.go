package openai

import (
	"context"
	"sort"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/core/search"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Embedder は OpenAI 互換の /embeddings API を使用してテキストをベクトルに変換する
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	limiter   *rate.Limiter
}

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// MaxEmbeddingBatchSize は1リクエストに含められる最大件数
	MaxEmbeddingBatchSize = 100
)

type embedderOptions struct {
	model             string
	dimension         int
	baseURL           string
	requestsPerSecond float64
	clientOptions     []option.RequestOption
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする。0 の場合はリクエストに含めない
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithEmbeddingBaseURL は OpenAI 互換サーバーのベースURLを設定する
func WithEmbeddingBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// WithEmbeddingRateLimit は1秒あたりのリクエスト数を制限する。0以下は無制限
func WithEmbeddingRateLimit(requestsPerSecond float64) EmbedderOption {
	return func(o *embedderOptions) {
		o.requestsPerSecond = requestsPerSecond
	}
}

// WithEmbeddingRequestOptions は SDK のリクエストオプションを追加する
func WithEmbeddingRequestOptions(opts ...option.RequestOption) EmbedderOption {
	return func(o *embedderOptions) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, failure.Wrap(failure.ErrConfiguration, "new embedder", ErrAPIKeyNotSet)
	}

	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// リトライは行わない（失敗はそのまま呼び出し元へ返す）
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.baseURL))
	}
	clientOpts = append(clientOpts, options.clientOptions...)

	var limiter *rate.Limiter
	if options.requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.requestsPerSecond), 1)
	}

	return &Embedder{
		client:    openai.NewClient(clientOpts...),
		model:     options.model,
		dimension: options.dimension,
		limiter:   limiter,
	}, nil
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, failure.New(failure.ErrEmbedding, "no embeddings generated")
	}

	return embeddings[0], nil
}

// BatchEmbed はバッチで Embedding を生成する（最大100件）
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, failure.New(failure.ErrInvalidInput, "no texts provided")
	}

	if len(texts) > MaxEmbeddingBatchSize {
		return nil, failure.Newf(failure.ErrInvalidInput, "batch size %d exceeds maximum of %d", len(texts), MaxEmbeddingBatchSize)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, failure.Wrap(failure.ErrEmbedding, "wait for rate limiter", err)
		}
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, failure.Wrap(failure.ErrEmbedding, describeAPIError("generate embeddings", err), err)
	}

	if len(resp.Data) != len(texts) {
		return nil, failure.Newf(failure.ErrEmbedding, "embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	// index 順に並べ直す
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Index < data[j].Index
	})

	embeddings := make([][]float32, 0, len(data))
	for _, d := range data {
		vector := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vector[i] = float32(v)
		}
		embeddings = append(embeddings, vector)
	}

	return embeddings, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す（OpenAI APIは最大100件）
func (e *Embedder) MaxBatchSize() int {
	return MaxEmbeddingBatchSize
}

// Metadata はモデル情報を返す
func (e *Embedder) Metadata() ingestion.Metadata {
	return ingestion.Metadata{
		ModelName: e.model,
		Dimension: e.dimension,
	}
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder = (*Embedder)(nil)
	_ search.Embedder    = (*Embedder)(nil)
)
