package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/pdf-rag/internal/core/ask"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

const (
	// DefaultModel はデフォルトで使用するモデル
	DefaultModel = "openai/gpt-oss-20b"

	// DefaultBaseURL は Groq の OpenAI 互換エンドポイント
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultTemperature はサンプリング温度
	DefaultTemperature = 0.7

	// DefaultTopP は nucleus sampling の閾値
	DefaultTopP = 1.0

	// DefaultMaxCompletionTokens は出力トークンの上限
	DefaultMaxCompletionTokens = 2048

	// DefaultReasoningEffort は推論モデル向けの思考量
	DefaultReasoningEffort = shared.ReasoningEffortMedium
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("API key not set: please set LLM_API_KEY or OPENAI_API_KEY environment variable")
)

// Client は OpenAI 互換 API を使用したストリーミング LLM クライアント実装
type Client struct {
	client              openai.Client
	model               string
	temperature         float64
	topP                float64
	maxCompletionTokens int64
	reasoningEffort     shared.ReasoningEffort
}

type clientOptions struct {
	baseURL             string
	temperature         float64
	topP                float64
	maxCompletionTokens int64
	reasoningEffort     shared.ReasoningEffort
	requestOptions      []option.RequestOption
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithBaseURL は OpenAI 互換サーバーのベースURLを設定する
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithTemperature はサンプリング温度を設定する
func WithTemperature(temperature float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = temperature
	}
}

// WithTopP は nucleus sampling の閾値を設定する
func WithTopP(topP float64) ClientOption {
	return func(o *clientOptions) {
		o.topP = topP
	}
}

// WithMaxCompletionTokens は出力トークンの上限を設定する
func WithMaxCompletionTokens(n int64) ClientOption {
	return func(o *clientOptions) {
		o.maxCompletionTokens = n
	}
}

// WithReasoningEffort は思考量を設定する。空文字の場合はリクエストに含めない
func WithReasoningEffort(effort string) ClientOption {
	return func(o *clientOptions) {
		o.reasoningEffort = shared.ReasoningEffort(effort)
	}
}

// WithRequestOptions は SDK のリクエストオプションを追加する
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(o *clientOptions) {
		o.requestOptions = append(o.requestOptions, opts...)
	}
}

// NewClientWithAPIKey はAPIキーとモデルを指定して Client を作成する
func NewClientWithAPIKey(apiKey, model string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, failure.Wrap(failure.ErrConfiguration, "new client", ErrAPIKeyNotSet)
	}
	if model == "" {
		model = DefaultModel
	}

	options := clientOptions{
		baseURL:             DefaultBaseURL,
		temperature:         DefaultTemperature,
		topP:                DefaultTopP,
		maxCompletionTokens: DefaultMaxCompletionTokens,
		reasoningEffort:     DefaultReasoningEffort,
	}
	for _, opt := range opts {
		opt(&options)
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(options.baseURL))
	}
	requestOpts = append(requestOpts, options.requestOptions...)

	return &Client{
		client:              openai.NewClient(requestOpts...),
		model:               model,
		temperature:         options.temperature,
		topP:                options.topP,
		maxCompletionTokens: options.maxCompletionTokens,
		reasoningEffort:     options.reasoningEffort,
	}, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// StreamCompletion はプロンプトに対する補完をストリーミングで開始する
func (c *Client) StreamCompletion(ctx context.Context, prompt string) (ask.CompletionStream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, failure.Wrap(failure.ErrSynthesis, describeAPIError("start completion", err), err)
	}
	return &completionStream{stream: stream}, nil
}

func (c *Client) params(prompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	}
	if c.maxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxCompletionTokens)
	}
	if c.reasoningEffort != "" {
		params.ReasoningEffort = c.reasoningEffort
	}
	return params
}

// completionStream は SSE のチャンクを本文の断片に変換する
type completionStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	delta  string
}

func (s *completionStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		s.delta = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *completionStream) Delta() string {
	return s.delta
}

func (s *completionStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return failure.Wrap(failure.ErrSynthesis, describeAPIError("read completion", err), err)
	}
	return nil
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

// describeAPIError はAPIエラーの種類を操作名に付け加える
func describeAPIError(op string, err error) string {
	if isRateLimitError(err) {
		return fmt.Sprintf("%s (rate limited)", op)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (status %d)", op, apiErr.StatusCode)
	}
	return op
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ ask.LLMClient = (*Client)(nil)
