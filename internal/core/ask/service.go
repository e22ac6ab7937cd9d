package ask

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/pdf-rag/internal/core/search"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

const (
	// FlowName はメトリクス上の質問応答フロー名
	FlowName = "ask"
	// DefaultTimeout は回答生成のデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second
	// excerptLength は SourceReference に載せる本文の最大文字数
	excerptLength = 80
)

// AskService は質問応答のビジネスロジックを提供する
type AskService struct {
	searchService *search.SearchService
	llm           LLMClient
	timeout       time.Duration
	observer      Observer
	logger        *slog.Logger
}

type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// WithAskTimeout は回答生成のタイムアウトを設定する。0以下はタイムアウトなし
func WithAskTimeout(timeout time.Duration) AskServiceOption {
	return func(s *AskService) {
		s.timeout = timeout
	}
}

// WithAskObserver はステージ計測の通知先を設定する
func WithAskObserver(observer Observer) AskServiceOption {
	return func(s *AskService) {
		s.observer = observer
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(
	searchService *search.SearchService,
	llm LLMClient,
	opts ...AskServiceOption,
) *AskService {
	svc := &AskService{
		searchService: searchService,
		llm:           llm,
		timeout:       DefaultTimeout,
		observer:      nopObserver{},
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.observer == nil {
		svc.observer = nopObserver{}
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
//
// コレクションが空または存在しない場合もエラーにせず、空のコンテキストで回答を生成する。
func (s *AskService) Ask(ctx context.Context, params AskParams) (result *AskResult, err error) {
	startTime := time.Now()
	defer func() {
		s.observer.ObserveFlow(FlowName, time.Since(startTime), err)
	}()

	// 1. バリデーション
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, failure.New(failure.ErrInvalidInput, "question is required")
	}

	// 2. 検索（質問のEmbedding + TopK取得）
	s.logger.Info("executing search",
		"subject", params.Subject,
		"topK", params.TopK.OrElse(0),
	)

	searchStart := time.Now()
	found, err := s.searchService.Search(ctx, search.SearchParams{
		Subject: params.Subject,
		Query:   question,
		TopK:    params.TopK,
	})
	s.observer.ObserveStage(FlowName, "retrieve", time.Since(searchStart), err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("search completed",
		"found", found.Found,
		"matches", len(found.Matches),
	)

	// 3. プロンプト構築
	prompt := BuildAskPrompt(question, found.Texts())

	// 4. LLMで回答生成
	s.logger.Info("generating answer with LLM")
	synthStart := time.Now()
	answer, err := s.synthesize(ctx, prompt, params.OnDelta)
	s.observer.ObserveStage(FlowName, "synthesize", time.Since(synthStart), err)
	if err != nil {
		s.logger.Error("answer generation failed", "kind", failure.Name(err), "error", err)
		return nil, err
	}

	// 5. SourceReferenceを整形して返却
	sources := make([]SourceReference, 0, len(found.Matches))
	for _, m := range found.Matches {
		sources = append(sources, SourceReference{
			ID:      m.ID,
			Score:   m.Score,
			Excerpt: excerpt(m.Text),
		})
	}

	s.logger.Info("ask completed successfully",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return &AskResult{
		Answer:  answer,
		Sources: sources,
	}, nil
}

// synthesize はストリーム応答を到着順に連結する
func (s *AskService) synthesize(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stream, err := s.llm.StreamCompletion(ctx, prompt)
	if err != nil {
		return "", synthesisError(ctx, "start completion stream", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", synthesisError(ctx, "read completion stream", err)
	}
	if err := ctx.Err(); err != nil {
		return "", synthesisError(ctx, "read completion stream", err)
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", failure.New(failure.ErrSynthesis, "empty completion")
	}
	return answer, nil
}

func synthesisError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return failure.Ensure(failure.ErrSynthesis, op, err)
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength]) + "..."
}
