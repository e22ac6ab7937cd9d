package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// SearchService は Subject 単位のベクトル検索を提供する
type SearchService struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*SearchService)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Search はクエリに近いチャンクを最大 TopK 件返す
//
// Subject が空、もしくはコレクションが存在しない場合はエラーにせず空の結果を返す。
func (s *SearchService) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, failure.New(failure.ErrInvalidInput, "query is required")
	}

	topK := params.TopK.OrElse(vectorstore.DefaultTopK)
	if topK <= 0 {
		return nil, failure.Newf(failure.ErrInvalidInput, "topK must be positive: %d", topK)
	}

	subject := strings.TrimSpace(params.Subject)
	result := &SearchResult{Subject: subject, Matches: []vectorstore.Match{}}

	// クエリをEmbeddingに変換
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, failure.Ensure(failure.ErrEmbedding, "embed query", err)
	}

	if subject == "" {
		s.logger.Warn("subject is empty, searching without context")
		return result, nil
	}

	colOpt, err := s.repo.GetCollection(ctx, subject)
	if err != nil {
		return nil, failure.Ensure(failure.ErrStore, "get collection", err)
	}
	col, ok := colOpt.Get()
	if !ok {
		s.logger.Warn("collection not found", "subject", subject)
		return result, nil
	}
	result.Found = true

	if col.Size == 0 {
		s.logger.Debug("collection is empty", "subject", subject)
		return result, nil
	}

	matches, err := s.repo.Query(ctx, col, queryVector, topK)
	if err != nil {
		return nil, failure.Ensure(failure.ErrStore, "query collection", err)
	}
	result.Matches = matches

	s.logger.Debug("search completed",
		"subject", subject,
		"topK", topK,
		"matches", len(matches),
	)
	return result, nil
}
