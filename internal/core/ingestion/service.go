package ingestion

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/pdf-rag/internal/core/ingestion/chunk"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// FlowName はメトリクス上の取り込みフロー名
const FlowName = "ingest"

// IngestService は PDF 取り込みのユースケースを提供する
//
// 抽出 → 分割 → Embedding → 保存 の順に実行し、いずれかのステージが失敗した時点で中断する。
// Embedding はすべて成功してから保存するため、失敗時にコレクションへ部分的な書き込みは残らない。
type IngestService struct {
	extractor      Extractor
	chunker        *chunk.Chunker
	embedder       Embedder
	store          Store
	archive        Archive
	observer       Observer
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

type ingestServiceOptions struct {
	archive        Archive
	observer       Observer
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// WithIngestArchive は元 PDF の保存先を設定する
func WithIngestArchive(archive Archive) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.archive = archive
	}
}

// WithIngestObserver はステージ計測の通知先を設定する
func WithIngestObserver(observer Observer) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.observer = observer
	}
}

// WithIngestPipelineConfig はパイプライン設定を上書きする
func WithIngestPipelineConfig(cfg *PipelineConfig) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.pipelineConfig = cfg
	}
}

// NewIngestService は新しいIngestServiceを作成する
func NewIngestService(
	extractor Extractor,
	chunker *chunk.Chunker,
	embedder Embedder,
	store Store,
	opts ...IngestServiceOption,
) *IngestService {
	options := ingestServiceOptions{
		pipelineConfig: DefaultPipelineConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.pipelineConfig == nil {
		options.pipelineConfig = DefaultPipelineConfig()
	}
	if options.observer == nil {
		options.observer = nopObserver{}
	}

	return &IngestService{
		extractor:      extractor,
		chunker:        chunker,
		embedder:       embedder,
		store:          store,
		archive:        options.archive,
		observer:       options.observer,
		pipelineConfig: options.pipelineConfig,
		logger:         options.logger,
	}
}

// Ingest は PDF を取り込み、Subject のコレクションへ追記する
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (result *IngestResult, err error) {
	startTime := time.Now()
	defer func() {
		s.observer.ObserveFlow(FlowName, time.Since(startTime), err)
	}()

	subject := strings.TrimSpace(params.Subject)
	filename := filepath.Base(strings.TrimSpace(params.Document.Filename))
	if err := validateParams(subject, filename, params.Document); err != nil {
		return nil, err
	}
	doc := Document{Filename: filename, Content: params.Document.Content}

	runID := uuid.New()
	logger := s.logger.With("runID", runID.String(), "subject", subject, "filename", filename)
	logger.Info("ingest started", "bytes", len(doc.Content))

	var archivedAt string
	if s.archive != nil {
		err := s.stage("archive", func() error {
			var err error
			archivedAt, err = s.archive.Save(ctx, subject, doc)
			return failure.Ensure(failure.ErrArchive, "save document", err)
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("document archived", "location", archivedAt)
	}

	var text string
	err = s.stage("extract", func() error {
		var err error
		text, err = s.extractor.Extract(ctx, doc)
		return failure.Ensure(failure.ErrExtraction, "extract text", err)
	})
	if err != nil {
		return nil, err
	}

	var chunks []chunk.Chunk
	_ = s.stage("chunk", func() error {
		chunks = s.chunker.Split(text)
		return nil
	})
	if len(chunks) == 0 {
		logger.Warn("no text extracted from document; collection will be created without entries")
	}

	texts := chunk.Texts(chunks)
	var vectors [][]float32
	err = s.stage("embed", func() error {
		var err error
		vectors, err = embedAll(ctx, s.embedder, texts, s.pipelineConfig, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	err = s.stage("store", func() error {
		col, err := s.store.GetOrCreateCollection(ctx, subject)
		if err != nil {
			return failure.Ensure(failure.ErrStore, "get or create collection", err)
		}
		ids, err = s.store.Append(ctx, col, texts, vectors)
		return failure.Ensure(failure.ErrStore, "append entries", err)
	})
	if err != nil {
		return nil, err
	}

	totalTokens := 0
	for _, ch := range chunks {
		totalTokens += ch.Tokens
	}
	s.observer.ObserveChunks(subject, len(ids))

	result = &IngestResult{
		RunID:       runID,
		Filename:    filename,
		Subject:     subject,
		ArchivedAt:  archivedAt,
		IDs:         ids,
		ChunkCount:  len(ids),
		TextLength:  len([]rune(text)),
		TotalTokens: totalTokens,
		Duration:    time.Since(startTime),
	}

	logger.Info("ingest completed",
		"chunks", result.ChunkCount,
		"tokens", result.TotalTokens,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *IngestService) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.observer.ObserveStage(FlowName, name, time.Since(start), err)
	if err != nil {
		s.logger.Error("ingest stage failed", "stage", name, "kind", failure.Name(err), "error", err)
	}
	return err
}

func validateParams(subject, filename string, doc Document) error {
	if subject == "" {
		return failure.New(failure.ErrInvalidInput, "subject is required")
	}
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return failure.New(failure.ErrInvalidInput, "filename is required")
	}
	if len(doc.Content) == 0 {
		return failure.New(failure.ErrInvalidInput, "document is empty")
	}
	return nil
}
