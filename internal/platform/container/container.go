package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/pdf-rag/internal/core/ask"
	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/core/ingestion/chunk"
	"github.com/jinford/pdf-rag/internal/core/search"
	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/infra/archive"
	"github.com/jinford/pdf-rag/internal/infra/memory"
	"github.com/jinford/pdf-rag/internal/infra/openai"
	"github.com/jinford/pdf-rag/internal/infra/pdf"
	"github.com/jinford/pdf-rag/internal/infra/postgres"
	"github.com/jinford/pdf-rag/internal/infra/sqlite"
	"github.com/jinford/pdf-rag/internal/platform/config"
	"github.com/jinford/pdf-rag/internal/platform/database"
	"github.com/jinford/pdf-rag/internal/platform/observability"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Embedder は取り込みと検索の両方で使う Embedder
type Embedder interface {
	ingestion.Embedder
	search.Embedder
}

// ServiceContainer はユースケースとその依存関係を保持する
type ServiceContainer struct {
	IngestService *ingestion.IngestService
	SearchService *search.SearchService
	AskService    *ask.AskService
	Store         vectorstore.Store
	Recorder      *observability.Recorder
	Config        *config.Config

	migrator *postgres.Store
	logger   *slog.Logger
	closers  []func() error
}

type containerOptions struct {
	logger       *slog.Logger
	embedder     Embedder
	llmClient    ask.LLMClient
	store        vectorstore.Store
	extractor    ingestion.Extractor
	archive      ingestion.Archive
	tokenCounter chunk.TokenCounter
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は回答生成用の LLM クライアントを差し替える
func WithContainerLLMClient(client ask.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerStore はベクトルストアを差し替える。注入したストアは Close で閉じない
func WithContainerStore(store vectorstore.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerExtractor は PDF テキスト抽出器を差し替える
func WithContainerExtractor(extractor ingestion.Extractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerArchive は元 PDF の保存先を差し替える
func WithContainerArchive(a ingestion.Archive) ContainerOption {
	return func(opts *containerOptions) {
		opts.archive = a
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter chunk.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

func buildOptions(opts []ContainerOption) containerOptions {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

// NewStoreContainer はベクトルストアだけを開いた ServiceContainer を作成する。
// API キーを必要としないコマンド（一覧表示やマイグレーション）で使う
func NewStoreContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	if cfg == nil {
		return nil, failure.New(failure.ErrConfiguration, "config is required")
	}
	options := buildOptions(opts)

	c := &ServiceContainer{
		Config: cfg,
		logger: options.logger,
	}

	if options.store != nil {
		c.Store = options.store
		return c, nil
	}

	if err := c.openStore(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewContainer は設定からすべてのユースケースを組み立てる
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	c, err := NewStoreContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	options := buildOptions(opts)

	if err := c.buildServices(ctx, options); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *ServiceContainer) buildServices(ctx context.Context, options containerOptions) error {
	cfg := c.Config
	logger := c.logger

	embedder := options.embedder
	if embedder == nil {
		e, err := newEmbedder(cfg.Embedding)
		if err != nil {
			return err
		}
		embedder = e
	}

	llmClient := options.llmClient
	if llmClient == nil {
		client, err := newLLMClient(cfg.LLM)
		if err != nil {
			return err
		}
		llmClient = client
	}

	extractor := options.extractor
	if extractor == nil {
		e, err := newExtractor(cfg.PDF)
		if err != nil {
			return err
		}
		extractor = e
	}

	pdfArchive := options.archive
	if pdfArchive == nil {
		a, err := newArchive(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		pdfArchive = a
	}

	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		counter, err := chunk.NewTiktokenCounter()
		if err != nil {
			logger.Warn("token counter unavailable; chunk token counts will be zero", "error", err)
		} else {
			tokenCounter = counter
		}
	}

	chunkOpts := []chunk.Option{}
	if tokenCounter != nil {
		chunkOpts = append(chunkOpts, chunk.WithTokenCounter(tokenCounter))
	}
	chunker, err := chunk.NewChunker(chunk.Config{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}, chunkOpts...)
	if err != nil {
		return err
	}

	c.Recorder = observability.NewRecorder()

	ingestOpts := []ingestion.IngestServiceOption{
		ingestion.WithIngestLogger(logger),
		ingestion.WithIngestObserver(c.Recorder),
		ingestion.WithIngestPipelineConfig(&ingestion.PipelineConfig{
			EmbeddingWorkerCount: cfg.Embedding.Concurrency,
			EmbeddingBatchSize:   cfg.Embedding.BatchSize,
		}),
	}
	if pdfArchive != nil {
		ingestOpts = append(ingestOpts, ingestion.WithIngestArchive(pdfArchive))
	}

	c.IngestService = ingestion.NewIngestService(extractor, chunker, embedder, c.Store, ingestOpts...)
	c.SearchService = search.NewSearchService(c.Store, embedder, search.WithSearchLogger(logger))
	c.AskService = ask.NewAskService(
		c.SearchService,
		llmClient,
		ask.WithAskLogger(logger),
		ask.WithAskTimeout(cfg.LLM.Timeout),
		ask.WithAskObserver(c.Recorder),
	)

	logger.Debug("service container initialized",
		"store", cfg.Store.Type,
		"extractor", cfg.PDF.Extractor,
		"archive", cfg.Archive.Backend,
		"embeddingModel", cfg.Embedding.Model,
		"llmModel", cfg.LLM.Model,
	)
	return nil
}

// openStore は設定に応じたベクトルストアを開く
func (c *ServiceContainer) openStore(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Store.Type {
	case "memory":
		c.Store = memory.NewStore()
	case "sqlite":
		store, err := sqlite.NewStore(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		c.Store = store
		c.closers = append(c.closers, store.Close)
	case "postgres":
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return failure.Wrap(failure.ErrStore, "connect database", err)
		}
		c.closers = append(c.closers, func() error {
			db.Close()
			return nil
		})
		store := postgres.NewStore(db.Pool, postgres.WithStoreLogger(c.logger))
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return err
		}
		c.Store = store
		c.migrator = store
	default:
		return failure.Newf(failure.ErrConfiguration, "unsupported store type: %q", cfg.Store.Type)
	}
	c.logger.Debug("vector store opened", "type", cfg.Store.Type)
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig) (*openai.Embedder, error) {
	opts := []openai.EmbedderOption{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithEmbeddingDimension(cfg.Dimension),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithEmbeddingBaseURL(cfg.BaseURL))
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, openai.WithEmbeddingRateLimit(cfg.RequestsPerSecond))
	}
	return openai.NewEmbedder(cfg.APIKey, opts...)
}

func newLLMClient(cfg config.LLMConfig) (*openai.Client, error) {
	opts := []openai.ClientOption{
		openai.WithTemperature(cfg.Temperature),
		openai.WithTopP(cfg.TopP),
		openai.WithMaxCompletionTokens(int64(cfg.MaxCompletionTokens)),
		openai.WithReasoningEffort(cfg.ReasoningEffort),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClientWithAPIKey(cfg.APIKey, cfg.Model, opts...)
}

func newExtractor(cfg config.PDFConfig) (ingestion.Extractor, error) {
	switch cfg.Extractor {
	case "", "native":
		return pdf.NewNativeExtractor(), nil
	case "pdftotext":
		return pdf.NewPdftotextExtractor()
	default:
		return nil, failure.Newf(failure.ErrConfiguration, "unsupported pdf extractor: %q", cfg.Extractor)
	}
}

// newArchive は保存先を作成する。"none" の場合は nil を返す
func newArchive(ctx context.Context, cfg config.ArchiveConfig) (ingestion.Archive, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "local":
		return archive.NewLocalArchive(cfg.Dir), nil
	case "s3":
		return archive.NewS3Archive(ctx, archive.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		return nil, failure.Newf(failure.ErrConfiguration, "unsupported archive backend: %q", cfg.Backend)
	}
}

// Migrate はスキーマを最新にする。SQLite とメモリはオープン時に済んでいるため何もしない
func (c *ServiceContainer) Migrate(ctx context.Context) error {
	if c.migrator == nil {
		return nil
	}
	return c.migrator.Migrate(ctx)
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// PushMetrics は設定された Pushgateway へメトリクスを送信する
func (c *ServiceContainer) PushMetrics(ctx context.Context) error {
	if c.Config == nil {
		return nil
	}
	return observability.Push(ctx, c.Config.Metrics.PushgatewayURL, c.Config.Metrics.JobName)
}

// Close は保持しているリソースを逆順に解放する
func (c *ServiceContainer) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	return nil
}
