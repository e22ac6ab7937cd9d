package ingestion

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

const (
	// DefaultEmbeddingWorkerCount はデフォルトのEmbeddingワーカー数（I/O バウンド）
	DefaultEmbeddingWorkerCount = 4
	// DefaultEmbeddingBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultEmbeddingBatchSize = 100
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

// PipelineConfig はパイプライン処理の設定
type PipelineConfig struct {
	// EmbeddingWorkerCount は同時に実行する BatchEmbed 呼び出し数
	EmbeddingWorkerCount int
	// EmbeddingBatchSize はEmbeddingバッチサイズ（Embedder.MaxBatchSize()でクリップされる）
	EmbeddingBatchSize int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		EmbeddingWorkerCount: DefaultEmbeddingWorkerCount,
		EmbeddingBatchSize:   DefaultEmbeddingBatchSize,
	}
}

// effectiveBatchSize は設定値を Embedder の上限でクリップしたバッチサイズを返す
func effectiveBatchSize(cfg *PipelineConfig, embedder Embedder, logger *slog.Logger) int {
	size := cfg.EmbeddingBatchSize
	maxBatchSize := embedder.MaxBatchSize()

	// MaxBatchSize が0以下の場合はフォールバック
	if maxBatchSize <= 0 {
		logger.Warn("embedder returned invalid max batch size, using fallback",
			"returned", maxBatchSize,
			"fallback", MinBatchSize,
		)
		maxBatchSize = MinBatchSize
	}

	if size > maxBatchSize {
		logger.Debug("clipping embedding batch size to embedder maximum",
			"configured", size,
			"max", maxBatchSize,
		)
		size = maxBatchSize
	}
	if size <= 0 {
		size = MinBatchSize
	}
	return size
}

// embedAll は texts をバッチに分けて並行に Embedding を生成する。
// 戻り値の順序は texts と一致する
func embedAll(ctx context.Context, embedder Embedder, texts []string, cfg *PipelineConfig, logger *slog.Logger) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := effectiveBatchSize(cfg, embedder, logger)
	workers := cfg.EmbeddingWorkerCount
	if workers <= 0 {
		workers = 1
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch := texts[start:end]
			out, err := embedder.BatchEmbed(gctx, batch)
			if err != nil {
				return failure.Ensure(failure.ErrEmbedding, "embed batch", err)
			}
			if len(out) != len(batch) {
				return failure.Newf(failure.ErrEmbedding, "embedding count mismatch: got %d, want %d", len(out), len(batch))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, failure.Newf(failure.ErrEmbedding, "inconsistent embedding dimension at %d: %d != %d", i, len(v), dim)
		}
	}

	return vectors, nil
}
