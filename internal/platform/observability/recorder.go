package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/jinford/pdf-rag/internal/core/ask"
	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// StatusOK は成功したフローのステータスラベル
const StatusOK = "ok"

// Recorder はサービスから受け取った計測値をパッケージのメトリクスへ記録する
type Recorder struct{}

// NewRecorder は新しい Recorder を作成する
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveStage はステージの所要時間と失敗を記録する
func (r *Recorder) ObserveStage(flow, stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(flow, stage).Observe(duration.Seconds())
	if err != nil {
		StageErrorsTotal.WithLabelValues(flow, stage, failure.Name(err)).Inc()
	}
}

// ObserveFlow はフローの結果を記録する。失敗時のステータスはエラー種別名になる
func (r *Recorder) ObserveFlow(flow string, duration time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = failure.Name(err)
	}
	FlowTotal.WithLabelValues(flow, status).Inc()
	FlowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// ObserveChunks は保存したチャンク数を加算する
func (r *Recorder) ObserveChunks(_ string, count int) {
	if count > 0 {
		IngestedChunksTotal.Add(float64(count))
	}
}

// Push はデフォルトレジストリの内容を Pushgateway へ送信する
//
// CLI はプロセスが短命なため、スクレイプではなく終了時に送信する。
func Push(ctx context.Context, url, job string) error {
	return PushFrom(ctx, prometheus.DefaultGatherer, url, job)
}

// PushFrom は任意の Gatherer の内容を Pushgateway へ送信する
func PushFrom(ctx context.Context, gatherer prometheus.Gatherer, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// インターフェース実装の確認
var (
	_ ingestion.Observer = (*Recorder)(nil)
	_ ask.Observer       = (*Recorder)(nil)
)
