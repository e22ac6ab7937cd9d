// Package observability は取り込みと質問応答の Prometheus メトリクスを提供する
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets は Embedding と LLM 呼び出しを含むステージ向けのバケット（100ms〜120s）
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// FlowTotal はフローの実行回数を結果ごとに数える
	FlowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfrag_flow_total",
			Help: "Completed ingest and ask flows",
		},
		[]string{"flow", "status"},
	)

	// FlowDuration はフロー全体の所要時間
	FlowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfrag_flow_duration_seconds",
			Help:    "Flow duration",
			Buckets: LLMBuckets,
		},
		[]string{"flow"},
	)

	// StageDuration はステージごとの所要時間
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfrag_stage_duration_seconds",
			Help:    "Stage duration",
			Buckets: LLMBuckets,
		},
		[]string{"flow", "stage"},
	)

	// StageErrorsTotal は失敗したステージをエラー種別ごとに数える
	StageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfrag_stage_errors_total",
			Help: "Failed stages by error kind",
		},
		[]string{"flow", "stage", "kind"},
	)

	// IngestedChunksTotal は保存したチャンク数
	IngestedChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfrag_ingested_chunks_total",
			Help: "Chunks appended to vector collections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FlowTotal,
		FlowDuration,
		StageDuration,
		StageErrorsTotal,
		IngestedChunksTotal,
	)
}
