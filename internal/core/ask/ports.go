package ask

import (
	"context"
	"time"
)

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	// StreamCompletion はプロンプトに対する補完をストリームで返す
	StreamCompletion(ctx context.Context, prompt string) (CompletionStream, error)
}

// CompletionStream はLLMの応答断片を到着順に返す
type CompletionStream interface {
	// Next は次の断片があれば true を返す
	Next() bool
	// Delta は現在の断片を返す
	Delta() string
	// Err はストリームの終了理由となったエラーを返す
	Err() error
	Close() error
}

// Observer はステージごとの所要時間と結果を受け取る
type Observer interface {
	ObserveStage(flow, stage string, duration time.Duration, err error)
	ObserveFlow(flow string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, string, time.Duration, error) {}
func (nopObserver) ObserveFlow(string, time.Duration, error)          {}
