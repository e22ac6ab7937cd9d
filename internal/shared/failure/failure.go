// Package failure はパイプライン全体で共有するエラー種別を定義する。
// 各ステージは失敗を種別付きでラップして返し、呼び出し側は errors.Is で判定する。
package failure

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction は PDF からのテキスト抽出に失敗したことを表す
	ErrExtraction = errors.New("extraction error")
	// ErrConfiguration は設定値が不正であることを表す
	ErrConfiguration = errors.New("configuration error")
	// ErrEmbedding は Embedding 生成に失敗したことを表す
	ErrEmbedding = errors.New("embedding error")
	// ErrStore はベクトルストアの読み書きに失敗したことを表す
	ErrStore = errors.New("store error")
	// ErrSynthesis は回答生成に失敗したことを表す
	ErrSynthesis = errors.New("synthesis error")
	// ErrInvalidInput は呼び出し側の入力が不正であることを表す
	ErrInvalidInput = errors.New("invalid input")
	// ErrArchive は元ドキュメントの保存に失敗したことを表す
	ErrArchive = errors.New("archive error")
)

var kinds = []error{
	ErrExtraction,
	ErrConfiguration,
	ErrEmbedding,
	ErrStore,
	ErrSynthesis,
	ErrInvalidInput,
	ErrArchive,
}

// Error は種別と原因を併せ持つエラー
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap は種別と原因の両方を返すため、errors.Is はどちらにも一致する
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap は err を kind 付きでラップする。err が nil でもエラーを返す
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// New は原因を持たない種別付きエラーを作成する
func New(kind error, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Newf は書式付きメッセージで種別付きエラーを作成する
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Ensure は err が種別を持たない場合のみ kind でラップする。nil はそのまま返す
func Ensure(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return Wrap(kind, op, err)
}

// KindOf は err に含まれる最初の種別を返す。該当しなければ nil
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Name はメトリクスやログ向けに種別を短い名前で返す
func Name(err error) string {
	switch KindOf(err) {
	case ErrExtraction:
		return "extraction"
	case ErrConfiguration:
		return "configuration"
	case ErrEmbedding:
		return "embedding"
	case ErrStore:
		return "store"
	case ErrSynthesis:
		return "synthesis"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrArchive:
		return "archive"
	default:
		if err == nil {
			return "none"
		}
		return "unknown"
	}
}
