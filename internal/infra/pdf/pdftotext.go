package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// pdftotextBinary は poppler-utils のテキスト抽出コマンド
const pdftotextBinary = "pdftotext"

// ErrPDFToolNotFound は pdftotext が PATH に存在しない場合のエラー
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner は外部コマンドを実行する
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner は os/exec を使った CommandRunner
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, err
	}
	return out, nil
}

// PdftotextExtractor は pdftotext コマンドで PDF のテキストを抽出する
type PdftotextExtractor struct {
	runner CommandRunner
}

// CheckAvailable は pdftotext が利用可能か確認する
func CheckAvailable() error {
	if _, err := exec.LookPath(pdftotextBinary); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions は pdftotext のインストール方法を返す
func InstallInstructions() string {
	return "pdftotext is provided by poppler: brew install poppler (macOS) / apt install poppler-utils (Debian, Ubuntu)"
}

// NewPdftotextExtractor は PATH 上の pdftotext を使う Extractor を作成する
func NewPdftotextExtractor() (*PdftotextExtractor, error) {
	if err := CheckAvailable(); err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, InstallInstructions(), err)
	}
	return NewWithRunner(execRunner{}), nil
}

// NewWithRunner は任意の CommandRunner を使う Extractor を作成する
func NewWithRunner(runner CommandRunner) *PdftotextExtractor {
	return &PdftotextExtractor{runner: runner}
}

// Extract は PDF を一時ファイルに書き出し、pdftotext の標準出力をテキストとして返す
func (e *PdftotextExtractor) Extract(ctx context.Context, doc ingestion.Document) (string, error) {
	if err := sniff(doc); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "pdf-rag-*.pdf")
	if err != nil {
		return "", failure.Wrap(failure.ErrExtraction, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc.Content); err != nil {
		tmp.Close()
		return "", failure.Wrap(failure.ErrExtraction, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", failure.Wrap(failure.ErrExtraction, "close temp file", err)
	}

	// "-" で標準出力へ書き出す
	out, err := e.runner.Run(ctx, pdftotextBinary, "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return "", failure.Wrap(failure.ErrExtraction, "pdftotext failed for "+doc.Filename, err)
	}

	// ページ区切りの form feed は改行に置き換える
	out = bytes.ReplaceAll(out, []byte("\f"), []byte("\n"))
	return string(bytes.TrimSpace(out)), nil
}

// インターフェース実装の確認
var _ ingestion.Extractor = (*PdftotextExtractor)(nil)
