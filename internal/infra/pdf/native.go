// Package pdf は PDF からプレーンテキストを抽出する
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// pdfMagic はPDFファイル先頭のシグネチャ
var pdfMagic = []byte("%PDF-")

// NativeExtractor は外部コマンドを使わずに PDF のテキストを抽出する
type NativeExtractor struct{}

// NewNativeExtractor は新しい NativeExtractor を作成する
func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

// Extract は全ページのテキストをページ順に連結して返す
func (e *NativeExtractor) Extract(ctx context.Context, doc ingestion.Document) (text string, err error) {
	if err := sniff(doc); err != nil {
		return "", err
	}

	// 壊れたPDFでパーサーが panic することがある
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = failure.Newf(failure.ErrExtraction, "parse %s: %v", doc.Filename, r)
		}
	}()

	reader, err := ledongthuc.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return "", failure.Wrap(failure.ErrExtraction, "open "+doc.Filename, err)
	}

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", failure.Wrap(failure.ErrExtraction, fmt.Sprintf("read page %d of %s", i, doc.Filename), err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}

	return sb.String(), nil
}

// sniff は入力がPDFかどうかを先頭バイトで判定する
func sniff(doc ingestion.Document) error {
	content := bytes.TrimLeft(doc.Content, "\x00\t\r\n ")
	if !bytes.HasPrefix(content, pdfMagic) {
		return failure.Newf(failure.ErrExtraction, "%s is not a PDF document", doc.Filename)
	}
	return nil
}

// インターフェース実装の確認
var _ ingestion.Extractor = (*NativeExtractor)(nil)
