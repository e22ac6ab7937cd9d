// Package archive は取り込んだ元の PDF を保存する
package archive

import (
	"path/filepath"
	"strings"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// objectName は Subject とファイル名から保存先の相対パスを組み立てる
//
// ファイル名はベース名だけを使い、Subject の区切り文字は置き換える。
func objectName(subject, filename string) (string, error) {
	subject = sanitizeSegment(subject)
	base := sanitizeSegment(filepath.Base(filename))
	if subject == "" {
		return "", failure.New(failure.ErrInvalidInput, "archive subject is empty")
	}
	if base == "" {
		return "", failure.New(failure.ErrInvalidInput, "archive filename is empty")
	}
	return subject + "/" + base, nil
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}
