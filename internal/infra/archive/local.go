package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// DefaultLocalDir はローカルアーカイブのデフォルト保存先
const DefaultLocalDir = "./savepdf"

// LocalArchive はローカルディレクトリに PDF を保存する
type LocalArchive struct {
	dir string
}

// NewLocalArchive は新しい LocalArchive を作成する
func NewLocalArchive(dir string) *LocalArchive {
	if dir == "" {
		dir = DefaultLocalDir
	}
	return &LocalArchive{dir: dir}
}

// Dir は保存先ディレクトリを返す
func (a *LocalArchive) Dir() string {
	return a.dir
}

// Save は <dir>/<subject>/<filename> に書き込み、そのパスを返す。同名ファイルは上書きする
func (a *LocalArchive) Save(ctx context.Context, subject string, doc ingestion.Document) (string, error) {
	name, err := objectName(subject, doc.Filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(a.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", failure.Wrap(failure.ErrArchive, "create archive directory", err)
	}

	// 一時ファイルに書き込んでから rename で置き換える
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", failure.Wrap(failure.ErrArchive, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc.Content); err != nil {
		tmp.Close()
		return "", failure.Wrap(failure.ErrArchive, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", failure.Wrap(failure.ErrArchive, "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", failure.Wrap(failure.ErrArchive, fmt.Sprintf("rename to %s", dest), err)
	}

	return dest, nil
}

// インターフェース実装の確認
var _ ingestion.Archive = (*LocalArchive)(nil)
