package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
)

// IngestAction は PDF を Subject に取り込むコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	subject := cmd.String("subject")
	envFile := cmd.String("env")
	configFile := cmd.String("config")

	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("取り込む PDF ファイルを指定してください")
	}

	slog.Info("PDF の取り込みを開始", "subject", subject, "files", len(files))

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile, configFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	w := output(cmd)
	for _, path := range files {
		result, err := ingestFile(ctx, appCtx.Container.IngestService, subject, path)
		if err != nil {
			slog.Error("PDF の取り込みに失敗しました", "file", path, "error", err)
			return err
		}

		fmt.Fprintf(w, "%s を %q に取り込みました（チャンク数: %d, 文字数: %d, 所要時間: %s）\n",
			result.Filename,
			result.Subject,
			result.ChunkCount,
			result.TextLength,
			result.Duration.Round(time.Millisecond),
		)
		if len(result.IDs) > 0 {
			fmt.Fprintf(w, "  ID: %s - %s\n", result.IDs[0], result.IDs[len(result.IDs)-1])
		}
		if result.ArchivedAt != "" {
			fmt.Fprintf(w, "  保存先: %s\n", result.ArchivedAt)
		}
	}

	slog.Info("PDF の取り込みが完了しました", "subject", subject)
	return nil
}

// ingestFile はファイルを読み込んで取り込む
func ingestFile(ctx context.Context, svc *ingestion.IngestService, subject, path string) (*ingestion.IngestResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	return svc.Ingest(ctx, ingestion.IngestParams{
		Subject: subject,
		Document: ingestion.Document{
			Filename: filepath.Base(path),
			Content:  content,
		},
	})
}
