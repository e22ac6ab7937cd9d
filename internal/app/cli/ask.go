package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/pdf-rag/internal/core/ask"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	// フラグの取得
	subject := cmd.String("subject")
	topK := int(cmd.Int("top-k"))
	stream := !cmd.Bool("no-stream")
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")
	configFile := cmd.String("config")

	// 質問文の取得
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	slog.Info("質問応答を開始",
		"subject", subject,
		"topK", topK,
		"stream", stream,
	)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile, configFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if topK <= 0 {
		topK = appCtx.Config.Query.TopK
	}

	w := output(cmd)
	params := ask.AskParams{
		Subject:  subject,
		Question: question,
		TopK:     mo.Some(topK),
	}
	if stream {
		params.OnDelta = func(delta string) {
			fmt.Fprint(w, delta)
		}
	}

	result, err := appCtx.Container.AskService.Ask(ctx, params)
	if err != nil {
		if stream {
			fmt.Fprintln(w)
		}
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	// 結果出力
	if stream {
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, result.Answer)
	}

	// --show-sourcesフラグが指定されている場合、参照チャンクも出力
	if showSources {
		printSources(w, result.Sources)
	}

	slog.Info("質問応答が完了しました", "sources", len(result.Sources))
	return nil
}

// printSources は参照したチャンクを出力する
func printSources(w io.Writer, sources []ask.SourceReference) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "\n--- 参照チャンクなし ---")
		return
	}
	fmt.Fprintln(w, "\n--- 参照チャンク ---")
	for i, source := range sources {
		fmt.Fprintf(w, "[%d] %s スコア: %.4f\n    %s\n",
			i+1,
			source.ID,
			source.Score,
			source.Excerpt,
		)
	}
}
