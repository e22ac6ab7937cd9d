package cli

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/jinford/pdf-rag/internal/app/tui"
)

// ChatAction は対話的に質問するチャット画面を起動するコマンドのアクション
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	subject := cmd.String("subject")
	topK := int(cmd.Int("top-k"))
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")
	configFile := cmd.String("config")

	appCtx, err := NewAppContext(ctx, envFile, configFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if topK <= 0 {
		topK = appCtx.Config.Query.TopK
	}

	slog.Debug("チャットを開始", "subject", subject, "topK", topK)

	model := tui.New(ctx, appCtx.Container.AskService, subject,
		tui.WithTopK(topK),
		tui.WithShowSources(showSources),
	)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(tui.Model); ok {
		// ストアを閉じる前に回答生成の終了を待つ
		m.Wait()
	}
	if err != nil {
		return fmt.Errorf("チャット画面の実行に失敗: %w", err)
	}
	return nil
}
