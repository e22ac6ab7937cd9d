package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
)

// SubjectListAction は Subject（コレクション）の一覧を表示するコマンドのアクション
func SubjectListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	configFile := cmd.String("config")

	appCtx, err := NewStoreAppContext(ctx, envFile, configFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	collections, err := appCtx.Container.Store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("Subject 一覧の取得に失敗: %w", err)
	}

	w := output(cmd)
	if len(collections) == 0 {
		fmt.Fprintln(w, "Subject はまだありません")
		return nil
	}
	fmt.Fprintln(w, renderCollections(collections))
	return nil
}

// renderCollections はコレクション一覧を表形式で描画する
func renderCollections(collections []*vectorstore.Collection) string {
	rows := make([][]string, 0, len(collections))
	for _, col := range collections {
		rows = append(rows, []string{
			col.Name,
			strconv.Itoa(col.Size),
			strconv.FormatInt(col.LastSeq, 10),
			col.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SUBJECT", "ENTRIES", "LAST ID", "CREATED").
		Rows(rows...).
		String()
}
