package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// DBMigrateAction はベクトルストアのスキーマを最新にするコマンドのアクション
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	configFile := cmd.String("config")

	// ストアのオープン時にマイグレーションが適用される
	appCtx, err := NewStoreAppContext(ctx, envFile, configFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Migrate(ctx); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	slog.Info("マイグレーションが完了しました", "store", appCtx.Config.Store.Type)
	fmt.Fprintf(output(cmd), "%s ストアのスキーマは最新です\n", appCtx.Config.Store.Type)
	return nil
}
