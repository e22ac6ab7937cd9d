package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/pdf-rag/internal/platform/config"
	"github.com/jinford/pdf-rag/internal/platform/container"
	"github.com/jinford/pdf-rag/internal/platform/logger"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// metricsPushTimeout は終了時のメトリクス送信のタイムアウト
const metricsPushTimeout = 5 * time.Second

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
	Config    *config.Config
}

// loadConfig は設定を読み込み、設定に従ってデフォルトロガーを初期化する
func loadConfig(envFile, configFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	appLogger := logger.New(logger.ParseConfig(cfg.Log.Level, cfg.Log.Format))
	return cfg, appLogger, nil
}

// NewAppContext は設定を読み込み、すべてのユースケースを組み立てて AppContext を作成する
func NewAppContext(ctx context.Context, envFile, configFile string) (*AppContext, error) {
	cfg, appLogger, err := loadConfig(envFile, configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateProviders(); err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "validate provider api keys", err)
	}

	cont, err := container.NewContainer(ctx, cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{Container: cont, Config: cfg}, nil
}

// NewStoreAppContext はベクトルストアだけを開いた AppContext を作成する。API キーは不要
func NewStoreAppContext(ctx context.Context, envFile, configFile string) (*AppContext, error) {
	cfg, appLogger, err := loadConfig(envFile, configFile)
	if err != nil {
		return nil, err
	}

	cont, err := container.NewStoreContainer(ctx, cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("ベクトルストアのオープンに失敗: %w", err)
	}

	return &AppContext{Container: cont, Config: cfg}, nil
}

// Close はメトリクスを送信し、AppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
	defer cancel()
	if err := ac.Container.PushMetrics(ctx); err != nil {
		ac.Logger().Warn("メトリクスの送信に失敗しました", "error", err)
	}

	if err := ac.Container.Close(); err != nil {
		ac.Logger().Warn("リソースの解放に失敗しました", "error", err)
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// CommonFlags はすべてのコマンドが受け付けるフラグを返す
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "設定ファイルパス（省略時は " + config.ConfigEnvVar + " または ./pdf-rag.yaml）",
		},
	}
}

// output はコマンドの出力先を返す
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
