package cli

import (
	"github.com/urfave/cli/v3"
)

// withCommonFlags は共通フラグの後ろに flags を追加する
func withCommonFlags(flags ...cli.Flag) []cli.Flag {
	return append(CommonFlags(), flags...)
}

// NewCommand は pdf-rag のコマンドツリーを作成する
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "pdf-rag",
		Usage: "PDF を取り込み、その内容に基づいて質問に回答する RAG ツール",
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "PDF を Subject に取り込む",
				ArgsUsage: "<file.pdf>...",
				Flags: withCommonFlags(
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "取り込み先の Subject 名",
						Required: true,
					},
				),
				Action: IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "Subject に取り込んだ PDF をもとに質問に回答する",
				ArgsUsage: "<question>",
				Flags: withCommonFlags(
					&cli.StringFlag{
						Name:    "subject",
						Aliases: []string{"s"},
						Usage:   "参照する Subject 名",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "参照するチャンク数（省略時は設定値）",
					},
					&cli.BoolFlag{
						Name:  "no-stream",
						Usage: "回答を生成し終えてからまとめて表示",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したチャンクを表示",
					},
				),
				Action: AskAction,
			},
			{
				Name:  "chat",
				Usage: "Subject に対して対話的に質問する",
				Flags: withCommonFlags(
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "参照する Subject 名",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "参照するチャンク数（省略時は設定値）",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したチャンクを表示",
					},
				),
				Action: ChatAction,
			},
			{
				Name:  "subject",
				Usage: "Subject 管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Subject 一覧を表示",
						Flags:  withCommonFlags(),
						Action: SubjectListAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "ベクトルストア管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "スキーマを最新にする",
						Flags:  withCommonFlags(),
						Action: DBMigrateAction,
					},
				},
			},
		},
	}
}
