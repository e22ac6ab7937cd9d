package config

import (
	"time"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// ベクトルストア設定
	Store StoreConfig `yaml:"store"`

	// Database設定（store.type=postgres の場合）
	Database DatabaseConfig `yaml:"database"`

	// Embedding設定（OpenAI 互換 API）
	Embedding EmbeddingConfig `yaml:"embedding"`

	// 回答生成用LLM設定（OpenAI 互換 API）
	LLM LLMConfig `yaml:"llm"`

	// チャンク分割設定
	Chunk ChunkConfig `yaml:"chunk"`

	// 検索設定
	Query QueryConfig `yaml:"query"`

	// PDF抽出設定
	PDF PDFConfig `yaml:"pdf"`

	// 元ファイルの保存設定
	Archive ArchiveConfig `yaml:"archive"`

	// ログ設定
	Log LogConfig `yaml:"log"`

	// メトリクス設定
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig はベクトルストアの設定
type StoreConfig struct {
	Type       string `yaml:"type"` // "sqlite", "postgres" or "memory"
	SQLitePath string `yaml:"sqlite_path"`
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// EmbeddingConfig は Embedding API 設定
type EmbeddingConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"` // 空の場合は OpenAI
	Model             string  `yaml:"model"`
	Dimension         int     `yaml:"dimension"` // 0 の場合はモデルのデフォルト
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency"`
	BatchSize         int     `yaml:"batch_size"`
}

// LLMConfig は回答生成用 LLM 設定
type LLMConfig struct {
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	Model               string        `yaml:"model"`
	Temperature         float64       `yaml:"temperature"`
	TopP                float64       `yaml:"top_p"`
	MaxCompletionTokens int           `yaml:"max_completion_tokens"`
	ReasoningEffort     string        `yaml:"reasoning_effort"`
	Timeout             time.Duration `yaml:"timeout"`
}

// ChunkConfig はチャンク分割設定（文字数単位）
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// QueryConfig は検索設定
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// PDFConfig は PDF テキスト抽出の設定
type PDFConfig struct {
	Extractor string `yaml:"extractor"` // "native" or "pdftotext"
}

// ArchiveConfig は元ファイルの保存設定
type ArchiveConfig struct {
	Backend string   `yaml:"backend"` // "local", "s3" or "none"
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3Config は S3 互換ストレージの設定
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig はメトリクス送信設定
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"` // 空の場合は送信しない
	JobName        string `yaml:"job_name"`
}

// Defaults は組み込みのデフォルト設定を返します
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Type:       "sqlite",
			SQLitePath: "./vecdb/collections.db",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "pdfrag",
			DBName:   "pdfrag",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Embedding: EmbeddingConfig{
			Model:       "text-embedding-3-small",
			Dimension:   1536,
			Concurrency: 4,
			BatchSize:   100,
		},
		LLM: LLMConfig{
			BaseURL:             "https://api.groq.com/openai/v1",
			Model:               "openai/gpt-oss-20b",
			Temperature:         0.7,
			TopP:                1,
			MaxCompletionTokens: 2048,
			ReasoningEffort:     "medium",
			Timeout:             60 * time.Second,
		},
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 150,
		},
		Query: QueryConfig{
			TopK: 3,
		},
		PDF: PDFConfig{
			Extractor: "native",
		},
		Archive: ArchiveConfig{
			Backend: "local",
			Dir:     "./savepdf",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			JobName: "pdf-rag",
		},
	}
}
