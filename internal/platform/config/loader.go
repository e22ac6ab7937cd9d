package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// ConfigEnvVar は設定ファイルのパスを指定する環境変数
const ConfigEnvVar = "PDFRAG_CONFIG"

// defaultConfigFile はカレントディレクトリで探索する設定ファイル名
const defaultConfigFile = "pdf-rag.yaml"

// Load は設定を次の順に重ねて読み込みます
//
//  1. 組み込みデフォルト
//  2. .env ファイルを環境変数へ読み込む（既存の環境変数は上書きしない）
//  3. YAML 設定ファイル（引数、PDFRAG_CONFIG、./pdf-rag.yaml の順に探索）
//  4. 環境変数（.env 由来を含む）で上書き
//  5. バリデーション
func Load(envFilePath, configPath string) (*Config, error) {
	cfg := Defaults()

	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, failure.Wrap(failure.ErrConfiguration, "load .env file", err)
			}
		}
	}

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, failure.Wrap(failure.ErrConfiguration, "load config file "+filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "validate config", err)
	}

	return &cfg, nil
}

// discoverConfigFile は設定ファイルのパスを探索する。見つからなければ空文字を返す
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(ConfigEnvVar); envPath != "" {
		return envPath
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// loadYAMLFile は YAML を読み込む。記載のないフィールドは現在の値を保持する
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides は環境変数で設定を上書きする
func applyEnvOverrides(cfg *Config) {
	cfg.Store.Type = getEnv("VECTOR_STORE", cfg.Store.Type)
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", cfg.Embedding.APIKey))
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getEnvAsInt("EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Embedding.RequestsPerSecond = getEnvAsFloat("EMBEDDING_REQUESTS_PER_SECOND", cfg.Embedding.RequestsPerSecond)
	cfg.Embedding.Concurrency = getEnvAsInt("EMBEDDING_CONCURRENCY", cfg.Embedding.Concurrency)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)

	cfg.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("GROQ_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.TopP = getEnvAsFloat("LLM_TOP_P", cfg.LLM.TopP)
	cfg.LLM.MaxCompletionTokens = getEnvAsInt("LLM_MAX_COMPLETION_TOKENS", cfg.LLM.MaxCompletionTokens)
	cfg.LLM.ReasoningEffort = getEnv("LLM_REASONING_EFFORT", cfg.LLM.ReasoningEffort)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Chunk.Size = getEnvAsInt("CHUNK_SIZE", cfg.Chunk.Size)
	cfg.Chunk.Overlap = getEnvAsInt("CHUNK_OVERLAP", cfg.Chunk.Overlap)
	cfg.Query.TopK = getEnvAsInt("QUERY_TOP_K", cfg.Query.TopK)
	cfg.PDF.Extractor = getEnv("PDF_EXTRACTOR", cfg.PDF.Extractor)

	cfg.Archive.Backend = getEnv("ARCHIVE_BACKEND", cfg.Archive.Backend)
	cfg.Archive.Dir = getEnv("ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.S3.Endpoint = getEnv("ARCHIVE_S3_ENDPOINT", cfg.Archive.S3.Endpoint)
	cfg.Archive.S3.AccessKey = getEnv("ARCHIVE_S3_ACCESS_KEY", cfg.Archive.S3.AccessKey)
	cfg.Archive.S3.SecretKey = getEnv("ARCHIVE_S3_SECRET_KEY", cfg.Archive.S3.SecretKey)
	cfg.Archive.S3.Bucket = getEnv("ARCHIVE_S3_BUCKET", cfg.Archive.S3.Bucket)
	cfg.Archive.S3.Region = getEnv("ARCHIVE_S3_REGION", cfg.Archive.S3.Region)
	cfg.Archive.S3.Prefix = getEnv("ARCHIVE_S3_PREFIX", cfg.Archive.S3.Prefix)
	cfg.Archive.S3.UseSSL = getEnvAsBool("ARCHIVE_S3_USE_SSL", cfg.Archive.S3.UseSSL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Metrics.PushgatewayURL = getEnv("PUSHGATEWAY_URL", cfg.Metrics.PushgatewayURL)
	cfg.Metrics.JobName = getEnv("PUSHGATEWAY_JOB", cfg.Metrics.JobName)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します。単位なしの数値は秒とみなす
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// String は秘密情報を伏せた要約を返す
func (c *Config) String() string {
	return fmt.Sprintf("store=%s embedding=%s llm=%s chunk=%d/%d topK=%d archive=%s",
		c.Store.Type, c.Embedding.Model, c.LLM.Model, c.Chunk.Size, c.Chunk.Overlap, c.Query.TopK, c.Archive.Backend)
}
