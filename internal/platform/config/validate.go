package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate は設定値を検証し、問題をすべてまとめて返す
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Type {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("store.sqlite_path is required when store.type is \"sqlite\""))
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, fmt.Errorf("database.host and database.dbname are required when store.type is \"postgres\""))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.type must be \"sqlite\", \"postgres\" or \"memory\", got %q", c.Store.Type))
	}

	if c.Chunk.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk.size must be > 0, got %d", c.Chunk.Size))
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		errs = append(errs, fmt.Errorf("chunk.overlap must be in [0, chunk.size), got %d", c.Chunk.Overlap))
	}
	if c.Query.TopK <= 0 {
		errs = append(errs, fmt.Errorf("query.top_k must be > 0, got %d", c.Query.TopK))
	}
	if c.Embedding.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("embedding.concurrency must be > 0, got %d", c.Embedding.Concurrency))
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must not be negative, got %s", c.LLM.Timeout))
	}

	switch c.PDF.Extractor {
	case "native", "pdftotext":
	default:
		errs = append(errs, fmt.Errorf("pdf.extractor must be \"native\" or \"pdftotext\", got %q", c.PDF.Extractor))
	}

	switch c.Archive.Backend {
	case "local", "none":
	case "s3":
		if c.Archive.S3.Endpoint == "" || c.Archive.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("archive.s3.endpoint and archive.s3.bucket are required when archive.backend is \"s3\""))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend must be \"local\", \"s3\" or \"none\", got %q", c.Archive.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"json\" or \"text\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ValidateProviders は Embedding と LLM の API キーが設定されているか検証する
func (c *Config) ValidateProviders() error {
	var errs []error
	if c.Embedding.APIKey == "" {
		errs = append(errs, fmt.Errorf("embedding api key is required: set OPENAI_API_KEY or EMBEDDING_API_KEY"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm api key is required: set GROQ_API_KEY or LLM_API_KEY"))
	}
	return errors.Join(errs...)
}
