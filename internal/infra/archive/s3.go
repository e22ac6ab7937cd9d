package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// S3Config は S3 互換ストレージの接続設定
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// S3Archive は S3 互換ストレージ（MinIO など）に PDF を保存する
type S3Archive struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Archive は接続設定からクライアントを作成し、バケットがなければ作成する
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, failure.New(failure.ErrConfiguration, "s3 archive requires endpoint and bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "create s3 client", err)
	}

	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, err
	}

	return NewS3ArchiveWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiveWithClient は既存のクライアントを使う S3Archive を作成する
func NewS3ArchiveWithClient(client *minio.Client, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return failure.Wrap(failure.ErrArchive, "check bucket "+bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return failure.Wrap(failure.ErrArchive, "create bucket "+bucket, err)
	}
	return nil
}

func (a *S3Archive) key(name string) string {
	return path.Join(a.prefix, name)
}

// Save はオブジェクト <prefix>/<subject>/<filename> に書き込み、s3:// 形式の場所を返す
func (a *S3Archive) Save(ctx context.Context, subject string, doc ingestion.Document) (string, error) {
	name, err := objectName(subject, doc.Filename)
	if err != nil {
		return "", err
	}

	key := a.key(name)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(doc.Content), int64(len(doc.Content)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", failure.Wrap(failure.ErrArchive, "put object "+key, err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// インターフェース実装の確認
var _ ingestion.Archive = (*S3Archive)(nil)
