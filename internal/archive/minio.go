// Package archive copies source invoices to S3-compatible object storage.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/taix/constants"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	Prefix    string // key prefix, default "invoices"
}

type MinioArchiver struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

func NewMinioArchiver(cfg Config, logger *slog.Logger) (*MinioArchiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "invoices"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioArchiver{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *MinioArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{Region: a.cfg.Region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		a.logger.Info("archive.bucket.created", "bucket", a.cfg.Bucket)
	}
	return nil
}

// Archive uploads the file at p and returns its object key. Keys are
// content addressed, so re-archiving an unchanged file overwrites itself.
func (a *MinioArchiver) Archive(ctx context.Context, p string) (string, error) {
	start := time.Now()
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	key := ObjectKey(a.cfg.Prefix, p, data)

	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	_, err = a.client.PutObject(ctx, a.cfg.Bucket, key, f, int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(p),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	a.logger.Info("archive.upload.ok",
		"bucket", a.cfg.Bucket,
		"key", key,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return key, nil
}

// ObjectKey is prefix/<first 16 hex of sha256>/<base name>.
func ObjectKey(prefix, p string, data []byte) string {
	sum := sha256.Sum256(data)
	return path.Join(prefix, hex.EncodeToString(sum[:])[:16], filepath.Base(p))
}

func ContentType(p string) string {
	switch constants.NormalizeExt(filepath.Ext(p)) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
