package photo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/medtrack/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig 描述 S3 兼容对象存储连接
// PublicURL 为空时照片通过 /photos/:name 由服务端转发
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MinioStore 把照片保存到 minio bucket
type MinioStore struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore 构造 MinioStore，不会立即连接服务端
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioStore{
		mc:        mc,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Init 在 bucket 不存在时创建
func (s *MinioStore) Init(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		logger.Info("bucket created", "bucket", s.bucket)
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid photo name %q", name)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.mc.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.bucket, name, err)
	}

	logger.Debug("photo uploaded", "bucket", s.bucket, "name", name, "size", len(data))
	return nil
}

func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, name, err)
	}
	// GetObject 是惰性的，需要 Stat 才能确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s/%s: %w", s.bucket, name, err)
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return nil
	}
	if err := s.mc.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.bucket, name, err)
	}
	return nil
}

func (s *MinioStore) URL(name string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + name
	}
	return "/photos/" + name
}
