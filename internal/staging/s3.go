package staging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bodymetrics/internal/config"
)

// S3Stager stages media in a MinIO/S3 bucket so the api and worker processes
// can hand blobs across process boundaries.
type S3Stager struct {
	client  *minio.Client
	bucket  string
	region  string
	maxSize int64
}

// NewS3Stager creates a MinIO client from the Config.
func NewS3Stager(cfg *config.Config) (*S3Stager, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3Stager{
		client:  client,
		bucket:  cfg.S3Bucket,
		region:  cfg.S3Region,
		maxSize: cfg.MaxFileSize,
	}, nil
}

// EnsureBucket makes sure the staging bucket exists before use.
func (s *S3Stager) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Stage spools the candidate to a temp file first so the size cap and MIME
// sniff run before any bytes leave the process, then uploads with the exact
// size known.
func (s *S3Stager) Stage(ctx context.Context, key string, r io.Reader) (*Staged, error) {
	tmp, err := os.CreateTemp("", "bodymetrics-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	written, sniffed, err := copyCapped(tmp, r, s.maxSize)
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	opts := minio.PutObjectOptions{ContentType: sniffed}
	if _, err := s.client.PutObject(ctx, s.bucket, key, tmp, written, opts); err != nil {
		return nil, fmt.Errorf("upload staged object: %w", err)
	}
	return &Staged{Size: written, SniffedType: sniffed}, nil
}

func (s *S3Stager) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get staged object: %w", err)
	}
	return obj, nil
}

func (s *S3Stager) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove staged object: %w", err)
	}
	return nil
}
