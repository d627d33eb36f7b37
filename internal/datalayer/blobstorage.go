package datalayer

import (
	"context"
	"io"

	"github.com/glizzus/dca/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UnknownSize marks a stream whose length is not known up front.
const UnknownSize = -1

type PutOptions struct {
	// Size may be UnknownSize for streamed uploads.
	Size        int64
	ContentType string
}

type BlobStorage interface {
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

type MinioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioStorage(cfg *config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Username, cfg.Password, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func NewMinioStorageFromEnv() (*MinioStorage, error) {
	cfg, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewMinioStorage(cfg)
}

func (s *MinioStorage) Bucket() string {
	return s.bucket
}

func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	// If the bucket is already owned, succeed
	if err != nil {
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return err
	}
	return nil
}

var _ BlobStorage = (*MinioStorage)(nil)

func (s *MinioStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, data, opts.Size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}
