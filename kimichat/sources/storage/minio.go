package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"kimichat/kimichat/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage keeps each blob as a JSON object in one bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinIOStorage(ctx context.Context, cfg config.Config) (*MinIOStorage, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOSecure,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinIOStorage{client: client, bucket: bucket, prefix: "sessions"}, nil
}

func (m *MinIOStorage) objectKey(key string) string {
	return path.Join(m.prefix, key+".json")
}

func (m *MinIOStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return "", false, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (m *MinIOStorage) SetItem(ctx context.Context, key, value string) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.objectKey(key), strings.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (m *MinIOStorage) RemoveItem(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, m.objectKey(key), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}
