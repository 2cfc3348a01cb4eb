// Package objectstore exports every batch of readings as one NDJSON object in
// an S3 compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	emulator "github.com/synaptecltd/sensorsim"
)

const DefaultPrefix = "readings"

type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

// Uploader is the part of *minio.Client the sink uses.
type Uploader interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Sink struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// New creates the client and the bucket if it does not exist yet.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("object store endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return NewWithUploader(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithUploader(u Uploader, bucket, prefix string) *Sink {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Sink{uploader: u, bucket: bucket, prefix: prefix}
}

// ObjectName returns the key of a batch starting with first:
// <prefix>/<yyyy>/<mm>/<dd>/<hhmmss>-<id>.ndjson.
func (s *Sink) ObjectName(first emulator.Reading) string {
	ts := first.Timestamp.UTC()
	return path.Join(s.prefix, ts.Format("2006/01/02"),
		fmt.Sprintf("%s-%s.ndjson", ts.Format("150405"), uuid.NewString()[:8]))
}

func (s *Sink) Write(ctx context.Context, readings []emulator.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range readings {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding reading: %w", err)
		}
	}

	name := s.ObjectName(readings[0])
	_, err := s.uploader.PutObject(ctx, s.bucket, name, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", name, err)
	}
	return nil
}

func (s *Sink) Close() error { return nil }
