// Package blobstore persists uploaded images and generated documents in an
// S3-compatible object store and hands back retrievable URLs.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Gateway is the narrow upload surface the rest of the service depends on.
// Uploads with the same destination overwrite, so document regeneration on
// approval retries is safe.
type Gateway interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error)
}

type MinioGateway struct {
	client        *minio.Client
	publicBaseURL string
}

type Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
	Buckets       []string
}

func New(ctx context.Context, opts Options) (*MinioGateway, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	g := &MinioGateway{
		client:        client,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}

	for _, bucket := range opts.Buckets {
		if err := g.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *MinioGateway) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := g.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := g.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (g *MinioGateway) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	_, err := g.client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, object, err)
	}
	return fmt.Sprintf("%s/%s/%s", g.publicBaseURL, bucket, object), nil
}
