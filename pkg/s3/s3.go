package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// ObjectStorageClient uploads generated artefacts to S3-compatible storage.
type ObjectStorageClient interface {
	Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error)
}

// ObjectStorage holds the minio client and upload settings.
type ObjectStorage struct {
	Conn          *minio.Client
	region        string
	presignExpiry time.Duration
}

// NewObjectStorage creates an unconnected ObjectStorage. presignExpiry bounds
// the lifetime of returned download URLs.
func NewObjectStorage(region string, presignExpiry time.Duration) *ObjectStorage {
	if region == "" {
		region = defaultRegion
	}
	return &ObjectStorage{
		region:        region,
		presignExpiry: presignExpiry,
	}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	var err error
	o.Conn, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: o.region,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	// Check connection by listing buckets
	if _, err = o.Conn.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}

	return nil
}

// UploadBytes stores data under objectName, creating the bucket when needed,
// and returns a presigned GET URL for it.
func (o *ObjectStorage) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error) {
	if o.Conn == nil {
		return "", errors.New("object storage is not connected")
	}

	if err := o.ensureBucket(ctx, bucketName); err != nil {
		return "", err
	}

	_, err := o.Conn.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	presignedURL, err := o.Conn.PresignedGetObject(ctx, bucketName, objectName, o.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}

	return presignedURL.String(), nil
}

func (o *ObjectStorage) ensureBucket(ctx context.Context, bucketName string) error {
	err := o.Conn.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: o.region})
	if err == nil {
		return nil
	}

	exists, errBucketExists := o.Conn.BucketExists(ctx, bucketName)
	if errBucketExists == nil && exists {
		return nil
	}
	return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
}
