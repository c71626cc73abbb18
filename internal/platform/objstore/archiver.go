// Package objstore archives rotated execution logs to an S3-compatible
// object store, so the full per-call audit trail survives the monitor
// host.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/config"
)

// keyPrefix groups archived logs inside the bucket.
const keyPrefix = "execlog/"

// uploader is the slice of the S3 API the archiver needs.
type uploader interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads execution log files to a bucket.
type Archiver struct {
	client uploader
	bucket string
	log    *logrus.Entry
}

// New builds an Archiver from the object store configuration.
func New(cfg config.Objstore, log *logrus.Entry) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Archiver{client: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket creates the bucket if it does not exist yet. A bucket
// already owned by us is fine.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil && !isBucketAlreadyOwnedByYou(err) {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// ArchiveFile uploads the file at path under the execlog prefix and
// removes the local copy on success.
func (a *Archiver) ArchiveFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	key := ObjectKey(path)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", key, a.bucket, err)
	}

	if a.log != nil {
		a.log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Info("execution log archived")
	}
	return os.Remove(path)
}

// ObjectKey maps a local log path to its bucket key.
func ObjectKey(path string) string {
	return keyPrefix + filepath.Base(path)
}

// isBucketAlreadyOwnedByYou checks if the error indicates the bucket
// exists and is owned by us. Typed errors come first; S3-compatible
// services may only return the API error code.
func isBucketAlreadyOwnedByYou(err error) bool {
	if err == nil {
		return false
	}

	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var exists *types.BucketAlreadyExists
	if errors.As(err, &exists) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
	}
	return false
}
