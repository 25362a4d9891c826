package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appconfig "listing_detail/config"
)

// S3Uploader publishes output files to S3-compatible storage.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Uploader(ctx context.Context, cfg appconfig.S3Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublishJSON uploads v under {prefix}/{siteID}/{timestamp}/{name}.
func (u *S3Uploader) PublishJSON(ctx context.Context, siteID, name string, at time.Time, v any) (string, error) {
	data, err := EncodeJSON(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	key := ObjectKey(u.prefix, siteID, name, at)
	if err := u.Upload(ctx, key, bytes.NewReader(data), "application/json; charset=utf-8"); err != nil {
		return "", err
	}
	return key, nil
}

// ObjectKey builds the key for one published output file.
func ObjectKey(prefix, siteID, name string, at time.Time) string {
	return path.Join(prefix, siteID, at.UTC().Format("20060102T150405Z"), path.Base(name))
}
