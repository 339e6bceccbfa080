package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mrbooking/backend/internal/config"
)

// Uploader puts avatar files into the configured bucket and returns the
// public URL served from the file prefix.
type Uploader struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	urlPrefix string
}

func NewUploader(ctx context.Context, cfg *config.Config) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3_REGION),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3_ACCESS_KEY_ID,
			cfg.S3_SECRET_ACCESS_KEY,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3_ENDPOINT_URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3_ENDPOINT_URL)
		}
		o.UsePathStyle = true
	})

	return &Uploader{
		client:    client,
		bucket:    cfg.S3_BUCKET_NAME,
		keyPrefix: cfg.S3_UPLOAD_KEY,
		urlPrefix: strings.TrimSuffix(cfg.S3_FILE_PREFIX_URL, "/"),
	}, nil
}

func (u *Uploader) objectKey(filename string) string {
	d := time.Now()
	return path.Join(u.keyPrefix, fmt.Sprintf("%d/%d/%d/%s-%s", d.Year(), d.Month(), d.Day(), uuid.New(), filename))
}

func (u *Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := u.objectKey(filename)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put: %w", err)
	}

	return u.urlPrefix + "/" + key, nil
}
