package certbackup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/util/retry"
)

// s3API is the slice of the S3 client the uploader needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader mirrors backup directories to an S3-compatible bucket.
type Uploader struct {
	api      s3API
	bucket   string
	attempts int
	delay    time.Duration
}

// NewUploader builds an uploader from the configured S3 settings.
// Credentials come from the standard AWS environment; OSDEPLOY-specific
// static credentials take precedence when both are set.
func NewUploader(ctx context.Context, settings config.S3Settings, timeouts *config.Timeouts) (*Uploader, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket not configured")
	}

	region := settings.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if ak, sk := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); ak != "" && sk != "" {
		loadOpts = append(loadOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		api:      client,
		bucket:   settings.Bucket,
		attempts: timeouts.RetryMaxAttempts,
		delay:    timeouts.RetryInitialDelay,
	}, nil
}

// newUploaderWithAPI injects a fake S3 API for tests.
func newUploaderWithAPI(api s3API, bucket string, timeouts *config.Timeouts) *Uploader {
	return &Uploader{
		api:      api,
		bucket:   bucket,
		attempts: timeouts.RetryMaxAttempts,
		delay:    timeouts.RetryInitialDelay,
	}
}

// UploadDir puts every regular file under dir into the bucket, keyed by the
// directory's base name so backups stay grouped. Transient failures retry
// with exponential backoff; a missing bucket gives up immediately.
func (u *Uploader) UploadDir(ctx context.Context, dir string) error {
	prefix := filepath.Base(dir)

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		uploadErr := retry.WithExponentialBackoff(ctx, func() error {
			f, err := os.Open(path)
			if err != nil {
				return retry.Fatal(err)
			}
			defer f.Close()

			_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
				Bucket: aws.String(u.bucket),
				Key:    aws.String(key),
				Body:   f,
			})
			return classifyS3Error(err)
		}, retry.WithMaxRetries(u.attempts), retry.WithInitialDelay(u.delay))
		if uploadErr != nil {
			return fmt.Errorf("failed to upload %s: %w", key, uploadErr)
		}

		slog.Debug("uploaded backup object", "bucket", u.bucket, "key", key)
		return nil
	})
}

// classifyS3Error marks errors that retrying cannot fix as fatal.
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return retry.Fatal(err)
		}
	}
	return err
}
