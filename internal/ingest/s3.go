package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Getter is the subset of *s3.Client used for downloads.
type s3Getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads s3://bucket/key objects.
type S3Fetcher struct {
	client s3Getter
}

// NewS3Fetcher loads credentials from the default AWS chain.
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3Fetcher) Name() string      { return "s3" }
func (s *S3Fetcher) Schemes() []string { return []string{"s3"} }

func (s *S3Fetcher) Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error {
	bucket := src.Host
	key := strings.TrimPrefix(src.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("%w: s3 URL must be s3://bucket/key", ErrIngestionFailed)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 get %s/%s: %v", ErrIngestionFailed, bucket, key, err)
	}
	defer out.Body.Close()

	_, err = copyToFile(ctx, dst, out.Body, aws.ToInt64(out.ContentLength), sink)
	return err
}
