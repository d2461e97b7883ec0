package artifact

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3MaxRetries bounds the retry loop around bucket writes.
const s3MaxRetries = 3

// S3Options configures the bucket mirror. Endpoint and PathStyle support
// S3-compatible stores such as MinIO.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3API is the slice of the S3 client the sink uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores artifacts in an S3 bucket under an optional key prefix.
type S3Sink struct {
	client S3API
	opts   S3Options
}

// NewS3Sink builds a client from the ambient AWS configuration and the
// given options.
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Sink{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		opts:   opts,
	}, nil
}

// NewS3SinkWithClient wraps a pre-configured client.
func NewS3SinkWithClient(client S3API, opts S3Options) *S3Sink {
	return &S3Sink{client: client, opts: opts}
}

// Write stores data at prefix/name in the bucket and returns the s3:// URL.
func (s *S3Sink) Write(ctx context.Context, name string, data []byte) (string, error) {
	key := s.key(name)

	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.opts.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: put s3://%s/%s: %v", ErrWriteFailed, s.opts.Bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.opts.Bucket, key), nil
}

// List returns every artifact name under the given prefix, relative to the
// sink's own key prefix.
func (s *S3Sink) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if s.opts.Prefix != "" {
				name = name[len(s.opts.Prefix)+1:]
			}
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *S3Sink) key(name string) string {
	if s.opts.Prefix == "" {
		return name
	}
	return path.Join(s.opts.Prefix, name)
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (s *S3Sink) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s3MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt < s3MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
