package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used by S3Writer.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads each table as a CSV object at
// <prefix>/<run id>/<name>.csv.
type S3Writer struct {
	client S3API
	bucket string
	prefix string
	runID  string
}

// NewS3Writer loads the default AWS configuration for cfg.Region. A custom
// Endpoint (MinIO, LocalStack) switches to path-style addressing.
func NewS3Writer(ctx context.Context, cfg Config) (*S3Writer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3WriterWithClient(client, cfg.Bucket, cfg.Prefix, cfg.RunID), nil
}

// NewS3WriterWithClient wraps an existing client.
func NewS3WriterWithClient(client S3API, bucket, prefix, runID string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, prefix: prefix, runID: runID}
}

// Key returns the object key for a dataset name.
func (w *S3Writer) Key(name string) string {
	return path.Join(w.prefix, w.runID, name+".csv")
}

// Write implements Writer.
func (w *S3Writer) Write(ctx context.Context, name string, columns []string, rows [][]any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := encodeCSV(columns, rows)
	if err != nil {
		return err
	}

	key := w.Key(name)
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", w.bucket, key, err)
	}
	return nil
}
