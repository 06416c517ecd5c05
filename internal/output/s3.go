package output

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/gltfbuild"
	"github.com/Faultbox/meshseq/internal/logger"
)

const s3Scheme = "s3://"

// PutObjectAPI is the part of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Sink uploads document files as objects under one bucket.
type S3Sink struct {
	Client PutObjectAPI
	Bucket string
	Key    string
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(target string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(target, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", target)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 url %q needs a bucket and an object key", target)
	}
	return bucket, key, nil
}

// NewS3Sink creates a sink for target using the default AWS credential chain.
func NewS3Sink(ctx context.Context, target string, opts Options) (*S3Sink, error) {
	bucket, key, err := ParseS3URL(target)
	if err != nil {
		return nil, &errs.IOError{Op: "open output", Path: target, Err: err}
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.S3Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &errs.IOError{Op: "load AWS config", Path: target, Err: err}
	}

	// Custom endpoints are usually MinIO or similar and need path-style addressing
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Sink{Client: client, Bucket: bucket, Key: key}, nil
}

// Name implements Sink.
func (s *S3Sink) Name() string {
	return s.Key
}

// Write implements Sink. Objects already uploaded are deleted again when a
// later upload fails.
func (s *S3Sink) Write(ctx context.Context, files []gltfbuild.File) error {
	var done []string
	for _, f := range files {
		_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.Bucket),
			Key:           aws.String(f.Name),
			Body:          bytes.NewReader(f.Data),
			ContentLength: aws.Int64(int64(len(f.Data))),
			ContentType:   aws.String(contentType(f.Name)),
		})
		if err != nil {
			s.rollback(ctx, done)
			return &errs.IOError{Op: "upload output", Path: s3Scheme + path.Join(s.Bucket, f.Name), Err: err}
		}
		done = append(done, f.Name)
		logger.Debug("uploaded output object",
			zap.String("bucket", s.Bucket), zap.String("key", f.Name), zap.Int("bytes", len(f.Data)))
	}
	return nil
}

func (s *S3Sink) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			logger.Warn("failed to remove partial upload", zap.String("key", key), zap.Error(err))
		}
	}
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".glb":
		return "model/gltf-binary"
	case ".gltf":
		return "model/gltf+json"
	}
	return "application/octet-stream"
}
