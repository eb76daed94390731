// Package upload stores user images in an S3-compatible bucket.
package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/config"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/pkg/logx"
)

// Uploader is the part of manager.Uploader the service uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Service uploads images. A Service without an uploader reports itself
// disabled and rejects every upload.
type Service struct {
	uploader Uploader
	bucket   string
	prefix   string
	maxBytes int64
	newID    func() string
}

// NewS3Uploader builds a multipart uploader for cfg. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Uploader(cfg config.UploadConfig) *manager.Uploader {
	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return manager.NewUploader(client)
}

// NewService returns a Service. uploader may be nil when uploads are not configured.
func NewService(uploader Uploader, cfg config.UploadConfig) *Service {
	return &Service{
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.KeyPrefix, "/"),
		maxBytes: cfg.MaxBytes,
		newID:    uuid.NewString,
	}
}

// Enabled reports whether uploads are available.
func (s *Service) Enabled() bool {
	return s != nil && s.uploader != nil && s.bucket != ""
}

// MaxBytes is the largest accepted upload.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores body under a fresh name that keeps filename's extension.
func (s *Service) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*chat.ImageUpload, error) {
	if !s.Enabled() {
		return nil, apperr.UploadNotConfigured
	}

	name := s.newID() + strings.ToLower(filepath.Ext(filename))
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("upload failed")
		return nil, apperr.UploadFailed.Wrap(fmt.Errorf("put %s: %w", key, err))
	}

	logx.Info().Str("key", key).Str("location", out.Location).Msg("image uploaded")
	return &chat.ImageUpload{Name: name, URL: out.Location}, nil
}
