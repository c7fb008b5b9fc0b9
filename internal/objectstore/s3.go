// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package objectstore hosts digest images in S3 so the external store can
// embed them by URL.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const uploadTimeout = 2 * time.Minute

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("image bucket not configured")

// uploader is the subset of *manager.Uploader the store uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store uploads local image files and returns their public URLs.
type S3Store struct {
	uploader uploader
	bucket   string
	region   string
	prefix   string
	baseURL  string
}

// New returns an S3Store for cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg types.ImagesConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return newStore(manager.NewUploader(s3.NewFromConfig(awsCfg)), cfg), nil
}

func newStore(u uploader, cfg types.ImagesConfig) *S3Store {
	return &S3Store{
		uploader: u,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// Resolve uploads localPath and returns its URL. Keys derive from the file
// content, so re-uploading the same image overwrites one object.
func (s *S3Store) Resolve(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	key := s.key(localPath, data)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return s.URL(key), nil
}

// key is prefix/<content id>/<file name>.
func (s *S3Store) key(localPath string, data []byte) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, data).String()
	return path.Join(s.prefix, id, filepath.Base(localPath))
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
