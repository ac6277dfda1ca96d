package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ImageKind distinguishes table and chart renderings.
type ImageKind string

const (
	KindTable ImageKind = "table"
	KindChart ImageKind = "chart"
)

// ImageStore persists rendered images of report variables.
type ImageStore interface {
	// Save writes data for (report, varName) under a fresh location and
	// returns it. Earlier images of the same variable are left untouched.
	Save(ctx context.Context, report, varName string, kind ImageKind, data []byte) (string, error)

	// Open reads an image back by the location returned from Save.
	Open(ctx context.Context, location string) ([]byte, error)

	// Delete removes the image at location. A missing image is not an error.
	Delete(ctx context.Context, location string) error
}

// imageName returns a relative object name unique to this write.
func imageName(report, varName string, kind ImageKind) string {
	return sanitize(report) + "/" + sanitize(varName) + "_" + string(kind) + "_" + uuid.NewString() + ".png"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// FileImageStore stores images under a base directory.
type FileImageStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileImageStore creates the base directory if needed.
func NewFileImageStore(baseDir string) (*FileImageStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure image dir: %w", err)
	}
	return &FileImageStore{baseDir: baseDir}, nil
}

// Save writes to a temp file then renames it into place.
func (s *FileImageStore) Save(_ context.Context, report, varName string, kind ImageKind, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, filepath.FromSlash(imageName(report, varName, kind)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure report image dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("commit image: %w", err)
	}
	return path, nil
}

// Open reads an image written by Save.
func (s *FileImageStore) Open(_ context.Context, location string) ([]byte, error) {
	if err := s.within(location); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// Delete removes an image written by Save.
func (s *FileImageStore) Delete(_ context.Context, location string) error {
	if err := s.within(location); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

func (s *FileImageStore) within(location string) error {
	rel, err := filepath.Rel(s.baseDir, location)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("image %s is outside %s", location, s.baseDir)
	}
	return nil
}

// s3API is the subset of *s3.Client used by S3ImageStore.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageConfig holds configuration for S3ImageStore.
type S3ImageConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO or LocalStack
	Prefix   string // optional key prefix
}

// S3ImageStore stores images in an S3 bucket. Locations are s3://bucket/key URIs.
type S3ImageStore struct {
	client s3API
	bucket string
	prefix string
}

// NewS3ImageStore creates an S3-backed image store using the default AWS credential chain.
func NewS3ImageStore(ctx context.Context, cfg S3ImageConfig) (*S3ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 image store: bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ImageStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Save uploads the image under a per-write key.
func (s *S3ImageStore) Save(ctx context.Context, report, varName string, kind ImageKind, data []byte) (string, error) {
	key := s.prefix + imageName(report, varName, kind)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Open downloads an image by its s3:// location.
func (s *S3ImageStore) Open(ctx context.Context, location string) ([]byte, error) {
	key, err := s.keyOf(location)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", location, err)
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}

// Delete removes an image by its s3:// location. S3 treats a missing key as success.
func (s *S3ImageStore) Delete(ctx context.Context, location string) error {
	key, err := s.keyOf(location)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", location, err)
	}
	return nil
}

func (s *S3ImageStore) keyOf(location string) (string, error) {
	prefix := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(location, prefix) {
		return "", fmt.Errorf("image %s is not in bucket %s", location, s.bucket)
	}
	return strings.TrimPrefix(location, prefix), nil
}

var (
	_ ImageStore = (*FileImageStore)(nil)
	_ ImageStore = (*S3ImageStore)(nil)
)
