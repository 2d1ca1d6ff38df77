package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/storage"
)

// ImageStore keeps stay photos in an S3-compatible bucket under
// stays/<stay id>/<uuid><ext>.
type ImageStore struct {
	bucket         string
	publicBaseURL  string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

type Options struct {
	Endpoint      string
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

func NewImageStore(opts Options, logger *slog.Logger) (*ImageStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	base := strings.TrimSpace(opts.PublicBaseURL)
	if base == "" {
		base = endpoint
	}
	return &ImageStore{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        client,
		logger:        logger,
	}, nil
}

func (s *ImageStore) Put(ctx context.Context, stayID string, img policies.ImageUpload) (string, error) {
	if img.Body == nil || img.Size == 0 {
		return "", policies.ErrImageUploadEmpty
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	key := ObjectKey(stayID, img.Name)
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := img.Size
	if size < 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, img.Body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", storage.Unavailable("s3 put object", err)
	}
	publicURL := s.objectURL(key)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "stay image stored", "stay_id", stayID, "key", key)
	}
	return publicURL, nil
}

// Delete removes the object behind a URL previously returned by Put. URLs
// from another bucket are ignored.
func (s *ImageStore) Delete(ctx context.Context, rawURL string) error {
	key, ok := s.keyFromURL(rawURL)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return storage.Unavailable("s3 remove object", err)
	}
	return nil
}

// ObjectKey builds a collision-free key that keeps the upload's extension.
func ObjectKey(stayID, name string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(name)))
	if len(ext) > 8 {
		ext = ""
	}
	return "stays/" + stayID + "/" + uuid.NewString() + ext
}

func (s *ImageStore) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = storage.Unavailable("s3 check bucket", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, s.bucket)
		if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: set bucket policy: %w", err)
		}
	})
	return s.bucketInitErr
}

func (s *ImageStore) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, strings.TrimLeft(key, "/"))
}

func (s *ImageStore) keyFromURL(rawURL string) (string, bool) {
	prefix := s.publicBaseURL + "/" + s.bucket + "/"
	key, ok := strings.CutPrefix(rawURL, prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.ImageStore = (*ImageStore)(nil)
