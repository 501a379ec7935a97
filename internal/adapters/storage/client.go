package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadURLTTL bounds how long a pro has to start an upload after presigning.
const UploadURLTTL = 15 * time.Minute

// ErrObjectNotFound is returned for a key that was presigned but never uploaded.
var ErrObjectNotFound = errors.New("object not found")

// MinIOService is the MinIO-backed store for job media.
type MinIOService struct {
	client      *minio.Client
	maxFileSize int64
	now         func() time.Time
}

func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("minio is not configured")
	}
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOService{client: client, maxFileSize: cfg.GetMinIOMaxFileSize(), now: time.Now}, nil
}

// EnsureBucketExists creates bucket on first start.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// GenerateUploadURL presigns a PUT under folder. The Content-Type header is part
// of the signature, so the client must upload with the type it declared.
func (s *MinIOService) GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error) {
	if err := CheckSize(sizeBytes, s.maxFileSize); err != nil {
		return nil, err
	}

	key := uniqueKey(folder, fileName)
	headers := http.Header{}
	headers.Set("Content-Type", NormalizeContentType(contentType))

	expiresAt := s.now().Add(UploadURLTTL)
	u, err := s.client.PresignHeader(ctx, http.MethodPut, bucket, key, UploadURLTTL, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("presign upload %s: %w", key, err)
	}
	return &PresignedURL{URL: u.String(), FileKey: key, ExpiresAt: expiresAt}, nil
}

// DownloadObject reads a whole object, refusing anything above the upload limit.
func (s *MinIOService) DownloadObject(ctx context.Context, bucket, key string) (Object, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, objectError("get", key, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first Stat.
	info, err := obj.Stat()
	if err != nil {
		return Object{}, objectError("stat", key, err)
	}
	if s.maxFileSize > 0 && info.Size > s.maxFileSize {
		return Object{}, fmt.Errorf("object %s is %d bytes, limit %d", key, info.Size, s.maxFileSize)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return Object{}, fmt.Errorf("read object %s: %w", key, err)
	}
	return Object{Key: key, ContentType: info.ContentType, Data: data}, nil
}

func objectError(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("%s object %s: %w", op, key, err)
}

// uniqueKey keeps the base name for readability and adds a short random suffix.
func uniqueKey(folder, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	return path.Join(folder, name+"_"+uuid.NewString()[:8]+strings.ToLower(ext))
}
