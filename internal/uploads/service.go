package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
)

// Folder is the object prefix an upload is stored under.
type Folder string

const (
	FolderProfile  Folder = "profile"
	FolderProducts Folder = "products"

	objectNameBytes = 16
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type objectStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) error
	Delete(ctx context.Context, bucket, object string) error
}

// Result describes a stored image.
type Result struct {
	URL         string `json:"url"`
	Object      string `json:"object"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Service interface {
	UploadImage(ctx context.Context, folder Folder, body io.Reader) (*Result, error)
	Delete(ctx context.Context, url string) bool
}

type service struct {
	store    objectStore
	bucket   string
	baseURL  string
	maxBytes int64
	logg     *logger.Logger
	newName  func() (string, error)
}

func NewService(store objectStore, bucket string, cfg config.UploadsConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket required")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("upload max bytes must be positive")
	}
	return &service{
		store:    store,
		bucket:   bucket,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: cfg.MaxBytes,
		logg:     logg,
		newName:  func() (string, error) { return security.RandomHex(objectNameBytes) },
	}, nil
}

func isAllowedImage(mt *mimetype.MIME) bool {
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return true
		}
	}
	return false
}

// UploadImage stores the body when its detected content is an accepted image.
func (s *service) UploadImage(ctx context.Context, folder Folder, body io.Reader) (*Result, error) {
	if folder != FolderProfile && folder != FolderProducts {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown upload folder %q", folder)
	}
	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "File is required")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "File is too large, the limit is %d MB", s.maxBytes/(1024*1024))
	}

	mt := mimetype.Detect(data)
	if !isAllowedImage(mt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Only jpeg, png, gif or webp images are allowed").
			WithDetails(map[string]any{"detected": mt.String()})
	}
	contentType := strings.SplitN(mt.String(), ";", 2)[0]

	name, err := s.newName()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate object name")
	}
	object := fmt.Sprintf("%s/%s%s", folder, name, mt.Extension())
	if err := s.store.Upload(ctx, s.bucket, object, contentType, bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}

	return &Result{
		URL:         s.publicURL(object),
		Object:      object,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *service) publicURL(object string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, object)
}

// objectFromURL reverses publicURL. It reports false for URLs outside the bucket.
func (s *service) objectFromURL(url string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", s.baseURL, s.bucket)
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	object := strings.TrimPrefix(url, prefix)
	if object == "" {
		return "", false
	}
	return object, true
}

// Delete removes a previously uploaded object. Failures are logged and
// reported as false.
func (s *service) Delete(ctx context.Context, url string) bool {
	object, ok := s.objectFromURL(url)
	if !ok {
		return false
	}
	if err := s.store.Delete(ctx, s.bucket, object); err != nil {
		if !errors.Is(err, gcs.ErrObjectNotFound) && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "object", object), "uploads.delete_failed", err)
		}
		return false
	}
	return true
}
