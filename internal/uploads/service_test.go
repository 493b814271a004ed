package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type stubStore struct {
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	deleteErr error
}

func newStubStore() *stubStore {
	return &stubStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *stubStore) Upload(_ context.Context, _, object, contentType string, body io.Reader) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[object] = data
	s.types[object] = contentType
	return nil
}

func (s *stubStore) Delete(_ context.Context, _, object string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.objects[object]; !ok {
		return gcs.ErrObjectNotFound
	}
	delete(s.objects, object)
	return nil
}

func newTestService(t *testing.T, store *stubStore, maxBytes int64) *service {
	t.Helper()
	svc, err := NewService(store, "sf-media", config.UploadsConfig{
		MaxBytes:      maxBytes,
		PublicBaseURL: "https://cdn.example.com/",
	}, nil)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.newName = func() (string, error) { return "0123456789abcdef0123456789abcdef", nil }
	return impl
}

func TestUploadImageStoresPNG(t *testing.T) {
	store := newStubStore()
	svc := newTestService(t, store, 1024)

	res, err := svc.UploadImage(context.Background(), FolderProducts, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "products/0123456789abcdef0123456789abcdef.png", res.Object)
	assert.Equal(t, "https://cdn.example.com/sf-media/products/0123456789abcdef0123456789abcdef.png", res.URL)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, int64(len(pngHeader)), res.Size)
	assert.Equal(t, "image/png", store.types[res.Object])
}

func TestUploadImageRejectsNonImage(t *testing.T) {
	store := newStubStore()
	svc := newTestService(t, store, 1024)

	_, err := svc.UploadImage(context.Background(), FolderProfile, strings.NewReader("plain text, not a picture"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, store.objects)
}

func TestUploadImageEnforcesSizeLimit(t *testing.T) {
	svc := newTestService(t, newStubStore(), 8)

	_, err := svc.UploadImage(context.Background(), FolderProfile, bytes.NewReader(pngHeader))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUploadImageRejectsEmptyBodyAndUnknownFolder(t *testing.T) {
	svc := newTestService(t, newStubStore(), 1024)

	_, err := svc.UploadImage(context.Background(), FolderProfile, bytes.NewReader(nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UploadImage(context.Background(), Folder("secrets"), bytes.NewReader(pngHeader))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUploadImageWrapsStoreFailure(t *testing.T) {
	store := newStubStore()
	store.uploadErr = errors.New("bucket unavailable")
	svc := newTestService(t, store, 1024)

	_, err := svc.UploadImage(context.Background(), FolderProfile, bytes.NewReader(pngHeader))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestDeleteIsBestEffort(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	svc := newTestService(t, store, 1024)

	res, err := svc.UploadImage(ctx, FolderProfile, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.True(t, svc.Delete(ctx, res.URL))
	assert.False(t, svc.Delete(ctx, res.URL), "second delete finds nothing")
	assert.False(t, svc.Delete(ctx, "https://elsewhere.example.com/img.png"))

	store.deleteErr = errors.New("timeout")
	assert.False(t, svc.Delete(ctx, "https://cdn.example.com/sf-media/profile/x.png"))
}
