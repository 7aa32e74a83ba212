package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/recetas/backend/internal/config"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

// fileHeader builds a multipart.FileHeader holding content.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestObjectName(t *testing.T) {
	a, err := ObjectName(".png")
	require.NoError(t, err)
	b, err := ObjectName(".png")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.Len(t, a, 25)
	assert.NotEqual(t, a, b)
}

func TestLocalStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "abc.png", "image/png", bytes.NewReader(pngBytes), int64(len(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/abc.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, store.Delete(context.Background(), url, "https://elsewhere.example/x.png", url))
	_, err = os.Stat(filepath.Join(dir, "abc.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../evil.png", "image/png", bytes.NewReader(pngBytes), 0)
	assert.ErrorIs(t, err, ErrInvalidKey)

	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	require.NoError(t, store.Delete(context.Background(), "/uploads/../"+filepath.Base(outside)))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestLocalStore_Handler(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "abc.png", "image/png", bytes.NewReader(pngBytes), int64(len(pngBytes)))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	for _, path := range []string{"/uploads/", "/uploads/nested", "/uploads/nested/", "/uploads/missing.png", "/other/abc.png"} {
		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "abc.png", path)
	}
}

func TestSaveUpload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	t.Run("image accepted", func(t *testing.T) {
		url, kind, err := SaveUpload(context.Background(), store, fileHeader(t, "photo.jpg", pngBytes), KindImage)
		require.NoError(t, err)
		assert.Equal(t, KindImage, kind)
		assert.True(t, strings.HasPrefix(url, "/uploads/"))
		assert.True(t, strings.HasSuffix(url, ".png"), "extension follows sniffed type, not filename")
	})

	t.Run("image rejected where only video allowed", func(t *testing.T) {
		_, _, err := SaveUpload(context.Background(), store, fileHeader(t, "photo.png", pngBytes), KindVideo)
		assert.ErrorIs(t, err, ErrUnsupportedMedia)
	})

	t.Run("text rejected", func(t *testing.T) {
		_, _, err := SaveUpload(context.Background(), store, fileHeader(t, "fake.png", []byte("just some text")), KindImage, KindVideo)
		assert.ErrorIs(t, err, ErrUnsupportedMedia)
	})
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, obj := range in.Delete.Objects {
		f.deletes = append(f.deletes, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StoreWithClient(client, "recetas", "https://cdn.example.com/")

	url, err := store.Save(context.Background(), "abc.png", "image/png", bytes.NewReader(pngBytes), int64(len(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/abc.png", url)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "media/abc.png", aws.ToString(client.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(client.puts[0].ContentType))

	require.NoError(t, store.Delete(context.Background(), url, "/uploads/other.png"))
	assert.Equal(t, []string{"media/abc.png"}, client.deletes)
}

func TestOwns(t *testing.T) {
	local, err := NewLocalStore(t.TempDir(), "/uploads/")
	require.NoError(t, err)
	remote := NewS3StoreWithClient(&fakeS3{}, "recetas", "https://cdn.example.com/")

	tests := []struct {
		store MediaStore
		url   string
		want  bool
	}{
		{local, "/uploads/abc.png", true},
		{local, "/uploads/../abc.png", false},
		{local, "/uploads/", false},
		{local, "https://elsewhere.example/abc.png", false},
		{remote, "https://cdn.example.com/media/abc.png", true},
		{remote, "https://cdn.example.com/other/abc.png", false},
		{remote, "/uploads/abc.png", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.store.Owns(tt.url), tt.url)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(configWithDriver("ftp"))
	assert.Error(t, err)
}

func configWithDriver(driver string) config.StorageConfig {
	return config.StorageConfig{Driver: driver}
}
