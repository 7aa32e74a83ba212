// Package storage keeps uploaded recipe media on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/welldanyogia/recetas/backend/internal/config"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
)

// MediaKind is the broad type of an uploaded file.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Storage errors
var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrInvalidKey       = errors.New("invalid object key")
)

// MediaStore stores media objects and serves them under a public URL.
type MediaStore interface {
	// Save writes r under name and returns its public URL.
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	// Delete removes the objects behind urls. URLs the store did not issue
	// are ignored, as are objects that no longer exist.
	Delete(ctx context.Context, urls ...string) error
	// Owns reports whether url names an object this store issued.
	Owns(url string) bool
}

// New builds the store selected by cfg.Driver.
func New(cfg config.StorageConfig) (MediaStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, "/uploads/")
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

const nameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ObjectName returns a random object name with ext appended.
func ObjectName(ext string) (string, error) {
	id, err := gonanoid.Generate(nameAlphabet, 21)
	if err != nil {
		return "", fmt.Errorf("failed to generate object name: %w", err)
	}
	return id + ext, nil
}

// Detect sniffs the content type of f and rewinds it.
func Detect(f io.ReadSeeker) (*mimetype.MIME, error) {
	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return mime, nil
}

// KindOf maps a sniffed MIME type to a MediaKind, or "" for anything else.
func KindOf(mime *mimetype.MIME) MediaKind {
	switch {
	case strings.HasPrefix(mime.String(), "image/"):
		return KindImage
	case strings.HasPrefix(mime.String(), "video/"):
		return KindVideo
	default:
		return ""
	}
}

// SaveUpload sniffs an uploaded file, rejects it with ErrUnsupportedMedia
// unless its kind is allowed, and stores it under a fresh name.
func SaveUpload(ctx context.Context, store MediaStore, fh *multipart.FileHeader, allowed ...MediaKind) (string, MediaKind, error) {
	f, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	mime, err := Detect(f)
	if err != nil {
		return "", "", err
	}

	kind := KindOf(mime)
	if kind == "" || !containsKind(allowed, kind) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mime.String())
	}

	name, err := ObjectName(mime.Extension())
	if err != nil {
		return "", "", err
	}

	url, err := store.Save(ctx, name, mime.String(), f, fh.Size)
	if err != nil {
		return "", "", err
	}
	metrics.MediaUploadsTotal.WithLabelValues(string(kind)).Inc()
	return url, kind, nil
}

func containsKind(kinds []MediaKind, k MediaKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
