// Package photos stores member profile photos on the local filesystem
// and resolves stored references into absolute URLs for API responses.
package photos

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxPhotoBytes = 10 << 20 // 10 MB

var (
	ErrNotImage = errors.New("photos: file is not an image")
	ErrTooLarge = errors.New("photos: file exceeds size limit")
)

// Store writes uploaded photos into a local directory and knows the
// public URL prefix they are served under.
type Store struct {
	dir       string
	urlPrefix string
}

// New returns a Store rooted at dir, serving files under urlPrefix
// (for example "/photos"). The directory is created if missing.
func New(dir, urlPrefix string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("photos: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("photos: create dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/photos"
	}
	if !strings.HasPrefix(urlPrefix, "/") {
		urlPrefix = "/" + urlPrefix
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the local directory photos are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes an uploaded file and returns the stored reference
// (the generated filename). The upload must declare an image/*
// content type and fit the size limit.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	ct := header.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return "", ErrNotImage
	}
	if header.Size > maxPhotoBytes {
		return "", ErrTooLarge
	}

	name := uuid.NewString() + sanitizeExt(header.Filename)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("photos: create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxPhotoBytes+1)); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("photos: write file: %w", err)
	}
	return name, nil
}

// Remove deletes a stored photo. A missing file is not an error.
func (s *Store) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("photos: remove file: %w", err)
	}
	return nil
}

// ResolveURL turns a stored reference into an absolute URL under
// baseURL. Empty references resolve to an empty string.
func (s *Store) ResolveURL(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + s.urlPrefix + "/" + url.PathEscape(ref)
}

// sanitizeExt keeps only a plausible file extension from the original
// upload name. Anything suspicious collapses to ".bin".
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".bin"
}
