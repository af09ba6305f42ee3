package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage saves archived report documents. Keys are slash-separated relative
// paths such as "reports/<id>.json".
type Storage interface {
	// Save stores r under key and returns a URL the object can be read from.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes key. A missing object is not an error.
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	IsLocal() bool
}

var ErrInvalidKey = errors.New("invalid storage key")

// cleanKey rejects absolute keys and keys that climb out of the root.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	cleaned := path.Clean(key)
	if key == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// ----- local storage -----

type LocalStorage struct {
	baseDir    string // e.g. "archive"
	publicBase string // e.g. "/archive"
}

func NewLocalStorage(baseDir string) *LocalStorage {
	if baseDir == "" {
		baseDir = "archive"
	}
	return &LocalStorage{baseDir: baseDir, publicBase: "/archive"}
}

func (s *LocalStorage) BaseDir() string { return s.baseDir }

// Save writes through a temp file and renames it into place, so the static
// mount never serves a half-written report.
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.baseDir, filepath.FromSlash(key))
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(key))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) PublicURL(key string) string {
	return s.publicBase + "/" + strings.TrimPrefix(filepath.ToSlash(key), "/")
}

func (s *LocalStorage) IsLocal() bool { return true }

// ----- S3 / R2 -----

type S3Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Bucket         string
	ForcePathStyle bool
	PublicBaseURL  string
}

// NewStorageFromEnv builds the archive store. STORAGE_PROVIDER=s3 or r2
// selects an S3-compatible bucket; anything else writes under ARCHIVE_DIR.
func NewStorageFromEnv() (Storage, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_PROVIDER")))
	if provider == "s3" || provider == "r2" {
		cfg := S3Config{
			Endpoint:       firstNonEmpty(os.Getenv("S3_ENDPOINT"), os.Getenv("R2_ENDPOINT")),
			AccessKey:      firstNonEmpty(os.Getenv("S3_ACCESS_KEY_ID"), os.Getenv("R2_ACCESS_KEY_ID")),
			SecretKey:      firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("R2_SECRET_ACCESS_KEY")),
			UseSSL:         true,
			Bucket:         firstNonEmpty(os.Getenv("S3_BUCKET"), os.Getenv("R2_BUCKET")),
			ForcePathStyle: os.Getenv("S3_FORCE_PATH_STYLE") != "false",
			PublicBaseURL:  os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		}
		st, err := NewS3Storage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure %s storage: %w", provider, err)
		}
		return st, nil
	}
	return NewLocalStorage(firstNonEmpty(os.Getenv("ARCHIVE_DIR"), "archive")), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
