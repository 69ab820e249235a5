// Package local implements the local filesystem storage backend. It is intended for
// development and single-node deployments; objects are served by the API's /files route.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/storage"
	"github.com/clubroom/clubroom/pkg/checksum"
)

// FilesRoute is the router prefix under which local objects are served.
const FilesRoute = "/files"

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL, cfg.Storage.PublicBaseURL)
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath  string
	publicURL func(string) string
}

// New creates a new local filesystem storage backend. Public URLs point at the server's
// /files route unless publicBaseURL is set.
func New(cfg *config.LocalStorageConfig, serverBaseURL, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	filesBase := storage.JoinURL(serverBaseURL, strings.TrimPrefix(FilesRoute, "/"))
	return &LocalStorage{
		basePath: cfg.BasePath,
		publicURL: storage.PublicURLFunc(publicBaseURL, func(key string) string {
			return storage.JoinURL(filesBase, key)
		}),
	}, nil
}

// BasePath returns the directory objects are stored under
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// resolve maps a key to a path inside basePath, rejecting keys that escape it.
func (s *LocalStorage) resolve(key string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return full, nil
}

// Upload writes the object to a temporary file and renames it into place, so readers
// never observe a partially written thumbnail and an existing object is replaced atomically.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()

	hashed := checksum.NewReader(reader)
	if _, err := io.Copy(tmp, hashed); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &storage.UploadResult{
		Key:      key,
		Size:     hashed.BytesRead(),
		Checksum: hashed.Sum(),
	}, nil
}

// Delete removes a file from the local filesystem
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Remove now-empty parent directories (best effort)
	dir := filepath.Dir(fullPath)
	for dir != filepath.Clean(s.basePath) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	return nil
}

// Exists checks if a file exists at the specified key
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// PublicURL returns the URL the object is served from
func (s *LocalStorage) PublicURL(key string) string {
	return s.publicURL(key)
}

// Backend returns "local"
func (s *LocalStorage) Backend() string { return "local" }
