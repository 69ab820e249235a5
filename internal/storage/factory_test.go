package storage_test

import (
	"context"
	"io"
	"testing"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/storage"
)

type mockStorage struct{}

func (m *mockStorage) Upload(_ context.Context, key string, _ io.Reader, size int64, _ string) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key, Size: size}, nil
}
func (m *mockStorage) Delete(_ context.Context, _ string) error          { return nil }
func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockStorage) PublicURL(key string) string                      { return "mock://" + key }
func (m *mockStorage) Backend() string                                  { return "mock" }

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return &mockStorage{}, nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "test-backend"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s.Backend() != "mock" {
		t.Errorf("Backend() = %q, want mock", s.Backend())
	}

	found := false
	for _, name := range storage.Registered() {
		if name == "test-backend" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, missing test-backend", storage.Registered())
	}
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "completely-unknown-backend"

	if _, err := storage.NewStorage(cfg); err == nil {
		t.Error("NewStorage() expected error for unknown backend, got nil")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "clubs/c1/thumbnail.png", "https://cdn.example.com/clubs/c1/thumbnail.png"},
		{"https://cdn.example.com/", "/clubs/c1/thumbnail.png", "https://cdn.example.com/clubs/c1/thumbnail.png"},
		{"http://localhost:8080/files", "a.jpg", "http://localhost:8080/files/a.jpg"},
	}
	for _, tt := range tests {
		if got := storage.JoinURL(tt.base, tt.key); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestPublicURLFunc(t *testing.T) {
	native := func(key string) string { return "https://bucket.example/" + key }

	if got := storage.PublicURLFunc("", native)("k.png"); got != "https://bucket.example/k.png" {
		t.Errorf("without public base: %q", got)
	}
	if got := storage.PublicURLFunc("https://cdn.example.com", native)("k.png"); got != "https://cdn.example.com/k.png" {
		t.Errorf("with public base: %q", got)
	}
}
