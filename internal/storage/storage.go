// Package storage defines the Storage interface for club thumbnail objects and the
// helpers shared by every backend.
//
// Backends register themselves with the factory from an init() function in their own
// package, and cmd/server blank-imports each backend package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return New(cfg)
//	    })
//	}
package storage

import (
	"context"
	"io"
	"strings"
)

// Storage is the object store behind club thumbnails
type Storage interface {
	// Upload stores an object at key, replacing any existing object at that key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Delete removes the object at key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at key
	Exists(ctx context.Context, key string) (bool, error)

	// PublicURL derives the public read URL of key. It does not contact the backend.
	PublicURL(key string) string

	// Backend returns the backend name used in logs and metrics
	Backend() string
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	// Key is the storage key the object was written to
	Key string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}

// JoinURL joins a base URL and an object key with exactly one slash between them.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// PublicURLFunc derives a URL for a key. Backends use it to honour an optional
// public base URL (usually a CDN) in front of their native URL scheme.
func PublicURLFunc(publicBase string, native func(key string) string) func(string) string {
	if publicBase == "" {
		return native
	}
	return func(key string) string { return JoinURL(publicBase, key) }
}
