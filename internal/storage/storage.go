// Package storage holds archived generation results.
// Downloads are staged in temporary files, then persisted with Put to the
// local disk or to S3.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned when an object key is empty or escapes the
// storage root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// Storage defines temporary staging and persistent storage of results.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Put persists data under key and returns where it was stored: a file
	// path for local storage, a URL for S3.
	Put(ctx context.Context, key string, data io.Reader) (location string, err error)
}
