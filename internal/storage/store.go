// Package storage keeps uploaded resumes on local disk or in an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound reports a missing stored file.
var ErrNotFound = errors.New("storage: file not found")

// Object is an opened stored file.
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
}

// FileStore persists uploaded files under flat, pre-sanitised names.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}
