// Package storage implements the flat file repository behind the web UI.
//
// A Store exposes a single namespace of bare file names. Names are always
// passed through Sanitize before they reach the backend, so no operation can
// address anything outside the storage root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when the named file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned when a name sanitizes to nothing usable.
	ErrInvalidName = errors.New("invalid file name")
)

// IOError wraps a backend failure (disk or object store) for one operation.
type IOError struct {
	Op   string
	Name string
	Err  error
}

func (e *IOError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// File describes one stored file.
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Object is an open, seekable handle on a stored file.
type Object interface {
	io.ReadSeekCloser
	Info() File
}

// Store is the storage accessor used by the HTTP handlers.
type Store interface {
	// List returns the visible regular files sorted by name.
	List(ctx context.Context) ([]File, error)
	// Save streams r into the named file, replacing any existing file.
	Save(ctx context.Context, name string, r io.Reader) (File, error)
	// Open returns a handle on the named file for download.
	Open(ctx context.Context, name string) (Object, error)
	// Delete removes the named file.
	Delete(ctx context.Context, name string) error
	// Check reports whether the backend is usable.
	Check(ctx context.Context) error
}

// Sweeper is implemented by stores that can leave partial uploads behind
// after a crash.
type Sweeper interface {
	// SweepStale removes partial uploads started before cutoff and reports
	// how many were removed.
	SweepStale(ctx context.Context, cutoff time.Time) (int, error)
}

// copyBufferSize bounds the memory used per in-flight transfer.
const copyBufferSize = 32 << 10
