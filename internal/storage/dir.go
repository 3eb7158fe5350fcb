package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Dir stores files in a single local directory.
type Dir struct {
	root string
}

var (
	_ Store   = (*Dir)(nil)
	_ Sweeper = (*Dir)(nil)
)

const tempPrefix = ".upload-"

// NewDir returns a Dir rooted at path, creating the directory if needed.
func NewDir(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IOError{Op: "init", Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &IOError{Op: "init", Err: err}
	}
	return &Dir{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute storage directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) List(ctx context.Context) ([]File, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, &IOError{Op: "list", Err: err}
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		// Type bits come from Lstat, so symlinks are skipped rather than followed.
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, File{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Save writes into a hidden temp file next to the target and renames it into
// place, so readers never observe a partial upload and concurrent writers to
// the same name resolve as last-writer-wins.
func (d *Dir) Save(ctx context.Context, name string, r io.Reader) (File, error) {
	full, clean, err := Resolve(d.root, name)
	if err != nil {
		return File{}, err
	}

	tmp, err := os.CreateTemp(d.root, tempPrefix+"*")
	if err != nil {
		return File{}, &IOError{Op: "save", Name: clean, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Write failures come back as *IOError; read side failures (client aborts,
	// body limits) are returned as is so callers can classify them.
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(&diskWriter{w: tmp, name: clean}, &ctxReader{ctx: ctx, r: r}, buf)
	if err != nil {
		return File{}, err
	}
	if err := tmp.Close(); err != nil {
		return File{}, &IOError{Op: "save", Name: clean, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return File{}, &IOError{Op: "save", Name: clean, Err: err}
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return File{}, &IOError{Op: "save", Name: clean, Err: err}
	}
	committed = true

	info, err := os.Stat(full)
	if err != nil {
		return File{Name: clean, Size: n}, nil
	}
	return File{Name: clean, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *Dir) Open(ctx context.Context, name string) (Object, error) {
	full, clean, err := Resolve(d.root, name)
	if err != nil {
		return nil, err
	}

	// Lstat so a symlink in the root never leads outside it.
	linfo, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "open", Name: clean, Err: err}
	}
	if !linfo.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "open", Name: clean, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &IOError{Op: "open", Name: clean, Err: err}
	}
	// The entry may have been swapped between Lstat and Open.
	if !info.Mode().IsRegular() || !os.SameFile(linfo, info) {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &dirObject{File: f, info: File{Name: clean, Size: info.Size(), ModTime: info.ModTime()}}, nil
}

func (d *Dir) Delete(ctx context.Context, name string) error {
	full, clean, err := Resolve(d.root, name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return &IOError{Op: "delete", Name: clean, Err: err}
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return &IOError{Op: "delete", Name: clean, Err: err}
	}
	return nil
}

func (d *Dir) Check(ctx context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil {
		return &IOError{Op: "check", Err: err}
	}
	if !info.IsDir() {
		return &IOError{Op: "check", Err: errors.New("storage root is not a directory")}
	}
	return nil
}

type dirObject struct {
	*os.File
	info File
}

func (o *dirObject) Info() File { return o.info }

type diskWriter struct {
	w    io.Writer
	name string
}

func (d *diskWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if err != nil {
		return n, &IOError{Op: "save", Name: d.name, Err: err}
	}
	return n, nil
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// SweepStale removes temp files left by uploads that never reached the rename.
func (d *Dir) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, &IOError{Op: "sweep", Err: err}
	}
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, &IOError{Op: "sweep", Name: e.Name(), Err: err}
		}
		removed++
	}
	return removed, nil
}
