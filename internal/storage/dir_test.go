package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func TestNewDirCreatesRoot(t *testing.T) {
	d := newTestDir(t)
	info, err := os.Stat(d.Root())
	if err != nil {
		t.Fatalf("stat root: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("root is not a directory")
	}
	if err := d.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestDirSaveOpenRoundTrip(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()
	data := []byte("0123456789")

	f, err := d.Save(ctx, "report.txt", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.Name != "report.txt" || f.Size != int64(len(data)) {
		t.Fatalf("unexpected file info: %+v", f)
	}

	obj, err := d.Open(ctx, "report.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Close()

	got, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
	if obj.Info().Size != int64(len(data)) {
		t.Fatalf("Info().Size = %d", obj.Info().Size)
	}
}

func TestDirSaveOverwrites(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()

	if _, err := d.Save(ctx, "a.txt", strings.NewReader("first version")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := d.Save(ctx, "a.txt", strings.NewReader("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(d.Root(), "a.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second" {
		t.Fatalf("content = %q, want %q", b, "second")
	}
}

func TestDirSaveTraversalStaysInRoot(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()

	f, err := d.Save(ctx, "../../escape.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.Name != "escape.txt" {
		t.Fatalf("name = %q", f.Name)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "escape.txt")); err != nil {
		t.Fatalf("file not inside root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(d.Root()), "escape.txt")); !os.IsNotExist(err) {
		t.Fatalf("file escaped root: %v", err)
	}

	if _, err := d.Save(ctx, "..", strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Save(..) err = %v, want ErrInvalidName", err)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestDirSaveReadErrorLeavesNothingBehind(t *testing.T) {
	d := newTestDir(t)
	boom := errors.New("client went away")

	_, err := d.Save(context.Background(), "partial.bin", io.MultiReader(strings.NewReader("abc"), failingReader{boom}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		t.Fatalf("read failure reported as IOError: %v", err)
	}

	entries, err := os.ReadDir(d.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("leftover entries: %v", entries)
	}
}

func TestDirSaveHonoursContext(t *testing.T) {
	d := newTestDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Save(ctx, "late.txt", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDirListFiltersAndSorts(t *testing.T) {
	d := newTestDir(t)
	root := d.Root()

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("b.txt", "bb")
	mustWrite("a.txt", "a")
	mustWrite(".gitkeep", "")
	mustWrite(".upload-123", "partial")
	if err := os.Mkdir(filepath.Join(root, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "subdir", "nested.txt"), []byte("n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}

	files, err := d.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "a.txt,b.txt" {
		t.Fatalf("names = %v", names)
	}
	if files[1].Size != 2 {
		t.Fatalf("b.txt size = %d", files[1].Size)
	}
}

func TestDirOpenRefusesSymlinkOutsideRoot(t *testing.T) {
	d := newTestDir(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("TOP-SECRET"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(d.Root(), "innocent.txt")); err != nil {
		t.Fatal(err)
	}

	obj, err := d.Open(context.Background(), "innocent.txt")
	if err == nil {
		_ = obj.Close()
		t.Fatal("Open followed a symlink out of the root")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDirListMissingRoot(t *testing.T) {
	d := newTestDir(t)
	if err := os.RemoveAll(d.Root()); err != nil {
		t.Fatal(err)
	}

	_, err := d.List(context.Background())
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want *IOError", err)
	}
	if err := d.Check(context.Background()); err == nil {
		t.Fatal("Check succeeded on missing root")
	}
}

func TestDirDelete(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()

	if _, err := d.Save(ctx, "gone.txt", strings.NewReader("bye")); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, "gone.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Open(ctx, "gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open after delete err = %v, want ErrNotFound", err)
	}
	if err := d.Delete(ctx, "gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestDirDeleteRefusesDirectories(t *testing.T) {
	d := newTestDir(t)
	if err := os.Mkdir(filepath.Join(d.Root(), "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(context.Background(), "keep"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "keep")); err != nil {
		t.Fatalf("directory removed: %v", err)
	}
}

func TestDirOpenMissing(t *testing.T) {
	d := newTestDir(t)
	if _, err := d.Open(context.Background(), "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := d.Open(context.Background(), "../"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestDirConcurrentSavesDistinctNames(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a'+i)) + ".txt"
			if _, err := d.Save(ctx, name, strings.NewReader(strings.Repeat("x", i+1))); err != nil {
				t.Errorf("Save(%s): %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	files, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 16 {
		t.Fatalf("got %d files, want 16", len(files))
	}
}

func TestDirSweepStale(t *testing.T) {
	d := newTestDir(t)
	root := d.Root()
	old := time.Now().Add(-48 * time.Hour)

	write := func(name string, mtime time.Time) {
		t.Helper()
		p := filepath.Join(root, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	write(".upload-old", old)
	write(".upload-fresh", time.Now())
	write("kept.txt", old)
	write(".gitkeep", old)

	n, err := d.SweepStale(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	for name, want := range map[string]bool{
		".upload-old":   false,
		".upload-fresh": true,
		"kept.txt":      true,
		".gitkeep":      true,
	} {
		_, err := os.Stat(filepath.Join(root, name))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", name, exists, want)
		}
	}
}
