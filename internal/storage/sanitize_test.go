package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"report.txt", "report.txt", false},
		{"  spaced name.pdf ", "spaced name.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{"..\\..\\windows\\win.ini", "win.ini", false},
		{"/absolute/path.bin", "path.bin", false},
		{"dir/", "", true},
		{".bashrc", "bashrc", false},
		{"...", "", true},
		{"..", "", true},
		{".", "", true},
		{"", "", true},
		{"   ", "", true},
		{"nul\x00byte.txt", "nulbyte.txt", false},
		{"tab\there.txt", "tabhere.txt", false},
		{"résumé.pdf", "résumé.pdf", false},
		{"a..b.txt", "a..b.txt", false},
	}

	for _, tt := range tests {
		got, err := Sanitize(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidName) {
				t.Fatalf("Sanitize(%q) err = %v, want ErrInvalidName", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Sanitize(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("é", 200) + ".txt"
	got, err := Sanitize(long)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) > maxNameBytes {
		t.Fatalf("len = %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Fatalf("extension lost: %q", got)
	}
	if !strings.HasPrefix(got, "é") || strings.ContainsRune(got, '�') {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestResolveStaysInsideRoot(t *testing.T) {
	root := filepath.Clean(t.TempDir())
	hostile := []string{
		"../secret",
		"../../../../etc/shadow",
		"a/../../b",
		"..\\..\\x",
		"/etc/passwd",
		"sub/dir/file",
		"....//....//x",
	}

	for _, name := range hostile {
		full, _, err := Resolve(root, name)
		if err != nil {
			if !errors.Is(err, ErrInvalidName) {
				t.Fatalf("Resolve(%q) err = %v", name, err)
			}
			continue
		}
		if filepath.Dir(full) != root {
			t.Fatalf("Resolve(%q) = %q escapes %q", name, full, root)
		}
	}
}
