package storage

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameBytes = 255

// Sanitize reduces a client supplied name to a bare file name.
//
// Directory components (either separator style) are dropped, control
// characters removed, and leading dots and surrounding spaces trimmed so the
// result can never be hidden, relative or absolute. Names that end up empty
// are rejected with ErrInvalidName.
func Sanitize(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)

	if len(name) > maxNameBytes {
		name = truncateName(name, maxNameBytes)
	}

	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

// truncateName shortens name to at most max bytes, keeping the extension and
// never splitting a UTF-8 sequence.
func truncateName(name string, max int) string {
	ext := filepath.Ext(name)
	if len(ext) >= max/2 {
		ext = ""
	}
	base := name[:len(name)-len(ext)]
	limit := max - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	return base[:limit] + ext
}

// Resolve sanitizes name and joins it onto root, which must already be an
// absolute, cleaned directory path. The result is guaranteed to be a direct
// child of root.
func Resolve(root, name string) (string, string, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(root, clean)
	if filepath.Dir(full) != root {
		return "", "", ErrInvalidName
	}
	return full, clean, nil
}
