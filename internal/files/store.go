// Package files serves the flat directories of client-readable documents:
// the content directory (song data, read-mostly) and the edit directory
// (free text written back by the client).
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/lyric-companion/backend/internal/model"
)

// Sanitizer maps a client-supplied filename to a safe name inside the store
// directory. It returns "" for names that must be rejected.
type Sanitizer func(name string) string

// Store reads and overwrites regular files in a single directory. It never
// creates files: a Put for a missing file fails with model.ErrFileNotFound.
type Store struct {
	dir      string
	sanitize Sanitizer
}

// NewStore creates a Store over dir using sanitize for every filename.
func NewStore(dir string, sanitize Sanitizer) *Store {
	return &Store{dir: dir, sanitize: sanitize}
}

// NewContentStore creates the store for the content directory.
func NewContentStore(dir string) *Store {
	return NewStore(dir, SanitizeContentName)
}

// NewTextStore creates the store for the edit directory.
func NewTextStore(dir string) *Store {
	return NewStore(dir, SanitizeTextName)
}

// Dir returns the directory the store serves.
func (s *Store) Dir() string {
	return s.dir
}

// List returns the contents of every regular file in the directory keyed by
// sanitized filename. Subdirectories are skipped.
func (s *Store) List() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		if !isRegular(path) {
			continue
		}
		name := s.sanitize(entry.Name())
		if name == "" {
			continue
		}
		contents, err := readText(path)
		if err != nil {
			return nil, err
		}
		out[name] = contents
	}
	return out, nil
}

// Names returns the sanitized names of the regular files, sorted.
func (s *Store) Names() ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the contents of one file.
func (s *Store) Get(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if !isRegular(path) {
		return "", model.ErrFileNotFound
	}
	return readText(path)
}

// Put overwrites an existing file with contents.
func (s *Store) Put(name string, contents []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return model.ErrFileNotFound
	}
	if err := os.WriteFile(path, contents, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *Store) resolve(name string) (string, error) {
	clean := s.sanitize(name)
	if clean == "" {
		return "", model.ErrInvalidFilename
	}
	return filepath.Join(s.dir, clean), nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", model.ErrFileNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8", path)
	}
	return string(data), nil
}

// SanitizeContentName maps ".." to "." and keeps only the last path element,
// so a content name never leaves the directory.
func SanitizeContentName(name string) string {
	if name == ".." {
		name = "."
	}
	base := filepath.Base(filepath.FromSlash(name))
	switch base {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return base
}

// SanitizeTextName replaces every character outside [ A-Za-z0-9-] with '_'.
func SanitizeTextName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == ' ', r == '-',
			r >= '0' && r <= '9',
			r >= 'A' && r <= 'Z',
			r >= 'a' && r <= 'z':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
