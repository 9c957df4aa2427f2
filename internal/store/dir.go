package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExt is the file extension of pages in a Dir.
const DefaultExt = ".wiki"

// Dir stores pages as UTF-8 files below Root. Page "A/B" lives in
// "<Root>/A/B<Ext>".
type Dir struct {
	Root string
	Ext  string
}

// NewDir returns a Dir rooted at root. An empty ext selects DefaultExt.
func NewDir(root, ext string) *Dir {
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Dir{Root: root, Ext: ext}
}

// Path returns the file holding page name. Names that would leave Root
// are rejected.
func (d *Dir) Path(name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", false
	}
	rel := filepath.FromSlash(name) + d.Ext
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Join(d.Root, rel), true
}

// Text returns the text of page name, or "" when it does not exist.
func (d *Dir) Text(name string) (string, error) {
	path, ok := d.Path(name)
	if !ok {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read page %s: %w", name, err)
	}
	return string(data), nil
}

// List returns the names of all pages below Root, sorted.
func (d *Dir) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.Root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if name, ok := d.PageName(path); ok {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pages in %s: %w", d.Root, err)
	}
	sort.Strings(names)
	return names, nil
}

// PageName maps a file below Root back to its page name.
func (d *Dir) PageName(path string) (string, bool) {
	if !strings.HasSuffix(path, d.Ext) {
		return "", false
	}
	rel, err := filepath.Rel(d.Root, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, d.Ext)), true
}
