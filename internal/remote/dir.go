package remote

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore serves a local directory tree (for example a mounted bucket) as a
// remote store. Keys are slash-separated paths relative to the root.
type DirStore struct {
	root     string
	pageSize int
}

// NewDirStore creates a DirStore. pageSize <= 0 means 1000 keys per page.
func NewDirStore(root string, pageSize int) *DirStore {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &DirStore{root: root, pageSize: pageSize}
}

// List returns keys under prefix in lexical order, paged by marker.
func (s *DirStore) List(ctx context.Context, prefix, marker string) ([]string, string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > marker {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	sort.Strings(keys)
	if len(keys) <= s.pageSize {
		return keys, "", nil
	}
	page := keys[:s.pageSize]
	return page, page[len(page)-1], nil
}

// Download copies the file named by key into w.
func (s *DirStore) Download(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
