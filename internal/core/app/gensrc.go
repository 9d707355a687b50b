package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"querysync/internal/core/errors"
)

// DirectoryLister reports every directory directly below the generated
// source cache as one generated source directory.
type DirectoryLister struct {
	dir string
}

func NewDirectoryLister(dir string) *DirectoryLister {
	return &DirectoryLister{dir: dir}
}

// GeneratedDirs returns the absolute subdirectories of the cache, sorted.
// A missing cache yields no directories.
func (l *DirectoryLister) GeneratedDirs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l == nil || l.dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "list generated source cache"), errors.CtxPath, l.dir)
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(l.dir, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
