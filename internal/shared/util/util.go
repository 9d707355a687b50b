package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizeRelPath cleans a workspace-relative path to slash form. The
// workspace root itself normalizes to "".
func NormalizeRelPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	if trimmed == "" {
		return ""
	}
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix returns true when p equals prefix or is contained within
// prefix. An empty prefix contains every relative path.
func HasPathPrefix(p, prefix string) bool {
	p = NormalizeRelPath(p)
	prefix = NormalizeRelPath(prefix)
	if prefix == "" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// RelativeTo returns p relative to base; both must already satisfy
// HasPathPrefix(p, base).
func RelativeTo(p, base string) string {
	p = NormalizeRelPath(p)
	base = NormalizeRelPath(base)
	if p == base {
		return ""
	}
	if base == "" {
		return p
	}
	return strings.TrimPrefix(p, base+"/")
}

// JoinRel joins workspace-relative segments, dropping empty ones.
func JoinRel(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = NormalizeRelPath(part); part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// IsEscapingPath reports whether p is absolute or climbs out of its base.
func IsEscapingPath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return true
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(p string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(p, data, perm)
}
