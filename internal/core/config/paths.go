package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"querysync/internal/shared/util"
)

// ResolvedPaths are the absolute locations a sync run touches.
type ResolvedPaths struct {
	WorkspaceRoot string
	ProjectDir    string
	// GeneratedCacheDir is the absolute generated source cache.
	GeneratedCacheDir string
	// GeneratedCacheRelative is GeneratedCacheDir relative to ProjectDir,
	// slash separated, as stored in the project.
	GeneratedCacheRelative string
	DBPath                 string
	ReplayFile             string
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	root := cfg.Workspace.Root
	if root != "" {
		root = ResolveRelative(cwd, root)
	} else {
		detected, err := DetectWorkspaceRoot(cwd)
		if err != nil {
			return ResolvedPaths{}, err
		}
		root = detected
	}

	projectDir := ResolveRelative(root, cfg.Workspace.ProjectDir)
	cacheRel := util.NormalizeRelPath(cfg.Generated.CacheDir)

	dbPath := cfg.DB.Path
	if filepath.IsAbs(dbPath) {
		dbPath = filepath.Clean(dbPath)
	} else {
		dbPath = filepath.Join(projectDir, dbPath)
	}

	resolved := ResolvedPaths{
		WorkspaceRoot:          filepath.Clean(root),
		ProjectDir:             filepath.Clean(projectDir),
		GeneratedCacheDir:      filepath.Join(projectDir, filepath.FromSlash(cacheRel)),
		GeneratedCacheRelative: cacheRel,
		DBPath:                 filepath.Clean(dbPath),
	}
	if cfg.Query.ReplayFile != "" {
		resolved.ReplayFile = ResolveRelative(root, cfg.Query.ReplayFile)
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectWorkspaceRoot walks up from start to the nearest directory holding a
// Bazel workspace marker or a querysync config, falling back to start.
func DetectWorkspaceRoot(start string) (string, error) {
	markers := []string{
		"MODULE.bazel",
		"WORKSPACE.bazel",
		"WORKSPACE",
		DefaultFile,
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	root := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		root = filepath.Dir(abs)
	}

	for dir := root; ; {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return filepath.Clean(dir), nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Clean(root), nil
}
