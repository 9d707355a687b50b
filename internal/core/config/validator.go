package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"querysync/internal/core/config/helpers"
	"querysync/internal/engine/workspace"
	"querysync/internal/shared/util"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateProject(cfg *Config) error {
	if len(cfg.Project.ImportRoots) == 0 {
		return fmt.Errorf("project.import_roots must list at least one directory")
	}
	for _, root := range cfg.Project.ImportRoots {
		if err := validateRelativeDir("project.import_roots", root); err != nil {
			return err
		}
	}

	for _, ex := range cfg.Project.ExcludeDirs {
		if err := validateRelativeDir("project.exclude_dirs", ex); err != nil {
			return err
		}
		if helpers.HasWildcard(ex) {
			return fmt.Errorf("project.exclude_dirs entry %q contains a wildcard; use project.exclude_patterns", ex)
		}
		dir := util.NormalizeRelPath(ex)
		under := false
		for _, raw := range cfg.Project.ImportRoots {
			root := util.NormalizeRelPath(raw)
			if util.HasPathPrefix(root, dir) {
				return fmt.Errorf("project.exclude_dirs entry %q hides import root %q", ex, raw)
			}
			if util.HasPathPrefix(dir, root) {
				under = true
			}
		}
		if !under {
			return fmt.Errorf("project.exclude_dirs entry %q is not under any import root", ex)
		}
	}

	for _, pattern := range cfg.Project.ExcludePatterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("project.exclude_patterns entry %q is invalid: %w", pattern, err)
		}
	}

	for _, lang := range cfg.Project.Languages {
		if _, err := workspace.ParseLanguageClass(lang); err != nil {
			return fmt.Errorf("project.languages: %w", err)
		}
	}
	return nil
}

func validateRelativeDir(field, dir string) error {
	if filepath.IsAbs(dir) || util.IsEscapingPath(dir) {
		return fmt.Errorf("%s entry %q must be workspace-relative", field, dir)
	}
	return nil
}

func validateQuery(cfg *Config) error {
	switch cfg.Query.Invoker {
	case "local":
		if cfg.Query.Binary == "" {
			return fmt.Errorf("query.binary must not be empty for the local invoker")
		}
	case "replay":
		if cfg.Query.ReplayFile == "" {
			return fmt.Errorf("query.replay_file must be set for the replay invoker")
		}
	default:
		return fmt.Errorf("query.invoker must be one of: local, replay (got %q)", cfg.Query.Invoker)
	}
	for _, flag := range append(append([]string(nil), cfg.Query.StartupFlags...), cfg.Query.Flags...) {
		if !strings.HasPrefix(flag, "-") {
			return fmt.Errorf("query flag %q must start with '-'", flag)
		}
	}
	if cfg.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must not be negative")
	}
	return nil
}

func validateGenerated(cfg *Config) error {
	dir := cfg.Generated.CacheDir
	if filepath.IsAbs(dir) || util.IsEscapingPath(dir) {
		return fmt.Errorf("generated.cache_dir %q must be relative to the project directory", dir)
	}
	if util.NormalizeRelPath(dir) == "" {
		return fmt.Errorf("generated.cache_dir must name a directory below the project directory")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && cfg.DB.Path == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.SyncsPerMinute < 0 {
		return fmt.Errorf("watch.syncs_per_minute must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	if !strings.Contains(cfg.Observability.Address, ":") {
		return fmt.Errorf("observability.address must be host:port, got %q", cfg.Observability.Address)
	}
	return nil
}
