package config

import (
	"time"
)

// DefaultFile is the config file name looked up in the workspace root.
const DefaultFile = "querysync.toml"

type Config struct {
	Version       int           `toml:"version"`
	Workspace     Workspace     `toml:"workspace"`
	Project       Project       `toml:"project"`
	Query         Query         `toml:"query"`
	Generated     Generated     `toml:"generated"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Workspace struct {
	// Root is the Bazel workspace. Empty means detect from the working
	// directory.
	Root string `toml:"root"`
	// ProjectDir holds querysync state and is relative to Root unless
	// absolute.
	ProjectDir string `toml:"project_dir"`
}

type Project struct {
	ImportRoots     []string `toml:"import_roots"`
	ExcludeDirs     []string `toml:"exclude_dirs"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	Languages       []string `toml:"languages"`
}

type Query struct {
	Invoker      string   `toml:"invoker"`
	Binary       string   `toml:"binary"`
	StartupFlags []string `toml:"startup_flags"`
	Flags        []string `toml:"flags"`
	// MaxCommandLineLength is the longest query expression passed inline;
	// longer ones go through --query_file. Negative disables spilling.
	MaxCommandLineLength int           `toml:"max_command_line_length"`
	ReplayFile           string        `toml:"replay_file"`
	Timeout              time.Duration `toml:"timeout"`
}

type Generated struct {
	// CacheDir is relative to the project directory.
	CacheDir string `toml:"cache_dir"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Debounce       time.Duration `toml:"debounce"`
	SyncsPerMinute int           `toml:"syncs_per_minute"`
}

type Observability struct {
	Enabled      bool   `toml:"enabled"`
	Address      string `toml:"address"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}
