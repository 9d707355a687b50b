package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultMaxCommandLineLength = 131072
	defaultQueryTimeout         = 10 * time.Minute
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// finish runs the shared defaults, normalize and validate chain. It is
// split from Load so env overrides can be re-validated.
func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	normalize(cfg)

	if err := validateVersion(cfg); err != nil {
		return nil, err
	}
	if err := validateProject(cfg); err != nil {
		return nil, err
	}
	if err := validateQuery(cfg); err != nil {
		return nil, err
	}
	if err := validateGenerated(cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Revalidate checks cfg again after ApplyEnvOverrides.
func Revalidate(cfg *Config) error {
	_, err := finish(cfg)
	return err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Workspace.ProjectDir) == "" {
		cfg.Workspace.ProjectDir = ".querysync"
	}

	if len(cfg.Project.Languages) == 0 {
		cfg.Project.Languages = []string{"java"}
	}

	if strings.TrimSpace(cfg.Query.Invoker) == "" {
		cfg.Query.Invoker = "local"
	}
	if strings.TrimSpace(cfg.Query.Binary) == "" {
		cfg.Query.Binary = "bazel"
	}
	if cfg.Query.MaxCommandLineLength == 0 {
		cfg.Query.MaxCommandLineLength = defaultMaxCommandLineLength
	}
	if cfg.Query.Timeout == 0 {
		cfg.Query.Timeout = defaultQueryTimeout
	}

	if strings.TrimSpace(cfg.Generated.CacheDir) == "" {
		cfg.Generated.CacheDir = "gensrc"
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "history.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.SyncsPerMinute == 0 {
		cfg.Watch.SyncsPerMinute = 6
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "querysync"
	}
}

func normalize(cfg *Config) {
	cfg.Workspace.Root = strings.TrimSpace(cfg.Workspace.Root)
	cfg.Workspace.ProjectDir = strings.TrimSpace(cfg.Workspace.ProjectDir)

	cfg.Project.ImportRoots = trimAll(cfg.Project.ImportRoots)
	cfg.Project.ExcludeDirs = trimAll(cfg.Project.ExcludeDirs)
	cfg.Project.ExcludePatterns = trimAll(cfg.Project.ExcludePatterns)
	languages := trimAll(cfg.Project.Languages)
	for i := range languages {
		languages[i] = strings.ToLower(languages[i])
	}
	cfg.Project.Languages = languages

	cfg.Query.Invoker = strings.ToLower(strings.TrimSpace(cfg.Query.Invoker))
	cfg.Query.Binary = strings.TrimSpace(cfg.Query.Binary)
	cfg.Query.StartupFlags = trimAll(cfg.Query.StartupFlags)
	cfg.Query.Flags = trimAll(cfg.Query.Flags)
	cfg.Query.ReplayFile = strings.TrimSpace(cfg.Query.ReplayFile)

	cfg.Generated.CacheDir = strings.TrimSpace(cfg.Generated.CacheDir)
	cfg.DB.Path = strings.TrimSpace(cfg.DB.Path)
	cfg.Observability.Address = strings.TrimSpace(cfg.Observability.Address)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Observability.ServiceName = strings.TrimSpace(cfg.Observability.ServiceName)
}

// trimAll drops blank entries.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
