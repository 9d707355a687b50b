package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: QUERYSYNC_[SECTION]_[KEY] (e.g., QUERYSYNC_QUERY_BINARY).
// List values are comma separated.
func ApplyEnvOverrides(cfg *Config) {
	// Workspace
	setEnvString(&cfg.Workspace.Root, "QUERYSYNC_WORKSPACE_ROOT")
	setEnvString(&cfg.Workspace.ProjectDir, "QUERYSYNC_WORKSPACE_PROJECT_DIR")

	// Project
	setEnvList(&cfg.Project.ImportRoots, "QUERYSYNC_PROJECT_IMPORT_ROOTS")
	setEnvList(&cfg.Project.ExcludeDirs, "QUERYSYNC_PROJECT_EXCLUDE_DIRS")
	setEnvList(&cfg.Project.ExcludePatterns, "QUERYSYNC_PROJECT_EXCLUDE_PATTERNS")
	setEnvList(&cfg.Project.Languages, "QUERYSYNC_PROJECT_LANGUAGES")

	// Query
	setEnvString(&cfg.Query.Invoker, "QUERYSYNC_QUERY_INVOKER")
	setEnvString(&cfg.Query.Binary, "QUERYSYNC_QUERY_BINARY")
	setEnvList(&cfg.Query.StartupFlags, "QUERYSYNC_QUERY_STARTUP_FLAGS")
	setEnvList(&cfg.Query.Flags, "QUERYSYNC_QUERY_FLAGS")
	setEnvInt(&cfg.Query.MaxCommandLineLength, "QUERYSYNC_QUERY_MAX_COMMAND_LINE_LENGTH")
	setEnvString(&cfg.Query.ReplayFile, "QUERYSYNC_QUERY_REPLAY_FILE")
	setEnvDuration(&cfg.Query.Timeout, "QUERYSYNC_QUERY_TIMEOUT")

	// Generated sources
	setEnvString(&cfg.Generated.CacheDir, "QUERYSYNC_GENERATED_CACHE_DIR")

	// Database
	setEnvBool(&cfg.DB.Enabled, "QUERYSYNC_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "QUERYSYNC_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "QUERYSYNC_DB_BUSY_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "QUERYSYNC_WATCH_DEBOUNCE")
	setEnvInt(&cfg.Watch.SyncsPerMinute, "QUERYSYNC_WATCH_SYNCS_PER_MINUTE")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "QUERYSYNC_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "QUERYSYNC_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "QUERYSYNC_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "QUERYSYNC_OBSERVABILITY_SERVICE_NAME")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Info("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Info("applying env override", "key", key, "value", val)
		*target = trimAll(strings.Split(val, ","))
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
