package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"querysync/internal/core/config"
	"querysync/internal/shared/observability"
)

type runtime struct {
	cfg     *config.Config
	cfgPath string
	paths   config.ResolvedPaths
	logger  *slog.Logger
}

// load resolves configuration the same way for every command: file, then
// env overrides, then command line flags.
func (o *rootOptions) load() (*runtime, error) {
	logger := configureLogging(o.stderr, o.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	cfg, cfgPath, err := loadConfig(o.configPath, o.workspace, cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	config.ApplyEnvOverrides(cfg)
	if o.workspace != "" {
		cfg.Workspace.Root = o.workspace
	}
	if o.replayFile != "" {
		cfg.Query.Invoker = "replay"
		cfg.Query.ReplayFile = config.ResolveRelative(cwd, o.replayFile)
	}
	if err := config.Revalidate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	// Relative workspace roots in a config file are relative to that file.
	base := cwd
	if o.workspace == "" && cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	logger.Debug("configuration loaded", "config", cfgPath, "workspace", paths.WorkspaceRoot, "project_dir", paths.ProjectDir)
	return &runtime{cfg: cfg, cfgPath: cfgPath, paths: paths, logger: logger}, nil
}

func loadConfig(path, workspace, cwd string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidates, err := discoverDefaultConfig(workspace, cwd)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		cfg, loadErr := config.Load(candidate)
		if loadErr == nil {
			return cfg, candidate, nil
		}
		if os.IsNotExist(loadErr) {
			continue
		}
		return nil, "", loadErr
	}
	return nil, "", fmt.Errorf("no %s found in %s", config.DefaultFile, strings.Join(candidates, ", "))
}

func discoverDefaultConfig(workspace, cwd string) ([]string, error) {
	if strings.TrimSpace(cwd) == "" {
		return nil, fmt.Errorf("cwd must not be empty")
	}
	candidates := []string{filepath.Join(cwd, config.DefaultFile)}
	if workspace != "" {
		candidates = append(candidates, filepath.Join(config.ResolveRelative(cwd, workspace), config.DefaultFile))
	}
	root, err := config.DetectWorkspaceRoot(cwd)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, filepath.Join(root, config.DefaultFile))

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = filepath.Clean(c)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// configureLogging logs to w so stdout carries only command output.
func configureLogging(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// setupTracing installs the OTLP exporter when configured. The returned
// function flushes it.
func setupTracing(ctx context.Context, rt *runtime) func() {
	shutdown, err := observability.InitTracing(ctx, rt.cfg.Observability.ServiceName, rt.cfg.Observability.OTLPEndpoint)
	if err != nil {
		rt.logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			rt.logger.Warn("failed to flush traces", "error", err)
		}
	}
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}
	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}
	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return time.Now().UTC().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("--since must be RFC3339, YYYY-MM-DD or a duration, got %q", value)
}
