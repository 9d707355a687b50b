package app

import (
	"log/slog"
	"sync"

	"querysync/internal/core/config"
	"querysync/internal/core/errors"
	"querysync/internal/core/ports"
	"querysync/internal/data/history"
	"querysync/internal/engine/graph"
	"querysync/internal/engine/parser"
	"querysync/internal/engine/project"
	"querysync/internal/engine/query"
	"querysync/internal/engine/runner"
	"querysync/internal/engine/workspace"
)

// Dependencies are the collaborators of a Service. Runner, Definition and
// Reader are required.
type Dependencies struct {
	Definition *workspace.ProjectDefinition
	Runner     ports.QueryRunner
	Reader     ports.PackageReader
	Generated  ports.GeneratedSourceLister
	History    ports.HistoryStore
	// CacheRelativePath is where generated sources live, relative to the
	// project directory.
	CacheRelativePath string
	ProjectKey        string
	WorkspaceRoot     string
	Watch             config.Watch
	Logger            *slog.Logger
}

// Service runs syncs. Syncs are serialized; results are immutable and may
// be shared freely.
type Service struct {
	deps      Dependencies
	parser    *graph.Parser
	converter *project.Converter
	logger    *slog.Logger

	syncMu sync.Mutex

	stateMu     sync.RWMutex
	current     *project.Project
	fingerprint string
	lastSummary *query.Summary
	lastGraph   *graph.Data
	lastErr     error

	closeHistory func() error
}

var _ ports.SyncService = (*Service)(nil)

func NewService(deps Dependencies) (*Service, error) {
	if deps.Definition == nil {
		return nil, errors.New(errors.CodeValidationError, "project definition is required")
	}
	if deps.Runner == nil {
		return nil, errors.New(errors.CodeValidationError, "query runner is required")
	}
	if deps.Reader == nil {
		return nil, errors.New(errors.CodeValidationError, "package reader is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:      deps,
		parser:    graph.NewParser(deps.Definition, deps.Logger),
		converter: project.NewConverterForDefinition(deps.Definition, deps.Reader, deps.Logger),
		logger:    deps.Logger,
	}, nil
}

// New wires a Service from configuration: the configured query invoker,
// the workspace package readers, the generated source cache and, when
// enabled, the sqlite history store.
func New(cfg *config.Config, paths config.ResolvedPaths, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def, err := ProjectDefinition(cfg)
	if err != nil {
		return nil, err
	}
	r, err := runner.New(RunnerOptions(cfg, paths), logger)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Definition:        def,
		Runner:            r,
		Reader:            parser.NewWorkspacePackageReader(paths.WorkspaceRoot),
		Generated:         NewDirectoryLister(paths.GeneratedCacheDir),
		CacheRelativePath: paths.GeneratedCacheRelative,
		ProjectKey:        paths.WorkspaceRoot,
		WorkspaceRoot:     paths.WorkspaceRoot,
		Watch:             cfg.Watch,
		Logger:            logger,
	}

	var store *history.Store
	if cfg.DB.Enabled {
		store, err = history.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, err
		}
		deps.History = store
	}

	svc, err := NewService(deps)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	if store != nil {
		svc.closeHistory = store.Close
	}
	return svc, nil
}

// ProjectDefinition builds the project definition described by cfg.
func ProjectDefinition(cfg *config.Config) (*workspace.ProjectDefinition, error) {
	langs := make([]workspace.LanguageClass, 0, len(cfg.Project.Languages))
	for _, raw := range cfg.Project.Languages {
		lang, err := workspace.ParseLanguageClass(raw)
		if err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	def, err := workspace.NewProjectDefinition(cfg.Project.ImportRoots, cfg.Project.ExcludeDirs, langs)
	if err != nil {
		return nil, err
	}
	return def.WithExcludePatterns(cfg.Project.ExcludePatterns...)
}

// RunnerOptions maps the query section onto runner options.
func RunnerOptions(cfg *config.Config, paths config.ResolvedPaths) runner.Options {
	maxLen := cfg.Query.MaxCommandLineLength
	if maxLen < 0 {
		maxLen = 0
	}
	return runner.Options{
		Invoker: runner.Invoker(cfg.Query.Invoker),
		Local: runner.LocalOptions{
			Binary:               cfg.Query.Binary,
			StartupFlags:         cfg.Query.StartupFlags,
			ExtraFlags:           cfg.Query.Flags,
			WorkspaceRoot:        paths.WorkspaceRoot,
			ProjectDir:           paths.ProjectDir,
			MaxCommandLineLength: maxLen,
			Timeout:              cfg.Query.Timeout,
		},
		ReplayFile: paths.ReplayFile,
	}
}

func (s *Service) Close() error {
	if s == nil || s.closeHistory == nil {
		return nil
	}
	return s.closeHistory()
}

func (s *Service) Definition() *workspace.ProjectDefinition {
	return s.deps.Definition
}

// Current returns the project of the last successful sync, or nil.
func (s *Service) Current() *project.Project {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current
}
