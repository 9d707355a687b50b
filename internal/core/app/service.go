package app

import (
	"context"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/core/ports"
	"querysync/internal/data/history"
	"querysync/internal/engine/graph"
	"querysync/internal/engine/project"
	"querysync/internal/engine/query"
	"querysync/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sync stages, used as span names and metric labels.
const (
	stageQuery   = "query"
	stageParse   = "parse"
	stageConvert = "convert"
	stageGensrc  = "gensrc"
)

// Sync runs the query, rebuilds the project and records the run. When the
// new project matches the current one, the current pointer is returned and
// Changed is false.
func (s *Service) Sync(ctx context.Context, req ports.SyncRequest) (ports.SyncResult, error) {
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}
	ctx, span := observability.Tracer.Start(ctx, "Service.Sync", trace.WithAttributes(
		attribute.String("reason", reason),
		attribute.Int("changed_paths", len(req.ChangedPaths)),
	))
	defer span.End()

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	started := time.Now()
	s.logger.Info("sync started", "reason", reason, "changed_paths", len(req.ChangedPaths))

	summary, data, next, err := s.build(ctx)
	duration := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.SyncRunsTotal.WithLabelValues(observability.OutcomeFailed).Inc()
		s.setFailure(err)

		run := history.Run{
			StartedAt:    started.UTC(),
			Duration:     duration,
			Status:       history.StatusFailed,
			ErrorMessage: err.Error(),
		}
		if code, ok := errors.CodeOf(err); ok {
			run.ErrorCode = string(code)
		}
		s.record(run)
		s.logger.Error("sync failed", "reason", reason, "duration", duration, "error", err)
		return ports.SyncResult{}, err
	}

	fingerprint := next.FingerprintHex()
	previous, previousFingerprint := s.snapshot()
	if previous == nil {
		previousFingerprint = s.lastRecordedFingerprint()
	}
	changed := fingerprint != previousFingerprint
	if previous != nil {
		if previous.Equal(next) {
			next = previous
			changed = false
		} else {
			changed = true
		}
	}

	s.stateMu.Lock()
	s.current = next
	s.fingerprint = fingerprint
	s.lastSummary = summary
	s.lastGraph = data
	s.lastErr = nil
	s.stateMu.Unlock()

	outcome := observability.OutcomeUnchanged
	if changed {
		outcome = observability.OutcomeChanged
	}
	observability.SyncRunsTotal.WithLabelValues(outcome).Inc()
	s.observeSizes(summary, data, next)

	summaryStats := summary.Stats()
	graphStats := data.Stats()
	projectStats := next.Stats()
	run := s.record(history.Run{
		StartedAt:        started.UTC(),
		Duration:         duration,
		Status:           history.StatusOK,
		Changed:          changed,
		Fingerprint:      fingerprint,
		Rules:            summaryStats.Rules,
		SourceFiles:      summaryStats.SourceFiles,
		GeneratedFiles:   summaryStats.GeneratedFiles,
		Targets:          graphStats.Targets,
		Sources:          graphStats.Sources,
		ContentEntries:   projectStats.ContentEntries,
		SourceFolders:    projectStats.SourceFolders,
		GeneratedFolders: projectStats.GeneratedFolders,
	})

	span.SetAttributes(attribute.Bool("changed", changed), attribute.String("fingerprint", fingerprint))
	s.logger.Info("sync finished",
		"reason", reason,
		"changed", changed,
		"fingerprint", fingerprint,
		"targets", graphStats.Targets,
		"source_folders", projectStats.SourceFolders,
		"duration", duration,
	)

	return ports.SyncResult{
		Project:     next,
		Summary:     summary,
		Graph:       data,
		Changed:     changed,
		Fingerprint: fingerprint,
		RunID:       run.ID,
		Duration:    duration,
	}, nil
}

func (s *Service) build(ctx context.Context) (*query.Summary, *graph.Data, *project.Project, error) {
	var (
		summary *query.Summary
		data    *graph.Data
		proj    *project.Project
		dirs    []string
	)

	err := s.stage(ctx, stageQuery, func(ctx context.Context) error {
		var err error
		summary, err = s.deps.Runner.RunQuery(ctx, s.deps.Definition.QuerySpec())
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	err = s.stage(ctx, stageParse, func(context.Context) error {
		var err error
		data, err = s.parser.Parse(summary)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	err = s.stage(ctx, stageConvert, func(context.Context) error {
		var err error
		proj, err = s.converter.CreateProject(data)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	err = s.stage(ctx, stageGensrc, func(ctx context.Context) error {
		if s.deps.Generated == nil {
			return nil
		}
		var err error
		dirs, err = s.deps.Generated.GeneratedDirs(ctx)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return summary, data, project.AddGenSrcContentEntry(proj, s.deps.CacheRelativePath, dirs), nil
}

func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observability.Tracer.Start(ctx, "sync."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	observability.SyncStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.logger.Debug("sync stage finished", "stage", name, "duration", elapsed)
	return nil
}

func (s *Service) observeSizes(summary *query.Summary, data *graph.Data, p *project.Project) {
	st := summary.Stats()
	observability.SummaryTargets.WithLabelValues("rule").Set(float64(st.Rules))
	observability.SummaryTargets.WithLabelValues("source_file").Set(float64(st.SourceFiles))
	observability.SummaryTargets.WithLabelValues("generated_file").Set(float64(st.GeneratedFiles))

	gs := data.Stats()
	observability.GraphTargets.Set(float64(gs.Targets))
	observability.GraphSources.Set(float64(gs.Sources))

	ps := p.Stats()
	observability.ProjectSourceFolders.WithLabelValues("source").Set(float64(ps.SourceFolders - ps.GeneratedFolders))
	observability.ProjectSourceFolders.WithLabelValues("generated").Set(float64(ps.GeneratedFolders))
}

func (s *Service) snapshot() (*project.Project, string) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current, s.fingerprint
}

func (s *Service) setFailure(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
}

// lastRecordedFingerprint lets the first sync of a process compare against
// the previous process's last successful run.
func (s *Service) lastRecordedFingerprint() string {
	if s.deps.History == nil {
		return ""
	}
	run, ok, err := s.deps.History.LatestRun(s.deps.ProjectKey)
	if err != nil {
		s.logger.Warn("failed to load latest sync run", "error", err)
		return ""
	}
	if !ok || run.Status != history.StatusOK {
		return ""
	}
	return run.Fingerprint
}

// record saves run when history is enabled. Failures are logged, not
// returned.
func (s *Service) record(run history.Run) history.Run {
	if s.deps.History == nil {
		return run
	}
	saved, err := s.deps.History.SaveRun(s.deps.ProjectKey, run)
	if err != nil {
		s.logger.Warn("failed to record sync run", "error", err)
		return run
	}
	return saved
}

// History returns recorded runs, oldest first.
func (s *Service) History(ctx context.Context, since time.Time, limit int) ([]history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.deps.History == nil {
		return nil, errors.New(errors.CodeNotSupported, "sync history is disabled; set db.enabled = true")
	}
	return s.deps.History.LoadRuns(s.deps.ProjectKey, since, limit)
}

// LastResult returns the summary and graph of the last successful sync.
func (s *Service) LastResult() (*query.Summary, *graph.Data) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastSummary, s.lastGraph
}
