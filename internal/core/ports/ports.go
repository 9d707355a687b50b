package ports

import (
	"context"
	"time"

	"querysync/internal/data/history"
	"querysync/internal/engine/graph"
	"querysync/internal/engine/project"
	"querysync/internal/engine/query"
)

// QueryRunner executes a build query and summarizes its streamed output.
type QueryRunner interface {
	RunQuery(ctx context.Context, spec query.Spec) (*query.Summary, error)
}

// PackageReader resolves the declared package of a workspace-relative source.
type PackageReader = project.PackageReader

// GeneratedSourceLister lists the generated source directories to attach to
// a project.
type GeneratedSourceLister interface {
	GeneratedDirs(ctx context.Context) ([]string, error)
}

// HistoryStore abstracts sync-run persistence.
type HistoryStore interface {
	SaveRun(projectKey string, run history.Run) (history.Run, error)
	LoadRuns(projectKey string, since time.Time, limit int) ([]history.Run, error)
	LatestRun(projectKey string) (history.Run, bool, error)
}

// SyncRequest defines a sync operation request for driving adapters.
type SyncRequest struct {
	// Reason is logged and recorded, e.g. "manual" or "watch".
	Reason string
	// ChangedPaths are the workspace-relative files that triggered a watch sync.
	ChangedPaths []string
}

// SyncResult summarizes a completed sync.
type SyncResult struct {
	Project     *project.Project
	Summary     *query.Summary
	Graph       *graph.Data
	Changed     bool
	Fingerprint string
	RunID       string
	Duration    time.Duration
}

// SyncService is the driving port for one-shot and watch syncs.
type SyncService interface {
	Sync(ctx context.Context, req SyncRequest) (SyncResult, error)
	Current() *project.Project
	History(ctx context.Context, since time.Time, limit int) ([]history.Run, error)
	Watch(ctx context.Context, onSync func(SyncResult, error)) error
}
