package runner

import (
	"context"
	"log/slog"
	"os"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
)

// ReplayRunner answers every query with a recorded streamed_jsonproto file.
// The spec is only logged.
type ReplayRunner struct {
	path   string
	logger *slog.Logger
}

func NewReplayRunner(path string, logger *slog.Logger) *ReplayRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayRunner{path: path, logger: logger}
}

func (r *ReplayRunner) RunQuery(ctx context.Context, spec query.Spec) (*query.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryExecution, "query cancelled")
	}
	r.logger.Info("replaying query", "path", r.path, "query", spec.Expression())

	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeQueryExecution, "open replay file"), errors.CtxPath, r.path)
	}
	defer f.Close()

	summary, err := query.Summarize(f)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, r.path)
	}
	return summary, nil
}
