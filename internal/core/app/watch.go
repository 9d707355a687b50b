package app

import (
	"context"
	"sync"

	"querysync/internal/core/errors"
	"querysync/internal/core/ports"
	"querysync/internal/core/watcher"
	"querysync/internal/shared/observability"
	"querysync/internal/shared/util"
)

// Watch syncs once, then re-syncs whenever BUILD files or sources under the
// import roots change, at most watch.syncs_per_minute times a minute. It
// returns when ctx is done. onSync sees every sync outcome, including
// failures, which do not stop the loop.
func (s *Service) Watch(ctx context.Context, onSync func(ports.SyncResult, error)) error {
	if s.deps.WorkspaceRoot == "" {
		return errors.New(errors.CodeValidationError, "watch requires a workspace root")
	}
	if onSync == nil {
		onSync = func(ports.SyncResult, error) {}
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
	)
	signal := make(chan struct{}, 1)
	onChange := func(paths []string) {
		mu.Lock()
		for _, p := range paths {
			pending[p] = true
		}
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	}

	w, err := watcher.NewWatcher(s.deps.WorkspaceRoot, s.deps.Definition, s.deps.Watch.Debounce, watcher.DefaultExcludeDirs, onChange, s.logger)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create watcher")
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "no import root to watch"), errors.CtxPath, s.deps.WorkspaceRoot)
	}

	onSync(s.Sync(ctx, ports.SyncRequest{Reason: "initial"}))

	limiter := util.NewPerMinuteLimiter(s.deps.Watch.SyncsPerMinute)
	limiter.Allow(1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signal:
		}

		if !limiter.Allow(1) {
			observability.WatchSyncsThrottledTotal.Inc()
			s.logger.Info("sync throttled", "syncs_per_minute", s.deps.Watch.SyncsPerMinute)
			if err := limiter.Wait(ctx, 1); err != nil {
				return nil
			}
		}

		mu.Lock()
		paths := util.SortedStringKeys(pending)
		pending = make(map[string]bool)
		mu.Unlock()

		s.logger.Info("changes detected", "paths", len(paths))
		onSync(s.Sync(ctx, ports.SyncRequest{Reason: "watch", ChangedPaths: paths}))
	}
}
