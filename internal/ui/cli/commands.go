package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"querysync/internal/core/app"
	"querysync/internal/core/ports"
	"querysync/internal/engine/runner"
	"querysync/internal/shared/util"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one query sync and print the project model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer setupTracing(ctx, rt)()

			svc, err := app.New(rt.cfg, rt.paths, rt.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Sync(ctx, ports.SyncRequest{Reason: "manual"})
			if err != nil {
				return err
			}

			if output != "" {
				format := opts.format
				if format == formatText {
					format = formatJSON
				}
				data, err := encodeBytes(format, res.Project)
				if err != nil {
					return err
				}
				path := output
				if !filepath.IsAbs(path) {
					path = filepath.Join(rt.paths.ProjectDir, path)
				}
				if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
					return fmt.Errorf("write project model: %w", err)
				}
				rt.logger.Info("project model written", "path", path)
			}
			return writeSyncResult(opts.stdout, opts.format, res)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the project model to this file (relative to the project directory)")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync, then re-sync whenever BUILD files or sources under the import roots change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer setupTracing(ctx, rt)()

			svc, err := app.New(rt.cfg, rt.paths, rt.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			if rt.cfg.Observability.Enabled {
				server := NewObservabilityServer(rt.cfg.Observability.Address, app.NewHealthService(svc))
				if err := server.Start(ctx); err != nil {
					return fmt.Errorf("start observability server: %w", err)
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Stop(shutdownCtx)
				}()
			}

			return svc.Watch(ctx, func(res ports.SyncResult, err error) {
				if err != nil {
					fmt.Fprintln(opts.stdout, renderFailureLine(err))
					return
				}
				if opts.format == formatText {
					fmt.Fprintln(opts.stdout, renderSyncLine(res))
					return
				}
				if err := writeSyncResult(opts.stdout, opts.format, res); err != nil {
					rt.logger.Warn("failed to write sync result", "error", err)
				}
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		since string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceTime, err := parseSince(since)
			if err != nil {
				return err
			}
			rt, err := opts.load()
			if err != nil {
				return err
			}
			svc, err := app.New(rt.cfg, rt.paths, rt.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			runs, err := svc.History(cmd.Context(), sinceTime, limit)
			if err != nil {
				return err
			}
			return writeRuns(opts.stdout, opts.format, runs)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only runs started at or after this time (RFC3339, YYYY-MM-DD or a duration like 24h)")
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many of the most recent runs (0 for all)")
	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Show the query derived from the project definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.load()
			if err != nil {
				return err
			}
			def, err := app.ProjectDefinition(rt.cfg)
			if err != nil {
				return err
			}
			spec := def.QuerySpec()

			if !execute {
				command, err := runner.NewCommand(rt.cfg.Query.Binary, rt.cfg.Query.StartupFlags, rt.cfg.Query.Flags, spec)
				if err != nil {
					return err
				}
				return writeQuery(opts.stdout, opts.format, command)
			}

			r, err := runner.New(app.RunnerOptions(rt.cfg, rt.paths), rt.logger)
			if err != nil {
				return err
			}
			summary, err := r.RunQuery(cmd.Context(), spec)
			if err != nil {
				return err
			}
			return writeSummary(opts.stdout, opts.format, summary)
		},
	}
	cmd.Flags().BoolVar(&execute, "run", false, "run the query and print the summarized result")
	return cmd
}
