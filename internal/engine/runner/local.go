package runner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
)

// stderrLimit caps how much of the tool's stderr is kept for error reports.
const stderrLimit = 8 << 10

// LocalOptions configures a LocalRunner.
type LocalOptions struct {
	Binary       string
	StartupFlags []string
	ExtraFlags   []string
	// WorkspaceRoot is the working directory of the query process.
	WorkspaceRoot string
	// ProjectDir receives spilled query files under tmp/.
	ProjectDir string
	// MaxCommandLineLength spills longer expressions to a file. Zero disables
	// spilling.
	MaxCommandLineLength int
	Timeout              time.Duration
}

// LocalRunner runs the build tool as a child process and summarizes its
// stdout while it is produced.
type LocalRunner struct {
	opts   LocalOptions
	logger *slog.Logger

	// For mocking in tests
	commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewLocalRunner(opts LocalOptions, logger *slog.Logger) *LocalRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalRunner{
		opts:        opts,
		logger:      logger,
		commandFunc: exec.CommandContext,
	}
}

func (r *LocalRunner) RunQuery(ctx context.Context, spec query.Spec) (*query.Summary, error) {
	cmd, err := NewCommand(r.opts.Binary, r.opts.StartupFlags, r.opts.ExtraFlags, spec)
	if err != nil {
		return nil, err
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	cmd, cleanup, err := r.spill(cmd)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	r.logger.Info("running query", "command", cmd.String())
	start := time.Now()

	proc := r.commandFunc(ctx, cmd.Binary(), cmd.Args()...)
	proc.Dir = r.opts.WorkspaceRoot
	stderr := &tailBuffer{limit: stderrLimit}
	proc.Stderr = stderr
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryExecution, "open query stdout")
	}
	if err := proc.Start(); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeQueryExecution, "start query"),
			errors.CtxOperation, cmd.Binary(),
		)
	}

	summary, parseErr := query.Summarize(stdout)
	if parseErr != nil && proc.Process != nil {
		_ = proc.Process.Kill()
	}
	waitErr := proc.Wait()

	switch {
	case ctx.Err() != nil:
		return nil, errors.AddContext(
			errors.Wrap(ctx.Err(), errors.CodeQueryExecution, "query cancelled"),
			errors.CtxOperation, cmd.Binary(),
		)
	case parseErr != nil:
		return nil, parseErr
	case waitErr != nil:
		return nil, errors.AddContext(
			errors.Wrap(waitErr, errors.CodeQueryExecution, "query failed"),
			"stderr", stderr.String(),
		)
	}

	stats := summary.Stats()
	r.logger.Info("summarised query",
		"duration", time.Since(start).Round(time.Millisecond),
		"rules", stats.Rules,
		"source_files", stats.SourceFiles,
		"generated_files", stats.GeneratedFiles,
	)
	return summary, nil
}

// spill moves an oversized expression into a file under <project>/tmp.
func (r *LocalRunner) spill(cmd Command) (Command, func(), error) {
	noop := func() {}
	if r.opts.MaxCommandLineLength <= 0 || len(cmd.Expression()) <= r.opts.MaxCommandLineLength {
		return cmd, noop, nil
	}

	base := r.opts.ProjectDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cmd, noop, errors.AddContext(errors.Wrap(err, errors.CodeQueryExecution, "create query file dir"), errors.CtxPath, dir)
	}
	f, err := os.CreateTemp(dir, "query*.txt")
	if err != nil {
		return cmd, noop, errors.AddContext(errors.Wrap(err, errors.CodeQueryExecution, "create query file"), errors.CtxPath, dir)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(cmd.Expression()); err != nil {
		_ = f.Close()
		cleanup()
		return cmd, noop, errors.AddContext(errors.Wrap(err, errors.CodeQueryExecution, "write query file"), errors.CtxPath, f.Name())
	}
	if err := f.Close(); err != nil {
		cleanup()
		return cmd, noop, errors.AddContext(errors.Wrap(err, errors.CodeQueryExecution, "write query file"), errors.CtxPath, f.Name())
	}

	r.logger.Debug("query expression spilled to file",
		"length", len(cmd.Expression()),
		"max", r.opts.MaxCommandLineLength,
		"path", f.Name(),
	)
	return cmd.WithQueryFile(f.Name()), cleanup, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
