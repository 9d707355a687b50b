package runner

import (
	"context"
	"log/slog"
	"strings"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
)

// Invoker names a runner variant.
type Invoker string

const (
	InvokerLocal  Invoker = "local"
	InvokerReplay Invoker = "replay"
)

// Runner runs a query and returns its summary.
type Runner interface {
	RunQuery(ctx context.Context, spec query.Spec) (*query.Summary, error)
}

type Options struct {
	Invoker    Invoker
	Local      LocalOptions
	ReplayFile string
}

// New selects the runner variant named by opts.Invoker.
func New(opts Options, logger *slog.Logger) (Runner, error) {
	switch Invoker(strings.ToLower(string(opts.Invoker))) {
	case InvokerLocal, "":
		if strings.TrimSpace(opts.Local.Binary) == "" {
			return nil, errors.New(errors.CodeValidationError, "local invoker requires a query binary")
		}
		return NewLocalRunner(opts.Local, logger), nil
	case InvokerReplay:
		if strings.TrimSpace(opts.ReplayFile) == "" {
			return nil, errors.New(errors.CodeValidationError, "replay invoker requires a replay file")
		}
		return NewReplayRunner(opts.ReplayFile, logger), nil
	default:
		return nil, errors.AddContext(
			errors.New(errors.CodeNotSupported, "unknown query invoker"),
			errors.CtxOperation, string(opts.Invoker),
		)
	}
}
